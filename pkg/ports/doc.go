/*
Package ports defines the driven ports (interfaces) of the rfqflow engine.

These interfaces decouple the orchestration core and the workflow nodes from concrete
storage backends and external services, so that each can be swapped or faked in tests.

# Key Interfaces

  - Checkpointer: persists and loads thread checkpoints.
  - DistributedLocker: serializes work on a thread across replicas.
  - LLM: chat completion, blocking or streamed.
  - Retriever: retrieval-augmented lookup over tenant documents and past proposals.
  - MemoryStore: long-term memory with namespaced upsert and ranked search.
  - DocumentRepository: tenant-keyed documents, RFQ metadata and proposals.
  - Exporter: document workspace used to publish approved proposals.
*/
package ports
