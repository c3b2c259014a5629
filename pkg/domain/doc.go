/*
Package domain contains the core models of the rfqflow orchestration engine.

It defines the record that flows through the workflow graph, the partial updates nodes
return, the reducers that merge them, and the durable checkpoint shape. This package
performs no I/O and knows nothing about persistence or transport.

# Key Entities

  - State: the single record passed between nodes (query, draft, examples, messages, feedback, status).
  - Update: a node's partial output. Scalars overwrite, lists append, messages merge by id.
  - StateDiff: the per-node delta reported to callers.
  - Interrupt: a designed suspension point awaiting human input. It is a result, not an error.
  - Feedback: the structured human decision applied on resume.
  - Checkpoint: the durable snapshot of a thread at a node boundary.
*/
package domain
