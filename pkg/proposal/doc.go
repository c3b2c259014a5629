/*
Package proposal wires the RFQ proposal workflow on top of the graph engine.

	intent_router --rag--> query_understanding --clear--> structure
	             \--direct--> direct_answer --> persist_memory --> END
	query_understanding --unclear--> clarify (interrupt) --> structure
	structure --> ground --> draft --> retrieve --> critic --> human_review (interrupt)
	human_review: APPROVED --> persist_memory, NEEDS_REVISION --> draft, otherwise --> human_review

Nodes that find a required input missing do not fail: they report it in
State.MissingInputs and the following router sends the run back to draft.

The package only talks to collaborators through pkg/ports, so the same graph runs
against the OpenAI adapter in production and scripted models in tests.
*/
package proposal
