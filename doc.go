/*
Package rfqflow drafts proposals in answer to requests for quotation, with a human in the loop.

A request runs through a stateful graph: intent routing, query understanding, structuring,
grounding in the tenant's documents, drafting, critique against past winning proposals and
human review. Review suspends the run. The thread is checkpointed and the caller receives an
interrupt carrying the draft; resuming with the reviewer's verdict either loops back to the
drafter or finishes the thread and remembers the approved proposal.

# Usage

	engine, err := rfqflow.New(proposal.Deps{
		LLM:       openai.New(openai.Config{}),
		Retriever: retrieval.New(repo),
	}, memory.NewStore())
	if err != nil {
		log.Fatal(err)
	}

	last, _ := runner.Collect(engine.Start(ctx, "thread-1", domain.NewState("Write a proposal for RFQ 42", session)))
	if last.Kind == runner.Suspended {
		fmt.Println(last.Interrupt.Proposal)
	}
	last, _ = runner.Collect(engine.Resume(ctx, "thread-1", domain.ParseFeedback("approve"), nil))

The HTTP API (pkg/adapters/http), the MCP server (pkg/adapters/mcp) and the rfqflow command
are thin layers over the same engine.
*/
package rfqflow
