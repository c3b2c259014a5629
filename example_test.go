package rfqflow_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/rfqflow"
	"github.com/aretw0/rfqflow/pkg/adapters/memory"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/proposal"
	"github.com/aretw0/rfqflow/pkg/retrieval"
	"github.com/aretw0/rfqflow/pkg/runner"
)

// ExampleNew drafts a proposal offline, asks for one revision and approves the second draft.
func ExampleNew() {
	const draft = "# Drilling Proposal\n\nThree boreholes in Lot 1."
	llm := memory.NewScriptedLLM("",
		memory.Rule{Match: "intent classification agent", Reply: "rag"},
		memory.Rule{Match: "review user requests before a proposal is drafted", Reply: `{"needs_clarification": false}`},
		memory.Rule{Match: "proposal structuring agent", Reply: `{"type": "full_proposal"}`},
		memory.Rule{Match: "expert proposal writer", Reply: draft},
		memory.Rule{Match: "expert in reviewing proposals", Reply: draft},
	)
	ctx := context.Background()
	repo := memory.NewRepository()
	if _, err := repo.SaveProposal(ctx, "acme", domain.Proposal{Title: "Past win", Content: "Borehole drilling.", IsWinning: true}); err != nil {
		log.Fatal(err)
	}

	engine, err := rfqflow.New(proposal.Deps{
		LLM:       llm,
		Retriever: retrieval.New(repo),
		Memory:    memory.NewMemoryStore(),
	}, memory.NewStore())
	if err != nil {
		log.Fatal(err)
	}

	session := domain.Session{TenantID: "acme"}.Map()
	last, _ := runner.Collect(engine.Start(ctx, "t1", domain.NewState("Write a proposal for the drilling RFQ", session)))
	fmt.Println(last.Kind, last.Interrupt.Node, last.State.Iteration)

	last, _ = runner.Collect(engine.Resume(ctx, "t1", domain.ParseFeedback("revise: mention the schedule"), nil))
	fmt.Println(last.Kind, last.Interrupt.Node, last.State.Iteration)

	last, _ = runner.Collect(engine.Resume(ctx, "t1", domain.ParseFeedback("approve"), nil))
	fmt.Println(last.Kind, last.State.Status)
	// Output:
	// suspended human_review 0
	// suspended human_review 1
	// done APPROVED
}
