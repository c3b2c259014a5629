package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SampleCheckpoint builds a fully populated checkpoint with JSON-stable values.
func SampleCheckpoint(threadID string) *domain.Checkpoint {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	draft := domain.Message{ID: "m-2", Role: domain.RoleAssistant, Content: "Draft proposal body", CreatedAt: at}

	state := domain.NewState("Write a proposal for the CTBTO RFQ", map[string]any{"tenant_id": "acme", "email": "ops@acme.test"})
	state.Candidate = &draft
	state.Examples = "<RetrievedProposals>past work</RetrievedProposals>"
	state.Structure = &domain.ProposalStructure{Type: "full_proposal", Sections: []string{"Scope", "Pricing"}}
	state.Messages = []domain.Message{
		{ID: "m-1", Role: domain.RoleUser, Content: "Write a proposal", CreatedAt: at},
		draft,
	}
	state.HumanFeedback = []string{"revise: shorter"}
	state.Status = domain.StatusNeedsRevision
	state.Iteration = 1
	state.IntentRoute = "rag"

	return &domain.Checkpoint{
		ThreadID: threadID,
		State:    state,
		Next:     "human_review",
		Pending: &domain.Interrupt{
			Node:            "human_review",
			Message:         "Please review the draft and provide your feedback.",
			Proposal:        "Draft proposal body",
			FeedbackOptions: []string{"approve", "revise"},
			CreatedAt:       at,
		},
		RunStatus: domain.RunSuspended,
		Step:      7,
		Version:   3,
		UpdatedAt: at,
	}
}

// RunCheckpointerContract runs a suite of tests to verify that a Checkpointer implementation
// adheres to the interface contract.
func RunCheckpointerContract(t *testing.T, store Checkpointer) {
	ctx := context.Background()
	threadID := "contract-thread-" + time.Now().Format("20060102150405.000000")

	t.Run("Save and Load", func(t *testing.T) {
		cp := SampleCheckpoint(threadID)
		require.NoError(t, store.Save(ctx, threadID, cp), "Save should not return error")

		loaded, err := store.Load(ctx, threadID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, cp, loaded, "Load after Save must return an equal checkpoint")
	})

	t.Run("Saved Checkpoint Is Isolated From Caller", func(t *testing.T) {
		cp := SampleCheckpoint(threadID)
		require.NoError(t, store.Save(ctx, threadID, cp))

		cp.State.HumanFeedback[0] = "mutated after save"
		cp.State.Messages[0].Content = "mutated after save"

		loaded, err := store.Load(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, "revise: shorter", loaded.State.HumanFeedback[0])
		assert.Equal(t, "Write a proposal", loaded.State.Messages[0].Content)
	})

	t.Run("Last Writer Wins", func(t *testing.T) {
		cp := SampleCheckpoint(threadID)
		require.NoError(t, store.Save(ctx, threadID, cp))

		cp2 := SampleCheckpoint(threadID)
		cp2.Pending = nil
		cp2.Next = ""
		cp2.RunStatus = domain.RunDone
		cp2.State.Status = domain.StatusApproved
		cp2.Version = 4
		require.NoError(t, store.Save(ctx, threadID, cp2))

		loaded, err := store.Load(ctx, threadID)
		require.NoError(t, err)
		assert.Equal(t, cp2, loaded)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, threadID, SampleCheckpoint(threadID)))

		require.NoError(t, store.Delete(ctx, threadID), "Delete should not return error")

		_, err := store.Load(ctx, threadID)
		assert.ErrorIs(t, err, domain.ErrThreadNotFound, "Load after Delete should return ErrThreadNotFound")

		assert.NoError(t, store.Delete(ctx, "never-saved-"+threadID), "Deleting an unknown thread is not an error")
	})

	t.Run("List", func(t *testing.T) {
		id1 := threadID + "-1"
		id2 := threadID + "-2"
		require.NoError(t, store.Save(ctx, id1, SampleCheckpoint(id1)))
		require.NoError(t, store.Save(ctx, id2, SampleCheckpoint(id2)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		threads, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, threads, id1)
		assert.Contains(t, threads, id2)
	})

	t.Run("Concurrent Distinct Threads", func(t *testing.T) {
		const n = 16
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("%s-c%d", threadID, i)
				cp := SampleCheckpoint(id)
				cp.Step = i
				if err := store.Save(ctx, id, cp); err != nil {
					errs <- err
					return
				}
				loaded, err := store.Load(ctx, id)
				if err != nil {
					errs <- err
					return
				}
				if loaded.Step != i || loaded.ThreadID != id {
					errs <- fmt.Errorf("thread %s: got step %d", id, loaded.Step)
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}
		for i := 0; i < n; i++ {
			_ = store.Delete(ctx, fmt.Sprintf("%s-c%d", threadID, i))
		}
	})
}
