package runner_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/rfqflow/pkg/adapters/memory"
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/graph"
	"github.com/aretw0/rfqflow/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draft(_ context.Context, s domain.State, _ graph.Config) (domain.Update, error) {
	msg := domain.NewMessage(domain.RoleAssistant, fmt.Sprintf("draft %d", s.Iteration))
	return domain.Update{Candidate: &msg, Messages: []domain.Message{msg}}, nil
}

func review(_ context.Context, s domain.State, _ graph.Config) (domain.Update, error) {
	return domain.Suspend("Please review", s.Proposal(), "approve", "revise"), nil
}

func reviewResume(_ context.Context, _ domain.State, fb domain.Feedback) (domain.Update, error) {
	u := domain.Update{HumanFeedback: []string{fb.Entry()}, Status: domain.Ptr(fb.Status())}
	if fb.Decision == domain.DecisionRevise {
		u.IterationInc = 1
	}
	return u, nil
}

func reviewGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.NewBuilder("review").
		AddNode("draft", draft).
		AddNode("review", review, graph.WithResume(reviewResume)).
		AddEdge("draft", "review").
		AddConditionalEdges("review", graph.ByStatus(), map[string]string{
			string(domain.StatusApproved):      graph.End,
			string(domain.StatusNeedsRevision): "draft",
			string(domain.StatusInProgress):    "review",
		}).
		SetEntryPoint("draft").
		Compile()
	require.NoError(t, err)
	return g
}

func kinds(steps []runner.Step) []runner.Kind {
	out := make([]runner.Kind, len(steps))
	for i, s := range steps {
		out[i] = s.Kind
	}
	return out
}

func nodes(steps []runner.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Node
	}
	return out
}

func TestRunner_ReviseThenApprove(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	r := runner.New(reviewGraph(t), store)

	last, steps := runner.Collect(r.Start(ctx, "t1", domain.NewState("write it", map[string]any{"tenant_id": "acme"})))
	require.NoError(t, last.Err)
	assert.Equal(t, []runner.Kind{runner.Continue, runner.Suspended}, kinds(steps))
	assert.Equal(t, []string{"draft", "review"}, nodes(steps))
	require.NotNil(t, last.Interrupt)
	assert.Equal(t, "review", last.Interrupt.Node)
	assert.Equal(t, "draft 0", last.Interrupt.Proposal)
	assert.Equal(t, 2, last.Index)

	cp, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuspended, cp.RunStatus)
	assert.Equal(t, "review", cp.Next)
	require.NotNil(t, cp.Pending)

	// Revise.
	last, steps = runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionRevise, Comment: "shorter"}, nil))
	require.NoError(t, last.Err)
	assert.Equal(t, []runner.Kind{runner.Continue, runner.Continue, runner.Suspended}, kinds(steps))
	assert.Equal(t, []string{"review", "draft", "review"}, nodes(steps))

	delta := steps[0].Delta
	require.NotNil(t, delta.Status)
	assert.Equal(t, domain.StatusNeedsRevision, *delta.Status)
	require.NotNil(t, delta.Iteration)
	assert.Equal(t, 1, *delta.Iteration)
	assert.Equal(t, []string{"shorter"}, delta.HumanFeedback)
	assert.Equal(t, "draft 1", last.Interrupt.Proposal)

	// Approve.
	last, steps = runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionApprove}, nil))
	require.NoError(t, last.Err)
	assert.Equal(t, []runner.Kind{runner.Continue, runner.Done}, kinds(steps))
	assert.Equal(t, domain.StatusApproved, last.State.Status)
	assert.Equal(t, []string{"shorter", "approve"}, last.State.HumanFeedback)
	assert.Equal(t, 1, last.State.Iteration)
	assert.Len(t, last.State.Messages, 2)

	cp, err = r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunDone, cp.RunStatus)
	assert.Empty(t, cp.Next)
	assert.Nil(t, cp.Pending)
	assert.Equal(t, 6, cp.Step)
}

func TestRunner_DoubleResumeIsRejected(t *testing.T) {
	ctx := context.Background()
	r := runner.New(reviewGraph(t), memory.NewStore())

	runner.Collect(r.Start(ctx, "t1", domain.NewState("q", nil)))
	last, _ := runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionApprove}, nil))
	require.Equal(t, runner.Done, last.Kind)

	before, err := r.Get(ctx, "t1")
	require.NoError(t, err)

	last, steps := runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionApprove}, nil))
	assert.Len(t, steps, 1)
	assert.Equal(t, runner.Failed, last.Kind)
	assert.ErrorIs(t, last.Err, domain.ErrNotSuspended)

	after, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, before, after, "a rejected resume must not touch the checkpoint")
	assert.Len(t, after.State.HumanFeedback, 1)
}

func TestRunner_ResumeUnknownThread(t *testing.T) {
	r := runner.New(reviewGraph(t), memory.NewStore())
	last, _ := runner.Collect(r.Resume(context.Background(), "nope", domain.Feedback{Decision: domain.DecisionApprove}, nil))
	assert.ErrorIs(t, last.Err, domain.ErrThreadNotFound)
}

func TestRunner_StartOnSuspendedThread(t *testing.T) {
	ctx := context.Background()
	r := runner.New(reviewGraph(t), memory.NewStore())

	runner.Collect(r.Start(ctx, "t1", domain.NewState("q", nil)))
	last, _ := runner.Collect(r.Start(ctx, "t1", domain.NewState("other", nil)))
	assert.Equal(t, runner.Failed, last.Kind)
	assert.ErrorIs(t, last.Err, domain.ErrThreadSuspended)
}

func TestRunner_StartOnFinishedThreadCarriesHistory(t *testing.T) {
	ctx := context.Background()
	r := runner.New(reviewGraph(t), memory.NewStore())

	runner.Collect(r.Start(ctx, "t1", domain.NewState("first", map[string]any{"tenant_id": "acme"})))
	runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionRevise, Comment: "more"}, nil))
	runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionApprove}, nil))

	last, _ := runner.Collect(r.Start(ctx, "t1", domain.NewState("second", map[string]any{"tenant_id": "acme", "user_id": "u2"})))
	require.Equal(t, runner.Suspended, last.Kind)

	s := last.State
	assert.Equal(t, "second", s.UserQuery)
	assert.Equal(t, "acme", s.Tenant())
	assert.Equal(t, "u2", s.SessionData["user_id"])
	assert.Equal(t, domain.StatusInProgress, s.Status)
	assert.Equal(t, []string{"more", "approve"}, s.HumanFeedback)
	assert.Equal(t, 1, s.Iteration)
	assert.Len(t, s.Messages, 3)
}

func TestRunner_StartOnThreadOfAnotherTenant(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	r := runner.New(reviewGraph(t), store)

	runner.Collect(r.Start(ctx, "t1", domain.NewState("first", map[string]any{"tenant_id": "acme"})))
	runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionApprove}, nil))
	before, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, domain.RunDone, before.RunStatus)

	last, steps := runner.Collect(r.Start(ctx, "t1", domain.NewState("mine now", map[string]any{"tenant_id": "globex"})))
	assert.Equal(t, runner.Failed, last.Kind)
	assert.ErrorIs(t, last.Err, domain.ErrThreadOwned)
	assert.Len(t, steps, 1)
	assert.Empty(t, last.State.Messages, "another tenant's history must not be returned")

	after, err := store.Load(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "acme", after.State.Tenant())
	assert.Equal(t, before.Version, after.Version)
}

func TestRunner_ConcurrentTenantsNeverShareThread(t *testing.T) {
	ctx := context.Background()
	r := runner.New(reviewGraph(t), memory.NewStore())

	tenants := []string{"acme", "globex", "initech", "umbrella"}
	results := make([]runner.Step, len(tenants))
	var wg sync.WaitGroup
	for i, tenant := range tenants {
		wg.Add(1)
		go func(i int, tenant string) {
			defer wg.Done()
			results[i], _ = runner.Collect(r.Start(ctx, "shared", domain.NewState("q", map[string]any{"tenant_id": tenant})))
		}(i, tenant)
	}
	wg.Wait()

	owners := 0
	for i, res := range results {
		if res.Kind == runner.Suspended {
			owners++
			assert.Equal(t, tenants[i], res.State.Tenant())
			continue
		}
		assert.ErrorIs(t, res.Err, domain.ErrThreadOwned)
	}
	assert.Equal(t, 1, owners)

	cp, err := r.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Len(t, cp.State.Messages, 1, "only the owner's draft is stored")
}

func TestRunner_ResumeReplacesSessionData(t *testing.T) {
	ctx := context.Background()
	r := runner.New(reviewGraph(t), memory.NewStore())

	runner.Collect(r.Start(ctx, "t1", domain.NewState("q", map[string]any{"tenant_id": "acme", "user_id": "u1"})))
	last, _ := runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionApprove}, map[string]any{"tenant_id": "acme", "user_id": "u2"}))
	assert.Equal(t, "u2", last.State.SessionData["user_id"])
}

func loopGraph(t *testing.T) *graph.Graph {
	t.Helper()
	return graph.NewBuilder("loop").
		AddNode("a", func(context.Context, domain.State, graph.Config) (domain.Update, error) {
			return domain.Update{IterationInc: 1}, nil
		}).
		AddNode("b", func(context.Context, domain.State, graph.Config) (domain.Update, error) {
			return domain.Update{}, nil
		}).
		AddEdge("a", "b").
		AddEdge("b", "a").
		SetEntryPoint("a").
		MustCompile()
}

func TestRunner_RecursionLimit(t *testing.T) {
	ctx := context.Background()
	r := runner.New(loopGraph(t), memory.NewStore(), runner.WithRecursionLimit(5))

	last, steps := runner.Collect(r.Start(ctx, "t1", domain.NewState("q", nil)))
	assert.Equal(t, runner.Failed, last.Kind)
	assert.ErrorIs(t, last.Err, domain.ErrRecursionLimit)
	assert.Len(t, steps, 6)

	cp, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, cp.RunStatus)
	assert.Equal(t, 5, cp.Step, "checkpoint stays at the last completed step")
	assert.Equal(t, 3, cp.State.Iteration)
	assert.Equal(t, "b", cp.Next)
	assert.Contains(t, cp.Error, "graph did not converge")
}

func TestRunner_DefaultRecursionLimit(t *testing.T) {
	r := runner.New(loopGraph(t), memory.NewStore())
	last, steps := runner.Collect(r.Start(context.Background(), "t1", domain.NewState("q", nil)))
	assert.ErrorIs(t, last.Err, domain.ErrRecursionLimit)
	assert.Len(t, steps, runner.DefaultRecursionLimit+1)
}

func singleNode(t *testing.T, fn graph.NodeFunc, opts ...graph.NodeOption) *graph.Graph {
	t.Helper()
	return graph.NewBuilder("single").
		AddNode("only", fn, opts...).
		AddEdge("only", graph.End).
		SetEntryPoint("only").
		MustCompile()
}

func TestRunner_NodeTimeout(t *testing.T) {
	t.Run("cooperative node", func(t *testing.T) {
		g := singleNode(t, func(ctx context.Context, _ domain.State, _ graph.Config) (domain.Update, error) {
			<-ctx.Done()
			return domain.Update{}, ctx.Err()
		}, graph.WithTimeout(20*time.Millisecond))
		r := runner.New(g, memory.NewStore())

		last, _ := runner.Collect(r.Start(context.Background(), "t1", domain.NewState("q", nil)))
		assert.Equal(t, runner.Failed, last.Kind)
		assert.ErrorIs(t, last.Err, domain.ErrNodeTimeout)

		var ne *runner.NodeError
		require.ErrorAs(t, last.Err, &ne)
		assert.Equal(t, "only", ne.Node)
	})

	t.Run("node ignoring its context", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		g := singleNode(t, func(context.Context, domain.State, graph.Config) (domain.Update, error) {
			<-release
			return domain.Update{}, nil
		})
		r := runner.New(g, memory.NewStore(), runner.WithNodeTimeout(20*time.Millisecond))

		start := time.Now()
		last, _ := runner.Collect(r.Start(context.Background(), "t1", domain.NewState("q", nil)))
		assert.ErrorIs(t, last.Err, domain.ErrNodeTimeout)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestRunner_PanicBecomesError(t *testing.T) {
	g := singleNode(t, func(context.Context, domain.State, graph.Config) (domain.Update, error) {
		panic("kaboom")
	})
	r := runner.New(g, memory.NewStore())

	last, _ := runner.Collect(r.Start(context.Background(), "t1", domain.NewState("q", nil)))
	var pe *runner.PanicError
	require.ErrorAs(t, last.Err, &pe)
	assert.Equal(t, "only", pe.Node)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
}

func TestRunner_NegativeIterationFailsNode(t *testing.T) {
	g := singleNode(t, func(context.Context, domain.State, graph.Config) (domain.Update, error) {
		return domain.Update{IterationInc: -1}, nil
	})
	r := runner.New(g, memory.NewStore())
	last, _ := runner.Collect(r.Start(context.Background(), "t1", domain.NewState("q", nil)))
	assert.ErrorIs(t, last.Err, domain.ErrNegativeIteration)
}

func TestRunner_RetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	calls := 0
	g := singleNode(t, func(context.Context, domain.State, graph.Config) (domain.Update, error) {
		calls++
		if calls == 1 {
			return domain.Update{}, errors.New("upstream unavailable")
		}
		return domain.Update{Answer: domain.Ptr("ok")}, nil
	})
	r := runner.New(g, memory.NewStore())

	last, _ := runner.Collect(r.Start(ctx, "t1", domain.NewState("q", nil)))
	require.Equal(t, runner.Failed, last.Kind)
	assert.EqualError(t, last.Err, "node only: upstream unavailable")

	last, _ = runner.Collect(r.Retry(ctx, "t1"))
	require.Equal(t, runner.Done, last.Kind)
	assert.Equal(t, "ok", last.State.Answer)

	last, _ = runner.Collect(r.Retry(ctx, "t1"))
	assert.ErrorIs(t, last.Err, runner.ErrNotFailed)
}

func TestRunner_RejectedResumeFailsAndRetryAsksAgain(t *testing.T) {
	ctx := context.Background()
	limited := func(_ context.Context, s domain.State, fb domain.Feedback) (domain.Update, error) {
		if fb.Decision == domain.DecisionRevise {
			return domain.Update{}, domain.ErrRevisionLimit
		}
		return reviewResume(ctx, s, fb)
	}
	g := graph.NewBuilder("limited").
		AddNode("draft", draft).
		AddNode("review", review, graph.WithResume(limited)).
		AddEdge("draft", "review").
		AddConditionalEdges("review", graph.ByStatus(), map[string]string{
			string(domain.StatusApproved):      graph.End,
			string(domain.StatusNeedsRevision): "draft",
			string(domain.StatusInProgress):    "review",
		}).
		SetEntryPoint("draft").
		MustCompile()
	r := runner.New(g, memory.NewStore())

	runner.Collect(r.Start(ctx, "t1", domain.NewState("q", nil)))
	last, _ := runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionRevise}, nil))
	assert.ErrorIs(t, last.Err, domain.ErrRevisionLimit)

	cp, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, cp.RunStatus)
	assert.Empty(t, cp.State.HumanFeedback)

	last, _ = runner.Collect(r.Retry(ctx, "t1"))
	assert.Equal(t, runner.Suspended, last.Kind)
	assert.Equal(t, "review", last.Interrupt.Node)
}

func TestRunner_StoppingEarlyMarksRunAbandoned(t *testing.T) {
	ctx := context.Background()
	r := runner.New(reviewGraph(t), memory.NewStore())

	for step := range r.Start(ctx, "t1", domain.NewState("q", nil)) {
		assert.Equal(t, "draft", step.Node)
		break
	}

	cp, err := r.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, cp.RunStatus)
	assert.Equal(t, runner.ErrAbandoned.Error(), cp.Error)
	assert.Equal(t, "review", cp.Next)

	last, _ := runner.Collect(r.Retry(ctx, "t1"))
	assert.Equal(t, runner.Suspended, last.Kind)
}

func TestRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := runner.New(reviewGraph(t), memory.NewStore())

	last, _ := runner.Collect(r.Start(ctx, "t1", domain.NewState("q", nil)))
	assert.Equal(t, runner.Failed, last.Kind)
	assert.ErrorIs(t, last.Err, context.Canceled)
}

func TestRunner_CheckpointIsDurableBeforeYield(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	r := runner.New(reviewGraph(t), store)

	for step := range r.Start(ctx, "t1", domain.NewState("q", nil)) {
		cp, err := store.Load(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, step.Index, cp.Step)
		assert.Equal(t, step.State, cp.State)
	}
}

func TestRunner_LifecycleHooks(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var events []string
	record := func(_ context.Context, e *domain.NodeEvent) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, fmt.Sprintf("%s:%s", e.Type, e.Node))
	}
	hooks := domain.LifecycleHooks{
		OnNodeEnter: record,
		OnNodeLeave: record,
		OnInterrupt: record,
		OnResume:    record,
		OnError:     record,
	}
	r := runner.New(reviewGraph(t), memory.NewStore(), runner.WithLifecycleHooks(hooks))

	runner.Collect(r.Start(ctx, "t1", domain.NewState("q", nil)))
	runner.Collect(r.Resume(ctx, "t1", domain.Feedback{Decision: domain.DecisionApprove}, nil))

	assert.Equal(t, []string{
		"node_enter:draft", "node_leave:draft",
		"node_enter:review", "interrupt:review",
		"resume:review",
	}, events)
}

func TestRunner_TokenSink(t *testing.T) {
	g := singleNode(t, func(ctx context.Context, _ domain.State, _ graph.Config) (domain.Update, error) {
		graph.Publish(ctx, "Hel")
		graph.Publish(ctx, "lo")
		return domain.Update{}, nil
	})

	var global []string
	r := runner.New(g, memory.NewStore(), runner.WithTokenSink(func(_ context.Context, node, chunk string) {
		global = append(global, node+":"+chunk)
	}))

	var perCall []string
	ctx := runner.ContextWithSink(context.Background(), func(_ context.Context, _ string, chunk string) {
		perCall = append(perCall, chunk)
	})
	last, _ := runner.Collect(r.Start(ctx, "t1", domain.NewState("q", nil)))
	require.Equal(t, runner.Done, last.Kind)
	assert.Equal(t, []string{"only:Hel", "only:lo"}, global)
	assert.Equal(t, []string{"Hel", "lo"}, perCall)
}

func TestRunner_TimedOutNodeCannotPublish(t *testing.T) {
	release := make(chan struct{})
	published := make(chan struct{})
	g := singleNode(t, func(ctx context.Context, _ domain.State, _ graph.Config) (domain.Update, error) {
		<-release
		graph.Publish(ctx, "late")
		close(published)
		return domain.Update{}, nil
	})

	var (
		mu  sync.Mutex
		got []string
	)
	record := func(_ context.Context, node, chunk string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, node+":"+chunk)
	}
	r := runner.New(g, memory.NewStore(), runner.WithNodeTimeout(20*time.Millisecond), runner.WithTokenSink(record))

	ctx := runner.ContextWithSink(context.Background(), record)
	last, _ := runner.Collect(r.Start(ctx, "t1", domain.NewState("q", nil)))
	require.ErrorIs(t, last.Err, domain.ErrNodeTimeout)

	close(release)
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("node never finished")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Empty(t, got, "output after the deadline must be dropped")
}

func TestRunner_ConfigCarriesTenantAndParams(t *testing.T) {
	var got graph.Config
	g := singleNode(t, func(_ context.Context, _ domain.State, cfg graph.Config) (domain.Update, error) {
		got = cfg
		return domain.Update{}, nil
	})
	r := runner.New(g, memory.NewStore(), runner.WithParams(map[string]any{"k": 3}))
	runner.Collect(r.Start(context.Background(), "t9", domain.NewState("q", map[string]any{"tenant_id": "acme"})))

	assert.Equal(t, "t9", got.ThreadID)
	assert.Equal(t, "acme", got.Tenant)
	assert.Equal(t, 1, got.Step)
	assert.Equal(t, 3, got.Int("k", 2))
}

func TestRunner_SameThreadIsSerialized(t *testing.T) {
	ctx := context.Background()
	r := runner.New(reviewGraph(t), memory.NewStore())

	const n = 8
	results := make([]runner.Step, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = runner.Collect(r.Start(ctx, "shared", domain.NewState("q", nil)))
		}(i)
	}
	wg.Wait()

	suspended := 0
	for _, res := range results {
		switch {
		case res.Kind == runner.Suspended:
			suspended++
		default:
			assert.ErrorIs(t, res.Err, domain.ErrThreadSuspended)
		}
	}
	assert.Equal(t, 1, suspended, "exactly one run may own a fresh thread")
}

func TestRunner_EmptyThreadID(t *testing.T) {
	r := runner.New(reviewGraph(t), memory.NewStore())
	last, _ := runner.Collect(r.Start(context.Background(), "", domain.NewState("q", nil)))
	assert.Equal(t, runner.Failed, last.Kind)
	assert.Error(t, last.Err)
}
