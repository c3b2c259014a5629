package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"runtime/debug"
	"time"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/graph"
	"github.com/aretw0/rfqflow/pkg/ports"
)

// prepareFunc positions a checkpoint for the loop. It may return an initial step to report
// (the resume delta) before the loop starts.
type prepareFunc func(ctx context.Context, store ports.Checkpointer) (*domain.Checkpoint, *Step, error)

// Start begins a run on threadID.
//
// A new thread starts from the entry node with initial. A thread whose previous run has
// ended keeps its messages, feedback and iteration count; everything else comes from
// initial. A suspended thread must be resumed instead (domain.ErrThreadSuspended), and a
// thread stored under another tenant is never reused (domain.ErrThreadOwned).
func (r *Runner) Start(ctx context.Context, threadID string, initial domain.State) iter.Seq[Step] {
	return r.exec(ctx, threadID, func(ctx context.Context, store ports.Checkpointer) (*domain.Checkpoint, *Step, error) {
		prev, err := store.Load(ctx, threadID)
		switch {
		case errors.Is(err, domain.ErrThreadNotFound):
			return &domain.Checkpoint{
				ThreadID:  threadID,
				State:     initial.Clone(),
				Next:      r.graph.Entry(),
				RunStatus: domain.RunRunning,
				UpdatedAt: r.now(),
			}, nil, nil
		case err != nil:
			return nil, nil, fmt.Errorf("load thread: %w", err)
		}

		if prev.State.Tenant() != initial.Tenant() {
			return nil, nil, domain.ErrThreadOwned
		}
		if prev.RunStatus == domain.RunSuspended {
			return nil, nil, domain.ErrThreadSuspended
		}
		state, err := carryForward(prev.State, initial)
		if err != nil {
			return nil, nil, err
		}
		cp := prev
		cp.State = state
		cp.Next = r.graph.Entry()
		cp.Pending = nil
		cp.RunStatus = domain.RunRunning
		cp.Error = ""
		return cp, nil, nil
	})
}

// carryForward builds the state of a new run on an existing thread.
func carryForward(prev, initial domain.State) (domain.State, error) {
	next := domain.NewState(initial.UserQuery, initial.SessionData)
	next.Messages = prev.Messages
	next.HumanFeedback = prev.HumanFeedback
	next.Iteration = prev.Iteration
	return next.Apply(domain.Update{
		Messages:      initial.Messages,
		HumanFeedback: initial.HumanFeedback,
	})
}

// Resume continues a suspended thread with the reviewer's feedback.
//
// The interrupted node's ResumeFunc (graph.DefaultResume when unset) turns the feedback into an
// Update; the run then follows that node's outgoing edge. A non-nil session replaces the stored
// session data. Resuming a thread that is not suspended fails with domain.ErrNotSuspended and
// leaves the checkpoint untouched.
func (r *Runner) Resume(ctx context.Context, threadID string, fb domain.Feedback, sessionData map[string]any) iter.Seq[Step] {
	return r.exec(ctx, threadID, func(ctx context.Context, store ports.Checkpointer) (*domain.Checkpoint, *Step, error) {
		cp, err := store.Load(ctx, threadID)
		if err != nil {
			return nil, nil, err
		}
		if cp.RunStatus != domain.RunSuspended || cp.Pending == nil {
			return nil, nil, domain.ErrNotSuspended
		}

		nodeID := cp.Pending.Node
		node, ok := r.graph.Node(nodeID)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
		}
		resume := node.Resume
		if resume == nil {
			resume = graph.DefaultResume
		}

		if sessionData != nil {
			cp.State.SessionData = maps.Clone(sessionData)
		}
		event := r.event(domain.EventResume, threadID, nodeID, cp.Step)
		if r.hooks.OnResume != nil {
			r.hooks.OnResume(ctx, event)
		}

		update, err := r.call(ctx, node, func(ctx context.Context) (domain.Update, error) {
			return resume(ctx, cp.State.Clone(), fb)
		})
		if err == nil {
			update.Interrupt = nil
			var next domain.State
			if next, err = cp.State.Apply(update); err == nil {
				delta := domain.Diff(&cp.State, next)
				cp.State = next
				cp.Pending = nil
				cp.Next, err = r.graph.Next(nodeID, next)
				if err == nil {
					cp.Step++
					cp.RunStatus = domain.RunRunning
					return cp, &Step{Kind: Continue, Index: cp.Step, Node: nodeID, Delta: delta}, nil
				}
			}
		}

		// The reviewer's input was rejected. The thread fails at the interrupted node so that
		// Retry asks for review again.
		cp.Pending = nil
		cp.Next = nodeID
		return cp, nil, r.nodeError(nodeID, err)
	})
}

// Retry continues a failed thread from its last durable checkpoint.
func (r *Runner) Retry(ctx context.Context, threadID string) iter.Seq[Step] {
	return r.exec(ctx, threadID, func(ctx context.Context, store ports.Checkpointer) (*domain.Checkpoint, *Step, error) {
		cp, err := store.Load(ctx, threadID)
		if err != nil {
			return nil, nil, err
		}
		if cp.RunStatus != domain.RunFailed {
			return nil, nil, ErrNotFailed
		}
		if cp.Next == "" {
			cp.Next = r.graph.Entry()
		}
		cp.RunStatus = domain.RunRunning
		cp.Error = ""
		return cp, nil, nil
	})
}

// exec runs prepare and then the node loop under the thread lock.
func (r *Runner) exec(ctx context.Context, threadID string, prepare prepareFunc) iter.Seq[Step] {
	return func(yield func(Step) bool) {
		if threadID == "" {
			yield(Step{Kind: Failed, Err: fmt.Errorf("thread id is required")})
			return
		}
		err := r.sessions.WithLock(ctx, threadID, func(ctx context.Context) error {
			store := r.sessions.Store()
			cp, first, err := prepare(ctx, store)
			if err != nil {
				if cp != nil {
					// prepare positioned a checkpoint that must be recorded as failed.
					return r.fail(ctx, store, cp, err, yield)
				}
				yield(Step{Kind: Failed, Err: err})
				return nil
			}
			return r.loop(ctx, store, cp, first, yield)
		})
		if err != nil {
			yield(Step{Kind: Failed, Err: err})
		}
	}
}

func (r *Runner) loop(ctx context.Context, store ports.Checkpointer, cp *domain.Checkpoint, first *Step, yield func(Step) bool) error {
	log := r.logger.With("thread_id", cp.ThreadID)

	if first != nil {
		if err := r.save(ctx, store, cp); err != nil {
			return err
		}
		first.State = cp.State.Clone()
		if !yield(*first) {
			return r.abandon(ctx, store, cp)
		}
	}

	executed := 0
	for cp.Next != graph.End {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, store, cp, err, yield)
		}
		if executed >= r.limit {
			err := fmt.Errorf("%w: %d steps without reaching the end", domain.ErrRecursionLimit, r.limit)
			return r.fail(ctx, store, cp, err, yield)
		}

		nodeID := cp.Next
		node, ok := r.graph.Node(nodeID)
		if !ok {
			return r.fail(ctx, store, cp, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID), yield)
		}

		step := cp.Step + 1
		enter := r.event(domain.EventNodeEnter, cp.ThreadID, nodeID, step)
		if r.hooks.OnNodeEnter != nil {
			r.hooks.OnNodeEnter(ctx, enter)
		}
		log.Debug("node started", "node", nodeID, "step", step)

		cfg := graph.Config{
			ThreadID: cp.ThreadID,
			Tenant:   cp.State.Tenant(),
			Step:     step,
			Params:   maps.Clone(r.params),
		}
		started := time.Now()
		update, err := r.call(ctx, node, func(ctx context.Context) (domain.Update, error) {
			return node.Fn(ctx, cp.State.Clone(), cfg)
		})
		duration := time.Since(started)
		executed++

		var next domain.State
		if err == nil {
			next, err = cp.State.Apply(update)
		}
		if err != nil {
			ev := r.event(domain.EventNodeError, cp.ThreadID, nodeID, step)
			ev.Duration = duration
			ev.Err = err
			if r.hooks.OnError != nil {
				r.hooks.OnError(ctx, ev)
			}
			log.Warn("node failed", "node", nodeID, "step", step, "err", err)
			return r.fail(ctx, store, cp, r.nodeError(nodeID, err), yield)
		}

		delta := domain.Diff(&cp.State, next)
		cp.State = next
		cp.Step = step

		if update.Interrupt != nil {
			intr := *update.Interrupt
			intr.Node = nodeID
			intr.CreatedAt = r.now()
			cp.Pending = &intr
			cp.Next = nodeID
			cp.RunStatus = domain.RunSuspended
			if err := r.save(ctx, store, cp); err != nil {
				return err
			}
			ev := r.event(domain.EventInterrupt, cp.ThreadID, nodeID, step)
			ev.Duration = duration
			if r.hooks.OnInterrupt != nil {
				r.hooks.OnInterrupt(ctx, ev)
			}
			log.Info("thread suspended", "node", nodeID, "step", step)
			p := intr
			yield(Step{Kind: Suspended, Index: step, Node: nodeID, Delta: delta, State: cp.State.Clone(), Interrupt: &p})
			return nil
		}

		to, err := r.graph.Next(nodeID, next)
		if err != nil {
			return r.fail(ctx, store, cp, err, yield)
		}
		cp.Next = to
		if err := r.save(ctx, store, cp); err != nil {
			return err
		}

		leave := r.event(domain.EventNodeLeave, cp.ThreadID, nodeID, step)
		leave.Duration = duration
		if r.hooks.OnNodeLeave != nil {
			r.hooks.OnNodeLeave(ctx, leave)
		}
		log.Debug("node finished", "node", nodeID, "step", step, "next", to, "duration", duration)

		if !yield(Step{Kind: Continue, Index: step, Node: nodeID, Delta: delta, State: cp.State.Clone()}) {
			return r.abandon(ctx, store, cp)
		}
	}

	cp.Next = ""
	cp.RunStatus = domain.RunDone
	if err := r.save(ctx, store, cp); err != nil {
		return err
	}
	log.Info("thread done", "step", cp.Step)
	yield(Step{Kind: Done, Index: cp.Step, State: cp.State.Clone()})
	return nil
}

// call invokes fn with the node's deadline and turns panics into PanicError.
func (r *Runner) call(ctx context.Context, node *graph.Node, fn func(context.Context) (domain.Update, error)) (domain.Update, error) {
	timeout := node.Timeout
	if timeout <= 0 {
		timeout = r.nodeTimeout
	}
	sink, detach := detachable(r.sinkFor(ctx))
	defer detach()
	runCtx := graph.WithTokenSink(ctx, node.ID, sink)
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, timeout)
	}
	defer cancel()

	type result struct {
		update domain.Update
		err    error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- result{err: &PanicError{Node: node.ID, Value: v, Stack: debug.Stack()}}
			}
		}()
		u, err := fn(runCtx)
		done <- result{update: u, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && timeout > 0 && errors.Is(res.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.Update{}, fmt.Errorf("%w after %s", domain.ErrNodeTimeout, timeout)
		}
		return res.update, res.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return domain.Update{}, ctx.Err()
		}
		return domain.Update{}, fmt.Errorf("%w after %s", domain.ErrNodeTimeout, timeout)
	}
}

func (r *Runner) nodeError(node string, err error) error {
	var pe *PanicError
	if errors.As(err, &pe) {
		return err
	}
	return &NodeError{Node: node, Err: err}
}

// fail records the error on the checkpoint and reports it.
func (r *Runner) fail(ctx context.Context, store ports.Checkpointer, cp *domain.Checkpoint, cause error, yield func(Step) bool) error {
	cp.RunStatus = domain.RunFailed
	cp.Error = cause.Error()
	// The failure must be recorded even when ctx was cancelled.
	if err := r.save(context.WithoutCancel(ctx), store, cp); err != nil {
		return errors.Join(cause, err)
	}
	r.logger.Warn("thread failed", "thread_id", cp.ThreadID, "step", cp.Step, "err", cause)
	yield(Step{Kind: Failed, Index: cp.Step, Node: cp.Next, State: cp.State.Clone(), Err: cause})
	return nil
}

// abandon marks a run whose consumer stopped iterating.
func (r *Runner) abandon(ctx context.Context, store ports.Checkpointer, cp *domain.Checkpoint) error {
	cp.RunStatus = domain.RunFailed
	cp.Error = ErrAbandoned.Error()
	if err := r.save(context.WithoutCancel(ctx), store, cp); err != nil {
		r.logger.Warn("failed to record abandoned run", "thread_id", cp.ThreadID, "err", err)
	}
	return nil
}

func (r *Runner) save(ctx context.Context, store ports.Checkpointer, cp *domain.Checkpoint) error {
	cp.Version++
	cp.UpdatedAt = r.now()
	if err := store.Save(ctx, cp.ThreadID, cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (r *Runner) event(t domain.EventType, threadID, node string, step int) *domain.NodeEvent {
	return &domain.NodeEvent{
		EventBase: domain.EventBase{Timestamp: r.now(), Type: t, ThreadID: threadID},
		Node:      node,
		Step:      step,
	}
}
