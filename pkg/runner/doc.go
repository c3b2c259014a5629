/*
Package runner executes compiled graphs against durable checkpoints.

A Runner drives one thread at a time per thread id: it loads the latest checkpoint, invokes
the next node, merges its Update through the domain reducers, saves a new checkpoint and
only then yields a Step describing the delta. Runs end in one of three ways:

  - Done: the graph reached graph.End.
  - Suspended: a node requested human input. Resume continues from there.
  - Failed: a node errored, timed out or panicked, the step budget ran out, or the caller
    stopped consuming. Retry continues from the last durable checkpoint.

# Usage

	r := runner.New(g, store, runner.WithLogger(logger))

	for step := range r.Start(ctx, threadID, domain.NewState(query, session)) {
		switch step.Kind {
		case runner.Continue:
			fmt.Println(step.Node, step.Delta)
		case runner.Suspended:
			fmt.Println(step.Interrupt.Message)
		case runner.Failed:
			return step.Err
		}
	}

The per-thread lock is held while the sequence is being consumed, so the consumer must not
start another run on the same thread from inside the loop.
*/
package runner
