package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/runner"
)

// Engine is the part of the runner the review loop drives.
type Engine interface {
	Start(ctx context.Context, threadID string, initial domain.State) iter.Seq[runner.Step]
	Resume(ctx context.Context, threadID string, fb domain.Feedback, sessionData map[string]any) iter.Seq[runner.Step]
	Get(ctx context.Context, threadID string) (*domain.Checkpoint, error)
}

// Reviewer runs a thread in the terminal, asking the user for a verdict at every interrupt.
type Reviewer struct {
	Engine  Engine
	In      io.Reader
	Out     io.Writer
	Session domain.Session

	// Render formats Markdown. When nil, drafts stream to Out as they are written.
	Render func(string) (string, error)
	// MaxInput bounds a single answer. Zero selects DefaultMaxInputSize.
	MaxInput int
}

// Outcome is where a review session stopped.
type Outcome struct {
	ThreadID string
	Kind     runner.Kind
	State    domain.State
}

// Run starts threadID with query, or picks up a suspended thread when query is empty,
// and loops until the run finishes or the user quits.
func (rv *Reviewer) Run(ctx context.Context, threadID, query string) (Outcome, error) {
	in := bufio.NewReader(rv.In)

	var last runner.Step
	if strings.TrimSpace(query) == "" {
		cp, err := rv.Engine.Get(ctx, threadID)
		if err != nil {
			return Outcome{ThreadID: threadID}, err
		}
		if cp.Pending == nil {
			return Outcome{ThreadID: threadID}, fmt.Errorf("thread %s is %s; give a query to start a new run", threadID, cp.RunStatus)
		}
		p := *cp.Pending
		last = runner.Step{Kind: runner.Suspended, Node: p.Node, State: cp.State, Interrupt: &p}
	} else {
		last = rv.drive(ctx, rv.Engine.Start(rv.streamCtx(ctx), threadID, domain.NewState(query, rv.Session.Map())))
	}

	for {
		switch last.Kind {
		case runner.Done:
			rv.finish(last.State)
			return Outcome{ThreadID: threadID, Kind: runner.Done, State: last.State}, nil
		case runner.Failed:
			return Outcome{ThreadID: threadID, Kind: runner.Failed, State: last.State}, last.Err
		case runner.Suspended:
		default:
			return Outcome{ThreadID: threadID, Kind: last.Kind, State: last.State}, errors.New("run stopped before reaching a stable point")
		}

		rv.showInterrupt(last)
		fb, quit, err := rv.ask(in)
		if err != nil {
			return Outcome{ThreadID: threadID, Kind: runner.Suspended, State: last.State}, err
		}
		if quit {
			rv.printf("Thread %s is waiting for review. Resume it with: rfqflow run --thread %s\n", threadID, threadID)
			return Outcome{ThreadID: threadID, Kind: runner.Suspended, State: last.State}, nil
		}
		last = rv.drive(ctx, rv.Engine.Resume(rv.streamCtx(ctx), threadID, fb, nil))
	}
}

func (rv *Reviewer) streamCtx(ctx context.Context) context.Context {
	if rv.Render != nil {
		return ctx
	}
	return runner.ContextWithSink(ctx, func(_ context.Context, _ string, chunk string) {
		fmt.Fprint(rv.Out, chunk)
	})
}

func (rv *Reviewer) drive(ctx context.Context, seq iter.Seq[runner.Step]) runner.Step {
	var last runner.Step
	for step := range seq {
		if step.Kind == runner.Continue && rv.Render != nil {
			rv.printf("  · %s\n", step.Node)
		}
		last = step
	}
	if rv.Render == nil {
		rv.printf("\n")
	}
	return last
}

func (rv *Reviewer) showInterrupt(step runner.Step) {
	intr := step.Interrupt
	if intr == nil {
		return
	}
	rv.printf("\n")
	rv.markdown(intr.Proposal)
	rv.printf("\n>>> %s (revision %d)\n", intr.Message, step.State.Iteration)
	for _, opt := range intr.FeedbackOptions {
		rv.printf("    %s\n", opt)
	}
	rv.printf("    q - stop here and review later\n")
}

// ask reads answers until one parses. A blank line asks again.
func (rv *Reviewer) ask(in *bufio.Reader) (domain.Feedback, bool, error) {
	for {
		rv.printf("> ")
		line, err := in.ReadString('\n')
		if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
			return domain.Feedback{}, false, err
		}
		text, serr := SanitizeInput(strings.TrimSpace(line), rv.MaxInput)
		if serr != nil {
			rv.printf("%v\n", serr)
			continue
		}
		switch strings.ToLower(text) {
		case "":
			if err != nil {
				return domain.Feedback{}, false, err
			}
			continue
		case "q", "quit", "exit":
			return domain.Feedback{}, true, nil
		}
		return domain.ParseFeedback(text), false, nil
	}
}

func (rv *Reviewer) finish(s domain.State) {
	if s.Answer != "" {
		rv.markdown(s.Answer)
		return
	}
	rv.printf(">>> Proposal %s after %d revision(s).\n", strings.ToLower(string(s.Status)), s.Iteration)
}

func (rv *Reviewer) markdown(md string) {
	if rv.Render == nil {
		rv.printf("%s\n", md)
		return
	}
	out, err := rv.Render(md)
	if err != nil {
		out = md
	}
	rv.printf("%s", out)
}

func (rv *Reviewer) printf(format string, args ...any) {
	fmt.Fprintf(rv.Out, format, args...)
}
