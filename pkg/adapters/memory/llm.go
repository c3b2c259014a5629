package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/ports"
)

// Rule answers with Reply when every message of a call, joined, contains Match.
type Rule struct {
	Match string
	Reply string
}

// ScriptedLLM implements ports.LLM with canned replies. It is deterministic and
// makes no network calls, which suits offline runs and tests.
type ScriptedLLM struct {
	mu       sync.Mutex
	rules    []Rule
	fallback string
	calls    [][]domain.Message
}

// NewScriptedLLM creates a model that answers with the first matching rule, or fallback.
func NewScriptedLLM(fallback string, rules ...Rule) *ScriptedLLM {
	return &ScriptedLLM{rules: rules, fallback: fallback}
}

// Calls returns the prompts received so far.
func (l *ScriptedLLM) Calls() [][]domain.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]domain.Message(nil), l.calls...)
}

func (l *ScriptedLLM) reply(messages []domain.Message) string {
	l.mu.Lock()
	l.calls = append(l.calls, append([]domain.Message(nil), messages...))
	l.mu.Unlock()

	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Content)
		sb.WriteByte('\n')
	}
	prompt := sb.String()
	for _, r := range l.rules {
		if strings.Contains(prompt, r.Match) {
			return r.Reply
		}
	}
	return l.fallback
}

// Complete implements ports.LLM.
func (l *ScriptedLLM) Complete(ctx context.Context, messages []domain.Message, _ ports.ModelConfig) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	return domain.NewMessage(domain.RoleAssistant, l.reply(messages)), nil
}

// Stream implements ports.LLM, emitting the reply word by word.
func (l *ScriptedLLM) Stream(ctx context.Context, messages []domain.Message, _ ports.ModelConfig) (<-chan ports.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	words := strings.SplitAfter(l.reply(messages), " ")
	ch := make(chan ports.Chunk)
	go func() {
		defer close(ch)
		for _, w := range words {
			if w == "" {
				continue
			}
			select {
			case ch <- ports.Chunk{Text: w}:
			case <-ctx.Done():
				select {
				case ch <- ports.Chunk{Err: ctx.Err()}:
				default:
				}
				return
			}
		}
	}()
	return ch, nil
}
