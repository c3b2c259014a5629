package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/ports"
)

// Mask replaces redacted values.
const Mask = "***"

// DefaultRedactPatterns match the session keys that look like credentials.
var DefaultRedactPatterns = []string{`(?i)password`, `(?i)secret`, `(?i)token`, `(?i)api[_-]?key`, `(?i)authorization`}

type redactionMiddleware struct {
	next     ports.Checkpointer
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a middleware that masks SessionData values whose keys match
// any pattern, recursing into nested maps. The caller's checkpoint is never modified.
// Redaction is one-way: loaded checkpoints carry the masked values.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.Checkpointer) ports.Checkpointer {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Save(ctx context.Context, threadID string, cp *domain.Checkpoint) error {
	cloned := *cp
	cloned.State.SessionData = deepCopyMap(cp.State.SessionData)
	maskMap(cloned.State.SessionData, m.patterns)
	return m.next.Save(ctx, threadID, &cloned)
}

func (m *redactionMiddleware) Load(ctx context.Context, threadID string) (*domain.Checkpoint, error) {
	return m.next.Load(ctx, threadID)
}

func (m *redactionMiddleware) Delete(ctx context.Context, threadID string) error {
	return m.next.Delete(ctx, threadID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if subMap, ok := v.(map[string]any); ok && !masked {
			maskMap(subMap, patterns)
		}
	}
}
