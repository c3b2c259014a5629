package graph

import (
	"slices"

	"github.com/aretw0/rfqflow/pkg/domain"
)

// Router selects the next hop from State. Fn must be pure and deterministic; Keys lists
// every value Fn can return so that the builder can check the path map is total.
type Router struct {
	Keys []string
	Fn   func(domain.State) string
}

// NewRouter declares a router with its complete key set.
func NewRouter(fn func(domain.State) string, keys ...string) Router {
	return Router{Keys: keys, Fn: fn}
}

// Route evaluates the router and reports whether the key is declared.
func (r Router) Route(s domain.State) (string, bool) {
	key := r.Fn(s)
	return key, slices.Contains(r.Keys, key)
}

// ByStatus is a router keyed by the review status. Every status must be mapped.
func ByStatus() Router {
	return NewRouter(func(s domain.State) string {
		switch s.Status {
		case domain.StatusApproved, domain.StatusNeedsRevision:
			return string(s.Status)
		}
		return string(domain.StatusInProgress)
	}, string(domain.StatusApproved), string(domain.StatusNeedsRevision), string(domain.StatusInProgress))
}
