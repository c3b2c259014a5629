package proposal

import (
	"github.com/aretw0/rfqflow/pkg/domain"
	"github.com/aretw0/rfqflow/pkg/graph"
)

// Router keys.
const (
	RouteRAG           = "rag"
	RouteDirect        = "direct"
	RouteClear         = "clear"
	RouteUnclear       = "unclear"
	RouteOK            = "ok"
	RouteMissingInputs = "missing_inputs"
	RouteNoExamples    = "no_examples"
)

// ByIntent routes on the intent classification. Anything but rag is direct.
func ByIntent() graph.Router {
	return graph.NewRouter(func(s domain.State) string {
		if s.IntentRoute == RouteRAG {
			return RouteRAG
		}
		return RouteDirect
	}, RouteRAG, RouteDirect)
}

// ByClarity routes to the clarification interrupt when the query is too vague.
func ByClarity() graph.Router {
	return graph.NewRouter(func(s domain.State) string {
		if s.NeedsClarification {
			return RouteUnclear
		}
		return RouteClear
	}, RouteClear, RouteUnclear)
}

// ByInputs sends the run back to draft while a node reports missing inputs.
// With skipEmpty, an empty Examples field routes to RouteNoExamples so that a tenant
// without stored proposals goes straight to review.
func ByInputs(skipEmpty bool) graph.Router {
	keys := []string{RouteOK, RouteMissingInputs}
	if skipEmpty {
		keys = append(keys, RouteNoExamples)
	}
	return graph.NewRouter(func(s domain.State) string {
		switch {
		case len(s.MissingInputs) > 0:
			return RouteMissingInputs
		case skipEmpty && s.Examples == "":
			return RouteNoExamples
		}
		return RouteOK
	}, keys...)
}
