/*
Package graph defines the node and router contracts and the builder that assembles them
into an immutable, validated workflow definition.

A graph is built once and shared by every run:

	g, err := graph.NewBuilder("proposal").
		AddNode("draft", draftFn).
		AddNode("review", reviewFn, graph.WithResume(applyFeedback)).
		AddEdge("draft", "review").
		AddConditionalEdges("review", graph.ByStatus(), map[string]string{
			"APPROVED":       graph.End,
			"NEEDS_REVISION": "draft",
			"IN_PROGRESS":    "review",
		}).
		SetEntryPoint("draft").
		Compile()

Compile rejects unknown nodes, routers whose declared keys are not all mapped,
nodes without an outgoing edge and nodes unreachable from the entry point, so that a
routing defect never surfaces at runtime.
*/
package graph
