package graph

import (
	"fmt"
	"strings"
)

// Overlay contains run data to highlight on the rendered graph.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// Mermaid produces a flowchart of the graph.
// Shapes: the entry point is a circle, nodes that can interrupt are parallelograms,
// the terminal sentinel is a stadium. Router keys label conditional edges.
func (g *Graph) Mermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range g.order {
		n := g.nodes[id]
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case id == g.entry:
			opener, closer = "((", "))"
		case n.Resume != nil:
			opener, closer = "[/", "/]"
		}

		if n.Timeout > 0 {
			fmt.Fprintf(&sb, "    %s%s\"%s <br/> ⏱️ %s\"%s\n", safeID, opener, id, n.Timeout, closer)
		} else {
			fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, id, closer)
		}
	}
	fmt.Fprintf(&sb, "    %s([\"end\"])\n", sanitizeMermaidID(End))

	for _, e := range g.Edges() {
		arrow := "-->"
		if e.Label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(e.Label, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !visited[safeID] {
				visited[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_")
	return r.Replace(id)
}
