// Package graph renders machine definitions as Mermaid diagrams.
package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/schema"
)

// Overlay contains dynamic run data to visualize on the graph.
type Overlay struct {
	VisitedStates []string
	CurrentState  string
}

// GenerateMermaid produces a Mermaid flowchart from a machine definition.
// Semantic styling:
//   - Initial state: ((Circle))
//   - Final states: [[Subroutine]]
//   - Default: [Rectangle]
//
// Dashed edges mark error routes; edge labels name the transition function.
// Overlay styles (visited/current) are applied when provided.
func GenerateMermaid(def *schema.Definition, overlay *Overlay) string {
	finals := make(map[string]bool, len(def.Finals))
	for _, name := range def.Finals {
		finals[name] = true
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, name := range def.States {
		opener, closer := "[", "]"
		switch {
		case name == def.Initial:
			opener, closer = "((", "))"
		case finals[name]:
			opener, closer = "[[", "]]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(name), opener, name, closer))
	}

	for _, rule := range def.Rules {
		safeFrom := sanitizeMermaidID(rule.From)

		if rule.To != "" || rule.Fn != "" {
			arrow := "-->"
			if rule.Fn != "" {
				safeFn := strings.ReplaceAll(rule.Fn, "\"", "'")
				arrow = fmt.Sprintf("-- \"%s\" -->", safeFn)
			}
			to := rule.To
			if to == "" {
				// Dynamic destination: the fn picks at runtime.
				to = "?"
			}
			sb.WriteString(fmt.Sprintf("    %s %s %s\n", safeFrom, arrow, sanitizeMermaidID(to)))
		}

		if rule.OnError != "" {
			sb.WriteString(fmt.Sprintf("    %s -. error .-> %s\n", safeFrom, sanitizeMermaidID(rule.OnError)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for high contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, name := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(name)
			if !visitedSet[safeID] && safeID != "" {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentState != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentState)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", "?", "unknown")
	return replacer.Replace(id)
}
