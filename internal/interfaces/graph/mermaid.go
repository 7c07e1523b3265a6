// Package graph renders workflow definitions as diagrams.
package graph

import (
	"fmt"
	"strings"

	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// GenerateMermaid produces a Mermaid flowchart for def.
// Shapes:
// - initial state: ((circle))
// - final state: (((double circle)))
// - other states: [rectangle]
// Disabled actions are drawn dotted and disabled states get the "disabled" class.
func GenerateMermaid(def *domainwf.Definition) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	var disabled []string
	for _, s := range def.States {
		opener, closer := "[", "]"
		switch {
		case s.IsInitial:
			opener, closer = "((", "))"
		case s.IsFinal:
			opener, closer = "(((", ")))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeID(s.ID), opener, escapeLabel(s.Name), closer)
		if !s.Enabled {
			disabled = append(disabled, sanitizeID(s.ID))
		}
	}

	for _, a := range def.Actions {
		label := escapeLabel(a.Name)
		arrow := fmt.Sprintf("-- \"%s\" -->", label)
		if !a.Enabled {
			arrow = fmt.Sprintf("-. \"%s\" .->", label)
		}
		for _, from := range a.FromStates {
			fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeID(from), arrow, sanitizeID(a.ToState))
		}
	}

	if len(disabled) > 0 {
		sb.WriteString("    classDef disabled stroke-dasharray: 5 5,opacity:0.5\n")
		fmt.Fprintf(&sb, "    class %s disabled\n", strings.Join(disabled, ","))
	}

	return sb.String()
}

// sanitizeID keeps ids Mermaid can parse as node identifiers
func sanitizeID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "_"
	}
	return sb.String()
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
