package workflow

import (
	"fmt"
	"strings"
)

// ValidateDefinition checks the structural rules of a definition and
// returns a *Error of KindValidation listing every violation found.
// Reachability, final states, cycles and enabled flags are not checked.
func ValidateDefinition(def *Definition) error {
	var violations []string

	initialCount := 0
	for _, s := range def.States {
		if s.IsInitial {
			initialCount++
		}
	}
	switch {
	case initialCount == 0:
		violations = append(violations, "Workflow definition must contain exactly one initial state")
	case initialCount > 1:
		violations = append(violations, "Workflow definition cannot have more than one initial state")
	}

	stateIDs := make([]string, len(def.States))
	known := make(map[string]struct{}, len(def.States))
	for i, s := range def.States {
		stateIDs[i] = s.ID
		known[s.ID] = struct{}{}
	}
	if dups := duplicates(stateIDs); len(dups) > 0 {
		violations = append(violations, "Duplicate state IDs found: "+strings.Join(dups, ", "))
	}

	actionIDs := make([]string, len(def.Actions))
	for i, a := range def.Actions {
		actionIDs[i] = a.ID
	}
	if dups := duplicates(actionIDs); len(dups) > 0 {
		violations = append(violations, "Duplicate action IDs found: "+strings.Join(dups, ", "))
	}

	for _, a := range def.Actions {
		for _, from := range a.FromStates {
			if _, ok := known[from]; !ok {
				violations = append(violations, fmt.Sprintf("Action '%s' references non-existent fromState '%s'", a.ID, from))
			}
		}
		if _, ok := known[a.ToState]; !ok {
			violations = append(violations, fmt.Sprintf("Action '%s' references non-existent toState '%s'", a.ID, a.ToState))
		}
	}

	if len(violations) > 0 {
		return NewValidationError(violations)
	}
	return nil
}

// duplicates returns each repeated id once, in the order it was first seen.
func duplicates(ids []string) []string {
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}

	var out []string
	reported := make(map[string]bool)
	for _, id := range ids {
		if counts[id] > 1 && !reported[id] {
			out = append(out, id)
			reported[id] = true
		}
	}
	return out
}
