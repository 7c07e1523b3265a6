package workflow

import "time"

// ApplyTransition moves inst to the action's target state and appends the
// matching history entry. It does not re-validate; use Machine.Fire unless
// ValidateExecution has just passed for the same action.
func ApplyTransition(inst *Instance, action Action, at time.Time) HistoryEntry {
	entry := HistoryEntry{
		ActionID:    action.ID,
		FromStateID: inst.CurrentStateID,
		ToStateID:   action.ToState,
		ExecutedAt:  at,
	}

	inst.CurrentStateID = action.ToState
	inst.History = append(inst.History, entry)

	return entry
}
