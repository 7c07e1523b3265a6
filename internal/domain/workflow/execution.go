package workflow

// ValidateExecution decides whether actionID may fire for inst under def.
// Checks run in a fixed order and the first failure is returned.
func ValidateExecution(def *Definition, inst *Instance, actionID string) (Action, error) {
	action, ok := def.FindAction(actionID)
	if !ok {
		return Action{}, NewNotFoundError("Action with ID '%s' not found in workflow definition", actionID)
	}

	if !action.Enabled {
		return Action{}, NewInvalidOperationError("Action '%s' is disabled", actionID)
	}

	if !action.CanFireFrom(inst.CurrentStateID) {
		return Action{}, NewInvalidOperationError("Action '%s' cannot be executed from current state '%s'", actionID, inst.CurrentStateID)
	}

	if current, ok := def.FindState(inst.CurrentStateID); ok && current.IsFinal {
		return Action{}, NewInvalidOperationError("Cannot execute actions from final state '%s'", inst.CurrentStateID)
	}

	if _, ok := def.FindState(action.ToState); !ok {
		return Action{}, NewNotFoundError("Target state '%s' not found in workflow definition", action.ToState)
	}

	return action, nil
}
