package event

// Type identifies the type of domain event
type Type string

const (
	TypeDefinitionCreated    Type = "definition.created"
	TypeDefinitionDeleted    Type = "definition.deleted"
	TypeInstanceStarted      Type = "instance.started"
	TypeInstanceTransitioned Type = "instance.transitioned"
	TypeInstanceCompleted    Type = "instance.completed"
)

// Payload keys shared by publishers and handlers
const (
	KeyDefinitionName = "definition_name"
	KeyActionID       = "action_id"
	KeyFromStateID    = "from_state_id"
	KeyToStateID      = "to_state_id"
	KeyStateName      = "state_name"
	KeyHistoryLength  = "history_length"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeDefinitionCreated,
		TypeDefinitionDeleted,
		TypeInstanceStarted,
		TypeInstanceTransitioned,
		TypeInstanceCompleted:
		return true
	default:
		return false
	}
}
