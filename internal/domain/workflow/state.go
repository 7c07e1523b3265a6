package workflow

import "time"

// State is a node in a workflow definition.
type State struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	IsInitial   bool   `json:"isInitial"`
	IsFinal     bool   `json:"isFinal"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description,omitempty"`
}

// Action is a transition edge from a set of source states to a single target state.
type Action struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Enabled     bool     `json:"enabled"`
	FromStates  []string `json:"fromStates"`
	ToState     string   `json:"toState"`
	Description string   `json:"description,omitempty"`
}

// CanFireFrom returns true if stateID is one of the action's source states
func (a Action) CanFireFrom(stateID string) bool {
	for _, from := range a.FromStates {
		if from == stateID {
			return true
		}
	}
	return false
}

// Definition is a workflow schema. It owns its states and actions and is
// never edited after it has been validated and stored.
type Definition struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	States      []State    `json:"states"`
	Actions     []Action   `json:"actions"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// FindState looks up a state by ID
func (d *Definition) FindState(id string) (State, bool) {
	for _, s := range d.States {
		if s.ID == id {
			return s, true
		}
	}
	return State{}, false
}

// FindAction looks up an action by ID
func (d *Definition) FindAction(id string) (Action, bool) {
	for _, a := range d.Actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// InitialState returns the first state flagged as initial
func (d *Definition) InitialState() (State, bool) {
	for _, s := range d.States {
		if s.IsInitial {
			return s, true
		}
	}
	return State{}, false
}

// Clone returns a deep copy so stores can hand out values callers may mutate.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}

	out := *d
	out.States = append([]State(nil), d.States...)
	out.Actions = make([]Action, len(d.Actions))
	for i, a := range d.Actions {
		a.FromStates = append([]string(nil), a.FromStates...)
		out.Actions[i] = a
	}
	if d.UpdatedAt != nil {
		t := *d.UpdatedAt
		out.UpdatedAt = &t
	}
	return &out
}

// HistoryEntry is an immutable audit record of one executed transition.
type HistoryEntry struct {
	ActionID    string    `json:"actionId"`
	FromStateID string    `json:"fromStateId"`
	ToStateID   string    `json:"toStateId"`
	ExecutedAt  time.Time `json:"executedAt"`
}

// Instance is a running execution of a definition. DefinitionID is a
// reference only; the definition is looked up on every operation.
type Instance struct {
	ID             string         `json:"id"`
	DefinitionID   string         `json:"definitionId"`
	CurrentStateID string         `json:"currentStateId"`
	History        []HistoryEntry `json:"history"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      *time.Time     `json:"updatedAt,omitempty"`
}

// Revision identifies a stored version of an instance. History is append-only,
// so HistoryLen grows by one on every transition, including self-loops.
type Revision struct {
	StateID    string
	HistoryLen int
}

// Revision returns the version of the instance as it is now
func (i *Instance) Revision() Revision {
	return Revision{StateID: i.CurrentStateID, HistoryLen: len(i.History)}
}

// Clone returns a deep copy of the instance
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}

	out := *i
	out.History = append(make([]HistoryEntry, 0, len(i.History)), i.History...)
	if i.UpdatedAt != nil {
		t := *i.UpdatedAt
		out.UpdatedAt = &t
	}
	return &out
}
