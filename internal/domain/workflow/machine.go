package workflow

import "time"

// StateMachine is a view of one instance driven by its definition
type StateMachine interface {
	// State returns the current state, false if the definition no longer knows it
	State() (State, bool)

	// CanFire returns true if the action would pass execution validation now
	CanFire(actionID string) bool

	// Fire validates and applies the action, mutating the underlying instance
	Fire(actionID string) (HistoryEntry, error)

	// PermittedActions returns every action that can be fired from the current state
	PermittedActions() []Action

	// IsCompleted returns true once the instance sits in a final state
	IsCompleted() bool
}

// MachineOption configures a machine
type MachineOption func(*machine)

// WithClock overrides the time source used for history entries
func WithClock(now func() time.Time) MachineOption {
	return func(m *machine) {
		m.now = now
	}
}

type machine struct {
	def  *Definition
	inst *Instance
	now  func() time.Time
}

// NewMachine binds an instance to its definition. The instance is mutated in place by Fire.
func NewMachine(def *Definition, inst *Instance, opts ...MachineOption) StateMachine {
	m := &machine{
		def:  def,
		inst: inst,
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *machine) State() (State, bool) {
	return m.def.FindState(m.inst.CurrentStateID)
}

func (m *machine) CanFire(actionID string) bool {
	_, err := ValidateExecution(m.def, m.inst, actionID)
	return err == nil
}

func (m *machine) Fire(actionID string) (HistoryEntry, error) {
	action, err := ValidateExecution(m.def, m.inst, actionID)
	if err != nil {
		return HistoryEntry{}, err
	}
	return ApplyTransition(m.inst, action, m.now()), nil
}

func (m *machine) PermittedActions() []Action {
	permitted := make([]Action, 0)
	for _, a := range m.def.Actions {
		if m.CanFire(a.ID) {
			permitted = append(permitted, a)
		}
	}
	return permitted
}

func (m *machine) IsCompleted() bool {
	s, ok := m.State()
	return ok && s.IsFinal
}
