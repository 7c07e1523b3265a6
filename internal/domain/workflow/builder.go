package workflow

// DefinitionBuilder assembles a definition fluently. Build does not validate;
// pass the result through ValidateDefinition.
type DefinitionBuilder interface {
	// State adds a state and returns its configuration
	State(id, name string) StateConfiguration

	// Action adds an action and returns its configuration
	Action(id, name string) ActionConfiguration

	// Describe sets the definition description
	Describe(description string) DefinitionBuilder

	// Build returns a new definition holding copies of everything configured so far
	Build() *Definition
}

// StateConfiguration configures a single state
type StateConfiguration interface {
	Initial() StateConfiguration
	Final() StateConfiguration
	Disabled() StateConfiguration
	Describe(description string) StateConfiguration
}

// ActionConfiguration configures a single action
type ActionConfiguration interface {
	From(stateIDs ...string) ActionConfiguration
	To(stateID string) ActionConfiguration
	Disabled() ActionConfiguration
	Describe(description string) ActionConfiguration
}

type definitionBuilder struct {
	def     Definition
	states  []*stateConfig
	actions []*actionConfig
}

type stateConfig struct {
	state State
}

type actionConfig struct {
	action Action
}

// NewBuilder creates a builder for a definition with the given name
func NewBuilder(name string) DefinitionBuilder {
	return &definitionBuilder{def: Definition{Name: name}}
}

func (b *definitionBuilder) State(id, name string) StateConfiguration {
	c := &stateConfig{state: State{ID: id, Name: name, Enabled: true}}
	b.states = append(b.states, c)
	return c
}

func (b *definitionBuilder) Action(id, name string) ActionConfiguration {
	c := &actionConfig{action: Action{ID: id, Name: name, Enabled: true}}
	b.actions = append(b.actions, c)
	return c
}

func (b *definitionBuilder) Describe(description string) DefinitionBuilder {
	b.def.Description = description
	return b
}

func (b *definitionBuilder) Build() *Definition {
	def := b.def
	def.States = make([]State, 0, len(b.states))
	for _, c := range b.states {
		def.States = append(def.States, c.state)
	}
	def.Actions = make([]Action, 0, len(b.actions))
	for _, c := range b.actions {
		a := c.action
		a.FromStates = append([]string{}, a.FromStates...)
		def.Actions = append(def.Actions, a)
	}
	return &def
}

func (c *stateConfig) Initial() StateConfiguration {
	c.state.IsInitial = true
	return c
}

func (c *stateConfig) Final() StateConfiguration {
	c.state.IsFinal = true
	return c
}

func (c *stateConfig) Disabled() StateConfiguration {
	c.state.Enabled = false
	return c
}

func (c *stateConfig) Describe(description string) StateConfiguration {
	c.state.Description = description
	return c
}

func (c *actionConfig) From(stateIDs ...string) ActionConfiguration {
	c.action.FromStates = append(c.action.FromStates, stateIDs...)
	return c
}

func (c *actionConfig) To(stateID string) ActionConfiguration {
	c.action.ToState = stateID
	return c
}

func (c *actionConfig) Disabled() ActionConfiguration {
	c.action.Enabled = false
	return c
}

func (c *actionConfig) Describe(description string) ActionConfiguration {
	c.action.Description = description
	return c
}
