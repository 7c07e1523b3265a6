package service

import (
	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// CreateDefinitionRequest is the client-supplied shape of a new workflow
// definition. The same shape is read from YAML/JSON files by workflowctl.
type CreateDefinitionRequest struct {
	Name        string          `json:"name" yaml:"name" binding:"required"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	States      []StateRequest  `json:"states" yaml:"states" binding:"required,dive"`
	Actions     []ActionRequest `json:"actions" yaml:"actions" binding:"required,dive"`
}

// StateRequest describes one state; Enabled defaults to true when omitted
type StateRequest struct {
	ID          string `json:"id" yaml:"id" binding:"required"`
	Name        string `json:"name" yaml:"name" binding:"required"`
	IsInitial   bool   `json:"isInitial" yaml:"isInitial"`
	IsFinal     bool   `json:"isFinal" yaml:"isFinal"`
	Enabled     *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// ActionRequest describes one action; Enabled defaults to true when omitted
type ActionRequest struct {
	ID          string   `json:"id" yaml:"id" binding:"required"`
	Name        string   `json:"name" yaml:"name" binding:"required"`
	Enabled     *bool    `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	FromStates  []string `json:"fromStates" yaml:"fromStates" binding:"required,min=1"`
	ToState     string   `json:"toState" yaml:"toState" binding:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
}

// ExecuteActionRequest is the body of POST /workflow-instances/{id}/actions.
// An empty actionId is looked up like any other and reported as not found.
type ExecuteActionRequest struct {
	ActionID string `json:"actionId"`
}

// ToDefinition converts the request into an unsaved definition. States and
// actions keep their request order.
func (r CreateDefinitionRequest) ToDefinition() *domainwf.Definition {
	def := &domainwf.Definition{
		Name:        r.Name,
		Description: r.Description,
		States:      make([]domainwf.State, 0, len(r.States)),
		Actions:     make([]domainwf.Action, 0, len(r.Actions)),
	}

	for _, s := range r.States {
		def.States = append(def.States, domainwf.State{
			ID:          s.ID,
			Name:        s.Name,
			IsInitial:   s.IsInitial,
			IsFinal:     s.IsFinal,
			Enabled:     enabled(s.Enabled),
			Description: s.Description,
		})
	}

	for _, a := range r.Actions {
		from := make([]string, len(a.FromStates))
		copy(from, a.FromStates)
		def.Actions = append(def.Actions, domainwf.Action{
			ID:          a.ID,
			Name:        a.Name,
			Enabled:     enabled(a.Enabled),
			FromStates:  from,
			ToState:     a.ToState,
			Description: a.Description,
		})
	}

	return def
}

func enabled(b *bool) bool {
	return b == nil || *b
}
