package service

import (
	"time"

	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// InstanceView is an instance with state and action names resolved against its definition
type InstanceView struct {
	ID               string             `json:"id"`
	DefinitionID     string             `json:"definitionId"`
	CurrentStateID   string             `json:"currentStateId"`
	CurrentStateName string             `json:"currentStateName"`
	History          []HistoryEntryView `json:"history"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        *time.Time         `json:"updatedAt,omitempty"`
}

// HistoryEntryView is a history entry with names resolved
type HistoryEntryView struct {
	ActionID      string    `json:"actionId"`
	ActionName    string    `json:"actionName"`
	FromStateID   string    `json:"fromStateId"`
	FromStateName string    `json:"fromStateName"`
	ToStateID     string    `json:"toStateId"`
	ToStateName   string    `json:"toStateName"`
	ExecutedAt    time.Time `json:"executedAt"`
}

// NewInstanceView resolves names. Definitions are immutable, so every id an
// instance carries is expected to resolve; an unknown id falls back to itself.
func NewInstanceView(inst *domainwf.Instance, def *domainwf.Definition) *InstanceView {
	view := &InstanceView{
		ID:               inst.ID,
		DefinitionID:     inst.DefinitionID,
		CurrentStateID:   inst.CurrentStateID,
		CurrentStateName: stateName(def, inst.CurrentStateID),
		History:          make([]HistoryEntryView, 0, len(inst.History)),
		CreatedAt:        inst.CreatedAt,
		UpdatedAt:        inst.UpdatedAt,
	}

	for _, h := range inst.History {
		actionName := h.ActionID
		if a, ok := def.FindAction(h.ActionID); ok {
			actionName = a.Name
		}
		view.History = append(view.History, HistoryEntryView{
			ActionID:      h.ActionID,
			ActionName:    actionName,
			FromStateID:   h.FromStateID,
			FromStateName: stateName(def, h.FromStateID),
			ToStateID:     h.ToStateID,
			ToStateName:   stateName(def, h.ToStateID),
			ExecutedAt:    h.ExecutedAt,
		})
	}

	return view
}

func stateName(def *domainwf.Definition, id string) string {
	if s, ok := def.FindState(id); ok {
		return s.Name
	}
	return id
}
