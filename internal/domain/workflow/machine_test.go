package workflow

import (
	"errors"
	"testing"
	"time"
)

func newInstance(def *Definition) *Instance {
	initial, _ := def.InitialState()
	return &Instance{
		ID:             "inst-1",
		DefinitionID:   def.ID,
		CurrentStateID: initial.ID,
		History:        []HistoryEntry{},
	}
}

func TestValidateExecution(t *testing.T) {
	b := NewBuilder("wf")
	b.State("draft", "Draft").Initial()
	b.State("review", "Review")
	b.State("done", "Done").Final()
	b.Action("submit", "Submit").From("draft").To("review")
	b.Action("frozen", "Frozen").From("draft").To("review").Disabled()
	b.Action("finish", "Finish").From("review").To("done")
	b.Action("reopen", "Reopen").From("done").To("draft")
	b.Action("escape", "Escape").From("draft").To("void")
	def := b.Build()

	tests := []struct {
		name    string
		current string
		action  string
		kind    Kind
		message string
	}{
		{"unknown action", "draft", "nope", KindNotFound, "Action with ID 'nope' not found in workflow definition"},
		{"disabled action", "draft", "frozen", KindInvalidOperation, "Action 'frozen' is disabled"},
		{"wrong source state", "draft", "finish", KindInvalidOperation, "Action 'finish' cannot be executed from current state 'draft'"},
		{"final state", "done", "reopen", KindInvalidOperation, "Cannot execute actions from final state 'done'"},
		{"missing target", "draft", "escape", KindNotFound, "Target state 'void' not found in workflow definition"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := &Instance{CurrentStateID: tt.current}
			_, err := ValidateExecution(def, inst, tt.action)
			if err == nil {
				t.Fatal("ValidateExecution() should fail")
			}
			if got := KindOf(err); got != tt.kind {
				t.Errorf("KindOf() = %v, want %v", got, tt.kind)
			}
			if err.Error() != tt.message {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.message)
			}
		})
	}

	action, err := ValidateExecution(def, &Instance{CurrentStateID: "draft"}, "submit")
	if err != nil {
		t.Fatalf("ValidateExecution() error = %v", err)
	}
	if action.ToState != "review" {
		t.Errorf("ToState = %v, want review", action.ToState)
	}
}

func TestValidateExecution_DisabledCheckedBeforeSource(t *testing.T) {
	b := NewBuilder("wf")
	b.State("a", "A").Initial()
	b.State("b", "B")
	b.Action("off", "Off").From("b").To("a").Disabled()

	_, err := ValidateExecution(b.Build(), &Instance{CurrentStateID: "a"}, "off")
	if err == nil || err.Error() != "Action 'off' is disabled" {
		t.Errorf("error = %v, want disabled", err)
	}
}

func TestApplyTransition(t *testing.T) {
	inst := &Instance{CurrentStateID: "draft", History: []HistoryEntry{}}
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	entry := ApplyTransition(inst, Action{ID: "submit", ToState: "review"}, at)

	if inst.CurrentStateID != "review" {
		t.Errorf("CurrentStateID = %v, want review", inst.CurrentStateID)
	}
	if len(inst.History) != 1 || inst.History[0] != entry {
		t.Fatalf("History = %+v, want single entry %+v", inst.History, entry)
	}
	want := HistoryEntry{ActionID: "submit", FromStateID: "draft", ToStateID: "review", ExecutedAt: at}
	if entry != want {
		t.Errorf("entry = %+v, want %+v", entry, want)
	}
}

func TestMachine_ReviewFlow(t *testing.T) {
	def := reviewDefinition()
	inst := newInstance(def)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	m := NewMachine(def, inst, WithClock(func() time.Time { return fixed }))

	if s, _ := m.State(); s.ID != "draft" {
		t.Fatalf("State() = %v, want draft", s.ID)
	}

	if _, err := m.Fire("submit"); err != nil {
		t.Fatalf("Fire(submit) error = %v", err)
	}
	if _, err := m.Fire("approve"); err != nil {
		t.Fatalf("Fire(approve) error = %v", err)
	}

	if inst.CurrentStateID != "approved" {
		t.Errorf("CurrentStateID = %v, want approved", inst.CurrentStateID)
	}
	if !m.IsCompleted() {
		t.Error("IsCompleted() should be true in a final state")
	}

	want := []HistoryEntry{
		{ActionID: "submit", FromStateID: "draft", ToStateID: "review", ExecutedAt: fixed},
		{ActionID: "approve", FromStateID: "review", ToStateID: "approved", ExecutedAt: fixed},
	}
	for i, e := range want {
		if inst.History[i] != e {
			t.Errorf("History[%d] = %+v, want %+v", i, inst.History[i], e)
		}
	}

	_, err := m.Fire("submit")
	if !errors.Is(err, ErrInvalidOperation) {
		t.Errorf("Fire() from final state error = %v, want invalid operation", err)
	}
	if len(inst.History) != 2 {
		t.Errorf("failed Fire() must not append history, got %d entries", len(inst.History))
	}
}

func TestMachine_HistoryChains(t *testing.T) {
	b := NewBuilder("loop")
	b.State("a", "A").Initial()
	b.State("b", "B")
	b.Action("ab", "AB").From("a").To("b")
	b.Action("ba", "BA").From("b").To("a")
	def := b.Build()
	inst := newInstance(def)
	m := NewMachine(def, inst)

	for _, id := range []string{"ab", "ba", "ab", "ba", "ab"} {
		if _, err := m.Fire(id); err != nil {
			t.Fatalf("Fire(%s) error = %v", id, err)
		}
	}

	for i := 1; i < len(inst.History); i++ {
		if inst.History[i].FromStateID != inst.History[i-1].ToStateID {
			t.Errorf("History[%d].FromStateID = %v, want %v", i, inst.History[i].FromStateID, inst.History[i-1].ToStateID)
		}
	}
	last := inst.History[len(inst.History)-1]
	if last.ToStateID != inst.CurrentStateID {
		t.Errorf("last ToStateID = %v, want current %v", last.ToStateID, inst.CurrentStateID)
	}
}

func TestMachine_PermittedActions(t *testing.T) {
	b := NewBuilder("wf")
	b.State("draft", "Draft").Initial()
	b.State("review", "Review")
	b.Action("submit", "Submit").From("draft").To("review")
	b.Action("withdraw", "Withdraw").From("draft", "review").To("draft")
	b.Action("hidden", "Hidden").From("draft").To("review").Disabled()
	b.Action("approve", "Approve").From("review").To("review")
	def := b.Build()

	m := NewMachine(def, newInstance(def))
	permitted := m.PermittedActions()

	var ids []string
	for _, a := range permitted {
		ids = append(ids, a.ID)
	}
	if len(ids) != 2 || ids[0] != "submit" || ids[1] != "withdraw" {
		t.Errorf("PermittedActions() = %v, want [submit withdraw]", ids)
	}
	if m.CanFire("hidden") {
		t.Error("CanFire() should be false for a disabled action")
	}
}

func TestMachine_FinalWithOutgoingActions(t *testing.T) {
	b := NewBuilder("wf")
	b.State("start", "Start").Initial().Final()
	b.State("other", "Other")
	b.Action("leave", "Leave").From("start").To("other")
	def := b.Build()

	m := NewMachine(def, newInstance(def))
	if len(m.PermittedActions()) != 0 {
		t.Error("final states must have no permitted actions")
	}
}

func TestClone_Independence(t *testing.T) {
	def := reviewDefinition()
	cp := def.Clone()
	cp.Actions[0].FromStates[0] = "mutated"
	cp.States[0].Name = "mutated"
	if def.Actions[0].FromStates[0] != "draft" || def.States[0].Name != "Draft" {
		t.Error("Definition.Clone() must not share slices")
	}

	inst := newInstance(def)
	ic := inst.Clone()
	ic.History = append(ic.History, HistoryEntry{ActionID: "x"})
	ic.CurrentStateID = "elsewhere"
	if len(inst.History) != 0 || inst.CurrentStateID != "draft" {
		t.Error("Instance.Clone() must not share state")
	}
}
