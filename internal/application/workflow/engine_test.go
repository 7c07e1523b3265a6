package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/garyjia/workflow-engine/internal/application/dispatcher"
	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/application/port/porttest"
	"github.com/garyjia/workflow-engine/internal/domain/event"
	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
	"github.com/garyjia/workflow-engine/internal/infrastructure/lock"
	"github.com/garyjia/workflow-engine/internal/infrastructure/persistence/memory"
)

// Mock implementations

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeMany(eventTypes []event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.DispatchAsync(ctx, evt)
	return nil
}

func (m *mockDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event.Type
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}

type mockRecorder struct {
	mu         sync.Mutex
	outcomes   []string
	rejections []string
}

func (m *mockRecorder) ObserveExecution(outcome string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *mockRecorder) RecordRejection(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, reason)
}

type mockLocker struct {
	lockErr  error
	locked   []string
	released int
}

func (m *mockLocker) Lock(ctx context.Context, key string, ttl time.Duration) (port.UnlockFunc, error) {
	if m.lockErr != nil {
		return nil, m.lockErr
	}
	m.locked = append(m.locked, key)
	return func(context.Context) error {
		m.released++
		return nil
	}, nil
}

// racingInstanceStore commits a competing transition right before each
// update, like a second replica writing without a shared lock.
type racingInstanceStore struct {
	*memory.InstanceStore
	competing domainwf.Action
}

func (r *racingInstanceStore) Update(ctx context.Context, inst *domainwf.Instance, expected domainwf.Revision) error {
	other, err := r.InstanceStore.GetByID(ctx, inst.ID)
	if err != nil {
		return err
	}
	domainwf.ApplyTransition(other, r.competing, fixedNow)
	if err := r.InstanceStore.Update(ctx, other, expected); err != nil {
		return err
	}
	return r.InstanceStore.Update(ctx, inst, expected)
}

type fixture struct {
	engine      WorkflowEngine
	definitions *memory.DefinitionStore
	instances   *memory.InstanceStore
	dispatcher  *mockDispatcher
	recorder    *mockRecorder
	locker      *mockLocker
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		definitions: memory.NewDefinitionStore(),
		instances:   memory.NewInstanceStore(),
		dispatcher:  &mockDispatcher{},
		recorder:    &mockRecorder{},
		locker:      &mockLocker{},
	}
	if err := f.definitions.Create(context.Background(), porttest.SampleDefinition("def-1")); err != nil {
		t.Fatalf("seed definition: %v", err)
	}

	f.engine = NewEngine(f.definitions, f.instances, memory.TxManager{}, f.locker,
		WithDispatcher(f.dispatcher),
		WithMetrics(f.recorder),
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(func() string { return "inst-1" }),
	)
	return f
}

func TestEngine_Start(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inst, err := f.engine.Start(ctx, "def-1")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if inst.ID != "inst-1" || inst.CurrentStateID != "draft" {
		t.Errorf("Start() = %s in %s, want inst-1 in draft", inst.ID, inst.CurrentStateID)
	}
	if inst.History == nil || len(inst.History) != 0 {
		t.Errorf("Start() history = %v, want empty non-nil", inst.History)
	}
	if !inst.CreatedAt.Equal(fixedNow) {
		t.Errorf("Start() createdAt = %v, want %v", inst.CreatedAt, fixedNow)
	}

	stored, _ := f.instances.GetByID(ctx, "inst-1")
	if stored == nil {
		t.Fatal("instance was not stored")
	}

	types := f.dispatcher.types()
	if len(types) != 1 || types[0] != event.TypeInstanceStarted {
		t.Errorf("events = %v, want [instance.started]", types)
	}
}

func TestEngine_Start_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	noInitial := porttest.SampleDefinition("def-2")
	noInitial.States[0].IsInitial = false
	if err := f.definitions.Create(ctx, noInitial); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		defID    string
		wantKind domainwf.Kind
		wantMsg  string
	}{
		{"missing definition", "nope", domainwf.KindNotFound, "Workflow definition with ID 'nope' not found"},
		{"no initial state", "def-2", domainwf.KindInvalidOperation, "No initial state found in workflow definition 'def-2'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Start(ctx, tt.defID)
			if domainwf.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %v, want %v (err %v)", domainwf.KindOf(err), tt.wantKind, err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestEngine_Execute_ToCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Start(ctx, "def-1"); err != nil {
		t.Fatal(err)
	}

	inst, err := f.engine.Execute(ctx, "inst-1", "submit")
	if err != nil {
		t.Fatalf("Execute(submit) error = %v", err)
	}
	if inst.CurrentStateID != "review" || len(inst.History) != 1 {
		t.Fatalf("after submit: state %s, history %d", inst.CurrentStateID, len(inst.History))
	}

	inst, err = f.engine.Execute(ctx, "inst-1", "approve")
	if err != nil {
		t.Fatalf("Execute(approve) error = %v", err)
	}

	want := []domainwf.HistoryEntry{
		{ActionID: "submit", FromStateID: "draft", ToStateID: "review", ExecutedAt: fixedNow},
		{ActionID: "approve", FromStateID: "review", ToStateID: "approved", ExecutedAt: fixedNow},
	}
	if len(inst.History) != len(want) {
		t.Fatalf("history = %v, want %v", inst.History, want)
	}
	for i := range want {
		if inst.History[i] != want[i] {
			t.Errorf("history[%d] = %+v, want %+v", i, inst.History[i], want[i])
		}
	}

	stored, _ := f.instances.GetByID(ctx, "inst-1")
	if stored.CurrentStateID != "approved" || stored.UpdatedAt == nil {
		t.Errorf("stored = %s updatedAt %v", stored.CurrentStateID, stored.UpdatedAt)
	}

	types := f.dispatcher.types()
	wantTypes := []event.Type{
		event.TypeInstanceStarted,
		event.TypeInstanceTransitioned,
		event.TypeInstanceTransitioned,
		event.TypeInstanceCompleted,
	}
	if len(types) != len(wantTypes) {
		t.Fatalf("events = %v, want %v", types, wantTypes)
	}
	for i := range wantTypes {
		if types[i] != wantTypes[i] {
			t.Errorf("events[%d] = %s, want %s", i, types[i], wantTypes[i])
		}
	}

	if len(f.locker.locked) != 2 || f.locker.locked[0] != "instance:inst-1" {
		t.Errorf("locked keys = %v", f.locker.locked)
	}
	if f.locker.released != 2 {
		t.Errorf("released = %d, want 2", f.locker.released)
	}
	if len(f.recorder.outcomes) != 2 || f.recorder.outcomes[1] != "ok" {
		t.Errorf("outcomes = %v", f.recorder.outcomes)
	}
}

func TestEngine_Execute_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		instanceID string
		actionID   string
		setup      func(*fixture)
		wantKind   domainwf.Kind
		wantMsg    string
	}{
		{
			name:       "missing instance",
			instanceID: "ghost",
			actionID:   "submit",
			wantKind:   domainwf.KindNotFound,
			wantMsg:    "Workflow instance with ID 'ghost' not found",
		},
		{
			name:       "unknown action",
			instanceID: "inst-1",
			actionID:   "publish",
			wantKind:   domainwf.KindNotFound,
			wantMsg:    "Action with ID 'publish' not found in workflow definition",
		},
		{
			name:       "wrong source state",
			instanceID: "inst-1",
			actionID:   "approve",
			wantKind:   domainwf.KindInvalidOperation,
			wantMsg:    "Action 'approve' cannot be executed from current state 'draft'",
		},
		{
			name:       "definition deleted",
			instanceID: "inst-1",
			actionID:   "submit",
			setup: func(f *fixture) {
				f.definitions.Delete(context.Background(), "def-1")
			},
			wantKind: domainwf.KindNotFound,
			wantMsg:  "Workflow definition with ID 'def-1' not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			if _, err := f.engine.Start(ctx, "def-1"); err != nil {
				t.Fatal(err)
			}
			if tt.setup != nil {
				tt.setup(f)
			}

			_, err := f.engine.Execute(ctx, tt.instanceID, tt.actionID)
			if domainwf.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %v, want %v (err %v)", domainwf.KindOf(err), tt.wantKind, err)
			}
			if err.Error() != tt.wantMsg {
				t.Errorf("message = %q, want %q", err.Error(), tt.wantMsg)
			}

			if stored, _ := f.instances.GetByID(ctx, "inst-1"); stored.CurrentStateID != "draft" || len(stored.History) != 0 {
				t.Errorf("instance changed on failure: %s, %d entries", stored.CurrentStateID, len(stored.History))
			}
			if len(f.recorder.rejections) != 1 || f.recorder.rejections[0] != tt.wantKind.String() {
				t.Errorf("rejections = %v", f.recorder.rejections)
			}
			if f.locker.released != len(f.locker.locked) {
				t.Errorf("lock leaked: locked %d, released %d", len(f.locker.locked), f.locker.released)
			}
		})
	}
}

func TestEngine_Execute_LockError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.engine.Start(ctx, "def-1"); err != nil {
		t.Fatal(err)
	}

	lockErr := errors.New("redis unavailable")
	f.locker.lockErr = lockErr

	_, err := f.engine.Execute(ctx, "inst-1", "submit")
	if !errors.Is(err, lockErr) {
		t.Fatalf("Execute() error = %v, want wrapped lock error", err)
	}
	if domainwf.KindOf(err) != domainwf.KindInternal {
		t.Errorf("kind = %v, want internal", domainwf.KindOf(err))
	}
	if f.recorder.outcomes[len(f.recorder.outcomes)-1] != "error" {
		t.Errorf("outcomes = %v", f.recorder.outcomes)
	}
}

func TestEngine_Execute_ConcurrentModification(t *testing.T) {
	definitions := memory.NewDefinitionStore()
	instances := memory.NewInstanceStore()
	ctx := context.Background()
	definitions.Create(ctx, porttest.SampleDefinition("def-1"))
	instances.Create(ctx, porttest.SampleInstance("inst-1", "def-1"))

	racer := &racingInstanceStore{InstanceStore: instances, competing: domainwf.Action{ID: "submit", ToState: "review"}}
	engine := NewEngine(definitions, racer, memory.TxManager{}, &mockLocker{})

	_, err := engine.Execute(ctx, "inst-1", "submit")
	if domainwf.KindOf(err) != domainwf.KindInvalidOperation {
		t.Fatalf("kind = %v, want invalid_operation (err %v)", domainwf.KindOf(err), err)
	}
	if err.Error() != "Workflow instance 'inst-1' was modified concurrently" {
		t.Errorf("message = %q", err.Error())
	}

	stored, _ := instances.GetByID(ctx, "inst-1")
	if len(stored.History) != 1 {
		t.Errorf("history = %d entries, want only the competing write", len(stored.History))
	}
}

func TestEngine_Execute_ConcurrentSelfLoop(t *testing.T) {
	b := domainwf.NewBuilder("Ticket")
	b.State("open", "Open").Initial()
	b.State("closed", "Closed").Final()
	b.Action("comment", "Comment").From("open").To("open")
	b.Action("close", "Close").From("open").To("closed")
	def := b.Build()
	def.ID = "def-loop"

	definitions := memory.NewDefinitionStore()
	instances := memory.NewInstanceStore()
	ctx := context.Background()
	definitions.Create(ctx, def)
	instances.Create(ctx, &domainwf.Instance{
		ID:             "inst-loop",
		DefinitionID:   "def-loop",
		CurrentStateID: "open",
		History:        []domainwf.HistoryEntry{},
		CreatedAt:      fixedNow,
	})

	racer := &racingInstanceStore{InstanceStore: instances, competing: domainwf.Action{ID: "comment", ToState: "open"}}
	engine := NewEngine(definitions, racer, memory.TxManager{}, &mockLocker{})

	_, err := engine.Execute(ctx, "inst-loop", "comment")
	if domainwf.KindOf(err) != domainwf.KindInvalidOperation {
		t.Fatalf("kind = %v, want invalid_operation (err %v)", domainwf.KindOf(err), err)
	}

	stored, _ := instances.GetByID(ctx, "inst-loop")
	if len(stored.History) != 1 {
		t.Fatalf("history = %d entries, want only the competing write", len(stored.History))
	}

	inst, err := engine.Execute(ctx, "inst-loop", "comment")
	if err == nil {
		t.Fatalf("racing store should reject every stale write, got %+v", inst)
	}

	plain := NewEngine(definitions, instances, memory.TxManager{}, &mockLocker{})
	inst, err = plain.Execute(ctx, "inst-loop", "comment")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(inst.History) != 3 {
		t.Errorf("history = %d entries, want 3", len(inst.History))
	}
}

func TestEngine_Execute_SerializedPerInstance(t *testing.T) {
	definitions := memory.NewDefinitionStore()
	instances := memory.NewInstanceStore()
	ctx := context.Background()
	definitions.Create(ctx, porttest.SampleDefinition("def-1"))
	instances.Create(ctx, porttest.SampleInstance("inst-1", "def-1"))

	engine := NewEngine(definitions, instances, memory.TxManager{}, lock.NewLocal())

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Execute(ctx, "inst-1", "submit"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}
	stored, _ := instances.GetByID(ctx, "inst-1")
	if stored.CurrentStateID != "review" || len(stored.History) != 1 {
		t.Errorf("stored = %s with %d entries", stored.CurrentStateID, len(stored.History))
	}
}

func TestEngine_AvailableActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.engine.Start(ctx, "def-1"); err != nil {
		t.Fatal(err)
	}

	actions, err := f.engine.AvailableActions(ctx, "inst-1")
	if err != nil {
		t.Fatalf("AvailableActions() error = %v", err)
	}
	if len(actions) != 1 || actions[0].ID != "submit" {
		t.Errorf("AvailableActions() = %v, want [submit]", actions)
	}

	f.engine.Execute(ctx, "inst-1", "submit")
	actions, _ = f.engine.AvailableActions(ctx, "inst-1")
	if len(actions) != 1 || actions[0].ID != "approve" {
		t.Errorf("after submit = %v, want [approve] (withdraw is disabled)", actions)
	}

	f.engine.Execute(ctx, "inst-1", "approve")
	actions, _ = f.engine.AvailableActions(ctx, "inst-1")
	if len(actions) != 0 {
		t.Errorf("final state = %v, want none", actions)
	}

	if _, err := f.engine.AvailableActions(ctx, "ghost"); domainwf.KindOf(err) != domainwf.KindNotFound {
		t.Errorf("missing instance err = %v", err)
	}
}
