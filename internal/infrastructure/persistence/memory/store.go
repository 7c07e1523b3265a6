// Package memory implements the workflow stores in process memory.
// Values are copied on the way in and out so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// DefinitionStore implements port.DefinitionRepository in memory.
// Safe for concurrent use.
type DefinitionStore struct {
	mu    sync.RWMutex
	data  map[string]*workflow.Definition
	order []string
}

// NewDefinitionStore creates an empty definition store
func NewDefinitionStore() *DefinitionStore {
	return &DefinitionStore{data: make(map[string]*workflow.Definition)}
}

func (s *DefinitionStore) Create(ctx context.Context, def *workflow.Definition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[def.ID]; exists {
		return fmt.Errorf("definition %s already exists", def.ID)
	}
	s.data[def.ID] = def.Clone()
	s.order = append(s.order, def.ID)
	return nil
}

func (s *DefinitionStore) GetByID(ctx context.Context, id string) (*workflow.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[id].Clone(), nil
}

func (s *DefinitionStore) List(ctx context.Context) ([]*workflow.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]*workflow.Definition, 0, len(s.order))
	for _, id := range s.order {
		defs = append(defs, s.data[id].Clone())
	}
	return defs, nil
}

func (s *DefinitionStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists {
		return false, nil
	}
	delete(s.data, id)
	s.order = remove(s.order, id)
	return true, nil
}

// InstanceStore implements port.InstanceRepository in memory.
// Safe for concurrent use.
type InstanceStore struct {
	mu    sync.RWMutex
	data  map[string]*workflow.Instance
	order []string
	now   func() time.Time
}

// NewInstanceStore creates an empty instance store
func NewInstanceStore() *InstanceStore {
	return &InstanceStore{
		data: make(map[string]*workflow.Instance),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *InstanceStore) Create(ctx context.Context, inst *workflow.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[inst.ID]; exists {
		return fmt.Errorf("instance %s already exists", inst.ID)
	}
	s.data[inst.ID] = inst.Clone()
	s.order = append(s.order, inst.ID)
	return nil
}

func (s *InstanceStore) GetByID(ctx context.Context, id string) (*workflow.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.data[id].Clone(), nil
}

func (s *InstanceStore) List(ctx context.Context) ([]*workflow.Instance, error) {
	return s.filter(func(*workflow.Instance) bool { return true }), nil
}

func (s *InstanceStore) ListByDefinition(ctx context.Context, definitionID string) ([]*workflow.Instance, error) {
	return s.filter(func(i *workflow.Instance) bool { return i.DefinitionID == definitionID }), nil
}

// Update swaps in inst only while the stored instance is at the expected revision
func (s *InstanceStore) Update(ctx context.Context, inst *workflow.Instance, expected workflow.Revision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.data[inst.ID]
	if !exists {
		return workflow.NewNotFoundError("Workflow instance with ID '%s' not found", inst.ID)
	}
	if stored.Revision() != expected {
		return workflow.ErrConcurrentUpdate
	}

	now := s.now()
	inst.UpdatedAt = &now
	s.data[inst.ID] = inst.Clone()
	return nil
}

func (s *InstanceStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[id]; !exists {
		return false, nil
	}
	delete(s.data, id)
	s.order = remove(s.order, id)
	return true, nil
}

func (s *InstanceStore) CountByState(ctx context.Context) ([]port.StateCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ def, state string }
	totals := make(map[key]int)
	var keys []key
	for _, id := range s.order {
		inst := s.data[id]
		k := key{inst.DefinitionID, inst.CurrentStateID}
		if _, seen := totals[k]; !seen {
			keys = append(keys, k)
		}
		totals[k]++
	}

	counts := make([]port.StateCount, 0, len(keys))
	for _, k := range keys {
		counts = append(counts, port.StateCount{DefinitionID: k.def, StateID: k.state, Count: totals[k]})
	}
	return counts, nil
}

func (s *InstanceStore) filter(keep func(*workflow.Instance) bool) []*workflow.Instance {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*workflow.Instance, 0)
	for _, id := range s.order {
		if inst := s.data[id]; keep(inst) {
			out = append(out, inst.Clone())
		}
	}
	return out
}

// TxManager satisfies port.TransactionManager for the memory stores.
// Each store call is atomic on its own, so fn simply runs inline.
type TxManager struct{}

func (TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Ping always succeeds
func (TxManager) Ping(ctx context.Context) error {
	return nil
}

func remove(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Verify interface compliance
var (
	_ port.DefinitionRepository = (*DefinitionStore)(nil)
	_ port.InstanceRepository   = (*InstanceStore)(nil)
	_ port.TransactionManager   = TxManager{}
	_ port.HealthChecker        = TxManager{}
)
