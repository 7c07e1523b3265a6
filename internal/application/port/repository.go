package port

import (
	"context"

	"github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// DefinitionRepository persists workflow definitions. Definitions are
// create-or-delete only; there is no update.
//
// Implementations must be safe for concurrent use on distinct ids and must
// not let callers mutate stored values through returned pointers.
type DefinitionRepository interface {
	Create(ctx context.Context, def *workflow.Definition) error

	// GetByID returns nil, nil when the definition does not exist
	GetByID(ctx context.Context, id string) (*workflow.Definition, error)

	// List returns definitions in creation order
	List(ctx context.Context) ([]*workflow.Definition, error)

	// Delete reports whether a definition was removed
	Delete(ctx context.Context, id string) (bool, error)
}

// StateCount is the number of instances of a definition sitting in a state
type StateCount struct {
	DefinitionID string
	StateID      string
	Count        int
}

// InstanceRepository persists workflow instances and their history
type InstanceRepository interface {
	Create(ctx context.Context, inst *workflow.Instance) error

	// GetByID returns nil, nil when the instance does not exist
	GetByID(ctx context.Context, id string) (*workflow.Instance, error)

	// List returns instances in creation order
	List(ctx context.Context) ([]*workflow.Instance, error)

	// ListByDefinition returns the instances referencing definitionID
	ListByDefinition(ctx context.Context, definitionID string) ([]*workflow.Instance, error)

	// Update stores inst only if the persisted instance is still at the
	// expected revision (same current state and history length), returning
	// workflow.ErrConcurrentUpdate otherwise. The store stamps UpdatedAt on inst.
	Update(ctx context.Context, inst *workflow.Instance, expected workflow.Revision) error

	// Delete reports whether an instance was removed
	Delete(ctx context.Context, id string) (bool, error)

	// CountByState aggregates instances per definition and current state
	CountByState(ctx context.Context) ([]StateCount, error)
}

// TransactionManager handles store transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// HealthChecker is implemented by stores that can report liveness
type HealthChecker interface {
	Ping(ctx context.Context) error
}
