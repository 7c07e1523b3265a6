package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
	"github.com/garyjia/workflow-engine/internal/infrastructure/persistence/sqlite"
)

// DefinitionRepository implements port.DefinitionRepository on SQLite
type DefinitionRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDefinitionRepository creates a new definition repository
func NewDefinitionRepository(db *sqlite.DB, logger *zap.Logger) port.DefinitionRepository {
	return &DefinitionRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a definition with its states and actions
func (r *DefinitionRepository) Create(ctx context.Context, def *workflow.Definition) error {
	states, err := json.Marshal(def.States)
	if err != nil {
		return fmt.Errorf("failed to encode states: %w", err)
	}
	actions, err := json.Marshal(def.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	query := `
		INSERT INTO workflow_definitions (
			id, name, description, states_json, actions_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		def.ID,
		def.Name,
		def.Description,
		string(states),
		string(actions),
		def.CreatedAt,
		nullTime(def.UpdatedAt),
	)
	if err != nil {
		r.logger.Error("Failed to create definition", zap.String("id", def.ID), zap.Error(err))
		return fmt.Errorf("failed to create definition: %w", err)
	}

	return nil
}

// GetByID retrieves a definition by ID
func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*workflow.Definition, error) {
	query := `
		SELECT id, name, description, states_json, actions_json, created_at, updated_at
		FROM workflow_definitions
		WHERE id = ?
	`

	def, err := scanDefinition(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get definition by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}

	return def, nil
}

// List returns all definitions in creation order
func (r *DefinitionRepository) List(ctx context.Context) ([]*workflow.Definition, error) {
	query := `
		SELECT id, name, description, states_json, actions_json, created_at, updated_at
		FROM workflow_definitions
		ORDER BY seq
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list definitions", zap.Error(err))
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	defs := make([]*workflow.Definition, 0)
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		defs = append(defs, def)
	}

	return defs, rows.Err()
}

// Delete removes a definition. Its instances are left untouched.
func (r *DefinitionRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM workflow_definitions WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete definition", zap.String("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to delete definition: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row rowScanner) (*workflow.Definition, error) {
	var def workflow.Definition
	var states, actions string
	var updatedAt sql.NullTime

	if err := row.Scan(
		&def.ID,
		&def.Name,
		&def.Description,
		&states,
		&actions,
		&def.CreatedAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(states), &def.States); err != nil {
		return nil, fmt.Errorf("failed to decode states of %s: %w", def.ID, err)
	}
	if err := json.Unmarshal([]byte(actions), &def.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions of %s: %w", def.ID, err)
	}
	if updatedAt.Valid {
		def.UpdatedAt = &updatedAt.Time
	}

	return &def, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Verify interface compliance
var _ port.DefinitionRepository = (*DefinitionRepository)(nil)
