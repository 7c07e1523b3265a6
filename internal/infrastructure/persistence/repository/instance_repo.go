package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
	"github.com/garyjia/workflow-engine/internal/infrastructure/persistence/sqlite"
)

// InstanceRepository implements port.InstanceRepository on SQLite.
// History rows are append-only and keyed by their position.
type InstanceRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewInstanceRepository creates a new instance repository
func NewInstanceRepository(db *sqlite.DB, logger *zap.Logger) port.InstanceRepository {
	return &InstanceRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts an instance together with any history it already carries
func (r *InstanceRepository) Create(ctx context.Context, inst *workflow.Instance) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		query := `
			INSERT INTO workflow_instances (
				id, definition_id, current_state_id, revision, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?)
		`

		_, err := r.db.Executor(txCtx).ExecContext(txCtx, query,
			inst.ID,
			inst.DefinitionID,
			inst.CurrentStateID,
			len(inst.History),
			inst.CreatedAt,
			nullTime(inst.UpdatedAt),
		)
		if err != nil {
			r.logger.Error("Failed to create instance", zap.String("id", inst.ID), zap.Error(err))
			return fmt.Errorf("failed to create instance: %w", err)
		}

		return r.appendHistory(txCtx, inst, 0)
	})
}

// GetByID retrieves an instance and its history
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*workflow.Instance, error) {
	query := `
		SELECT id, definition_id, current_state_id, created_at, updated_at
		FROM workflow_instances
		WHERE id = ?
	`

	inst, err := scanInstance(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get instance by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	if err := r.loadHistory(ctx, []*workflow.Instance{inst}); err != nil {
		return nil, err
	}
	return inst, nil
}

// List returns all instances in creation order
func (r *InstanceRepository) List(ctx context.Context) ([]*workflow.Instance, error) {
	return r.list(ctx, `
		SELECT id, definition_id, current_state_id, created_at, updated_at
		FROM workflow_instances
		ORDER BY seq
	`)
}

// ListByDefinition returns the instances of one definition in creation order
func (r *InstanceRepository) ListByDefinition(ctx context.Context, definitionID string) ([]*workflow.Instance, error) {
	return r.list(ctx, `
		SELECT id, definition_id, current_state_id, created_at, updated_at
		FROM workflow_instances
		WHERE definition_id = ?
		ORDER BY seq
	`, definitionID)
}

// Update moves the instance to its new state if the stored revision still
// matches expected, then appends the history entries past expected.HistoryLen.
// The revision column counts stored history rows.
func (r *InstanceRepository) Update(ctx context.Context, inst *workflow.Instance, expected workflow.Revision) error {
	now := r.now()

	err := r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)

		result, err := exec.ExecContext(txCtx, `
			UPDATE workflow_instances
			SET current_state_id = ?, revision = ?, updated_at = ?
			WHERE id = ? AND current_state_id = ? AND revision = ?
		`,
			inst.CurrentStateID, len(inst.History), now,
			inst.ID, expected.StateID, expected.HistoryLen,
		)
		if err != nil {
			r.logger.Error("Failed to update instance", zap.String("id", inst.ID), zap.Error(err))
			return fmt.Errorf("failed to update instance: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			var exists int
			if err := exec.QueryRowContext(txCtx, `SELECT COUNT(1) FROM workflow_instances WHERE id = ?`, inst.ID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check instance: %w", err)
			}
			if exists == 0 {
				return workflow.NewNotFoundError("Workflow instance with ID '%s' not found", inst.ID)
			}
			return workflow.ErrConcurrentUpdate
		}

		return r.appendHistory(txCtx, inst, expected.HistoryLen)
	})
	if err != nil {
		return err
	}

	inst.UpdatedAt = &now
	return nil
}

// Delete removes an instance; its history goes with it
func (r *InstanceRepository) Delete(ctx context.Context, id string) (bool, error) {
	var affected int64

	err := r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)

		if _, err := exec.ExecContext(txCtx, `DELETE FROM workflow_instance_history WHERE instance_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete history: %w", err)
		}

		result, err := exec.ExecContext(txCtx, `DELETE FROM workflow_instances WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete instance: %w", err)
		}

		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		r.logger.Error("Failed to delete instance", zap.String("id", id), zap.Error(err))
		return false, err
	}

	return affected > 0, nil
}

// CountByState aggregates instances per definition and current state
func (r *InstanceRepository) CountByState(ctx context.Context) ([]port.StateCount, error) {
	query := `
		SELECT definition_id, current_state_id, COUNT(1)
		FROM workflow_instances
		GROUP BY definition_id, current_state_id
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to count instances by state", zap.Error(err))
		return nil, fmt.Errorf("failed to count instances: %w", err)
	}
	defer rows.Close()

	var counts []port.StateCount
	for rows.Next() {
		var c port.StateCount
		if err := rows.Scan(&c.DefinitionID, &c.StateID, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

func (r *InstanceRepository) list(ctx context.Context, query string, args ...interface{}) ([]*workflow.Instance, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list instances", zap.Error(err))
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	instances := make([]*workflow.Instance, 0)
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before loading history; the pool may hold only one.
	rows.Close()

	if err := r.loadHistory(ctx, instances); err != nil {
		return nil, err
	}
	return instances, nil
}

func (r *InstanceRepository) loadHistory(ctx context.Context, instances []*workflow.Instance) error {
	query := `
		SELECT action_id, from_state_id, to_state_id, executed_at
		FROM workflow_instance_history
		WHERE instance_id = ?
		ORDER BY position
	`

	for _, inst := range instances {
		rows, err := r.db.Executor(ctx).QueryContext(ctx, query, inst.ID)
		if err != nil {
			r.logger.Error("Failed to load history", zap.String("instance_id", inst.ID), zap.Error(err))
			return fmt.Errorf("failed to load history: %w", err)
		}

		inst.History = make([]workflow.HistoryEntry, 0)
		for rows.Next() {
			var e workflow.HistoryEntry
			if err := rows.Scan(&e.ActionID, &e.FromStateID, &e.ToStateID, &e.ExecutedAt); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan history: %w", err)
			}
			inst.History = append(inst.History, e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *InstanceRepository) appendHistory(ctx context.Context, inst *workflow.Instance, from int) error {
	query := `
		INSERT INTO workflow_instance_history (
			instance_id, position, action_id, from_state_id, to_state_id, executed_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	for i := from; i < len(inst.History); i++ {
		e := inst.History[i]
		if _, err := r.db.Executor(ctx).ExecContext(ctx, query,
			inst.ID, i, e.ActionID, e.FromStateID, e.ToStateID, e.ExecutedAt,
		); err != nil {
			r.logger.Error("Failed to append history", zap.String("instance_id", inst.ID), zap.Int("position", i), zap.Error(err))
			return fmt.Errorf("failed to append history: %w", err)
		}
	}

	return nil
}

func scanInstance(row rowScanner) (*workflow.Instance, error) {
	var inst workflow.Instance
	var updatedAt sql.NullTime

	if err := row.Scan(
		&inst.ID,
		&inst.DefinitionID,
		&inst.CurrentStateID,
		&inst.CreatedAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	if updatedAt.Valid {
		inst.UpdatedAt = &updatedAt.Time
	}
	return &inst, nil
}

// Verify interface compliance
var _ port.InstanceRepository = (*InstanceRepository)(nil)
