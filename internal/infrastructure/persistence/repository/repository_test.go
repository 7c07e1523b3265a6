package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/application/port/porttest"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
	"github.com/garyjia/workflow-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/workflow-engine/pkg/database"
)

func setupDB(t *testing.T) *sqlite.DB {
	t.Helper()

	logger, _ := zap.NewDevelopment()
	conn, err := database.New(database.Config{
		Path:            filepath.Join(t.TempDir(), "workflow.db"),
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, database.NewMigrator(conn, logger).RunMigrations(sqlite.Migrations, sqlite.MigrationsDir))
	return sqlite.NewDB(conn.DB, logger)
}

func TestDefinitionRepository_Contract(t *testing.T) {
	db := setupDB(t)
	porttest.RunDefinitionRepositoryContract(t, NewDefinitionRepository(db, zap.NewNop()))
}

func TestInstanceRepository_Contract(t *testing.T) {
	db := setupDB(t)
	porttest.RunInstanceRepositoryContract(t, NewInstanceRepository(db, zap.NewNop()))
}

func TestInstanceRepository_RollbackWithOuterTransaction(t *testing.T) {
	db := setupDB(t)
	repo := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	inst := porttest.SampleInstance("inst-tx", "def-tx")
	require.NoError(t, repo.Create(ctx, inst))

	err := db.WithTransaction(ctx, func(txCtx context.Context) error {
		rev := inst.Revision()
		workflow.ApplyTransition(inst, workflow.Action{ID: "submit", ToState: "review"}, time.Now().UTC())
		if err := repo.Update(txCtx, inst, rev); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	loaded, err := repo.GetByID(ctx, "inst-tx")
	require.NoError(t, err)
	assert.Equal(t, "draft", loaded.CurrentStateID)
	assert.Empty(t, loaded.History)
}

func TestDefinitionRepository_DeleteKeepsInstances(t *testing.T) {
	db := setupDB(t)
	defs := NewDefinitionRepository(db, zap.NewNop())
	insts := NewInstanceRepository(db, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, defs.Create(ctx, porttest.SampleDefinition("def-orphan")))
	require.NoError(t, insts.Create(ctx, porttest.SampleInstance("inst-orphan", "def-orphan")))

	deleted, err := defs.Delete(ctx, "def-orphan")
	require.NoError(t, err)
	assert.True(t, deleted)

	loaded, err := insts.GetByID(ctx, "inst-orphan")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "def-orphan", loaded.DefinitionID)
}
