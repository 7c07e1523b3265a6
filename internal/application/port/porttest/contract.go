// Package porttest holds behavioural contracts every store implementation must pass.
package porttest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
)

var baseTime = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// SampleDefinition returns a valid three-state review definition
func SampleDefinition(id string) *workflow.Definition {
	b := workflow.NewBuilder("Review " + id).Describe("document review")
	b.State("draft", "Draft").Initial()
	b.State("review", "Review")
	b.State("approved", "Approved").Final().Describe("terminal")
	b.Action("submit", "Submit").From("draft").To("review")
	b.Action("approve", "Approve").From("review").To("approved")
	b.Action("withdraw", "Withdraw").From("review").To("draft").Disabled()
	def := b.Build()
	def.ID = id
	def.CreatedAt = baseTime
	return def
}

// SampleInstance returns an instance of definitionID sitting in "draft"
func SampleInstance(id, definitionID string) *workflow.Instance {
	return &workflow.Instance{
		ID:             id,
		DefinitionID:   definitionID,
		CurrentStateID: "draft",
		History:        []workflow.HistoryEntry{},
		CreatedAt:      baseTime,
	}
}

// RunDefinitionRepositoryContract exercises a DefinitionRepository
func RunDefinitionRepositoryContract(t *testing.T, repo port.DefinitionRepository) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		def := SampleDefinition("def-get")
		require.NoError(t, repo.Create(ctx, def))

		loaded, err := repo.GetByID(ctx, "def-get")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, def.Name, loaded.Name)
		assert.Equal(t, def.Description, loaded.Description)
		assert.Equal(t, def.States, loaded.States)
		assert.Equal(t, def.Actions, loaded.Actions)
		assert.True(t, def.CreatedAt.Equal(loaded.CreatedAt))
		assert.Nil(t, loaded.UpdatedAt)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		loaded, err := repo.GetByID(ctx, "def-missing")
		assert.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Returned values are isolated", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, SampleDefinition("def-isolated")))

		loaded, err := repo.GetByID(ctx, "def-isolated")
		require.NoError(t, err)
		loaded.States[0].Name = "mutated"
		loaded.Actions[0].FromStates[0] = "mutated"

		again, err := repo.GetByID(ctx, "def-isolated")
		require.NoError(t, err)
		assert.Equal(t, "Draft", again.States[0].Name)
		assert.Equal(t, "draft", again.Actions[0].FromStates[0])
	})

	t.Run("List keeps creation order", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, SampleDefinition("def-list-1")))
		require.NoError(t, repo.Create(ctx, SampleDefinition("def-list-2")))

		defs, err := repo.List(ctx)
		require.NoError(t, err)

		var ids []string
		for _, d := range defs {
			ids = append(ids, d.ID)
		}
		first, second := indexOf(ids, "def-list-1"), indexOf(ids, "def-list-2")
		require.NotEqual(t, -1, first)
		require.NotEqual(t, -1, second)
		assert.Less(t, first, second)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, SampleDefinition("def-delete")))

		deleted, err := repo.Delete(ctx, "def-delete")
		require.NoError(t, err)
		assert.True(t, deleted)

		loaded, err := repo.GetByID(ctx, "def-delete")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		deleted, err = repo.Delete(ctx, "def-delete")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

// RunInstanceRepositoryContract exercises an InstanceRepository
func RunInstanceRepositoryContract(t *testing.T, repo port.InstanceRepository) {
	ctx := context.Background()

	t.Run("Create and Get", func(t *testing.T) {
		inst := SampleInstance("inst-get", "def-a")
		require.NoError(t, repo.Create(ctx, inst))

		loaded, err := repo.GetByID(ctx, "inst-get")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, "def-a", loaded.DefinitionID)
		assert.Equal(t, "draft", loaded.CurrentStateID)
		assert.NotNil(t, loaded.History)
		assert.Empty(t, loaded.History)
		assert.True(t, baseTime.Equal(loaded.CreatedAt))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		loaded, err := repo.GetByID(ctx, "inst-missing")
		assert.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("Update appends history and stamps UpdatedAt", func(t *testing.T) {
		inst := SampleInstance("inst-update", "def-a")
		require.NoError(t, repo.Create(ctx, inst))

		first := baseTime.Add(time.Minute)
		rev := inst.Revision()
		workflow.ApplyTransition(inst, workflow.Action{ID: "submit", ToState: "review"}, first)
		require.NoError(t, repo.Update(ctx, inst, rev))
		assert.NotNil(t, inst.UpdatedAt)

		second := baseTime.Add(2 * time.Minute)
		rev = inst.Revision()
		workflow.ApplyTransition(inst, workflow.Action{ID: "approve", ToState: "approved"}, second)
		require.NoError(t, repo.Update(ctx, inst, rev))

		loaded, err := repo.GetByID(ctx, "inst-update")
		require.NoError(t, err)
		assert.Equal(t, "approved", loaded.CurrentStateID)
		require.Len(t, loaded.History, 2)
		assert.Equal(t, "submit", loaded.History[0].ActionID)
		assert.Equal(t, "draft", loaded.History[0].FromStateID)
		assert.Equal(t, "review", loaded.History[1].FromStateID)
		assert.Equal(t, "approved", loaded.History[1].ToStateID)
		assert.True(t, second.Equal(loaded.History[1].ExecutedAt))
		require.NotNil(t, loaded.UpdatedAt)
	})

	t.Run("Update rejects stale state", func(t *testing.T) {
		inst := SampleInstance("inst-stale", "def-a")
		require.NoError(t, repo.Create(ctx, inst))

		workflow.ApplyTransition(inst, workflow.Action{ID: "submit", ToState: "review"}, baseTime)
		err := repo.Update(ctx, inst, workflow.Revision{StateID: "review", HistoryLen: 0})
		assert.ErrorIs(t, err, workflow.ErrConcurrentUpdate)

		loaded, err := repo.GetByID(ctx, "inst-stale")
		require.NoError(t, err)
		assert.Equal(t, "draft", loaded.CurrentStateID)
		assert.Empty(t, loaded.History)
		assert.Nil(t, loaded.UpdatedAt)
	})

	t.Run("Update rejects stale copy after a self-loop", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, SampleInstance("inst-loop", "def-a")))
		comment := workflow.Action{ID: "comment", ToState: "draft"}

		first, err := repo.GetByID(ctx, "inst-loop")
		require.NoError(t, err)
		second, err := repo.GetByID(ctx, "inst-loop")
		require.NoError(t, err)

		rev := first.Revision()
		workflow.ApplyTransition(first, comment, baseTime.Add(time.Minute))
		require.NoError(t, repo.Update(ctx, first, rev))

		rev = second.Revision()
		workflow.ApplyTransition(second, comment, baseTime.Add(2*time.Minute))
		err = repo.Update(ctx, second, rev)
		assert.ErrorIs(t, err, workflow.ErrConcurrentUpdate)

		loaded, err := repo.GetByID(ctx, "inst-loop")
		require.NoError(t, err)
		assert.Equal(t, "draft", loaded.CurrentStateID)
		require.Len(t, loaded.History, 1)
		assert.True(t, baseTime.Add(time.Minute).Equal(loaded.History[0].ExecutedAt))

		rev = loaded.Revision()
		workflow.ApplyTransition(loaded, comment, baseTime.Add(3*time.Minute))
		require.NoError(t, repo.Update(ctx, loaded, rev))

		reloaded, err := repo.GetByID(ctx, "inst-loop")
		require.NoError(t, err)
		assert.Len(t, reloaded.History, 2)
	})

	t.Run("Update Non-Existent", func(t *testing.T) {
		ghost := SampleInstance("inst-ghost", "def-a")
		err := repo.Update(ctx, ghost, ghost.Revision())
		assert.ErrorIs(t, err, workflow.ErrNotFound)
	})

	t.Run("ListByDefinition filters", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, SampleInstance("inst-by-1", "def-by")))
		require.NoError(t, repo.Create(ctx, SampleInstance("inst-by-2", "def-by")))
		require.NoError(t, repo.Create(ctx, SampleInstance("inst-other", "def-other")))

		insts, err := repo.ListByDefinition(ctx, "def-by")
		require.NoError(t, err)
		require.Len(t, insts, 2)
		assert.Equal(t, "inst-by-1", insts[0].ID)
		assert.Equal(t, "inst-by-2", insts[1].ID)

		none, err := repo.ListByDefinition(ctx, "def-none")
		require.NoError(t, err)
		assert.Empty(t, none)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		var ids []string
		for _, i := range all {
			ids = append(ids, i.ID)
		}
		assert.Contains(t, ids, "inst-other")
	})

	t.Run("CountByState", func(t *testing.T) {
		a := SampleInstance("inst-count-1", "def-count")
		b := SampleInstance("inst-count-2", "def-count")
		require.NoError(t, repo.Create(ctx, a))
		require.NoError(t, repo.Create(ctx, b))
		rev := b.Revision()
		workflow.ApplyTransition(b, workflow.Action{ID: "submit", ToState: "review"}, baseTime)
		require.NoError(t, repo.Update(ctx, b, rev))

		counts, err := repo.CountByState(ctx)
		require.NoError(t, err)

		got := map[string]int{}
		for _, c := range counts {
			if c.DefinitionID == "def-count" {
				got[c.StateID] = c.Count
			}
		}
		assert.Equal(t, map[string]int{"draft": 1, "review": 1}, got)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Create(ctx, SampleInstance("inst-delete", "def-a")))

		deleted, err := repo.Delete(ctx, "inst-delete")
		require.NoError(t, err)
		assert.True(t, deleted)

		loaded, err := repo.GetByID(ctx, "inst-delete")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		deleted, err = repo.Delete(ctx, "inst-delete")
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("Concurrent creates on distinct ids", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 20)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				errs <- repo.Create(ctx, SampleInstance(fmt.Sprintf("inst-par-%d", n), "def-par"))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		insts, err := repo.ListByDefinition(ctx, "def-par")
		require.NoError(t, err)
		assert.Len(t, insts, 20)
	})
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
