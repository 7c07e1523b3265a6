package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/application/port/porttest"
	"github.com/garyjia/workflow-engine/internal/infrastructure/persistence/memory"
)

type recordingGauge struct {
	mu        sync.Mutex
	snapshots [][]port.StateCount
}

func (g *recordingGauge) SetStateCounts(counts []port.StateCount) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots = append(g.snapshots, counts)
}

func (g *recordingGauge) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.snapshots)
}

type failingCounter struct {
	port.InstanceRepository
}

func (failingCounter) CountByState(ctx context.Context) ([]port.StateCount, error) {
	return nil, errors.New("store unavailable")
}

type stubWorker struct {
	name     string
	startErr error
	order    *[]string
}

func (w *stubWorker) Start(ctx context.Context) error { return w.startErr }
func (w *stubWorker) Stop() error {
	*w.order = append(*w.order, w.name)
	return nil
}
func (w *stubWorker) Name() string { return w.name }

func TestStatsWorker_PublishesSnapshots(t *testing.T) {
	defs := memory.NewDefinitionStore()
	store := memory.NewInstanceStore()
	ctx := context.Background()
	require.NoError(t, defs.Create(ctx, porttest.SampleDefinition("def-1")))
	require.NoError(t, store.Create(ctx, porttest.SampleInstance("inst-1", "def-1")))
	require.NoError(t, store.Create(ctx, porttest.SampleInstance("inst-2", "def-1")))

	gauge := &recordingGauge{}
	w := NewStatsWorker(10*time.Millisecond, defs, store, gauge, zap.NewNop())

	require.NoError(t, w.Start(ctx))
	assert.Error(t, w.Start(ctx), "second start must fail")

	assert.Eventually(t, func() bool { return gauge.count() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, w.Stop())

	gauge.mu.Lock()
	first := gauge.snapshots[0]
	gauge.mu.Unlock()
	assert.Equal(t, []port.StateCount{{DefinitionID: "def-1", StateID: "draft", Count: 2}}, first)
	assert.NoError(t, w.LastError())
}

func TestStatsWorker_RecordsErrors(t *testing.T) {
	gauge := &recordingGauge{}
	w := NewStatsWorker(time.Hour, memory.NewDefinitionStore(), failingCounter{}, gauge, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())

	assert.EqualError(t, w.LastError(), "store unavailable")
	assert.Zero(t, gauge.count())
	assert.Zero(t, w.Refreshes())
}

func TestStatsWorker_SkipsDeletedDefinitions(t *testing.T) {
	defs := memory.NewDefinitionStore()
	store := memory.NewInstanceStore()
	ctx := context.Background()
	require.NoError(t, defs.Create(ctx, porttest.SampleDefinition("def-live")))
	require.NoError(t, defs.Create(ctx, porttest.SampleDefinition("def-gone")))
	require.NoError(t, store.Create(ctx, porttest.SampleInstance("inst-live", "def-live")))
	require.NoError(t, store.Create(ctx, porttest.SampleInstance("inst-orphan", "def-gone")))
	_, err := defs.Delete(ctx, "def-gone")
	require.NoError(t, err)

	gauge := &recordingGauge{}
	w := NewStatsWorker(time.Hour, defs, store, gauge, zap.NewNop())
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Stop())

	require.Equal(t, 1, gauge.count())
	assert.Equal(t, []port.StateCount{{DefinitionID: "def-live", StateID: "draft", Count: 1}}, gauge.snapshots[0])
}

func TestStatsWorker_RejectsNonPositiveInterval(t *testing.T) {
	w := NewStatsWorker(0, memory.NewDefinitionStore(), memory.NewInstanceStore(), &recordingGauge{}, zap.NewNop())
	assert.Error(t, w.Start(context.Background()))
}

func TestWorkerManager_Lifecycle(t *testing.T) {
	logger, _ := zap.NewDevelopment()
	m := NewWorkerManager(logger)
	var stopped []string

	m.Register(&stubWorker{name: "first", order: &stopped})
	m.Register(&stubWorker{name: "broken", startErr: errors.New("boom"), order: &stopped})
	m.Register(&stubWorker{name: "last", order: &stopped})
	assert.Equal(t, 3, m.GetWorkerCount())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"last", "broken", "first"}, stopped)

	// Stopping again is a no-op
	assert.NoError(t, m.StopAll())
}
