package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/application/port"
)

// StateGauge receives periodic snapshots of instance counts
type StateGauge interface {
	SetStateCounts(counts []port.StateCount)
}

// StatsWorker polls the instance store and publishes per-state counts.
// Instances whose definition was deleted are left out, matching the
// instance listing.
type StatsWorker struct {
	interval    time.Duration
	definitions port.DefinitionRepository
	instances   port.InstanceRepository
	gauge       StateGauge
	logger      *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	refreshes int
	lastError error
}

// NewStatsWorker creates a stats worker refreshing every interval
func NewStatsWorker(interval time.Duration, definitions port.DefinitionRepository, instances port.InstanceRepository, gauge StateGauge, logger *zap.Logger) *StatsWorker {
	return &StatsWorker{
		interval:    interval,
		definitions: definitions,
		instances:   instances,
		gauge:       gauge,
		logger:      logger,
	}
}

// Start refreshes once immediately, then on every tick
func (w *StatsWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("stats worker already running")
	}
	if w.interval <= 0 {
		w.mu.Unlock()
		return fmt.Errorf("stats worker interval must be positive, got %s", w.interval)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("StatsWorker started", zap.Duration("interval", w.interval))

	w.refresh(loopCtx)
	go w.loop(loopCtx)
	return nil
}

// Stop cancels the loop and waits for it to exit
func (w *StatsWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("StatsWorker stopped", zap.Int("refreshes", w.Refreshes()))
	return nil
}

// Name returns the worker name for identification
func (w *StatsWorker) Name() string {
	return "StatsWorker"
}

// Refreshes returns how many snapshots were published
func (w *StatsWorker) Refreshes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refreshes
}

// LastError returns the error of the most recent refresh, if any
func (w *StatsWorker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}

func (w *StatsWorker) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *StatsWorker) refresh(ctx context.Context) {
	counts, err := w.liveCounts(ctx)

	w.mu.Lock()
	w.lastError = err
	if err == nil {
		w.refreshes++
	}
	w.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error("Failed to refresh instance statistics", zap.Error(err))
		}
		return
	}
	w.gauge.SetStateCounts(counts)
}

func (w *StatsWorker) liveCounts(ctx context.Context) ([]port.StateCount, error) {
	counts, err := w.instances.CountByState(ctx)
	if err != nil {
		return nil, err
	}

	defs, err := w.definitions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	live := make(map[string]bool, len(defs))
	for _, def := range defs {
		live[def.ID] = true
	}

	kept := make([]port.StateCount, 0, len(counts))
	for _, c := range counts {
		if live[c.DefinitionID] {
			kept = append(kept, c)
		}
	}
	return kept, nil
}
