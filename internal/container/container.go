package container

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/application/dispatcher"
	"github.com/garyjia/workflow-engine/internal/application/service"
	"github.com/garyjia/workflow-engine/internal/application/workflow"
	infraLark "github.com/garyjia/workflow-engine/internal/infrastructure/external/lark"
	"github.com/garyjia/workflow-engine/internal/infrastructure/metrics"
	"github.com/garyjia/workflow-engine/internal/infrastructure/worker"
)

// Container manages all application dependencies and lifecycle.
// Initialization is ordered and teardown runs in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure
	store    *StoreBundle
	locks    *LockBundle
	metrics  *metrics.Metrics
	notifier *infraLark.Notifier

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine
	service    service.WorkflowService

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Store
// 2. Instance locker
// 3. Event dispatcher and its subscribers (metrics, Lark)
// 4. Workflow engine and service
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	store, err := ProvideStore(&c.config.Storage, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	c.store = store
	c.logger.Info("Store initialized", zap.String("driver", c.config.Storage.Driver))

	locks, err := ProvideLocker(&c.config.Lock, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize locker: %w", err)
	}
	c.locks = locks
	c.logger.Info("Instance locker initialized", zap.String("driver", c.config.Lock.Driver))

	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.dispatcher = disp
	c.metrics = ProvideMetrics(&c.config.Metrics, disp)
	c.notifier = ProvideNotifier(&c.config.Lark, disp, c.logger)
	c.logger.Info("Dispatcher initialized")

	engine, svc, err := ProvideWorkflow(&WorkflowDeps{
		Store:      c.store,
		Locker:     c.locks.Locker,
		LockConfig: &c.config.Lock,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize workflow: %w", err)
	}
	c.workflow = engine
	c.service = svc
	c.logger.Info("Workflow engine initialized")

	c.workers = ProvideWorkers(&c.config.Metrics, c.store.Definitions, c.store.Instances, c.metrics, c.logger)
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.logger.Info("Workers initialized and started")

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Cancel context to signal all goroutines
	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	// Waits for in-flight async handlers such as Lark notifications
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.locks != nil && c.locks.Redis != nil {
		if err := c.locks.Redis.Close(); err != nil {
			c.logger.Error("Failed to close redis client", zap.Error(err))
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		} else {
			c.logger.Info("Redis client closed")
		}
	}

	if c.store != nil && c.store.Database != nil {
		if err := c.store.Database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}
	set := func(name string, h ComponentHealth) {
		status.Components[name] = h
		if !h.Healthy {
			status.Overall = false
		}
	}

	if c.store != nil {
		if err := c.store.Health.Ping(ctx); err != nil {
			set("store", ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)})
		} else {
			set("store", ComponentHealth{Healthy: true, Message: c.config.Storage.Driver})
		}
	} else {
		set("store", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	if c.locks != nil {
		switch {
		case c.locks.Health == nil:
			set("lock", ComponentHealth{Healthy: true, Message: c.config.Lock.Driver})
		case c.locks.Health.Ping(ctx) != nil:
			set("lock", ComponentHealth{Healthy: false, Message: "redis unreachable"})
		default:
			set("lock", ComponentHealth{Healthy: true, Message: c.config.Lock.Driver})
		}
	} else {
		set("lock", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	if c.dispatcher != nil {
		set("dispatcher", ComponentHealth{Healthy: true})
	} else {
		set("dispatcher", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	if c.workers != nil {
		set("workers", ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		})
	} else {
		set("workers", ComponentHealth{Healthy: false, Message: "not initialized"})
	}

	return status
}

// HealthReport adapts Health for the HTTP health endpoint.
func (c *Container) HealthReport(ctx context.Context) (bool, interface{}) {
	status := c.Health(ctx)
	return status.Overall, status.Components
}

// Getters for accessing container components

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// WorkflowService returns the workflow service.
func (c *Container) WorkflowService() service.WorkflowService {
	return c.service
}

// MetricsHandler returns the Prometheus handler, or nil when metrics are disabled.
func (c *Container) MetricsHandler() http.Handler {
	if c.metrics == nil {
		return nil
	}
	return c.metrics.Handler()
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// NewLoggerAdapter exposes zap through the narrow Logger interfaces used by
// the application and HTTP layers.
func NewLoggerAdapter(logger *zap.Logger) service.Logger {
	return &zapLoggerAdapter{logger: logger}
}

// zapLoggerAdapter adapts zap.Logger to the key-value Logger interfaces.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
