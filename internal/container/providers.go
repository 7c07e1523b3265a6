package container

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/workflow-engine/internal/application/dispatcher"
	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/application/service"
	"github.com/garyjia/workflow-engine/internal/application/workflow"
	"github.com/garyjia/workflow-engine/internal/infrastructure/export"
	infraLark "github.com/garyjia/workflow-engine/internal/infrastructure/external/lark"
	"github.com/garyjia/workflow-engine/internal/infrastructure/lock"
	"github.com/garyjia/workflow-engine/internal/infrastructure/metrics"
	"github.com/garyjia/workflow-engine/internal/infrastructure/persistence/memory"
	"github.com/garyjia/workflow-engine/internal/infrastructure/persistence/repository"
	"github.com/garyjia/workflow-engine/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/workflow-engine/internal/infrastructure/worker"
	"github.com/garyjia/workflow-engine/pkg/database"
)

// StoreBundle holds the workflow store and its lifecycle hooks.
type StoreBundle struct {
	Definitions port.DefinitionRepository
	Instances   port.InstanceRepository
	TxManager   port.TransactionManager
	Health      port.HealthChecker

	// Database is nil for the memory driver
	Database *database.DB
}

// LockBundle holds the instance locker and, for the redis driver, its client.
type LockBundle struct {
	Locker port.InstanceLocker
	Health port.HealthChecker
	Redis  *redis.Client
}

// ProvideStore creates the configured workflow store. The sqlite driver runs
// the embedded schema migrations before returning.
func ProvideStore(cfg *StorageConfig, logger *zap.Logger) (*StoreBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if cfg.Driver == StorageMemory {
		tx := memory.TxManager{}
		return &StoreBundle{
			Definitions: memory.NewDefinitionStore(),
			Instances:   memory.NewInstanceStore(),
			TxManager:   tx,
			Health:      tx,
		}, nil
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(sqlite.Migrations, sqlite.MigrationsDir); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	txManager := sqlite.NewDB(db.DB, logger)

	return &StoreBundle{
		Definitions: repository.NewDefinitionRepository(txManager, logger),
		Instances:   repository.NewInstanceRepository(txManager, logger),
		TxManager:   txManager,
		Health:      txManager,
		Database:    db,
	}, nil
}

// ProvideLocker creates the configured instance locker.
func ProvideLocker(cfg *LockConfig, logger *zap.Logger) (*LockBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("lock config is required")
	}

	if cfg.Driver == LockLocal {
		return &LockBundle{Locker: lock.NewLocal()}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	locker := lock.NewRedis(client, cfg.Redis.Prefix)

	logger.Info("Using Redis instance locker", zap.String("addr", cfg.Redis.Addr))
	return &LockBundle{Locker: locker, Health: locker, Redis: client}, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(dispatcher.WithLogger(&zapLoggerAdapter{logger: logger})), nil
}

// ProvideMetrics creates the metrics collectors and subscribes them to events.
// Returns nil when metrics are disabled.
func ProvideMetrics(cfg *MetricsConfig, disp dispatcher.Dispatcher) *metrics.Metrics {
	if !cfg.Enabled {
		return nil
	}
	m := metrics.New()
	m.Subscribe(disp)
	return m
}

// ProvideNotifier creates the Lark completion notifier and subscribes it.
// Returns nil when notifications are disabled.
func ProvideNotifier(cfg *LarkConfig, disp dispatcher.Dispatcher, logger *zap.Logger) *infraLark.Notifier {
	if !cfg.Enabled {
		return nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		ChatID:    cfg.ChatID,
		BaseURL:   cfg.BaseURL,
	}, logger)
	notifier := infraLark.NewNotifier(client, cfg.ChatID, logger)
	notifier.Subscribe(disp)

	logger.Info("Lark completion notifications enabled", zap.String("chat_id", cfg.ChatID))
	return notifier
}

// WorkflowDeps holds dependencies for the engine and service.
type WorkflowDeps struct {
	Store      *StoreBundle
	Locker     port.InstanceLocker
	LockConfig *LockConfig
	Dispatcher dispatcher.Dispatcher
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// ProvideWorkflow creates the workflow engine and the service on top of it.
func ProvideWorkflow(deps *WorkflowDeps) (workflow.WorkflowEngine, service.WorkflowService, error) {
	if deps == nil || deps.Store == nil {
		return nil, nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Locker == nil {
		return nil, nil, fmt.Errorf("instance locker is required")
	}

	logger := &zapLoggerAdapter{logger: deps.Logger}
	opts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(logger),
		workflow.WithLockTTL(deps.LockConfig.TTL),
	}
	if deps.Metrics != nil {
		opts = append(opts, workflow.WithMetrics(deps.Metrics))
	}

	engine := workflow.NewEngine(
		deps.Store.Definitions,
		deps.Store.Instances,
		deps.Store.TxManager,
		deps.Locker,
		opts...,
	)

	svc := service.NewWorkflowService(
		deps.Store.Definitions,
		deps.Store.Instances,
		engine,
		export.NewWorkbookExporter(),
		deps.Dispatcher,
		logger,
	)

	return engine, svc, nil
}

// ProvideWorkers creates the background workers. They are not started.
func ProvideWorkers(cfg *MetricsConfig, definitions port.DefinitionRepository, instances port.InstanceRepository, m *metrics.Metrics, logger *zap.Logger) *worker.WorkerManager {
	manager := worker.NewWorkerManager(logger)
	if m != nil {
		manager.Register(worker.NewStatsWorker(cfg.RefreshInterval, definitions, instances, m, logger))
	}
	return manager
}
