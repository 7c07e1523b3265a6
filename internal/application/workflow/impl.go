package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/workflow-engine/internal/application/dispatcher"
	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/domain/event"
	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

const defaultLockTTL = 30 * time.Second

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	definitions port.DefinitionRepository
	instances   port.InstanceRepository
	txManager   port.TransactionManager
	locker      port.InstanceLocker
	dispatcher  dispatcher.Dispatcher
	recorder    MetricsRecorder
	logger      Logger

	lockTTL time.Duration
	now     func() time.Time
	newID   func() string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithMetrics sets the recorder for execution outcomes
func WithMetrics(r MetricsRecorder) EngineOption {
	return func(e *engineImpl) {
		e.recorder = r
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithLockTTL bounds how long a crashed holder can block an instance
func WithLockTTL(ttl time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.lockTTL = ttl
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithIDGenerator overrides instance id generation
func WithIDGenerator(newID func() string) EngineOption {
	return func(e *engineImpl) {
		e.newID = newID
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	definitions port.DefinitionRepository,
	instances port.InstanceRepository,
	txManager port.TransactionManager,
	locker port.InstanceLocker,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		definitions: definitions,
		instances:   instances,
		txManager:   txManager,
		locker:      locker,
		recorder:    nopRecorder{},
		logger:      nopLogger{},
		lockTTL:     defaultLockTTL,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start creates an instance in the definition's initial state
func (e *engineImpl) Start(ctx context.Context, definitionID string) (*domainwf.Instance, error) {
	def, err := e.definitions.GetByID(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load definition: %w", err)
	}
	if def == nil {
		return nil, domainwf.NewNotFoundError("Workflow definition with ID '%s' not found", definitionID)
	}

	initial, ok := def.InitialState()
	if !ok {
		return nil, domainwf.NewInvalidOperationError("No initial state found in workflow definition '%s'", definitionID)
	}

	inst := &domainwf.Instance{
		ID:             e.newID(),
		DefinitionID:   def.ID,
		CurrentStateID: initial.ID,
		History:        []domainwf.HistoryEntry{},
		CreatedAt:      e.now(),
	}

	if err := e.instances.Create(ctx, inst); err != nil {
		e.logger.Error("Failed to create instance", "definition_id", definitionID, "error", err)
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	e.logger.Info("Instance started", "instance_id", inst.ID, "definition_id", def.ID, "state", initial.ID)
	e.emit(ctx, event.NewEvent(event.TypeInstanceStarted, def.ID, inst.ID, map[string]interface{}{
		event.KeyDefinitionName: def.Name,
		event.KeyStateName:      initial.Name,
	}))

	return inst, nil
}

// Execute runs the read-validate-write cycle under a per-instance lock. The
// store update is a compare-and-swap on the revision read inside the lock, so a
// replica without a shared locker, or a holder whose lock expired, still cannot
// overwrite a newer transition.
func (e *engineImpl) Execute(ctx context.Context, instanceID, actionID string) (*domainwf.Instance, error) {
	started := time.Now()

	inst, def, entry, err := e.execute(ctx, instanceID, actionID)
	e.observe(started, err)
	if err != nil {
		return nil, err
	}

	e.logger.Info("Action executed",
		"instance_id", inst.ID,
		"action_id", entry.ActionID,
		"from_state", entry.FromStateID,
		"to_state", entry.ToStateID,
	)

	transitioned := event.NewEvent(event.TypeInstanceTransitioned, def.ID, inst.ID, map[string]interface{}{
		event.KeyActionID:      entry.ActionID,
		event.KeyFromStateID:   entry.FromStateID,
		event.KeyToStateID:     entry.ToStateID,
		event.KeyHistoryLength: len(inst.History),
	})
	e.emit(ctx, transitioned)

	if target, ok := def.FindState(entry.ToStateID); ok && target.IsFinal {
		e.emit(ctx, event.NewEventWithCorrelation(event.TypeInstanceCompleted, def.ID, inst.ID, map[string]interface{}{
			event.KeyDefinitionName: def.Name,
			event.KeyStateName:      target.Name,
			event.KeyHistoryLength:  len(inst.History),
		}, transitioned.CorrelationID))
	}

	return inst, nil
}

func (e *engineImpl) execute(ctx context.Context, instanceID, actionID string) (*domainwf.Instance, *domainwf.Definition, domainwf.HistoryEntry, error) {
	var (
		inst  *domainwf.Instance
		def   *domainwf.Definition
		entry domainwf.HistoryEntry
	)

	unlock, err := e.locker.Lock(ctx, "instance:"+instanceID, e.lockTTL)
	if err != nil {
		return nil, nil, entry, fmt.Errorf("failed to lock instance %s: %w", instanceID, err)
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			e.logger.Error("Failed to release instance lock", "instance_id", instanceID, "error", err)
		}
	}()

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		inst, def, err = e.load(txCtx, instanceID)
		if err != nil {
			return err
		}

		expected := inst.Revision()
		entry, err = domainwf.NewMachine(def, inst, domainwf.WithClock(e.now)).Fire(actionID)
		if err != nil {
			return err
		}

		if err := e.instances.Update(txCtx, inst, expected); err != nil {
			if errors.Is(err, domainwf.ErrConcurrentUpdate) {
				return domainwf.NewInvalidOperationError("Workflow instance '%s' was modified concurrently", instanceID)
			}
			if domainwf.KindOf(err) != domainwf.KindInternal {
				return err
			}
			return fmt.Errorf("failed to update instance: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, entry, err
	}

	return inst, def, entry, nil
}

// AvailableActions lists the actions that can fire from the current state
func (e *engineImpl) AvailableActions(ctx context.Context, instanceID string) ([]domainwf.Action, error) {
	inst, def, err := e.load(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	return domainwf.NewMachine(def, inst).PermittedActions(), nil
}

// load resolves an instance and the definition it references
func (e *engineImpl) load(ctx context.Context, instanceID string) (*domainwf.Instance, *domainwf.Definition, error) {
	inst, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load instance: %w", err)
	}
	if inst == nil {
		return nil, nil, domainwf.NewNotFoundError("Workflow instance with ID '%s' not found", instanceID)
	}

	def, err := e.definitions.GetByID(ctx, inst.DefinitionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load definition: %w", err)
	}
	if def == nil {
		return nil, nil, domainwf.NewNotFoundError("Workflow definition with ID '%s' not found", inst.DefinitionID)
	}

	return inst, def, nil
}

func (e *engineImpl) observe(started time.Time, err error) {
	outcome := "ok"
	if err != nil {
		kind := domainwf.KindOf(err)
		if kind == domainwf.KindInternal {
			outcome = "error"
		} else {
			outcome = "rejected"
			e.recorder.RecordRejection(kind.String())
		}
	}
	e.recorder.ObserveExecution(outcome, time.Since(started))
}

func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, evt)
	}
}
