package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/workflow-engine/internal/application/dispatcher"
	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/application/workflow"
	"github.com/garyjia/workflow-engine/internal/domain/event"
	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// WorkflowService is the use-case surface behind the HTTP API
type WorkflowService interface {
	CreateDefinition(ctx context.Context, req CreateDefinitionRequest) (*domainwf.Definition, error)
	GetDefinition(ctx context.Context, id string) (*domainwf.Definition, error)
	ListDefinitions(ctx context.Context) ([]*domainwf.Definition, error)
	DeleteDefinition(ctx context.Context, id string) error

	StartInstance(ctx context.Context, definitionID string) (*domainwf.Instance, error)
	ExecuteAction(ctx context.Context, instanceID, actionID string) (*domainwf.Instance, error)
	GetInstance(ctx context.Context, id string) (*InstanceView, error)
	ListInstances(ctx context.Context) ([]*InstanceView, error)
	ListInstancesByDefinition(ctx context.Context, definitionID string) ([]*InstanceView, error)
	AvailableActions(ctx context.Context, instanceID string) ([]domainwf.Action, error)

	// ExportHistory writes the instance's audit log in ExportContentType format
	ExportHistory(ctx context.Context, instanceID string, w io.Writer) error
	ExportContentType() string
}

type workflowServiceImpl struct {
	definitions port.DefinitionRepository
	instances   port.InstanceRepository
	engine      workflow.WorkflowEngine
	exporter    port.HistoryExporter
	dispatcher  dispatcher.Dispatcher
	logger      Logger

	now   func() time.Time
	newID func() string
}

// ServiceOption configures the workflow service
type ServiceOption func(*workflowServiceImpl)

// WithClock overrides the time source for definition timestamps
func WithClock(now func() time.Time) ServiceOption {
	return func(s *workflowServiceImpl) {
		s.now = now
	}
}

// WithIDGenerator overrides definition id generation
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *workflowServiceImpl) {
		s.newID = newID
	}
}

// NewWorkflowService creates a new WorkflowService. dispatcher may be nil.
func NewWorkflowService(
	definitions port.DefinitionRepository,
	instances port.InstanceRepository,
	engine workflow.WorkflowEngine,
	exporter port.HistoryExporter,
	dispatcher dispatcher.Dispatcher,
	logger Logger,
	opts ...ServiceOption,
) WorkflowService {
	s := &workflowServiceImpl{
		definitions: definitions,
		instances:   instances,
		engine:      engine,
		exporter:    exporter,
		dispatcher:  dispatcher,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateDefinition validates and stores a definition. Nothing is stored when
// any rule is violated.
func (s *workflowServiceImpl) CreateDefinition(ctx context.Context, req CreateDefinitionRequest) (*domainwf.Definition, error) {
	def := req.ToDefinition()
	if err := domainwf.ValidateDefinition(def); err != nil {
		s.logger.Info("Definition rejected", "name", req.Name, "error", err)
		return nil, err
	}

	def.ID = s.newID()
	def.CreatedAt = s.now()

	if err := s.definitions.Create(ctx, def); err != nil {
		s.logger.Error("Failed to create definition", "name", def.Name, "error", err)
		return nil, fmt.Errorf("failed to create definition: %w", err)
	}

	s.logger.Info("Definition created", "definition_id", def.ID, "name", def.Name,
		"states", len(def.States), "actions", len(def.Actions))
	s.emit(ctx, event.NewEvent(event.TypeDefinitionCreated, def.ID, "", map[string]interface{}{
		event.KeyDefinitionName: def.Name,
	}))

	return def, nil
}

func (s *workflowServiceImpl) GetDefinition(ctx context.Context, id string) (*domainwf.Definition, error) {
	def, err := s.definitions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get definition: %w", err)
	}
	if def == nil {
		return nil, definitionNotFound(id)
	}
	return def, nil
}

func (s *workflowServiceImpl) ListDefinitions(ctx context.Context) ([]*domainwf.Definition, error) {
	defs, err := s.definitions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	return defs, nil
}

// DeleteDefinition removes a definition. Its instances stay in the store but
// disappear from instance listings.
func (s *workflowServiceImpl) DeleteDefinition(ctx context.Context, id string) error {
	deleted, err := s.definitions.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}
	if !deleted {
		return definitionNotFound(id)
	}

	s.logger.Info("Definition deleted", "definition_id", id)
	s.emit(ctx, event.NewEvent(event.TypeDefinitionDeleted, id, "", nil))
	return nil
}

func (s *workflowServiceImpl) StartInstance(ctx context.Context, definitionID string) (*domainwf.Instance, error) {
	return s.engine.Start(ctx, definitionID)
}

func (s *workflowServiceImpl) ExecuteAction(ctx context.Context, instanceID, actionID string) (*domainwf.Instance, error) {
	return s.engine.Execute(ctx, instanceID, actionID)
}

func (s *workflowServiceImpl) AvailableActions(ctx context.Context, instanceID string) ([]domainwf.Action, error) {
	return s.engine.AvailableActions(ctx, instanceID)
}

func (s *workflowServiceImpl) GetInstance(ctx context.Context, id string) (*InstanceView, error) {
	inst, def, err := s.loadInstance(ctx, id)
	if err != nil {
		return nil, err
	}
	return NewInstanceView(inst, def), nil
}

// ListInstances returns every instance whose definition still exists
func (s *workflowServiceImpl) ListInstances(ctx context.Context) ([]*InstanceView, error) {
	instances, err := s.instances.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	defs := make(map[string]*domainwf.Definition)
	views := make([]*InstanceView, 0, len(instances))
	for _, inst := range instances {
		def, seen := defs[inst.DefinitionID]
		if !seen {
			def, err = s.definitions.GetByID(ctx, inst.DefinitionID)
			if err != nil {
				return nil, fmt.Errorf("failed to get definition: %w", err)
			}
			defs[inst.DefinitionID] = def
		}
		if def == nil {
			continue
		}
		views = append(views, NewInstanceView(inst, def))
	}

	return views, nil
}

func (s *workflowServiceImpl) ListInstancesByDefinition(ctx context.Context, definitionID string) ([]*InstanceView, error) {
	def, err := s.GetDefinition(ctx, definitionID)
	if err != nil {
		return nil, err
	}

	instances, err := s.instances.ListByDefinition(ctx, definitionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	views := make([]*InstanceView, 0, len(instances))
	for _, inst := range instances {
		views = append(views, NewInstanceView(inst, def))
	}
	return views, nil
}

func (s *workflowServiceImpl) ExportHistory(ctx context.Context, instanceID string, w io.Writer) error {
	inst, def, err := s.loadInstance(ctx, instanceID)
	if err != nil {
		return err
	}
	if err := s.exporter.Export(w, def, inst); err != nil {
		s.logger.Error("Failed to export history", "instance_id", instanceID, "error", err)
		return fmt.Errorf("failed to export history: %w", err)
	}
	return nil
}

func (s *workflowServiceImpl) ExportContentType() string {
	return s.exporter.ContentType()
}

func (s *workflowServiceImpl) loadInstance(ctx context.Context, id string) (*domainwf.Instance, *domainwf.Definition, error) {
	inst, err := s.instances.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get instance: %w", err)
	}
	if inst == nil {
		return nil, nil, domainwf.NewNotFoundError("Workflow instance with ID '%s' not found", id)
	}

	def, err := s.GetDefinition(ctx, inst.DefinitionID)
	if err != nil {
		return nil, nil, err
	}
	return inst, def, nil
}

func (s *workflowServiceImpl) emit(ctx context.Context, evt *event.Event) {
	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(ctx, evt)
	}
}

func definitionNotFound(id string) error {
	return domainwf.NewNotFoundError("Workflow definition with ID '%s' not found", id)
}
