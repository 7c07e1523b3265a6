package workflow

import (
	"context"
	"time"

	domainwf "github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// WorkflowEngine drives instances through their definitions. It is the only
// component that mutates an instance.
type WorkflowEngine interface {
	// Start creates an instance of definitionID sitting in its initial state
	Start(ctx context.Context, definitionID string) (*domainwf.Instance, error)

	// Execute fires actionID on instanceID and returns the updated instance.
	// Calls on the same instance are serialized.
	Execute(ctx context.Context, instanceID, actionID string) (*domainwf.Instance, error)

	// AvailableActions lists the actions that would currently pass validation
	AvailableActions(ctx context.Context, instanceID string) ([]domainwf.Action, error)
}

// MetricsRecorder receives execution outcomes
type MetricsRecorder interface {
	ObserveExecution(outcome string, d time.Duration)
	RecordRejection(reason string)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopRecorder struct{}

func (nopRecorder) ObserveExecution(string, time.Duration) {}
func (nopRecorder) RecordRejection(string)                 {}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
