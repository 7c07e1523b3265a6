package port

import (
	"context"
	"io"

	"github.com/garyjia/workflow-engine/internal/domain/workflow"
)

// CompletionNotice describes an instance that reached a final state
type CompletionNotice struct {
	InstanceID     string
	DefinitionID   string
	DefinitionName string
	FinalStateName string
	Transitions    int
}

// Notifier delivers workflow notices to an external channel
type Notifier interface {
	NotifyCompleted(ctx context.Context, notice CompletionNotice) error
}

// HistoryExporter renders an instance's audit history as a document
type HistoryExporter interface {
	// ContentType is the MIME type of the produced document
	ContentType() string
	Export(w io.Writer, def *workflow.Definition, inst *workflow.Instance) error
}
