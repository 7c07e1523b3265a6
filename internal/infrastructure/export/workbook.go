// Package export renders instance history as spreadsheet documents.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/workflow-engine/internal/application/port"
	"github.com/garyjia/workflow-engine/internal/domain/workflow"
)

const (
	historySheet = "History"
	summarySheet = "Summary"

	// ContentTypeXLSX is the MIME type of the produced workbook
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var historyHeader = []interface{}{"#", "Action ID", "Action", "From State", "To State", "Executed At (UTC)"}

// WorkbookExporter writes an instance's audit log as an XLSX workbook with a
// summary sheet and one history row per executed transition.
type WorkbookExporter struct{}

// NewWorkbookExporter creates a workbook exporter
func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{}
}

// ContentType implements port.HistoryExporter
func (e *WorkbookExporter) ContentType() string {
	return ContentTypeXLSX
}

// Export implements port.HistoryExporter. Names are resolved against def;
// ids that no longer resolve are written as-is.
func (e *WorkbookExporter) Export(w io.Writer, def *workflow.Definition, inst *workflow.Instance) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHistory(f, def, inst, bold); err != nil {
		return err
	}
	if err := writeSummary(f, def, inst, bold); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHistory(f *excelize.File, def *workflow.Definition, inst *workflow.Instance, headerStyle int) error {
	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(historySheet, "A1", "F1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, entry := range inst.History {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			i + 1,
			entry.ActionID,
			actionName(def, entry.ActionID),
			stateName(def, entry.FromStateID),
			stateName(def, entry.ToStateID),
			entry.ExecutedAt.UTC().Format(time.RFC3339),
		}
		if err := f.SetSheetRow(historySheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write history row %d: %w", i+1, err)
		}
	}

	if err := f.SetColWidth(historySheet, "B", "F", 22); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, def *workflow.Definition, inst *workflow.Instance, headerStyle int) error {
	rows := [][]interface{}{
		{"Instance ID", inst.ID},
		{"Definition", def.Name},
		{"Definition ID", def.ID},
		{"Current State", stateName(def, inst.CurrentStateID)},
		{"Transitions", len(inst.History)},
		{"Created At (UTC)", inst.CreatedAt.UTC().Format(time.RFC3339)},
	}
	if inst.UpdatedAt != nil {
		rows = append(rows, []interface{}{"Updated At (UTC)", inst.UpdatedAt.UTC().Format(time.RFC3339)})
	}

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	last, err := excelize.CoordinatesToCellName(1, len(rows))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style summary: %w", err)
	}
	return f.SetColWidth(summarySheet, "A", "B", 28)
}

func stateName(def *workflow.Definition, id string) string {
	if s, ok := def.FindState(id); ok {
		return s.Name
	}
	return id
}

func actionName(def *workflow.Definition, id string) string {
	if a, ok := def.FindAction(id); ok {
		return a.Name
	}
	return id
}

var _ port.HistoryExporter = (*WorkbookExporter)(nil)
