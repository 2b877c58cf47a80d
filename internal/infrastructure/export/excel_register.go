package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
)

const registerSheet = "Register"

var registerHeaders = []string{
	"Report ID", "Kind", "Stage", "Reporter", "Location", "Description",
	"Department", "Coordinator", "Executor", "Escalation level",
	"Created", "Received", "Forwarded", "Completed", "Closed",
}

// ExcelRegister renders the report register as an .xlsx workbook
type ExcelRegister struct {
	logger *zap.Logger
}

// NewExcelRegister creates a new register exporter
func NewExcelRegister(logger *zap.Logger) *ExcelRegister {
	return &ExcelRegister{logger: logger}
}

func (e *ExcelRegister) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func (e *ExcelRegister) FileExtension() string {
	return ".xlsx"
}

// Export writes one row per report below a bold header row
func (e *ExcelRegister) Export(ctx context.Context, reports []*entity.Report, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), registerSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := make([]interface{}, len(registerHeaders))
	for i, h := range registerHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(registerSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(registerHeaders))
	if err := f.SetCellStyle(registerSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range reports {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{
			r.ID,
			string(r.Kind),
			r.StageLabel(),
			r.ReporterName,
			r.Location,
			r.Description,
			r.AssignedDept,
			r.Coordinator,
			r.Executor,
			r.EscalationLevel,
			formatTime(&r.CreatedAt),
			formatTime(r.ReceivedAt),
			formatTime(r.ForwardedAt),
			formatTime(r.DoneAt),
			formatTime(r.ClosedAt),
		}
		if err := f.SetSheetRow(registerSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", r.ID, err)
		}
	}

	if err := f.SetColWidth(registerSheet, "F", "F", 50); err != nil {
		e.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.AutoFilter(registerSheet, "A1:"+lastCol+"1", nil); err != nil {
		e.logger.Warn("Failed to set auto filter", zap.Error(err))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Report register exported", zap.Int("rows", len(reports)))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04")
}

var _ port.ReportExporter = (*ExcelRegister)(nil)
