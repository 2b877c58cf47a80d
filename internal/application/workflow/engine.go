package workflow

import (
	"context"

	"github.com/garyjia/ohsms/internal/domain/entity"
	domainwf "github.com/garyjia/ohsms/internal/domain/workflow"
)

// Assignment carries the department and actors set before a report is referred
type Assignment struct {
	Department  string `json:"department"`
	Coordinator string `json:"coordinator"`
	Executor    string `json:"executor"`
}

// ReportEngine drives reports through the workflow stages.
//
// Every action returns the updated report. On a closed report the stage
// actions still append a history row and return the report together with
// ErrAlreadyClosed.
type ReportEngine interface {
	Receive(ctx context.Context, reportID, note string) (*entity.Report, error)
	Assign(ctx context.Context, reportID, note string) (*entity.Report, error)
	Forward(ctx context.Context, reportID, note string) (*entity.Report, error)
	Done(ctx context.Context, reportID, note string) (*entity.Report, error)
	Close(ctx context.Context, reportID, note string) (*entity.Report, error)
	Escalate(ctx context.Context, reportID, note string) (*entity.Report, error)

	// Apply runs any named action
	Apply(ctx context.Context, reportID string, action domainwf.Action, note string) (*entity.Report, error)

	// UpdateAssignment sets the department, coordinator and executor fields
	UpdateAssignment(ctx context.Context, reportID string, assignment Assignment) (*entity.Report, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// MetricsRecorder counts engine outcomes
type MetricsRecorder interface {
	ObserveAction(action string, outcome string)
}
