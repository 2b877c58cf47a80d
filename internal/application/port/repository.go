package port

import (
	"context"

	"github.com/garyjia/ohsms/internal/domain/entity"
)

// ReportRepository defines persistence operations for Report
type ReportRepository interface {
	// Get returns the report or nil, nil when the id does not resolve
	Get(ctx context.Context, id string) (*entity.Report, error)

	// List returns every report, newest first
	List(ctx context.Context) ([]*entity.Report, error)

	// IDsForYear returns the ids created in the given calendar year
	IDsForYear(ctx context.Context, year int) ([]string, error)

	// GetByFollowUpKey resolves a confidential report by its follow-up key
	GetByFollowUpKey(ctx context.Context, key string) (*entity.Report, error)

	// Put inserts or replaces the whole report. Replacing requires the stored
	// version to equal report.Version; on success report.Version is incremented.
	Put(ctx context.Context, report *entity.Report) error
}

// AuditLogRepository defines persistence operations for AuditLogEntry
type AuditLogRepository interface {
	Create(ctx context.Context, entry *entity.AuditLogEntry) error
	ListByReport(ctx context.Context, reportID string, limit int) ([]*entity.AuditLogEntry, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
