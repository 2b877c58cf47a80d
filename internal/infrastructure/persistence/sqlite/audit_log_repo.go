package sqlite

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
)

// AuditLogRepository implements port.AuditLogRepository
type AuditLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *DB, logger *zap.Logger) *AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a row. Replayed events (same event id) are ignored.
func (r *AuditLogRepository) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	result, err := r.db.executor(ctx).ExecContext(ctx, `
		INSERT INTO audit_log (
			event_id, report_id, actor, action, outcome, from_stage, to_stage, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		entry.EventID, entry.ReportID, entry.Actor, entry.Action, entry.Outcome,
		entry.FromStage, entry.ToStage, entry.Detail, entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create audit log entry", zap.String("report_id", entry.ReportID), zap.Error(err))
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

// ListByReport returns the newest rows of a report first
func (r *AuditLogRepository) ListByReport(ctx context.Context, reportID string, limit int) ([]*entity.AuditLogEntry, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx, `
		SELECT id, event_id, report_id, actor, action, outcome, from_stage, to_stage, detail, created_at
		FROM audit_log
		WHERE report_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, reportID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer rows.Close()

	entries := []*entity.AuditLogEntry{}
	for rows.Next() {
		var e entity.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.ReportID, &e.Actor, &e.Action, &e.Outcome,
			&e.FromStage, &e.ToStage, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

var _ port.AuditLogRepository = (*AuditLogRepository)(nil)
