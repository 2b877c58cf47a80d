package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/workflow"
)

const reportColumns = `
	id, kind, reporter_name, contact, location, hazard_note, description,
	secrecy_reason, follow_up_key, stage_index,
	received_at, received_by, assigned_at, forwarded_at, work_started_at, done_at, closed_at,
	assigned_dept, coordinator, executor, escalation_level,
	history, stage_notes, version, created_at, updated_at`

// ReportRepository implements port.ReportRepository on SQLite. History and
// stage notes are stored as JSON columns so a report is always written whole.
type ReportRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *DB, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a report by id, nil when missing
func (r *ReportRepository) Get(ctx context.Context, id string) (*entity.Report, error) {
	row := r.db.executor(ctx).QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get report", zap.String("report_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// GetByFollowUpKey retrieves a report by its confidential follow-up key
func (r *ReportRepository) GetByFollowUpKey(ctx context.Context, key string) (*entity.Report, error) {
	row := r.db.executor(ctx).QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE follow_up_key = ?`, key)
	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report by follow-up key: %w", err)
	}
	return report, nil
}

// List returns every report, newest first
func (r *ReportRepository) List(ctx context.Context) ([]*entity.Report, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, id DESC`)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*entity.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

// IDsForYear returns the ids created in a calendar year
func (r *ReportRepository) IDsForYear(ctx context.Context, year int) ([]string, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx, `SELECT id FROM reports WHERE year = ?`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to list report ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Put inserts a new report (Version 0) or replaces a stored one whose version
// still matches. Either way report.Version is incremented on success.
func (r *ReportRepository) Put(ctx context.Context, report *entity.Report) error {
	history, err := json.Marshal(report.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	notes, err := json.Marshal(report.StageNotes)
	if err != nil {
		return fmt.Errorf("failed to encode stage notes: %w", err)
	}

	exec := r.db.executor(ctx)
	if report.Version == 0 {
		_, err = exec.ExecContext(ctx, `
			INSERT INTO reports (`+reportColumns+`, year)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.ID, string(report.Kind), report.ReporterName, report.Contact, report.Location,
			report.HazardNote, report.Description, report.SecrecyReason, nullString(report.FollowUpKey),
			int(report.StageIndex),
			report.ReceivedAt, report.ReceivedBy, report.AssignedAt, report.ForwardedAt,
			report.WorkStartedAt, report.DoneAt, report.ClosedAt,
			report.AssignedDept, report.Coordinator, report.Executor, report.EscalationLevel,
			string(history), string(notes), int64(1), report.CreatedAt, report.UpdatedAt,
			report.CreatedAt.Year(),
		)
		if isConstraintViolation(err) {
			return fmt.Errorf("report %s already exists: %w", report.ID, port.ErrConcurrentUpdate)
		}
		if err != nil {
			r.logger.Error("Failed to insert report", zap.String("report_id", report.ID), zap.Error(err))
			return fmt.Errorf("failed to insert report: %w", err)
		}
		report.Version = 1
		return nil
	}

	result, err := exec.ExecContext(ctx, `
		UPDATE reports SET
			stage_index = ?, received_at = ?, received_by = ?, assigned_at = ?,
			forwarded_at = ?, work_started_at = ?, done_at = ?, closed_at = ?,
			assigned_dept = ?, coordinator = ?, executor = ?, escalation_level = ?,
			history = ?, stage_notes = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		int(report.StageIndex), report.ReceivedAt, report.ReceivedBy, report.AssignedAt,
		report.ForwardedAt, report.WorkStartedAt, report.DoneAt, report.ClosedAt,
		report.AssignedDept, report.Coordinator, report.Executor, report.EscalationLevel,
		string(history), string(notes), report.UpdatedAt,
		report.ID, report.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update report", zap.String("report_id", report.ID), zap.Error(err))
		return fmt.Errorf("failed to update report: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("report %s at version %d: %w", report.ID, report.Version, port.ErrConcurrentUpdate)
	}

	report.Version++
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReport(row rowScanner) (*entity.Report, error) {
	var (
		report                              entity.Report
		kind                                string
		followUpKey                         sql.NullString
		stage                               int
		receivedAt, assignedAt, forwardedAt sql.NullTime
		workStartedAt, doneAt, closedAt     sql.NullTime
		history, notes                      string
	)

	err := row.Scan(
		&report.ID, &kind, &report.ReporterName, &report.Contact, &report.Location,
		&report.HazardNote, &report.Description, &report.SecrecyReason, &followUpKey, &stage,
		&receivedAt, &report.ReceivedBy, &assignedAt, &forwardedAt, &workStartedAt, &doneAt, &closedAt,
		&report.AssignedDept, &report.Coordinator, &report.Executor, &report.EscalationLevel,
		&history, &notes, &report.Version, &report.CreatedAt, &report.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	report.Kind = entity.ReportKind(kind)
	report.FollowUpKey = followUpKey.String
	report.StageIndex = workflow.Stage(stage)
	report.ReceivedAt = timePtr(receivedAt)
	report.AssignedAt = timePtr(assignedAt)
	report.ForwardedAt = timePtr(forwardedAt)
	report.WorkStartedAt = timePtr(workStartedAt)
	report.DoneAt = timePtr(doneAt)
	report.ClosedAt = timePtr(closedAt)

	if err := json.Unmarshal([]byte(history), &report.History); err != nil {
		return nil, fmt.Errorf("failed to decode history of %s: %w", report.ID, err)
	}
	if err := json.Unmarshal([]byte(notes), &report.StageNotes); err != nil {
		return nil, fmt.Errorf("failed to decode stage notes of %s: %w", report.ID, err)
	}
	return &report, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

var _ port.ReportRepository = (*ReportRepository)(nil)
