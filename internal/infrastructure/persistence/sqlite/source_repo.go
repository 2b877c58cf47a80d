package sqlite

import (
	"context"
	"fmt"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
)

// SourceRepository reads the risk and form tables maintained by neighbouring
// systems. Timestamps are returned exactly as stored.
type SourceRepository struct {
	db *DB
}

// NewSourceRepository creates a reader over the external source tables
func NewSourceRepository(db *DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// ListRisks implements port.RiskSource
func (r *SourceRepository) ListRisks(ctx context.Context) ([]entity.RiskRecord, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx,
		`SELECT id, main_category, sub_category, created_at FROM risk_records`)
	if err != nil {
		return nil, fmt.Errorf("failed to list risks: %w", err)
	}
	defer rows.Close()

	var risks []entity.RiskRecord
	for rows.Next() {
		var rec entity.RiskRecord
		if err := rows.Scan(&rec.ID, &rec.MainCategory, &rec.SubCategory, &rec.CreatedAt); err != nil {
			return nil, err
		}
		risks = append(risks, rec)
	}
	return risks, rows.Err()
}

// ListSubmissions implements port.FormSubmissionSource
func (r *SourceRepository) ListSubmissions(ctx context.Context) ([]entity.FormSubmission, error) {
	rows, err := r.db.executor(ctx).QueryContext(ctx,
		`SELECT id, form_name, filled_by, submitted_at FROM form_submissions`)
	if err != nil {
		return nil, fmt.Errorf("failed to list form submissions: %w", err)
	}
	defer rows.Close()

	var forms []entity.FormSubmission
	for rows.Next() {
		var f entity.FormSubmission
		if err := rows.Scan(&f.ID, &f.FormName, &f.FilledBy, &f.SubmittedAt); err != nil {
			return nil, err
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

var (
	_ port.RiskSource           = (*SourceRepository)(nil)
	_ port.FormSubmissionSource = (*SourceRepository)(nil)
)
