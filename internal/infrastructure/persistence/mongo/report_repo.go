package mongo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/workflow"
)

// reportDocument is the stored shape of a report. Stage notes are keyed by
// the decimal stage index and the creation year is kept for id sequencing.
type reportDocument struct {
	ID              string                `bson:"_id"`
	Year            int                   `bson:"year"`
	Kind            string                `bson:"kind"`
	ReporterName    string                `bson:"reporter_name"`
	Contact         string                `bson:"contact"`
	Location        string                `bson:"location"`
	HazardNote      string                `bson:"hazard_note,omitempty"`
	Description     string                `bson:"description"`
	SecrecyReason   string                `bson:"secrecy_reason,omitempty"`
	FollowUpKey     string                `bson:"follow_up_key,omitempty"`
	StageIndex      int                   `bson:"stage_index"`
	ReceivedAt      *time.Time            `bson:"received_at,omitempty"`
	ReceivedBy      string                `bson:"received_by,omitempty"`
	AssignedAt      *time.Time            `bson:"assigned_at,omitempty"`
	ForwardedAt     *time.Time            `bson:"forwarded_at,omitempty"`
	WorkStartedAt   *time.Time            `bson:"work_started_at,omitempty"`
	DoneAt          *time.Time            `bson:"done_at,omitempty"`
	ClosedAt        *time.Time            `bson:"closed_at,omitempty"`
	AssignedDept    string                `bson:"assigned_dept,omitempty"`
	Coordinator     string                `bson:"coordinator,omitempty"`
	Executor        string                `bson:"executor,omitempty"`
	EscalationLevel int                   `bson:"escalation_level"`
	History         []entity.HistoryEntry `bson:"history"`
	StageNotes      map[string]string     `bson:"stage_notes"`
	Version         int64                 `bson:"version"`
	CreatedAt       time.Time             `bson:"created_at"`
	UpdatedAt       time.Time             `bson:"updated_at"`
}

func toDocument(r *entity.Report, version int64) reportDocument {
	notes := make(map[string]string, len(r.StageNotes))
	for stage, text := range r.StageNotes {
		notes[strconv.Itoa(int(stage))] = text
	}
	history := r.History
	if history == nil {
		history = []entity.HistoryEntry{}
	}
	return reportDocument{
		ID:              r.ID,
		Year:            r.CreatedAt.Year(),
		Kind:            string(r.Kind),
		ReporterName:    r.ReporterName,
		Contact:         r.Contact,
		Location:        r.Location,
		HazardNote:      r.HazardNote,
		Description:     r.Description,
		SecrecyReason:   r.SecrecyReason,
		FollowUpKey:     r.FollowUpKey,
		StageIndex:      int(r.StageIndex),
		ReceivedAt:      r.ReceivedAt,
		ReceivedBy:      r.ReceivedBy,
		AssignedAt:      r.AssignedAt,
		ForwardedAt:     r.ForwardedAt,
		WorkStartedAt:   r.WorkStartedAt,
		DoneAt:          r.DoneAt,
		ClosedAt:        r.ClosedAt,
		AssignedDept:    r.AssignedDept,
		Coordinator:     r.Coordinator,
		Executor:        r.Executor,
		EscalationLevel: r.EscalationLevel,
		History:         history,
		StageNotes:      notes,
		Version:         version,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (d *reportDocument) toEntity() (*entity.Report, error) {
	var notes entity.StageNotes
	if len(d.StageNotes) > 0 {
		notes = make(entity.StageNotes, len(d.StageNotes))
		for key, text := range d.StageNotes {
			idx, err := strconv.Atoi(key)
			if err != nil {
				return nil, fmt.Errorf("report %s: invalid stage note key %q", d.ID, key)
			}
			notes[workflow.Stage(idx)] = text
		}
	}
	return &entity.Report{
		ID:              d.ID,
		Kind:            entity.ReportKind(d.Kind),
		ReporterName:    d.ReporterName,
		Contact:         d.Contact,
		Location:        d.Location,
		HazardNote:      d.HazardNote,
		Description:     d.Description,
		SecrecyReason:   d.SecrecyReason,
		FollowUpKey:     d.FollowUpKey,
		StageIndex:      workflow.Stage(d.StageIndex),
		CreatedAt:       d.CreatedAt,
		ReceivedAt:      d.ReceivedAt,
		ReceivedBy:      d.ReceivedBy,
		AssignedAt:      d.AssignedAt,
		ForwardedAt:     d.ForwardedAt,
		WorkStartedAt:   d.WorkStartedAt,
		DoneAt:          d.DoneAt,
		ClosedAt:        d.ClosedAt,
		AssignedDept:    d.AssignedDept,
		Coordinator:     d.Coordinator,
		Executor:        d.Executor,
		History:         d.History,
		EscalationLevel: d.EscalationLevel,
		StageNotes:      notes,
		Version:         d.Version,
		UpdatedAt:       d.UpdatedAt,
	}, nil
}

// ReportRepository implements port.ReportRepository on a MongoDB collection
type ReportRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewReportRepository creates a new report repository
func NewReportRepository(store *Store, logger *zap.Logger) *ReportRepository {
	return &ReportRepository{
		coll:   store.db.Collection(reportsCollection),
		logger: logger,
	}
}

func (r *ReportRepository) findOne(ctx context.Context, filter bson.M) (*entity.Report, error) {
	var doc reportDocument
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.toEntity()
}

// Get retrieves a report by id, nil when missing
func (r *ReportRepository) Get(ctx context.Context, id string) (*entity.Report, error) {
	report, err := r.findOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.Error("Failed to get report", zap.String("report_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return report, nil
}

// GetByFollowUpKey retrieves a report by its confidential follow-up key
func (r *ReportRepository) GetByFollowUpKey(ctx context.Context, key string) (*entity.Report, error) {
	report, err := r.findOne(ctx, bson.M{"follow_up_key": key})
	if err != nil {
		return nil, fmt.Errorf("failed to get report by follow-up key: %w", err)
	}
	return report, nil
}

// List returns every report, newest first
func (r *ReportRepository) List(ctx context.Context) ([]*entity.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		r.logger.Error("Failed to list reports", zap.Error(err))
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reports: %w", err)
	}

	reports := make([]*entity.Report, 0, len(docs))
	for i := range docs {
		report, err := docs[i].toEntity()
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// IDsForYear returns the ids of reports created in the given year
func (r *ReportRepository) IDsForYear(ctx context.Context, year int) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.coll.Find(ctx, bson.M{"year": year}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list report ids: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cursor.Err()
}

// Put inserts a new report (Version 0) or replaces the stored document when
// its version still matches.
func (r *ReportRepository) Put(ctx context.Context, report *entity.Report) error {
	next := report.Version + 1
	doc := toDocument(report, next)

	if report.Version == 0 {
		if _, err := r.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("report %s: %w", report.ID, port.ErrConcurrentUpdate)
			}
			r.logger.Error("Failed to insert report", zap.String("report_id", report.ID), zap.Error(err))
			return fmt.Errorf("failed to insert report: %w", err)
		}
		report.Version = next
		return nil
	}

	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": report.ID, "version": report.Version}, doc)
	if err != nil {
		r.logger.Error("Failed to replace report", zap.String("report_id", report.ID), zap.Error(err))
		return fmt.Errorf("failed to update report: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("report %s version %d: %w", report.ID, report.Version, port.ErrConcurrentUpdate)
	}

	report.Version = next
	return nil
}

var _ port.ReportRepository = (*ReportRepository)(nil)
