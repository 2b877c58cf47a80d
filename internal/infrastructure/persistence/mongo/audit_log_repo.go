package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
)

type auditDocument struct {
	EventID   string    `bson:"event_id"`
	ReportID  string    `bson:"report_id"`
	Actor     string    `bson:"actor"`
	Action    string    `bson:"action"`
	Outcome   string    `bson:"outcome"`
	FromStage int       `bson:"from_stage"`
	ToStage   int       `bson:"to_stage"`
	Detail    string    `bson:"detail"`
	CreatedAt time.Time `bson:"created_at"`
}

// AuditLogRepository implements port.AuditLogRepository. The event id is the
// natural key so replayed events are dropped by the unique index.
type AuditLogRepository struct {
	coll *mongo.Collection
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(store *Store) *AuditLogRepository {
	return &AuditLogRepository{coll: store.db.Collection(auditCollection)}
}

func (r *AuditLogRepository) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	_, err := r.coll.InsertOne(ctx, auditDocument{
		EventID:   entry.EventID,
		ReportID:  entry.ReportID,
		Actor:     entry.Actor,
		Action:    entry.Action,
		Outcome:   entry.Outcome,
		FromStage: entry.FromStage,
		ToStage:   entry.ToStage,
		Detail:    entry.Detail,
		CreatedAt: entry.CreatedAt,
	})
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}
	return nil
}

func (r *AuditLogRepository) ListByReport(ctx context.Context, reportID string, limit int) ([]*entity.AuditLogEntry, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{"report_id": reportID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []auditDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode audit log: %w", err)
	}

	entries := make([]*entity.AuditLogEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, &entity.AuditLogEntry{
			EventID:   doc.EventID,
			ReportID:  doc.ReportID,
			Actor:     doc.Actor,
			Action:    doc.Action,
			Outcome:   doc.Outcome,
			FromStage: doc.FromStage,
			ToStage:   doc.ToStage,
			Detail:    doc.Detail,
			CreatedAt: doc.CreatedAt,
		})
	}
	return entries, nil
}

var _ port.AuditLogRepository = (*AuditLogRepository)(nil)
