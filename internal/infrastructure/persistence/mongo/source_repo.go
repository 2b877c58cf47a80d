package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
)

// SourceRepository reads risk and form records written by neighbouring systems
type SourceRepository struct {
	risks *mongo.Collection
	forms *mongo.Collection
}

// NewSourceRepository creates a reader over the external source collections
func NewSourceRepository(store *Store) *SourceRepository {
	return &SourceRepository{
		risks: store.db.Collection(risksCollection),
		forms: store.db.Collection(formsCollection),
	}
}

func (r *SourceRepository) ListRisks(ctx context.Context) ([]entity.RiskRecord, error) {
	cursor, err := r.risks.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list risks: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID           string `bson:"_id"`
		MainCategory string `bson:"main_category"`
		SubCategory  string `bson:"sub_category"`
		CreatedAt    string `bson:"created_at"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	risks := make([]entity.RiskRecord, 0, len(docs))
	for _, d := range docs {
		risks = append(risks, entity.RiskRecord{ID: d.ID, MainCategory: d.MainCategory, SubCategory: d.SubCategory, CreatedAt: d.CreatedAt})
	}
	return risks, nil
}

func (r *SourceRepository) ListSubmissions(ctx context.Context) ([]entity.FormSubmission, error) {
	cursor, err := r.forms.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list form submissions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID          string `bson:"_id"`
		FormName    string `bson:"form_name"`
		FilledBy    string `bson:"filled_by"`
		SubmittedAt string `bson:"submitted_at"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	forms := make([]entity.FormSubmission, 0, len(docs))
	for _, d := range docs {
		forms = append(forms, entity.FormSubmission{ID: d.ID, FormName: d.FormName, FilledBy: d.FilledBy, SubmittedAt: d.SubmittedAt})
	}
	return forms, nil
}

var (
	_ port.RiskSource           = (*SourceRepository)(nil)
	_ port.FormSubmissionSource = (*SourceRepository)(nil)
)
