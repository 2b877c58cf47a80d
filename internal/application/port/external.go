package port

import (
	"context"

	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/event"
	"github.com/garyjia/ohsms/internal/domain/workflow"
)

// Authorizer resolves the caller and answers capability checks
type Authorizer interface {
	// CurrentUser returns the authenticated user or nil
	CurrentUser(ctx context.Context) *entity.User

	// HasPermission reports whether user may exercise perm. A nil user has none.
	HasPermission(user *entity.User, perm workflow.Permission) bool
}

// RiskSource lists risk register rows owned by another system
type RiskSource interface {
	ListRisks(ctx context.Context) ([]entity.RiskRecord, error)
}

// FormSubmissionSource lists filled forms owned by another system
type FormSubmissionSource interface {
	ListSubmissions(ctx context.Context) ([]entity.FormSubmission, error)
}

// EventPublisher forwards domain events to an external broker
type EventPublisher interface {
	Publish(ctx context.Context, evt *event.Event) error
	Close() error
}
