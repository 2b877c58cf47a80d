package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/ohsms/internal/application/dispatcher"
	"github.com/garyjia/ohsms/internal/application/port"
	"github.com/garyjia/ohsms/internal/domain/entity"
	"github.com/garyjia/ohsms/internal/domain/event"
)

// Audit log actions for events that do not carry a workflow action
const (
	auditActionSubmit     = "SUBMIT"
	auditActionNote       = "NOTE"
	auditActionAssignment = "UPDATE_ASSIGNMENT"
)

// NewAuditLogSubscriber returns a dispatcher handler that writes one audit
// log row per lifecycle event. Register it under dispatcher.AllEvents.
func NewAuditLogSubscriber(repo port.AuditLogRepository, logger Logger) dispatcher.Handler {
	return func(ctx context.Context, evt *event.Event) error {
		entry, ok := auditEntryFor(evt)
		if !ok {
			return nil
		}
		if err := repo.Create(ctx, entry); err != nil {
			logger.Error("Failed to write audit log", "report_id", evt.ReportID, "event_type", string(evt.Type), "error", err)
			return fmt.Errorf("failed to write audit log: %w", err)
		}
		return nil
	}
}

func auditEntryFor(evt *event.Event) (*entity.AuditLogEntry, bool) {
	entry := &entity.AuditLogEntry{
		EventID:   evt.ID,
		ReportID:  evt.ReportID,
		Actor:     evt.GetPayloadString(event.KeyActor),
		Action:    evt.GetPayloadString(event.KeyAction),
		Outcome:   entity.AuditOutcomeApplied,
		FromStage: int(evt.GetPayloadInt(event.KeyFromStage)),
		ToStage:   int(evt.GetPayloadInt(event.KeyToStage)),
		Detail:    evt.GetPayloadString(event.KeyNote),
		CreatedAt: evt.Timestamp,
	}

	switch evt.Type {
	case event.TypeReportSubmitted:
		entry.Detail = joinDetail(evt.GetPayloadString(event.KeyAction), evt.GetPayloadString(event.KeyKind))
		entry.Action = auditActionSubmit
	case event.TypeStageAdvanced:
	case event.TypeReportEscalated:
		target := fmt.Sprintf("Escalated to %s (level %d)",
			evt.GetPayloadString(event.KeyTarget), evt.GetPayloadInt(event.KeyLevel))
		entry.Detail = joinDetail(target, evt.GetPayloadString(event.KeyNote))
	case event.TypeNoteSaved:
		entry.Action = auditActionNote
		entry.ToStage = int(evt.GetPayloadInt(event.KeyStage))
		entry.FromStage = entry.ToStage
	case event.TypeAssignmentUpdate:
		entry.Action = auditActionAssignment
	case event.TypeActionRejected:
		entry.Outcome = entity.AuditOutcomeRejected
		entry.Detail = evt.GetPayloadString(event.KeyReason)
	default:
		return nil, false
	}
	return entry, true
}

func joinDetail(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " – ")
}
