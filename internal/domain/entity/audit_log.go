package entity

import "time"

// AuditLogEntry is a row of the system wide audit log. Every applied or rejected
// action on a report is recorded here in addition to the report's own history.
type AuditLogEntry struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"event_id"`
	ReportID  string    `json:"report_id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	FromStage int       `json:"from_stage"`
	ToStage   int       `json:"to_stage"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
