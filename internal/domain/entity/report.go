package entity

import (
	"time"

	"github.com/garyjia/ohsms/internal/domain/workflow"
)

// ReportKind identifies how a report was submitted
type ReportKind string

const (
	KindNormal       ReportKind = "NORMAL"
	KindConfidential ReportKind = "CONFIDENTIAL"
	KindUrgent       ReportKind = "URGENT"
)

// IsValid returns true if the kind is one of the defined constants
func (k ReportKind) IsValid() bool {
	switch k {
	case KindNormal, KindConfidential, KindUrgent:
		return true
	default:
		return false
	}
}

// Report is one incident case tracked through the workflow
type Report struct {
	ID              string         `json:"id" bson:"_id"`
	Kind            ReportKind     `json:"kind" bson:"kind"`
	ReporterName    string         `json:"reporter_name" bson:"reporter_name"`
	Contact         string         `json:"contact" bson:"contact"`
	Location        string         `json:"location" bson:"location"`
	HazardNote      string         `json:"hazard_note,omitempty" bson:"hazard_note,omitempty"`
	Description     string         `json:"description" bson:"description"`
	SecrecyReason   string         `json:"secrecy_reason,omitempty" bson:"secrecy_reason,omitempty"`
	FollowUpKey     string         `json:"-" bson:"follow_up_key,omitempty"`
	StageIndex      workflow.Stage `json:"stage_index" bson:"stage_index"`
	CreatedAt       time.Time      `json:"created_at" bson:"created_at"`
	ReceivedAt      *time.Time     `json:"received_at,omitempty" bson:"received_at,omitempty"`
	ReceivedBy      string         `json:"received_by,omitempty" bson:"received_by,omitempty"`
	AssignedAt      *time.Time     `json:"assigned_at,omitempty" bson:"assigned_at,omitempty"`
	ForwardedAt     *time.Time     `json:"forwarded_at,omitempty" bson:"forwarded_at,omitempty"`
	WorkStartedAt   *time.Time     `json:"work_started_at,omitempty" bson:"work_started_at,omitempty"`
	DoneAt          *time.Time     `json:"done_at,omitempty" bson:"done_at,omitempty"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty" bson:"closed_at,omitempty"`
	AssignedDept    string         `json:"assigned_dept,omitempty" bson:"assigned_dept,omitempty"`
	Coordinator     string         `json:"coordinator,omitempty" bson:"coordinator,omitempty"`
	Executor        string         `json:"executor,omitempty" bson:"executor,omitempty"`
	History         []HistoryEntry `json:"history" bson:"history"`
	EscalationLevel int            `json:"escalation_level" bson:"escalation_level"`
	StageNotes      StageNotes     `json:"stage_notes" bson:"stage_notes"`
	Version         int64          `json:"version" bson:"version"`
	UpdatedAt       time.Time      `json:"updated_at" bson:"updated_at"`
}

// HistoryEntry is one row of a report's append-only activity trail
type HistoryEntry struct {
	Action string    `json:"action" bson:"action"`
	Note   string    `json:"note" bson:"note"`
	Actor  string    `json:"actor,omitempty" bson:"actor,omitempty"`
	At     time.Time `json:"at" bson:"at"`
}

// IsClosed returns true once the report has reached the terminal stage
func (r *Report) IsClosed() bool {
	return r.StageIndex.IsTerminal()
}

// StageLabel returns the label of the current stage
func (r *Report) StageLabel() string {
	return r.StageIndex.Label()
}

// AppendHistory adds a row to the history trail
func (r *Report) AppendHistory(action, note, actor string, at time.Time) {
	r.History = append(r.History, HistoryEntry{
		Action: action,
		Note:   note,
		Actor:  actor,
		At:     at,
	})
}

// RecentHistory returns up to n of the latest history entries, oldest first
func (r *Report) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || len(r.History) == 0 {
		return nil
	}
	if len(r.History) <= n {
		return r.History
	}
	return r.History[len(r.History)-n:]
}

// Clone returns a deep copy so that callers can mutate without touching the original
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	c := *r
	c.History = append([]HistoryEntry(nil), r.History...)
	c.StageNotes = r.StageNotes.Clone()
	c.ReceivedAt = cloneTime(r.ReceivedAt)
	c.AssignedAt = cloneTime(r.AssignedAt)
	c.ForwardedAt = cloneTime(r.ForwardedAt)
	c.WorkStartedAt = cloneTime(r.WorkStartedAt)
	c.DoneAt = cloneTime(r.DoneAt)
	c.ClosedAt = cloneTime(r.ClosedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SetOnce assigns t to *field only if it is still unset. Returns true if written.
func SetOnce(field **time.Time, t time.Time) bool {
	if *field != nil {
		return false
	}
	v := t
	*field = &v
	return true
}
