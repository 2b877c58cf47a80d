package entity

import "github.com/garyjia/ohsms/internal/domain/workflow"

// ActivityEntry is one row of the dashboard activity feed
type ActivityEntry struct {
	Kind      string `json:"kind"`
	SourceID  string `json:"source_id"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// RiskRecord is a risk register row read from an external source. Timestamps
// are kept as raw strings since the source does not guarantee a format.
type RiskRecord struct {
	ID           string `json:"id"`
	MainCategory string `json:"main_category"`
	SubCategory  string `json:"sub_category"`
	CreatedAt    string `json:"created_at"`
}

// FormSubmission is a filled checklist or form read from an external source
type FormSubmission struct {
	ID          string `json:"id"`
	FormName    string `json:"form_name"`
	FilledBy    string `json:"filled_by"`
	SubmittedAt string `json:"submitted_at"`
}

// ReportSummary holds the dashboard counters
type ReportSummary struct {
	Total     int                `json:"total"`
	Open      int                `json:"open"`
	Closed    int                `json:"closed"`
	Escalated int                `json:"escalated"`
	ByKind    map[ReportKind]int `json:"by_kind"`
	ByStage   map[string]int     `json:"by_stage"`
}

// Summarize counts reports by state, kind and stage. Every stage label is
// present in ByStage, including those with no reports.
func Summarize(reports []*Report) *ReportSummary {
	summary := &ReportSummary{
		ByKind:  make(map[ReportKind]int),
		ByStage: make(map[string]int),
	}
	for _, info := range workflow.Stages() {
		summary.ByStage[info.Label] = 0
	}
	for _, r := range reports {
		summary.Total++
		if r.IsClosed() {
			summary.Closed++
		} else {
			summary.Open++
		}
		if r.EscalationLevel > 0 {
			summary.Escalated++
		}
		summary.ByKind[r.Kind]++
		summary.ByStage[r.StageLabel()]++
	}
	return summary
}
