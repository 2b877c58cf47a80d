package event

// Type identifies the type of domain event
type Type string

const (
	TypeReportSubmitted  Type = "report.submitted"
	TypeStageAdvanced    Type = "report.stage_advanced"
	TypeReportEscalated  Type = "report.escalated"
	TypeNoteSaved        Type = "report.note_saved"
	TypeActionRejected   Type = "report.action_rejected"
	TypeAssignmentUpdate Type = "report.assignment_updated"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeReportSubmitted,
		TypeStageAdvanced,
		TypeReportEscalated,
		TypeNoteSaved,
		TypeActionRejected,
		TypeAssignmentUpdate:
		return true
	default:
		return false
	}
}
