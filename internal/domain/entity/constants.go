package entity

// Defaults applied to blank submission fields
const (
	DefaultNotSpecified = "Not specified"
	DefaultLocation     = "Not specified"
)

// Placeholders stored in place of a confidential reporter's identity
const (
	RedactedReporter = "Undisclosed"
	RedactedContact  = "Unavailable"
)

// History labels written when a report is created
const (
	HistorySubmittedNormal       = "Report submitted (normal)"
	HistorySubmittedConfidential = "Report submitted (confidential)"
	HistoryUrgentLogged          = "Urgent report logged"
	HistoryAssignmentUpdated     = "Assignment updated"
)

// Activity entry kinds
const (
	ActivityKindReport = "report"
	ActivityKindRisk   = "risk"
	ActivityKindForm   = "form"
)

// Audit log outcomes
const (
	AuditOutcomeApplied  = "APPLIED"
	AuditOutcomeRejected = "REJECTED"
)
