package workflow

// escalationTargets is ordered from the lowest to the highest authority.
var escalationTargets = []string{
	"Section manager",
	"Department manager",
	"Safety committee",
	"Executive management",
}

// EscalationTargets returns a copy of the ordered escalation target labels
func EscalationTargets() []string {
	return append([]string(nil), escalationTargets...)
}

// EscalationTarget returns the label for an escalation level (1-based).
// Levels past the end of the list stay on the last label; level 0 has no target.
func EscalationTarget(level int) string {
	if level <= 0 {
		return ""
	}
	if level > len(escalationTargets) {
		level = len(escalationTargets)
	}
	return escalationTargets[level-1]
}
