package workflow

import "fmt"

// Stage is a 0-based position in the incident report workflow
type Stage int

const (
	StageSubmitted Stage = iota
	StageReceived
	StageReferred
	StageReferralReceived
	StageForwarded
	StageInProgress
	StageCompleted
	StageClosed
)

// StageCount is the number of workflow stages
const StageCount = 8

// TerminalStage is the stage a report reaches when it is closed
const TerminalStage = StageClosed

var stageLabels = [StageCount]string{
	"Submitted",
	"Received by safety officer",
	"Referred to department",
	"Referral received",
	"Forwarded to field executor",
	"In progress",
	"Corrective action completed",
	"Closed",
}

// StageInfo describes a stage for listing purposes
type StageInfo struct {
	Index        Stage  `json:"index"`
	Label        string `json:"label"`
	DirectAction Action `json:"direct_action,omitempty"`
	Terminal     bool   `json:"terminal"`
}

// Stages returns the ordered stage list
func Stages() []StageInfo {
	out := make([]StageInfo, 0, StageCount)
	for i := Stage(0); i < StageCount; i++ {
		action := directActions[i]
		out = append(out, StageInfo{
			Index:        i,
			Label:        stageLabels[i],
			DirectAction: action,
			Terminal:     i == TerminalStage,
		})
	}
	return out
}

// StageFor validates an index and returns it as a Stage
func StageFor(index int) (Stage, error) {
	s := Stage(index)
	if !s.IsValid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidStage, index)
	}
	return s, nil
}

// IsValid returns true if the stage is within [0, StageCount)
func (s Stage) IsValid() bool {
	return s >= 0 && s < StageCount
}

// IsTerminal returns true if the stage is the closed stage
func (s Stage) IsTerminal() bool {
	return s == TerminalStage
}

// Label returns the human readable stage name, or an empty string if out of range
func (s Stage) Label() string {
	if !s.IsValid() {
		return ""
	}
	return stageLabels[s]
}

// String returns the string representation of the stage
func (s Stage) String() string {
	if !s.IsValid() {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return fmt.Sprintf("%d:%s", int(s), stageLabels[s])
}

// Stages 0, 3 and 5 are only reached as a side effect of a neighbouring action.
var directActions = map[Stage]Action{
	StageReceived:  ActionReceive,
	StageReferred:  ActionAssign,
	StageForwarded: ActionForward,
	StageCompleted: ActionDone,
	StageClosed:    ActionClose,
}

// DirectAction returns the action that executes the given stage, if any
func DirectAction(s Stage) (Action, bool, error) {
	if !s.IsValid() {
		return "", false, fmt.Errorf("%w: %d", ErrInvalidStage, int(s))
	}
	action, ok := directActions[s]
	return action, ok, nil
}
