package workflow

import "strings"

// Action represents a named operation that can be applied to a report
type Action string

const (
	ActionReceive  Action = "RECEIVE"
	ActionAssign   Action = "ASSIGN"
	ActionForward  Action = "FORWARD"
	ActionDone     Action = "DONE"
	ActionClose    Action = "CLOSE"
	ActionEscalate Action = "ESCALATE"
)

// Permission is a capability string checked against the current user
type Permission string

const (
	PermissionReceive  Permission = "receive_report"
	PermissionAssign   Permission = "assign_report"
	PermissionAccept   Permission = "accept_assignment"
	PermissionComplete Permission = "complete_report"
	PermissionClose    Permission = "close_report"
	PermissionEscalate Permission = "escalate_report"
	PermissionAnnotate Permission = "annotate_report"
	PermissionView     Permission = "view_reports"
)

type actionSpec struct {
	target     Stage
	advances   bool
	label      string
	permission Permission
}

// Forward targets InProgress: handing over to the field executor and starting
// work are recorded as one transition.
var actionSpecs = map[Action]actionSpec{
	ActionReceive:  {target: StageReceived, advances: true, label: "Receive report", permission: PermissionReceive},
	ActionAssign:   {target: StageReferred, advances: true, label: "Refer to department", permission: PermissionAssign},
	ActionForward:  {target: StageInProgress, advances: true, label: "Forward to field executor", permission: PermissionAccept},
	ActionDone:     {target: StageCompleted, advances: true, label: "Corrective action completed", permission: PermissionComplete},
	ActionClose:    {target: StageClosed, advances: true, label: "Close case", permission: PermissionClose},
	ActionEscalate: {label: "Escalate report", permission: PermissionEscalate},
}

// StageActions lists the actions that move a report through the stages
var StageActions = []Action{ActionReceive, ActionAssign, ActionForward, ActionDone, ActionClose}

// String returns the string representation of the action
func (a Action) String() string {
	return string(a)
}

// IsValid returns true if the action is known
func (a Action) IsValid() bool {
	_, ok := actionSpecs[a]
	return ok
}

// Target returns the stage the action advances to. ok is false for actions
// that never change the stage (Escalate).
func (a Action) Target() (Stage, bool) {
	spec, exists := actionSpecs[a]
	if !exists || !spec.advances {
		return 0, false
	}
	return spec.target, true
}

// Label returns the text recorded in the report history
func (a Action) Label() string {
	return actionSpecs[a].label
}

// Permission returns the capability required to run the action
func (a Action) Permission() Permission {
	return actionSpecs[a].permission
}

// ParseAction converts a lower or upper case name to an Action
func ParseAction(name string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(name)))
	return a, a.IsValid()
}
