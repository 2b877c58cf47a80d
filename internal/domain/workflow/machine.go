package workflow

import "context"

// StateMachine tracks the current stage of one report and validates actions
type StateMachine interface {
	// Stage returns the current stage
	Stage() Stage

	// CanFire returns true if the action is permitted from the current stage
	CanFire(action Action) bool

	// Fire applies the action, moving to the configured target stage if allowed
	Fire(ctx context.Context, action Action) error

	// PermittedActions returns all actions that can be fired from the current stage
	PermittedActions() []Action
}
