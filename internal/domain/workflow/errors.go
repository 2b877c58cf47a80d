package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when an action is not permitted from the current stage
	ErrInvalidTransition = errors.New("invalid stage transition")

	// ErrInvalidStage is returned when a stage index is out of range
	ErrInvalidStage = errors.New("invalid stage")

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = errors.New("guard condition failed")
)
