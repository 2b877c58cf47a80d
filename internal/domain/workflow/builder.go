package workflow

import (
	"context"
	"fmt"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a stage configuration for the given stage
	Configure(stage Stage) StageConfiguration

	// Build creates a new state machine instance with the given initial stage
	Build(initial Stage) StateMachine
}

// StageConfiguration configures transitions out of a specific stage
type StageConfiguration interface {
	// Permit allows an action to move to the target stage
	Permit(action Action, to Stage) StageConfiguration

	// PermitIf allows an action to move to the target stage if the guard passes
	PermitIf(action Action, to Stage, guard GuardFunc) StageConfiguration
}

// transition represents a stage transition with optional guard
type transition struct {
	to    Stage
	guard GuardFunc
}

// stageConfig implements StageConfiguration
type stageConfig struct {
	from        Stage
	transitions map[Action][]transition
}

// stateMachineBuilder implements StateMachineBuilder
type stateMachineBuilder struct {
	configurations map[Stage]*stageConfig
}

// stateMachine implements StateMachine
type stateMachine struct {
	current        Stage
	configurations map[Stage]*stageConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[Stage]*stageConfig),
	}
}

// Configure returns a stage configuration for the given stage
func (b *stateMachineBuilder) Configure(stage Stage) StageConfiguration {
	if !stage.IsValid() {
		panic(fmt.Sprintf("invalid stage: %d", int(stage)))
	}

	config, exists := b.configurations[stage]
	if !exists {
		config = &stageConfig{
			from:        stage,
			transitions: make(map[Action][]transition),
		}
		b.configurations[stage] = config
	}

	return config
}

// Build creates a new state machine instance with the given initial stage
func (b *stateMachineBuilder) Build(initial Stage) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial stage: %d", int(initial)))
	}

	// Machines built from the same builder must not share transition slices
	configsCopy := make(map[Stage]*stageConfig, len(b.configurations))
	for stage, config := range b.configurations {
		transitionsCopy := make(map[Action][]transition, len(config.transitions))
		for action, transitions := range config.transitions {
			transitionsCopy[action] = append([]transition{}, transitions...)
		}
		configsCopy[stage] = &stageConfig{
			from:        stage,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configsCopy,
	}
}

// Permit allows an action to move to the target stage
func (c *stageConfig) Permit(action Action, to Stage) StageConfiguration {
	return c.PermitIf(action, to, nil)
}

// PermitIf allows an action to move to the target stage if the guard passes.
// A target behind the configured stage is rejected: stages never go backwards.
func (c *stageConfig) PermitIf(action Action, to Stage, guard GuardFunc) StageConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target stage: %d", int(to)))
	}
	if to < c.from {
		panic(fmt.Sprintf("backward transition %s from %d to %d", action, int(c.from), int(to)))
	}

	c.transitions[action] = append(c.transitions[action], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// Stage returns the current stage
func (m *stateMachine) Stage() Stage {
	return m.current
}

// CanFire returns true if the action is configured for the current stage.
// Guards are not evaluated here.
func (m *stateMachine) CanFire(action Action) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}

	transitions, exists := config.transitions[action]
	return exists && len(transitions) > 0
}

// Fire attempts to execute the action, moving to the new stage if allowed
func (m *stateMachine) Fire(ctx context.Context, action Action) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot fire %s from stage %d (no configuration)", ErrInvalidTransition, action, int(m.current))
	}

	transitions, exists := config.transitions[action]
	if !exists || len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from stage %d", ErrInvalidTransition, action, int(m.current))
	}

	// First transition whose guard passes wins
	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from stage %d", ErrGuardFailed, action, int(m.current))
}

// PermittedActions returns all actions configured for the current stage
func (m *stateMachine) PermittedActions() []Action {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Action{}
	}

	actions := make([]Action, 0, len(config.transitions))
	for action := range config.transitions {
		actions = append(actions, action)
	}

	return actions
}
