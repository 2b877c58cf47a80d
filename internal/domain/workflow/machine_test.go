package workflow

import (
	"context"
	"errors"
	"testing"
)

func TestStage_IsTerminal(t *testing.T) {
	tests := []struct {
		stage    Stage
		expected bool
	}{
		{StageSubmitted, false},
		{StageReceived, false},
		{StageReferred, false},
		{StageReferralReceived, false},
		{StageForwarded, false},
		{StageInProgress, false},
		{StageCompleted, false},
		{StageClosed, true},
	}

	for _, tt := range tests {
		t.Run(tt.stage.Label(), func(t *testing.T) {
			if got := tt.stage.IsTerminal(); got != tt.expected {
				t.Errorf("Stage.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStageFor(t *testing.T) {
	tests := []struct {
		name    string
		index   int
		wantErr bool
	}{
		{"first stage", 0, false},
		{"terminal stage", 7, false},
		{"negative", -1, true},
		{"past terminal", 8, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := StageFor(tt.index)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStage) {
					t.Errorf("StageFor(%d) error = %v, want %v", tt.index, err, ErrInvalidStage)
				}
				return
			}
			if err != nil {
				t.Fatalf("StageFor(%d) unexpected error: %v", tt.index, err)
			}
			if int(s) != tt.index {
				t.Errorf("StageFor(%d) = %d", tt.index, s)
			}
		})
	}
}

func TestStages_OrderAndLabels(t *testing.T) {
	stages := Stages()
	if len(stages) != StageCount {
		t.Fatalf("Stages() returned %d stages, want %d", len(stages), StageCount)
	}

	want := []string{
		"Submitted",
		"Received by safety officer",
		"Referred to department",
		"Referral received",
		"Forwarded to field executor",
		"In progress",
		"Corrective action completed",
		"Closed",
	}
	for i, s := range stages {
		if int(s.Index) != i {
			t.Errorf("stage %d has index %d", i, s.Index)
		}
		if s.Label != want[i] {
			t.Errorf("stage %d label = %q, want %q", i, s.Label, want[i])
		}
	}
	if !stages[StageCount-1].Terminal {
		t.Error("last stage should be terminal")
	}
}

func TestDirectAction(t *testing.T) {
	tests := []struct {
		stage  Stage
		action Action
		ok     bool
	}{
		{StageSubmitted, "", false},
		{StageReceived, ActionReceive, true},
		{StageReferred, ActionAssign, true},
		{StageReferralReceived, "", false},
		{StageForwarded, ActionForward, true},
		{StageInProgress, "", false},
		{StageCompleted, ActionDone, true},
		{StageClosed, ActionClose, true},
	}

	for _, tt := range tests {
		t.Run(tt.stage.Label(), func(t *testing.T) {
			action, ok, err := DirectAction(tt.stage)
			if err != nil {
				t.Fatalf("DirectAction() unexpected error: %v", err)
			}
			if ok != tt.ok || action != tt.action {
				t.Errorf("DirectAction(%d) = (%q, %v), want (%q, %v)", tt.stage, action, ok, tt.action, tt.ok)
			}
		})
	}

	if _, _, err := DirectAction(Stage(12)); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("DirectAction(12) error = %v, want %v", err, ErrInvalidStage)
	}
}

func TestAction_Target(t *testing.T) {
	tests := []struct {
		action   Action
		target   Stage
		advances bool
	}{
		{ActionReceive, StageReceived, true},
		{ActionAssign, StageReferred, true},
		{ActionForward, StageInProgress, true},
		{ActionDone, StageCompleted, true},
		{ActionClose, StageClosed, true},
		{ActionEscalate, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.action.String(), func(t *testing.T) {
			target, ok := tt.action.Target()
			if ok != tt.advances || target != tt.target {
				t.Errorf("Target() = (%d, %v), want (%d, %v)", target, ok, tt.target, tt.advances)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	if a, ok := ParseAction("forward"); !ok || a != ActionForward {
		t.Errorf("ParseAction(forward) = (%q, %v)", a, ok)
	}
	if _, ok := ParseAction("reopen"); ok {
		t.Error("ParseAction(reopen) should not be valid")
	}
}

func TestEscalationTarget_Clamps(t *testing.T) {
	want := []string{
		"Section manager",
		"Department manager",
		"Safety committee",
		"Executive management",
		"Executive management",
		"Executive management",
	}
	for i, label := range want {
		if got := EscalationTarget(i + 1); got != label {
			t.Errorf("EscalationTarget(%d) = %q, want %q", i+1, got, label)
		}
	}
	if got := EscalationTarget(0); got != "" {
		t.Errorf("EscalationTarget(0) = %q, want empty", got)
	}
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StageSubmitted)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	if config2 := builder.Configure(StageSubmitted); config != config2 {
		t.Error("Configure() should return same config for same stage")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidStage(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid stage")
		}
	}()

	builder.Configure(Stage(9))
}

func TestBuilder_BuildPanicsOnInvalidInitialStage(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial stage")
		}
	}()

	builder.Build(Stage(-1))
}

func TestStageConfiguration_PermitPanicsOnBackwardTarget(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on a backward target")
		}
	}()

	builder.Configure(StageCompleted).Permit(ActionReceive, StageReceived)
}

func TestStageConfiguration_Permit(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StageSubmitted).
		Permit(ActionReceive, StageReceived)

	machine := builder.Build(StageSubmitted)

	if !machine.CanFire(ActionReceive) {
		t.Error("CanFire() should return true for permitted action")
	}

	if err := machine.Fire(context.Background(), ActionReceive); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine.Stage() != StageReceived {
		t.Errorf("Stage after Fire() = %v, want %v", machine.Stage(), StageReceived)
	}
}

func TestStageConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StageReceived).
		PermitIf(ActionAssign, StageReferred, func(ctx context.Context) bool {
			return false
		})

	machine := builder.Build(StageReceived)

	err := machine.Fire(context.Background(), ActionAssign)
	if !errors.Is(err, ErrGuardFailed) {
		t.Fatalf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}

	if machine.Stage() != StageReceived {
		t.Errorf("Stage should remain %v after failed Fire(), got %v", StageReceived, machine.Stage())
	}
}

func TestStateMachine_Fire_NoConfiguration(t *testing.T) {
	machine := NewBuilder().Build(StageClosed)

	err := machine.Fire(context.Background(), ActionReceive)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if len(machine.PermittedActions()) != 0 {
		t.Error("unconfigured stage should have no permitted actions")
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StageSubmitted).
		Permit(ActionReceive, StageReceived)

	machine1 := builder.Build(StageSubmitted)
	machine2 := builder.Build(StageSubmitted)

	if err := machine1.Fire(context.Background(), ActionReceive); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine2.Stage() != StageSubmitted {
		t.Errorf("machine2 stage = %v, want %v (machines should be independent)", machine2.Stage(), StageSubmitted)
	}
}
