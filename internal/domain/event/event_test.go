package event

import (
	"encoding/json"
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{name: "submitted", eventType: TypeReportSubmitted, want: true},
		{name: "stage advanced", eventType: TypeStageAdvanced, want: true},
		{name: "escalated", eventType: TypeReportEscalated, want: true},
		{name: "note saved", eventType: TypeNoteSaved, want: true},
		{name: "action rejected", eventType: TypeActionRejected, want: true},
		{name: "assignment updated", eventType: TypeAssignmentUpdate, want: true},
		{name: "invalid - unknown type", eventType: Type("unknown.type"), want: false},
		{name: "invalid - empty string", eventType: Type(""), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("Type.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(TypeStageAdvanced, "2025-0001", map[string]interface{}{
		KeyAction:  "RECEIVE",
		KeyToStage: 1,
	})

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TypeStageAdvanced {
		t.Errorf("Event Type = %v, want %v", event.Type, TypeStageAdvanced)
	}
	if event.ReportID != "2025-0001" {
		t.Errorf("Event ReportID = %v, want %v", event.ReportID, "2025-0001")
	}
	if event.GetPayloadString(KeyAction) != "RECEIVE" {
		t.Errorf("Event Payload[action] = %v", event.Payload[KeyAction])
	}
	if event.CorrelationID == "" || event.CorrelationID == event.ID {
		t.Error("Event CorrelationID should be set and distinct from ID")
	}
	if time.Since(event.Timestamp) > time.Second {
		t.Error("Event Timestamp should be recent")
	}
}

func TestNewEvent_NilPayload(t *testing.T) {
	event := NewEvent(TypeReportSubmitted, "2025-0002", nil)
	if event.Payload == nil {
		t.Fatal("Payload should be initialised")
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	event := NewEventWithCorrelation(TypeNoteSaved, "2025-0003", nil, "corr-1")
	if event.CorrelationID != "corr-1" {
		t.Errorf("Event CorrelationID = %v, want corr-1", event.CorrelationID)
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeReportEscalated, "2025-0001", map[string]interface{}{
		KeyLevel: 1,
	})

	modified := original.WithPayload(KeyTarget, "Section manager")

	if _, exists := original.Payload[KeyTarget]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.GetPayloadInt(KeyLevel) != 1 {
		t.Error("Modified event should retain original payload")
	}
	if modified.GetPayloadString(KeyTarget) != "Section manager" {
		t.Error("Modified event should have new payload")
	}
	if modified.ID != original.ID || modified.ReportID != original.ReportID {
		t.Error("Modified event should keep identity fields")
	}
}

func TestEvent_GetPayloadInt_AfterJSON(t *testing.T) {
	event := NewEvent(TypeStageAdvanced, "2025-0001", map[string]interface{}{
		KeyFromStage: 4,
		KeyToStage:   int64(5),
	})

	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	if got := decoded.GetPayloadInt(KeyFromStage); got != 4 {
		t.Errorf("GetPayloadInt(from_stage) = %d, want 4", got)
	}
	if got := decoded.GetPayloadInt(KeyToStage); got != 5 {
		t.Errorf("GetPayloadInt(to_stage) = %d, want 5", got)
	}
	if got := decoded.GetPayloadInt("missing"); got != 0 {
		t.Errorf("GetPayloadInt(missing) = %d, want 0", got)
	}
	if got := decoded.GetPayloadString(KeyFromStage); got != "" {
		t.Errorf("GetPayloadString on number = %q, want empty", got)
	}
}
