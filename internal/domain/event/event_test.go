package event

import (
	"testing"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{"definition created", TypeDefinitionCreated, true},
		{"definition deleted", TypeDefinitionDeleted, true},
		{"instance started", TypeInstanceStarted, true},
		{"instance transitioned", TypeInstanceTransitioned, true},
		{"instance completed", TypeInstanceCompleted, true},
		{"unknown type", Type("instance.approved"), false},
		{"empty string", Type(""), false},
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
	payload := map[string]interface{}{
		KeyActionID:      "submit",
		KeyHistoryLength: 3,
	}

	evt := NewEvent(TypeInstanceTransitioned, "def-1", "inst-1", payload)

	if evt.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if evt.CorrelationID == "" || evt.CorrelationID == evt.ID {
		t.Errorf("CorrelationID = %q, want a distinct generated id", evt.CorrelationID)
	}
	if evt.Type != TypeInstanceTransitioned {
		t.Errorf("Event Type = %v, want %v", evt.Type, TypeInstanceTransitioned)
	}
	if evt.DefinitionID != "def-1" || evt.InstanceID != "inst-1" {
		t.Errorf("ids = (%v, %v), want (def-1, inst-1)", evt.DefinitionID, evt.InstanceID)
	}
	if evt.Timestamp.IsZero() {
		t.Error("Event Timestamp should be set")
	}
	if got := evt.GetPayloadString(KeyActionID); got != "submit" {
		t.Errorf("GetPayloadString() = %v, want submit", got)
	}
	if got := evt.GetPayloadInt(KeyHistoryLength); got != 3 {
		t.Errorf("GetPayloadInt() = %v, want 3", got)
	}
}

func TestNewEventWithCorrelation(t *testing.T) {
	first := NewEvent(TypeInstanceTransitioned, "def-1", "inst-1", nil)
	second := NewEventWithCorrelation(TypeInstanceCompleted, "def-1", "inst-1", nil, first.CorrelationID)

	if second.CorrelationID != first.CorrelationID {
		t.Errorf("CorrelationID = %v, want %v", second.CorrelationID, first.CorrelationID)
	}
	if second.ID == first.ID {
		t.Error("events in one chain must have distinct IDs")
	}
}

func TestEvent_WithPayload(t *testing.T) {
	original := NewEvent(TypeInstanceStarted, "def-1", "inst-1", map[string]interface{}{
		"key1": "value1",
	})

	modified := original.WithPayload("key2", "value2")

	if _, exists := original.Payload["key2"]; exists {
		t.Error("Original event should not be modified")
	}
	if modified.Payload["key1"] != "value1" || modified.Payload["key2"] != "value2" {
		t.Errorf("modified payload = %v", modified.Payload)
	}
	if modified.ID != original.ID || modified.InstanceID != original.InstanceID {
		t.Error("Modified event should keep identity fields")
	}
}

func TestEvent_GetPayloadInt(t *testing.T) {
	evt := NewEvent(TypeInstanceStarted, "def-1", "", map[string]interface{}{
		"int64":   int64(100),
		"int":     50,
		"float64": 75.5,
		"string":  "not a number",
	})

	tests := []struct {
		key  string
		want int64
	}{
		{"int64", 100},
		{"int", 50},
		{"float64", 75},
		{"string", 0},
		{"missing", 0},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := evt.GetPayloadInt(tt.key); got != tt.want {
				t.Errorf("GetPayloadInt(%v) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}
