package log

import (
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction:    DirectionOut,
		Encoding:     EncodingJSON,
		Category:     CategoryMessage,
		LocalRole:    RoleClient,
		RemoteAddr:   "192.168.1.100:7624",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	// Compare fields
	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ConnectionID != original.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, original.ConnectionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Encoding != original.Encoding {
		t.Errorf("Encoding: got %v, want %v", decoded.Encoding, original.Encoding)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.LocalRole != original.LocalRole {
		t.Errorf("LocalRole: got %v, want %v", decoded.LocalRole, original.LocalRole)
	}
	if decoded.RemoteAddr != original.RemoteAddr {
		t.Errorf("RemoteAddr: got %q, want %q", decoded.RemoteAddr, original.RemoteAddr)
	}
}

func TestMessageEventCBORRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *MessageEvent
	}{
		{
			name: "definition",
			msg: &MessageEvent{
				Kind:     "defSwitchVector",
				Device:   "CCD Simulator",
				Property: "CONNECTION",
				Size:     217,
				Payload:  []byte("<defSwitchVector device='CCD Simulator' name='CONNECTION'"),
			},
		},
		{
			name: "update",
			msg: &MessageEvent{
				Kind:     "setNumberVector",
				Device:   "CCD Simulator",
				Property: "CCD_EXPOSURE",
				Size:     164,
			},
		},
		{
			name: "truncated blob",
			msg: &MessageEvent{
				Kind:      "setBLOBVector",
				Device:    "CCD Simulator",
				Property:  "CCD_IMAGE",
				Size:      2100000,
				Payload:   []byte{0x01, 0x02, 0x03, 0x04, 0x05},
				Truncated: true,
			},
		},
		{
			name: "control",
			msg: &MessageEvent{
				Kind: "getProperties",
				Size: 52,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := Event{
				Timestamp:    time.Now(),
				ConnectionID: "conn-123",
				Direction:    DirectionOut,
				Encoding:     EncodingXML,
				Category:     CategoryMessage,
				Message:      tt.msg,
			}

			data, err := EncodeEvent(original)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}

			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if decoded.Message == nil {
				t.Fatal("Message is nil")
			}
			if decoded.Message.Kind != tt.msg.Kind {
				t.Errorf("Message.Kind: got %q, want %q", decoded.Message.Kind, tt.msg.Kind)
			}
			if decoded.Message.Device != tt.msg.Device {
				t.Errorf("Message.Device: got %q, want %q", decoded.Message.Device, tt.msg.Device)
			}
			if decoded.Message.Property != tt.msg.Property {
				t.Errorf("Message.Property: got %q, want %q", decoded.Message.Property, tt.msg.Property)
			}
			if decoded.Message.Size != tt.msg.Size {
				t.Errorf("Message.Size: got %d, want %d", decoded.Message.Size, tt.msg.Size)
			}
			if string(decoded.Message.Payload) != string(tt.msg.Payload) {
				t.Errorf("Message.Payload: got %q, want %q", decoded.Message.Payload, tt.msg.Payload)
			}
			if decoded.Message.Truncated != tt.msg.Truncated {
				t.Errorf("Message.Truncated: got %v, want %v", decoded.Message.Truncated, tt.msg.Truncated)
			}
		})
	}
}

func TestStateChangeEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Encoding:     EncodingJSON,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityProperty,
			Name:     "CCD Simulator.CCD_EXPOSURE",
			OldState: "Busy",
			NewState: "Ok",
			Reason:   "exposure complete",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.StateChange == nil {
		t.Fatal("StateChange is nil")
	}
	if decoded.StateChange.Entity != original.StateChange.Entity {
		t.Errorf("StateChange.Entity: got %v, want %v", decoded.StateChange.Entity, original.StateChange.Entity)
	}
	if decoded.StateChange.Name != original.StateChange.Name {
		t.Errorf("StateChange.Name: got %q, want %q", decoded.StateChange.Name, original.StateChange.Name)
	}
	if decoded.StateChange.OldState != original.StateChange.OldState {
		t.Errorf("StateChange.OldState: got %q, want %q", decoded.StateChange.OldState, original.StateChange.OldState)
	}
	if decoded.StateChange.NewState != original.StateChange.NewState {
		t.Errorf("StateChange.NewState: got %q, want %q", decoded.StateChange.NewState, original.StateChange.NewState)
	}
	if decoded.StateChange.Reason != original.StateChange.Reason {
		t.Errorf("StateChange.Reason: got %q, want %q", decoded.StateChange.Reason, original.StateChange.Reason)
	}
}

func TestErrorEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Encoding:     EncodingXML,
		Category:     CategoryError,
		Error: &ErrorEventData{
			Encoding: EncodingXML,
			Message:  "unterminated element",
			Context:  "decode",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Error == nil {
		t.Fatal("Error is nil")
	}
	if decoded.Error.Encoding != original.Error.Encoding {
		t.Errorf("Error.Encoding: got %v, want %v", decoded.Error.Encoding, original.Error.Encoding)
	}
	if decoded.Error.Message != original.Error.Message {
		t.Errorf("Error.Message: got %q, want %q", decoded.Error.Message, original.Error.Message)
	}
	if decoded.Error.Context != original.Error.Context {
		t.Errorf("Error.Context: got %q, want %q", decoded.Error.Context, original.Error.Context)
	}
}

func TestEventCBORForwardCompat(t *testing.T) {
	// Encode an event with a StateChange payload
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-compat",
		Direction:    DirectionIn,
		Encoding:     EncodingJSON,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityDevice,
			Name:     "Mount",
			NewState: "defined",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	// Decode into a struct without the payload fields (simulating an older
	// reader). The decoder is configured with ExtraDecErrorNone, so unknown
	// keys are silently ignored.
	type OldEvent struct {
		Timestamp    time.Time `cbor:"1,keyasint"`
		ConnectionID string    `cbor:"2,keyasint"`
		Direction    Direction `cbor:"3,keyasint"`
		Encoding     Encoding  `cbor:"4,keyasint"`
		Category     Category  `cbor:"5,keyasint"`
	}

	var old OldEvent
	if err := logDecMode.Unmarshal(data, &old); err != nil {
		t.Fatalf("decoding into OldEvent should succeed, got: %v", err)
	}

	if old.ConnectionID != "conn-compat" {
		t.Errorf("ConnectionID: got %q, want %q", old.ConnectionID, "conn-compat")
	}
	if old.Category != CategoryState {
		t.Errorf("Category: got %v, want %v", old.Category, CategoryState)
	}
}

func TestEventCBORUsesIntegerKeys(t *testing.T) {
	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Encoding:     EncodingJSON,
		Category:     CategoryMessage,
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	// Decode to generic map and verify keys are integers
	var rawMap map[uint64]any
	if err := logDecMode.Unmarshal(data, &rawMap); err != nil {
		t.Fatalf("failed to decode as map: %v", err)
	}

	// Should have integer keys 1, 2, 3, 4, 5 etc.
	expectedKeys := []uint64{1, 2, 3, 4, 5}
	for _, key := range expectedKeys {
		if _, ok := rawMap[key]; !ok {
			t.Errorf("expected integer key %d not found in encoded data", key)
		}
	}

	// Verify no string keys
	var stringMap map[string]any
	if err := logDecMode.Unmarshal(data, &stringMap); err == nil && len(stringMap) > 0 {
		t.Error("encoded data contains string keys, expected integer keys only")
	}
}
