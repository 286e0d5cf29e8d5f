package buslog

import (
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	raw := 125
	latency := 42 * time.Millisecond
	original := Event{
		Timestamp: ts,
		SessionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction: DirectionIn,
		Category:  CategoryLine,
		Device:    "/dev/ttyUSB0",
		Line: &LineEvent{
			Text:       "18 125",
			Correlated: true,
			Address:    "01-1",
			Raw:        &raw,
			Latency:    &latency,
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

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.SessionID != original.SessionID {
		t.Errorf("SessionID: got %q, want %q", decoded.SessionID, original.SessionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.Device != original.Device {
		t.Errorf("Device: got %q, want %q", decoded.Device, original.Device)
	}
	if decoded.Line == nil {
		t.Fatal("Line is nil")
	}
	if decoded.Line.Text != original.Line.Text {
		t.Errorf("Line.Text: got %q, want %q", decoded.Line.Text, original.Line.Text)
	}
	if !decoded.Line.Correlated {
		t.Error("Line.Correlated lost in round trip")
	}
	if decoded.Line.Address != "01-1" {
		t.Errorf("Line.Address: got %q, want 01-1", decoded.Line.Address)
	}
	if decoded.Line.Raw == nil || *decoded.Line.Raw != raw {
		t.Errorf("Line.Raw: got %v, want %d", decoded.Line.Raw, raw)
	}
	if decoded.Line.Latency == nil || *decoded.Line.Latency != latency {
		t.Errorf("Line.Latency: got %v, want %v", decoded.Line.Latency, latency)
	}
}

func TestCommandEventRoundTrip(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		SessionID: "session-1",
		Direction: DirectionOut,
		Category:  CategoryCommand,
		Command: &CommandEvent{
			Text:     " 18 05-1",
			Priority: "NORMAL",
			Address:  "05-1",
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

	if decoded.Command == nil {
		t.Fatal("Command is nil")
	}
	if decoded.Command.Text != " 18 05-1" {
		t.Errorf("Command.Text: got %q", decoded.Command.Text)
	}
	if decoded.Command.Priority != "NORMAL" {
		t.Errorf("Command.Priority: got %q", decoded.Command.Priority)
	}
	if decoded.Command.Address != "05-1" {
		t.Errorf("Command.Address: got %q, want 05-1", decoded.Command.Address)
	}
}
