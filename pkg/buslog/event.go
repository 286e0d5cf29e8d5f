package buslog

import "time"

// Event represents a bus trace event captured by the engine.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies one open of the serial channel (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates traffic flow relative to the controller.
	Direction Direction `cbor:"3,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Device is the serial device path the session is bound to.
	Device string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Command     *CommandEvent     `cbor:"6,keyasint,omitempty"`  // Command written to the bus
	Line        *LineEvent        `cbor:"7,keyasint,omitempty"`  // Line received from the bus
	StateChange *StateChangeEvent `cbor:"8,keyasint,omitempty"`  // Channel lifecycle
	Error       *ErrorEventData   `cbor:"9,keyasint,omitempty"`  // Errors at any layer
}

// Direction indicates the direction of bus traffic.
type Direction uint8

const (
	// DirectionIn indicates a line received from the hardware.
	DirectionIn Direction = 0
	// DirectionOut indicates a command written to the hardware.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryCommand indicates a command dispatched to the wire.
	CategoryCommand Category = 0
	// CategoryLine indicates a reply line from the wire.
	CategoryLine Category = 1
	// CategoryState indicates a channel state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryCommand:
		return "COMMAND"
	case CategoryLine:
		return "LINE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// CommandEvent captures a command at the moment it is written.
type CommandEvent struct {
	// Text is the command payload, excluding the terminator.
	Text string `cbor:"1,keyasint"`

	// Priority is the queue class the command was submitted under.
	Priority string `cbor:"2,keyasint,omitempty"`

	// Address is the expected-reply address for queries (empty for sets).
	Address string `cbor:"3,keyasint,omitempty"`
}

// LineEvent captures a line received from the bus.
type LineEvent struct {
	// Text is the trimmed line.
	Text string `cbor:"1,keyasint"`

	// Correlated indicates a pending exchange claimed this line.
	Correlated bool `cbor:"2,keyasint"`

	// Address is the load the line was correlated to, if any.
	Address string `cbor:"3,keyasint,omitempty"`

	// Raw is the decoded raw value for parseable status lines.
	Raw *int `cbor:"4,keyasint,omitempty"`

	// Latency is the time from command write to line arrival.
	// Stored as nanoseconds.
	Latency *time.Duration `cbor:"5,keyasint,omitempty"`
}

// StateChangeEvent captures channel lifecycle events.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`
}
