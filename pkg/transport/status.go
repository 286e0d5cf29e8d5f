package transport

import "github.com/luxbus-protocol/luxbus-go/pkg/protocol"

// Status is the decoded payload of a correlated status reply. The core
// does not retain load values; Status is a transient event handed to the
// Handler and forgotten.
type Status struct {
	// Address is the load the originating query targeted. The reply
	// itself carries no address; this one was captured at dispatch time.
	Address protocol.Address

	// Kind is the load kind registered for Address, valid only when
	// KindKnown is true. The level decode does not use it (see
	// protocol.Level); it is carried so consumers can second-guess the
	// relay-vs-dimmer magnitude heuristic.
	Kind protocol.Kind

	// KindKnown indicates Address was registered with a kind.
	KindKnown bool

	// Raw is the protocol's native magnitude (0-1 relays, 0-250 dimmers).
	Raw int

	// Level is the normalized 0-100 percentage.
	Level int
}

// Handler receives transport events. All callbacks are invoked from the
// transport's goroutines and must not block for long.
type Handler interface {
	// OnStatus is called for every correlated, parseable status reply.
	OnStatus(status Status)

	// OnStateChange is called when the channel state changes.
	OnStateChange(oldState, newState State)

	// OnError is called when a channel-level error occurs.
	OnError(err error)
}
