// Package transport owns the physical serial channel and correlates
// replies to commands.
//
// The LuxBus wire format carries no request identifiers and no addresses
// in replies, so correlation rests on a single invariant: at most one
// exchange is outstanding on the channel at any instant. The transport
// enforces it with a single pending-exchange slot. The priority queue
// (pkg/queue) hands the transport one command at a time via Dispatch; the
// transport writes it, then resolves with the next incoming line, or with
// no reply once the command timeout elapses. A line that arrives while no
// exchange is pending cannot be attributed to anything and is discarded
// (trace-logged only).
//
// For queries, the target address is captured from the command text at
// dispatch time; when the reply arrives it is decoded and re-emitted as a
// Status event through the registered Handler, alongside connectivity
// state changes and channel errors.
//
// A reply that never comes is a normal outcome on this bus (an unpowered
// module simply says nothing), so a timeout resolves the exchange with
// Replied=false rather than an error.
package transport
