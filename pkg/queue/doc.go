// Package queue provides the priority command queue that serializes all
// traffic onto the half-duplex bus.
//
// The queue holds fully formed command text and knows nothing about serial
// I/O: executing a command is delegated to an injected Processor callback
// (in practice the transport's dispatch). A single busy flag guarantees
// that at most one command is being processed at any instant, which is
// what makes the transport's one-outstanding-exchange invariant hold.
//
// Two priority classes exist: high (user-initiated commands) and normal
// (background polling). Every high entry is dispatched before any normal
// entry, FIFO within a class.
package queue
