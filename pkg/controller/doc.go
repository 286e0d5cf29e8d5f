// Package controller provides the high-level entry point for driving a
// lighting bus: a facade over the priority queue, the serial transport,
// and the polling driver.
//
// A Controller owns a registry of configured loads (address, kind,
// display name), keeps a last-known-state cache fed by correlated status
// replies, and fans status and connectivity events out to any number of
// subscribers.
//
// # Command paths
//
// SetRelay, SetDimmer, and Query submit at high priority and block until
// the exchange resolves, then confirm the new state with an immediate
// high-priority re-read so the cache never lags a user action. Background
// polling submits at normal priority and never delays a user command.
//
// # On/off convenience
//
// On holds the full-on command for a short grace window before it is
// submitted. An explicit SetDimmer or SetRelay for the same address
// within the window withdraws the pending full-on, so a scene that
// follows "on" with a specific level never flashes the load to full
// brightness first. Off submits immediately and also withdraws any
// pending "on".
package controller
