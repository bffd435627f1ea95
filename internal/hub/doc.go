// Package hub implements the vehicle health hub's WebSocket side.
//
// Producers connect to /vehicle and stream telemetry; each message is
// validated, predicted, stored and broadcast before the producer gets its
// reply. Monitors connect to /monitor, receive a snapshot of every known
// vehicle and then every later update in publish order.
//
// Lock ordering: Registry.mu may be held while state.Store takes its own
// read lock (snapshot capture). Nothing takes Registry.mu while holding the
// store lock.
package hub
