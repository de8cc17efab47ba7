// Package pool provides a bounded pool of ready-to-use connections to one
// device server.
//
// The package focuses on:
//   - Lazy creation of at most MaxConnections connections
//   - Running the full handshake before a connection is handed out
//   - Fair hand-off: waiting callers are served in arrival order
//   - Evicting connections as soon as they close
//
// Key Components:
//
//   - Pool: Created with NewPool. Acquire returns a connection in the Ready
//     state, Release hands it back, Disconnect closes everything.
//
//   - Stats: Snapshot of tracked, idle and waiting counts.
//
// Connections are labeled with the configured client info, or with
// "<client info> <slot>/<max>" when more than one connection is allowed. The
// label is announced to the server during the handshake.
//
// Metrics:
//
//	Every pool owns a VictoriaMetrics set (see WritePrometheus) with acquire,
//	creation, handshake failure and eviction counters plus gauges for the
//	current state. Request latencies of all pool connections are recorded as
//	go-metrics timers in the registry returned by Registry.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Acquire blocks without a
//	timeout; a caller waiting while Disconnect runs is never resolved.
package pool
