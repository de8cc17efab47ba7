// Package client implements a single connection to a device server.
//
// The package focuses on:
//   - Reassembling netstring frames from arbitrary socket reads
//   - The connection handshake (protocol upgrade, client-info, device-list)
//   - Reading and writing device parameters
//   - Enforcing the one-request-at-a-time rule of the protocol
//
// Key Components:
//
//   - Conn: owns one net.Conn and a reader goroutine. Every request registers
//     a single-slot response channel; the next inbound frame resolves it, or
//     the close of the connection does, whichever happens first. A second
//     request while the slot is taken fails with ErrRequestInFlight.
//
//   - State: the lifecycle of a connection
//
//	Disconnected -> Connecting -> AwaitingUpgradeAck -> Identifying
//	             -> FetchingDeviceList -> Ready, any state -> Closed
//
//     The protocol upgrade token is the only unframed message. It may only be
//     sent in Connecting; framed requests are only accepted after the upgrade
//     was acknowledged.
//
// Error Handling:
//
//   - ProtocolError: the server answered with an error field. The connection
//     stays usable.
//
//   - DecodeError and netstring.FramingError: the stream is corrupt. The
//     connection is destroyed, pending requests fail with a ClosedError
//     wrapping the cause.
//
//   - ConnectionError: dial, read or write failures.
//
//   - ClosedError: the connection closed while a request was outstanding.
//     errors.Is(err, ErrClosed) matches it.
//
// Notifications:
//
//	OnClose handlers run exactly once when the connection closes, OnError
//	handlers for socket errors. The pool uses them for eviction.
//
// Metrics:
//
//	The latency of every completed operation is recorded in a go-metrics timer
//	named "netcom.client.<op>" in the registry passed to NewConn.
//
// There are no timeouts: a request waits until the server answers or the
// connection closes.
package client
