// Package rpc provides the client side of the netcom device protocol plus a
// simulator for the server side. Messages are JSON documents framed as
// netstrings and exchanged over TCP.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions (TCP connectors) and the
//     netstring codec used to frame messages on a byte stream.
//
//   - serializer: Message serialization converting between Message objects
//     and frame payloads (JSON).
//
//   - client: A single protocol connection with its handshake state machine
//     and strictly sequential request/response correlation.
//
//   - pool: A bounded pool of ready connections with fair hand-off to waiting
//     callers.
//
//   - server: A device simulator answering the protocol for tests and local
//     development.
package rpc
