// Package transport defines the abstractions between the device protocol and
// the byte streams it runs on.
//
// The package focuses on:
//   - Separating connection establishment from protocol handling, so the
//     client and the simulator can be tested over in-memory pipes
//   - Applying socket options in one place
//
// Key Components:
//
//   - IClientConnector: dials an endpoint and upgrades the socket (used by
//     client.Conn and therefore by the pool).
//
//   - IServerConnector: listens on an endpoint and upgrades accepted sockets
//     (used by the device simulator).
//
// Subpackages:
//
//   - tcp: TCP implementations of both connectors.
//
//   - netstring: the frame codec shared by all protocol participants.
package transport
