// Package tcp implements TCP connectors for the device protocol.
//
// Key Components:
//
//   - clientConnector: dials the device server and applies socket options
//     (TCP_NODELAY, keep-alive, linger, buffer sizes).
//
//   - serverConnector: listens for the device simulator and applies the same
//     options to accepted sockets.
package tcp
