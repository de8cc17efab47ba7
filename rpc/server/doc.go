// Package server implements a device simulator speaking the netcom protocol.
// It stands in for a real device server during development and in tests of
// the client and pool packages.
//
// The package focuses on:
//   - Accepting a bounded number of concurrent connections
//   - The unframed PROTO30 upgrade followed by netstring framed JSON requests
//   - Simulated devices with named parameter registers
//   - Adapter pattern to decouple request handling from connection handling
//
// Key Components:
//
//   - Server: Listens through a transport.IServerConnector, performs the
//     upgrade per connection, answers client-info itself and passes all other
//     requests to an IRequestHandler.
//
//   - IRequestHandler: Interface defining the contract for request handlers,
//     with the Handle method that answers a request against a DeviceRegistry.
//
//   - NewDeviceHandler: Factory function creating the handler for device-list,
//     read and write requests.
//
//   - DeviceRegistry: Concurrent map of devices. Parameters that were never
//     written read as 0.
//
// Usage Example:
//
//	s := server.NewServer(
//	  common.ServerConfig{
//	    Endpoint:       "localhost:7878",
//	    MaxConnections: 3,
//	    Devices:        map[string]map[string]any{"sim1": {"3x0005": 42}},
//	  },
//	  tcp.NewTCPServerConnector(),
//	  serializer.NewJSONSerializer(),
//	)
//
//	if err := s.ListenAndServe(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Connections beyond MaxConnections are closed right after accept. Unknown
// request types and unknown devices are answered with an error response, a
// malformed frame closes the connection.
//
// Thread Safety:
//
//	Each connection is served by its own goroutine and handles one request at
//	a time. The device registry may be read and modified concurrently, also
//	from outside the server via Devices().
package server
