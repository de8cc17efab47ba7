// Package common provides the data structures shared by the client, the
// connection pool and the device simulator.
//
// The package focuses on:
//   - Message protocol definition (requests and responses of the device protocol)
//   - Configuration structures for the client pool and the simulator
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - Message: Core data structure for every framed message, used for both
//     requests ({"r": ..., "name"/"device"/"p": ...}) and responses
//     ({"result": ...} or {"error": ...}). Parameters and results are kept as
//     raw JSON so callers decide how to decode them. Includes factory methods
//     for the four request types.
//
//   - RequestType: The "r" discriminator (client-info, device-list, read, write).
//
//   - ClientConfig: Address, port, client-info label template and the maximum
//     number of connections of a pool, plus socket options.
//
//   - ServerConfig: Configuration of the device simulator.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's
//     logging system, giving all packages consistent "LEVEL | name | message"
//     output.
package common
