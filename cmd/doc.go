// Package cmd implements the command-line interface of netcom. It provides
// commands for talking to a device server and for running a local device
// simulator.
//
// The package is organized into several subpackages:
//
//   - device: Commands using a connection pool (list, read, write, perf)
//   - sim: Command starting the device simulator
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as environment variables with the NETCOM_ prefix
// (e.g. NETCOM_MAX_CONNECTIONS=3), also from .env and .env.local files.
//
// See netcom -help for a list of all commands.
package cmd
