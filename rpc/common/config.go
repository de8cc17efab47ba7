package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Defaults applied when a config field is left at its zero value
const (
	DefaultAddress        = "localhost"
	DefaultPort           = 7878
	DefaultClientInfo     = "netcom"
	DefaultMaxConnections = 1
	DefaultMaxFrameSize   = 16 * 1024 * 1024
)

// --------------------------------------------------------------------------
// Transport configuration structs
// --------------------------------------------------------------------------

// SocketConf holds buffer sizes applied to a socket (0 keeps the OS default)
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific socket options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	TCPLingerSec    int // 0 keeps the OS default
}

// TransportConfig bundles all socket options
type TransportConfig struct {
	SocketConf
	TCPConf
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig configures a connection pool and the connections it creates.
// It is immutable once handed to the pool.
type ClientConfig struct {
	// Address and Port of the device server
	Address string
	Port    int

	// ClientInfo is the label template announced via client-info
	ClientInfo string

	// MaxConnections bounds the number of simultaneous connections
	MaxConnections int

	// MaxFrameSize bounds the declared length of inbound frames
	// (0 uses DefaultMaxFrameSize, negative disables the check)
	MaxFrameSize int

	Transport TransportConfig
}

// FrameLimit returns the effective frame size limit in bytes, 0 means unbounded
func (c *ClientConfig) FrameLimit() uint64 {
	return frameLimit(c.MaxFrameSize)
}

// WithDefaults returns a copy with zero values replaced by defaults
func (c ClientConfig) WithDefaults() ClientConfig {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.ClientInfo == "" {
		c.ClientInfo = DefaultClientInfo
	}
	if c.MaxConnections < 1 {
		c.MaxConnections = DefaultMaxConnections
	}
	return c
}

// Label returns the client-info name of the connection in the given slot
// (1-based). The slot is only appended if more than one connection is allowed.
func (c *ClientConfig) Label(slot int) string {
	if c.MaxConnections > 1 {
		return fmt.Sprintf("%s %d/%d", c.ClientInfo, slot, c.MaxConnections)
	}
	return c.ClientInfo
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Address", c.Address)
	addField("Port", strconv.Itoa(c.Port))
	addField("Client Info", c.ClientInfo)
	addField("Max Connections", strconv.Itoa(c.MaxConnections))
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.FrameLimit()))

	// Socket Settings
	addSection("Transport")
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	addField("Write Buffer", fmt.Sprintf("%d bytes", c.Transport.WriteBufferSize))
	addField("Read Buffer", fmt.Sprintf("%d bytes", c.Transport.ReadBufferSize))

	return sb.String()
}

// --------------------------------------------------------------------------
// Simulator server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds the configuration of the device simulator
type ServerConfig struct {
	// Endpoint the server listens on (host:port)
	Endpoint string

	// MaxConnections is the number of clients served at once (0 means unbounded)
	MaxConnections int

	// Devices maps device names to their initial parameter values
	Devices map[string]map[string]any

	// MaxFrameSize bounds the declared length of inbound frames
	// (0 uses DefaultMaxFrameSize, negative disables the check)
	MaxFrameSize int

	// Logging configuration
	LogLevel string

	Transport TransportConfig
}

// FrameLimit returns the effective frame size limit in bytes, 0 means unbounded
func (c *ServerConfig) FrameLimit() uint64 {
	return frameLimit(c.MaxFrameSize)
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Device Simulator")
	addField("Endpoint", c.Endpoint)
	addField("Max Connections", strconv.Itoa(c.MaxConnections))
	addField("Max Frame Size", fmt.Sprintf("%d bytes", c.FrameLimit()))

	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Sort keys for consistent output
	addSection("Devices")
	names := make([]string, 0, len(c.Devices))
	for name := range c.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addField(name, fmt.Sprintf("%d parameters", len(c.Devices[name])))
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func frameLimit(maxFrameSize int) uint64 {
	switch {
	case maxFrameSize < 0:
		return 0
	case maxFrameSize == 0:
		return DefaultMaxFrameSize
	default:
		return uint64(maxFrameSize)
	}
}
