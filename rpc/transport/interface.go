package transport

import (
	"github.com/ValentinKolb/netcom/rpc/common"
	"net"
)

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IClientConnector defines the transport-specific operations a client
// connection needs. Connections are raw byte streams, framing happens above.
type IClientConnector interface {
	// Connect establishes a single connection to endpoint (host:port)
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g. "tcp")
	GetName() string

	// UpgradeConnection applies socket options to an established connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerConnector defines the transport-specific operations of a server
type IServerConnector interface {
	// Listen creates a listener on endpoint
	Listen(endpoint string) (net.Listener, error)

	// GetName returns the name of the transport type (e.g. "tcp")
	GetName() string

	// UpgradeConnection applies socket options to an accepted connection
	UpgradeConnection(conn net.Conn, config common.TransportConfig) error
}
