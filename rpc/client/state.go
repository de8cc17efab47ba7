package client

// State is the position of a connection in its lifecycle
type State int32

const (
	// StateDisconnected is the state of a new connection before Connect
	StateDisconnected State = iota
	// StateConnecting: the socket is being opened or is open, the protocol
	// upgrade was not sent yet
	StateConnecting
	// StateAwaitingUpgradeAck: the unframed upgrade token was sent, the next
	// frame acknowledges it
	StateAwaitingUpgradeAck
	// StateIdentifying: framed traffic is possible, client-info is due
	StateIdentifying
	// StateFetchingDeviceList: client-info was accepted, device-list is due
	StateFetchingDeviceList
	// StateReady: the handshake is complete
	StateReady
	// StateClosed is final
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingUpgradeAck:
		return "awaiting-upgrade-ack"
	case StateIdentifying:
		return "identifying"
	case StateFetchingDeviceList:
		return "fetching-device-list"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// framed reports whether netstring requests may be sent in this state
func (s State) framed() bool {
	return s >= StateIdentifying && s <= StateReady
}
