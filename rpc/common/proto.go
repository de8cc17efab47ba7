package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Wire constants
// --------------------------------------------------------------------------

// ProtocolUpgrade is the only message sent without netstring framing.
// The server expects it before any framed traffic starts.
const ProtocolUpgrade = "PROTO30\n"

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the direction and the request type.
type Message struct {
	// Request discriminator (requests only)
	R RequestType `json:"r,omitempty"`

	// Request fields
	Name   string          `json:"name,omitempty"`   // Used for: client-info
	Device string          `json:"device,omitempty"` // Used for: read, write
	P      json.RawMessage `json:"p,omitempty"`      // Used for: read (names), write (name/value pairs)

	// Response only fields, exactly one is set
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// HasError reports whether the message carries an error field
func (m *Message) HasError() bool {
	return len(m.Error) > 0
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewClientInfoRequest creates a new client-info request announcing name
func NewClientInfoRequest(name string) *Message {
	return &Message{
		R:    ReqClientInfo,
		Name: name,
	}
}

// NewDeviceListRequest creates a new device-list request
func NewDeviceListRequest() *Message {
	return &Message{
		R: ReqDeviceList,
	}
}

// NewReadRequest creates a new read request for the given parameter names
func NewReadRequest(device string, names []string) *Message {
	if names == nil {
		names = []string{}
	}
	// marshalling a string slice cannot fail
	p, _ := json.Marshal(names)
	return &Message{
		R:      ReqRead,
		Device: device,
		P:      p,
	}
}

// NewWriteRequest creates a new write request setting the given parameter values
func NewWriteRequest(device string, params []Param) (*Message, error) {
	if params == nil {
		params = []Param{}
	}
	p, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameter values: %w", err)
	}
	return &Message{
		R:      ReqWrite,
		Device: device,
		P:      p,
	}, nil
}

// NewResultResponse creates a new response carrying result
func NewResultResponse(result any) (*Message, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return &Message{Result: b}, nil
}

// NewErrorResponse creates a new error response with a string payload
func NewErrorResponse(err string) *Message {
	// marshalling a string cannot fail
	b, _ := json.Marshal(err)
	return &Message{Error: b}
}

// --------------------------------------------------------------------------
// Parameter pairs
// --------------------------------------------------------------------------

// Param is a parameter name/value pair of a write request.
// On the wire it is the two element array ["name", value].
type Param struct {
	Name  string
	Value any
}

// MarshalJSON encodes the pair as ["name", value]
func (p Param) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Name, p.Value})
}

// UnmarshalJSON decodes a ["name", value] pair, numbers become float64
func (p *Param) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("parameter pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("parameter pair: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.Name); err != nil {
		return fmt.Errorf("parameter pair: name: %w", err)
	}
	if err := json.Unmarshal(pair[1], &p.Value); err != nil {
		return fmt.Errorf("parameter pair: value: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Request Type Definition
// --------------------------------------------------------------------------

// RequestType is the value of the "r" discriminator of a request
type RequestType string

const (
	ReqClientInfo RequestType = "client-info" // Announce the client name
	ReqDeviceList RequestType = "device-list" // List the devices of the server
	ReqRead       RequestType = "read"        // Read parameters of a device
	ReqWrite      RequestType = "write"       // Write parameters of a device
)

// Valid reports whether t is one of the known request types
func (t RequestType) Valid() bool {
	switch t {
	case ReqClientInfo, ReqDeviceList, ReqRead, ReqWrite:
		return true
	default:
		return false
	}
}
