package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrClosed matches every error caused by the connection being closed
	ErrClosed = errors.New("connection closed")

	// ErrDisconnected is the close cause after Disconnect was called
	ErrDisconnected = errors.New("disconnected by client")

	// ErrRequestInFlight is returned if a request is issued while another one
	// is still waiting for its response. Responses are matched by position,
	// so this is a programming error of the caller.
	ErrRequestInFlight = errors.New("request already in flight")

	// ErrInvalidState is returned if an operation is not allowed in the current state
	ErrInvalidState = errors.New("invalid connection state")
)

// ProtocolError is returned if the server answers with an error field.
// The connection stays usable.
type ProtocolError struct {
	Op      string
	Payload json.RawMessage
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: server error: %s", e.Op, string(e.Payload))
}

// DecodeError is returned if a frame payload is not valid JSON.
// It is fatal to the connection.
type DecodeError struct {
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ConnectionError wraps transport-level failures (dial, read, write)
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ClosedError is returned if the connection closed while a request or a
// handshake step was outstanding. Cause is the reason of the close.
type ClosedError struct {
	Cause error
}

func (e *ClosedError) Error() string {
	if e.Cause == nil {
		return ErrClosed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrClosed.Error(), e.Cause)
}

func (e *ClosedError) Is(target error) bool {
	return target == ErrClosed
}

func (e *ClosedError) Unwrap() error {
	return e.Cause
}
