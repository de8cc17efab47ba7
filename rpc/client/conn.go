package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/netcom/rpc/common"
	"github.com/ValentinKolb/netcom/rpc/serializer"
	"github.com/ValentinKolb/netcom/rpc/transport"
	"github.com/ValentinKolb/netcom/rpc/transport/netstring"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
	"net"
	"strconv"
	"sync"
	"time"
)

var Logger = logger.GetLogger("client")

const readChunkSize = 32 * 1024

// CloseHandler is called exactly once when a connection closes
type CloseHandler func(c *Conn, cause error)

// ErrorHandler is called for socket errors (not framing errors)
type ErrorHandler func(c *Conn, err error)

// -----------------------------------------------------------
// Connection
// -----------------------------------------------------------

// Conn is a single connection to a device server.
//
// A Conn processes one request at a time: responses carry no identifier and
// are matched to the request by position. Issuing a request while another one
// is outstanding fails with ErrRequestInFlight.
type Conn struct {
	label      string
	config     common.ClientConfig
	connector  transport.IClientConnector
	serializer serializer.IRPCSerializer
	registry   gometrics.Registry

	mu            sync.Mutex // Protects everything below
	conn          net.Conn
	state         State
	frames        *netstring.Reassembler
	pending       chan *common.Message // Slot of the outstanding request, nil if none
	closed        chan struct{}        // Closed once the connection is destroyed
	closeErr      error
	closeHandlers []CloseHandler
	errorHandlers []ErrorHandler
}

// NewConn creates a new, not yet connected connection. The label is only
// used for logging; registry receives the latency timers (nil uses
// go-metrics' default registry).
func NewConn(
	label string,
	config common.ClientConfig,
	connector transport.IClientConnector,
	serializer serializer.IRPCSerializer,
	registry gometrics.Registry,
) *Conn {
	if registry == nil {
		registry = gometrics.DefaultRegistry
	}

	return &Conn{
		label:      label,
		config:     config,
		connector:  connector,
		serializer: serializer,
		registry:   registry,
		frames:     netstring.NewReassembler(netstring.Limits{MaxPayloadBytes: config.FrameLimit()}),
		closed:     make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Accessors and notifications
// --------------------------------------------------------------------------

// Label returns the name the connection announces via client-info
func (c *Conn) Label() string {
	return c.label
}

// State returns the current lifecycle state
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done returns a channel that is closed once the connection is closed
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// Err returns the reason the connection closed, nil while it is open
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

// OnClose registers a handler for the close notification. If the connection
// is already closed the handler runs immediately.
func (c *Conn) OnClose(h CloseHandler) {
	c.mu.Lock()
	if c.state != StateClosed {
		c.closeHandlers = append(c.closeHandlers, h)
		c.mu.Unlock()
		return
	}
	cause := c.closeErr
	c.mu.Unlock()

	h(c, cause)
}

// OnError registers a handler for socket errors
func (c *Conn) OnError(h ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorHandlers = append(c.errorHandlers, h)
}

// --------------------------------------------------------------------------
// Connection lifecycle
// --------------------------------------------------------------------------

// Connect opens the transport to address:port (defaults localhost:7878) and
// starts reading. It does not speak the protocol yet.
func (c *Conn) Connect(address string, port int) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("connect: %w (%s)", ErrInvalidState, state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	if address == "" {
		address = common.DefaultAddress
	}
	if port == 0 {
		port = common.DefaultPort
	}
	endpoint := net.JoinHostPort(address, strconv.Itoa(port))

	conn, err := c.connector.Connect(endpoint)
	if err != nil {
		err = &ConnectionError{Op: "connect " + endpoint, Err: err}
		c.destroy(err)
		return err
	}

	// Apply socket options
	if err := c.connector.UpgradeConnection(conn, c.config.Transport); err != nil {
		_ = conn.Close()
		err = &ConnectionError{Op: "upgrade connection", Err: err}
		c.destroy(err)
		return err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		// disconnected while dialing
		cause := c.closeErr
		c.mu.Unlock()
		_ = conn.Close()
		return &ClosedError{Cause: cause}
	}
	c.conn = conn
	c.mu.Unlock()

	Logger.Debugf("[%s] connected to %s via %s", c.label, endpoint, c.connector.GetName())

	go c.readResponses(conn)
	return nil
}

// Disconnect tears down the transport. A request in flight fails with a
// ClosedError and the close handlers run.
func (c *Conn) Disconnect() {
	c.destroy(ErrDisconnected)
}

// --------------------------------------------------------------------------
// Protocol operations
// --------------------------------------------------------------------------

// UpgradeProtocolVersion sends the unframed upgrade token. It resolves on the
// next inbound frame, whatever its content.
func (c *Conn) UpgradeProtocolVersion() error {
	start := time.Now()

	if _, err := c.roundTrip("upgrade", []byte(common.ProtocolUpgrade), true); err != nil {
		return err
	}

	c.observe("upgrade", start)
	c.advance(StateAwaitingUpgradeAck, StateIdentifying)
	return nil
}

// AnnounceClientInfo tells the server the name of this client
func (c *Conn) AnnounceClientInfo(name string) (*common.Message, error) {
	resp, err := c.call(common.ReqClientInfo, common.NewClientInfoRequest(name), true)
	if err != nil {
		return nil, err
	}

	c.advance(StateIdentifying, StateFetchingDeviceList)
	return resp, nil
}

// GetDeviceList fetches the devices known to the server. An error field in the
// response is ignored, a result that is not a list yields an empty list.
func (c *Conn) GetDeviceList() ([]json.RawMessage, error) {
	resp, err := c.call(common.ReqDeviceList, common.NewDeviceListRequest(), false)
	if err != nil {
		return nil, err
	}

	c.advance(StateFetchingDeviceList, StateReady)

	var devices []json.RawMessage
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &devices); err != nil {
			Logger.Debugf("[%s] device list is not a list: %s", c.label, string(resp.Result))
			devices = nil
		}
	}
	return devices, nil
}

// Read reads the named parameters of device and returns the raw result
func (c *Conn) Read(device string, names []string) (json.RawMessage, error) {
	resp, err := c.call(common.ReqRead, common.NewReadRequest(device, names), true)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// Write sets parameters of device and returns the raw result
func (c *Conn) Write(device string, params []common.Param) (json.RawMessage, error) {
	req, err := common.NewWriteRequest(device, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.call(common.ReqWrite, req, true)
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// call sends a framed request and waits for its response. With checkError a
// response carrying an error field is returned as ProtocolError.
func (c *Conn) call(reqType common.RequestType, req *common.Message, checkError bool) (*common.Message, error) {
	op := string(reqType)
	start := time.Now()

	payload, err := c.serializer.Serialize(*req)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", op, err)
	}

	resp, err := c.roundTrip(op, netstring.Encode(payload), false)
	if err != nil {
		return nil, err
	}

	c.observe(op, start)

	if checkError && resp.HasError() {
		return nil, &ProtocolError{Op: op, Payload: resp.Error}
	}
	return resp, nil
}

// roundTrip writes wire and waits for the next inbound frame or the close of
// the connection, whichever comes first
func (c *Conn) roundTrip(op string, wire []byte, upgrade bool) (*common.Message, error) {
	conn, slot, err := c.begin(op, upgrade)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Write(wire); err != nil {
		select {
		case <-c.closed:
			return nil, &ClosedError{Cause: c.closeErr}
		default:
		}

		err = &ConnectionError{Op: "write " + op, Err: err}
		c.emitError(err)
		c.destroy(err)
		return nil, err
	}

	select {
	case resp := <-slot:
		return resp, nil
	case <-c.closed:
		// a response delivered right before the close still wins
		select {
		case resp := <-slot:
			return resp, nil
		default:
		}
		return nil, &ClosedError{Cause: c.closeErr}
	}
}

// begin checks that a request may be sent and registers its response slot.
// The upgrade is only allowed right after Connect, every other request only
// after the upgrade was acknowledged.
func (c *Conn) begin(op string, upgrade bool) (net.Conn, chan *common.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.state == StateClosed:
		return nil, nil, &ClosedError{Cause: c.closeErr}
	case c.pending != nil:
		return nil, nil, fmt.Errorf("%s: %w", op, ErrRequestInFlight)
	case upgrade && (c.state != StateConnecting || c.conn == nil):
		return nil, nil, fmt.Errorf("%s: %w (%s)", op, ErrInvalidState, c.state)
	case !upgrade && !c.state.framed():
		return nil, nil, fmt.Errorf("%s: %w (%s)", op, ErrInvalidState, c.state)
	}

	if upgrade {
		c.state = StateAwaitingUpgradeAck
	}

	slot := make(chan *common.Message, 1)
	c.pending = slot
	return c.conn, slot, nil
}

// advance moves the connection from one state to the next, if it is still there
func (c *Conn) advance(from, to State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == from {
		c.state = to
	}
}

// observe records the latency of a completed operation
func (c *Conn) observe(op string, start time.Time) {
	gometrics.GetOrRegisterTimer("netcom.client."+op, c.registry).UpdateSince(start)
}

// readResponses reads from the socket until it fails or the connection closes
func (c *Conn) readResponses(conn net.Conn) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 && !c.feed(buf[:n]) {
			return
		}

		if err != nil {
			if c.isClosed() {
				return
			}

			err = &ConnectionError{Op: "read", Err: err}
			if !errors.Is(err, io.EOF) {
				c.emitError(err)
			}
			c.destroy(err)
			return
		}
	}
}

// feed hands received bytes to the reassembler and delivers every complete
// response. It returns false if the connection was destroyed.
func (c *Conn) feed(chunk []byte) bool {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return false
	}

	payloads, err := c.frames.Feed(chunk)
	for _, payload := range payloads {
		var msg common.Message
		if derr := c.serializer.Deserialize(payload, &msg); derr != nil {
			err = &DecodeError{Payload: payload, Err: derr}
			break
		}
		c.deliverLocked(&msg)
	}
	c.mu.Unlock()

	if err != nil {
		Logger.Errorf("[%s] dropping connection: %v", c.label, err)
		c.destroy(err)
		return false
	}
	return true
}

// deliverLocked resolves the pending request with msg. c.mu must be held.
func (c *Conn) deliverLocked(msg *common.Message) {
	if c.pending == nil {
		Logger.Warningf("[%s] dropping unsolicited response", c.label)
		return
	}

	c.pending <- msg
	c.pending = nil
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// emitError publishes a socket error to the error handlers
func (c *Conn) emitError(err error) {
	c.mu.Lock()
	handlers := append([]ErrorHandler(nil), c.errorHandlers...)
	c.mu.Unlock()

	Logger.Warningf("[%s] socket error: %v", c.label, err)
	for _, h := range handlers {
		h(c, err)
	}
}

// destroy closes the connection once and notifies the close handlers
func (c *Conn) destroy(cause error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}

	c.state = StateClosed
	c.closeErr = cause
	c.pending = nil
	conn := c.conn
	handlers := c.closeHandlers
	c.closeHandlers = nil
	close(c.closed)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}

	Logger.Debugf("[%s] connection closed: %v", c.label, cause)

	for _, h := range handlers {
		h(c, cause)
	}
}
