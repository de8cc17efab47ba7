package client

import (
	"encoding/json"
	"errors"
	"github.com/ValentinKolb/netcom/rpc/common"
	"github.com/ValentinKolb/netcom/rpc/serializer"
	"github.com/ValentinKolb/netcom/rpc/transport/netstring"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------
// Test helpers
// -----------------------------------------------------------

// pipeConnector hands out the client end of an in-memory pipe and passes the
// server end to the test
type pipeConnector struct {
	peers    chan net.Conn
	endpoint string
	err      error
}

func newPipeConnector() *pipeConnector {
	return &pipeConnector{peers: make(chan net.Conn, 1)}
}

func (p *pipeConnector) GetName() string { return "pipe" }

func (p *pipeConnector) Connect(endpoint string) (net.Conn, error) {
	p.endpoint = endpoint
	if p.err != nil {
		return nil, p.err
	}
	client, server := net.Pipe()
	p.peers <- server
	return client, nil
}

func (p *pipeConnector) UpgradeConnection(net.Conn, common.TransportConfig) error { return nil }

// peer plays the device server on the other end of the pipe
type peer struct {
	t      *testing.T
	conn   net.Conn
	frames *netstring.Reassembler
	queue  [][]byte
}

func newPeer(t *testing.T, conn net.Conn) *peer {
	t.Cleanup(func() { _ = conn.Close() })
	return &peer{t: t, conn: conn, frames: netstring.NewReassembler(netstring.DefaultLimits())}
}

func (p *peer) readRaw(n int) string {
	buf := make([]byte, n)
	_, err := io.ReadFull(p.conn, buf)
	require.NoError(p.t, err)
	return string(buf)
}

func (p *peer) readMessage() common.Message {
	buf := make([]byte, 1024)
	for len(p.queue) == 0 {
		n, err := p.conn.Read(buf)
		require.NoError(p.t, err)
		payloads, err := p.frames.Feed(buf[:n])
		require.NoError(p.t, err)
		p.queue = append(p.queue, payloads...)
	}

	var msg common.Message
	require.NoError(p.t, json.Unmarshal(p.queue[0], &msg))
	p.queue = p.queue[1:]
	return msg
}

func (p *peer) sendRaw(raw string) {
	_, err := p.conn.Write([]byte(raw))
	require.NoError(p.t, err)
}

func (p *peer) reply(raw string) {
	p.sendRaw(string(netstring.Encode([]byte(raw))))
}

type callResult struct {
	value json.RawMessage
	err   error
}

func async(fn func() (json.RawMessage, error)) <-chan callResult {
	ch := make(chan callResult, 1)
	go func() {
		v, err := fn()
		ch <- callResult{v, err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan callResult) callResult {
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for call")
		return callResult{}
	}
}

func newTestConn(t *testing.T) (*Conn, *pipeConnector, gometrics.Registry) {
	registry := gometrics.NewRegistry()
	connector := newPipeConnector()
	c := NewConn("test", common.ClientConfig{}, connector, serializer.NewJSONSerializer(), registry)
	t.Cleanup(c.Disconnect)
	return c, connector, registry
}

// readyConn runs the full handshake against a peer
func readyConn(t *testing.T) (*Conn, *peer, gometrics.Registry) {
	c, connector, registry := newTestConn(t)
	require.NoError(t, c.Connect("plc", 9000))
	p := newPeer(t, <-connector.peers)

	upgraded := make(chan error, 1)
	go func() { upgraded <- c.UpgradeProtocolVersion() }()
	assert.Equal(t, common.ProtocolUpgrade, p.readRaw(len(common.ProtocolUpgrade)))
	p.reply(`{"result":"PROTO30"}`)
	require.NoError(t, <-upgraded)

	info := async(func() (json.RawMessage, error) {
		resp, err := c.AnnounceClientInfo("test")
		if err != nil {
			return nil, err
		}
		return resp.Result, nil
	})
	msg := p.readMessage()
	assert.Equal(t, common.ReqClientInfo, msg.R)
	assert.Equal(t, "test", msg.Name)
	p.reply(`{"result":"ok"}`)
	require.NoError(t, await(t, info).err)

	devices := make(chan []json.RawMessage, 1)
	go func() {
		list, err := c.GetDeviceList()
		assert.NoError(t, err)
		devices <- list
	}()
	assert.Equal(t, common.ReqDeviceList, p.readMessage().R)
	p.reply(`{"result":["sim1","boom1"]}`)
	assert.Len(t, <-devices, 2)

	return c, p, registry
}

// -----------------------------------------------------------
// Tests
// -----------------------------------------------------------

func TestHandshake(t *testing.T) {
	c, _, registry := readyConn(t)
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, "test", c.Label())

	for _, op := range []string{"upgrade", "client-info", "device-list"} {
		timer, ok := registry.Get("netcom.client." + op).(gometrics.Timer)
		require.True(t, ok, op)
		assert.Equal(t, int64(1), timer.Count(), op)
	}
}

func TestConnectDefaults(t *testing.T) {
	c, connector, _ := newTestConn(t)
	require.NoError(t, c.Connect("", 0))
	assert.Equal(t, "localhost:7878", connector.endpoint)
	assert.Equal(t, StateConnecting, c.State())

	// connecting twice is not allowed
	assert.ErrorIs(t, c.Connect("", 0), ErrInvalidState)
}

func TestConnectFailure(t *testing.T) {
	c, connector, _ := newTestConn(t)
	connector.err = errors.New("refused")

	closed := make(chan error, 1)
	c.OnClose(func(_ *Conn, cause error) { closed <- cause })

	err := c.Connect("plc", 1)
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, StateClosed, c.State())
	assert.ErrorAs(t, <-closed, &connErr)
}

func TestFramedRequestBeforeUpgrade(t *testing.T) {
	c, connector, _ := newTestConn(t)
	require.NoError(t, c.Connect("plc", 1))
	newPeer(t, <-connector.peers)

	_, err := c.Read("sim1", []string{"3x0005"})
	assert.ErrorIs(t, err, ErrInvalidState)

	// the upgrade itself is not allowed twice either
	c2, _, _ := newTestConn(t)
	assert.ErrorIs(t, c2.UpgradeProtocolVersion(), ErrInvalidState)
}

func TestReadWrite(t *testing.T) {
	c, p, registry := readyConn(t)

	read := async(func() (json.RawMessage, error) { return c.Read("sim1", []string{"3x0005", "3x0010"}) })
	msg := p.readMessage()
	assert.Equal(t, common.ReqRead, msg.R)
	assert.Equal(t, "sim1", msg.Device)
	assert.JSONEq(t, `["3x0005","3x0010"]`, string(msg.P))
	p.reply(`{"result":{"3x0005":1,"3x0010":2}}`)

	r := await(t, read)
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"3x0005":1,"3x0010":2}`, string(r.value))

	write := async(func() (json.RawMessage, error) {
		return c.Write("sim1", []common.Param{{Name: "3x0005", Value: 7}, {Name: "mode", Value: "auto"}})
	})
	msg = p.readMessage()
	assert.Equal(t, common.ReqWrite, msg.R)
	assert.Equal(t, "sim1", msg.Device)
	assert.JSONEq(t, `[["3x0005",7],["mode","auto"]]`, string(msg.P))
	p.reply(`{"result":[["3x0005",7],["mode","auto"]]}`)

	r = await(t, write)
	require.NoError(t, r.err)
	assert.JSONEq(t, `[["3x0005",7],["mode","auto"]]`, string(r.value))

	timer := registry.Get("netcom.client.read").(gometrics.Timer)
	assert.Equal(t, int64(1), timer.Count())
}

// TestProtocolErrorKeepsConnection checks that an error response only fails the request
func TestProtocolErrorKeepsConnection(t *testing.T) {
	c, p, _ := readyConn(t)

	read := async(func() (json.RawMessage, error) { return c.Read("nope", []string{"x"}) })
	p.readMessage()
	p.reply(`{"error":"unknown device"}`)

	r := await(t, read)
	var protoErr *ProtocolError
	require.ErrorAs(t, r.err, &protoErr)
	assert.Equal(t, "read", protoErr.Op)
	assert.JSONEq(t, `"unknown device"`, string(protoErr.Payload))
	assert.Equal(t, StateReady, c.State())

	read = async(func() (json.RawMessage, error) { return c.Read("sim1", []string{"x"}) })
	p.readMessage()
	p.reply(`{"result":{"x":0}}`)
	assert.NoError(t, await(t, read).err)
}

func TestRequestInFlight(t *testing.T) {
	c, p, _ := readyConn(t)

	first := async(func() (json.RawMessage, error) { return c.Read("sim1", []string{"a"}) })
	p.readMessage() // the first request is registered and written

	_, err := c.Read("sim1", []string{"b"})
	assert.ErrorIs(t, err, ErrRequestInFlight)

	p.reply(`{"result":{"a":1}}`)
	r := await(t, first)
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"a":1}`, string(r.value))
}

// TestChunkedResponse delivers a response byte by byte
func TestChunkedResponse(t *testing.T) {
	c, p, _ := readyConn(t)

	read := async(func() (json.RawMessage, error) { return c.Read("sim1", []string{"a"}) })
	p.readMessage()
	for _, b := range netstring.Encode([]byte(`{"result":{"a":123,"boo":200}}`)) {
		p.sendRaw(string([]byte{b}))
	}

	r := await(t, read)
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"a":123,"boo":200}`, string(r.value))
}

// TestUnsolicitedResponse makes sure a frame nobody waits for is dropped
func TestUnsolicitedResponse(t *testing.T) {
	c, p, _ := readyConn(t)

	// fed directly, so the frame is processed before the next request starts
	require.True(t, c.feed(netstring.Encode([]byte(`{"result":"stray"}`))))

	read := async(func() (json.RawMessage, error) { return c.Read("sim1", []string{"a"}) })
	p.readMessage()
	p.reply(`{"result":{"a":1}}`)

	r := await(t, read)
	require.NoError(t, r.err)
	assert.JSONEq(t, `{"a":1}`, string(r.value))
}

func TestFramingErrorDestroysConnection(t *testing.T) {
	c, p, _ := readyConn(t)

	var closes atomic.Int32
	causes := make(chan error, 1)
	c.OnClose(func(_ *Conn, cause error) {
		closes.Add(1)
		causes <- cause
	})

	read := async(func() (json.RawMessage, error) { return c.Read("sim1", []string{"a"}) })
	p.readMessage()
	p.sendRaw("5:abcde!")

	r := await(t, read)
	require.ErrorIs(t, r.err, ErrClosed)
	assert.ErrorIs(t, r.err, netstring.ErrBadTerminator)
	assert.ErrorIs(t, <-causes, netstring.ErrBadTerminator)
	assert.Equal(t, StateClosed, c.State())

	// further requests fail right away, the handler ran once
	_, err := c.Read("sim1", []string{"a"})
	assert.ErrorIs(t, err, ErrClosed)
	c.Disconnect()
	assert.Equal(t, int32(1), closes.Load())
}

func TestDecodeErrorDestroysConnection(t *testing.T) {
	c, p, _ := readyConn(t)

	read := async(func() (json.RawMessage, error) { return c.Read("sim1", []string{"a"}) })
	p.readMessage()
	p.reply(`{x}`)

	r := await(t, read)
	require.ErrorIs(t, r.err, ErrClosed)
	var decodeErr *DecodeError
	assert.ErrorAs(t, r.err, &decodeErr)
	assert.Equal(t, `{x}`, string(decodeErr.Payload))

	select {
	case <-c.Done():
	default:
		t.Fatal("connection should be closed")
	}
	assert.ErrorAs(t, c.Err(), &decodeErr)
}

func TestPeerCloseFailsPendingRequest(t *testing.T) {
	c, p, _ := readyConn(t)

	read := async(func() (json.RawMessage, error) { return c.Read("sim1", []string{"a"}) })
	p.readMessage()
	require.NoError(t, p.conn.Close())

	r := await(t, read)
	var closedErr *ClosedError
	require.ErrorAs(t, r.err, &closedErr)
	var connErr *ConnectionError
	assert.ErrorAs(t, closedErr.Cause, &connErr)
}

func TestDisconnectFailsPendingRequest(t *testing.T) {
	c, p, _ := readyConn(t)

	read := async(func() (json.RawMessage, error) { return c.Read("sim1", []string{"a"}) })
	p.readMessage()
	c.Disconnect()

	r := await(t, read)
	assert.ErrorIs(t, r.err, ErrClosed)
	assert.ErrorIs(t, r.err, ErrDisconnected)

	// handlers registered after the close run immediately
	ran := false
	c.OnClose(func(_ *Conn, cause error) { ran = errors.Is(cause, ErrDisconnected) })
	assert.True(t, ran)
}

func TestDeviceListIgnoresError(t *testing.T) {
	c, connector, _ := newTestConn(t)
	require.NoError(t, c.Connect("plc", 1))
	p := newPeer(t, <-connector.peers)

	upgraded := make(chan error, 1)
	go func() { upgraded <- c.UpgradeProtocolVersion() }()
	p.readRaw(len(common.ProtocolUpgrade))
	p.reply(`{}`)
	require.NoError(t, <-upgraded)
	assert.Equal(t, StateIdentifying, c.State())

	list := async(func() (json.RawMessage, error) {
		devices, err := c.GetDeviceList()
		assert.Empty(t, devices)
		return nil, err
	})
	p.readMessage()
	p.reply(`{"error":"not now"}`)
	assert.NoError(t, await(t, list).err)
}
