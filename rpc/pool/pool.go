package pool

import (
	"container/list"
	"fmt"
	"github.com/ValentinKolb/netcom/rpc/client"
	"github.com/ValentinKolb/netcom/rpc/common"
	"github.com/ValentinKolb/netcom/rpc/serializer"
	"github.com/ValentinKolb/netcom/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"io"
	"sync"
)

var Logger = logger.GetLogger("pool")

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// acquireResult resolves a waiter, exactly one field is set
type acquireResult struct {
	conn *client.Conn
	err  error
}

// waiter is a pending Acquire call
type waiter struct {
	ch       chan acquireResult // buffered, receives exactly one result
	elem     *list.Element      // position in the queue, nil once dequeued
	creating bool               // a connection is being created on its behalf
}

// member is the pool's bookkeeping for one tracked connection
type member struct {
	slot        int
	handshaking bool
	inUse       bool // handed out and not yet released
}

// Stats is a snapshot of the pool state
type Stats struct {
	Tracked int // open or opening connections owned by the pool
	Idle    int // connections ready for Acquire
	Waiters int // Acquire calls waiting for a connection
}

// -----------------------------------------------------------
// Pool
// -----------------------------------------------------------

// Pool manages a bounded set of connections to one device server.
//
// Connections are created lazily when Acquire finds no idle connection, and
// only become available after the full handshake. Idle connections are handed
// out most recently released first; waiting callers are served in the order
// they called Acquire.
type Pool struct {
	config     common.ClientConfig
	connector  transport.IClientConnector
	serializer serializer.IRPCSerializer
	registry   gometrics.Registry
	metrics    *poolMetrics

	mu         sync.Mutex // Protects everything below
	tracked    map[*client.Conn]*member
	idle       []*client.Conn
	waiters    *list.List
	generation uint64 // Incremented by Disconnect
}

// NewPool creates a new pool. No connection is opened until the first Acquire.
//
// Usage:
//
//	p := pool.NewPool(
//		common.ClientConfig{Address: "localhost", Port: 7878, ClientInfo: "reader", MaxConnections: 3},
//		tcp.NewTCPClientConnector(),
//		serializer.NewJSONSerializer(),
//	)
//
//	conn, err := p.Acquire()
//	if err != nil {
//		return err
//	}
//	defer p.Release(conn)
//	result, err := conn.Read("sim1", []string{"3x0005"})
func NewPool(
	config common.ClientConfig,
	connector transport.IClientConnector,
	serializer serializer.IRPCSerializer,
) *Pool {
	p := &Pool{
		config:     config.WithDefaults(),
		connector:  connector,
		serializer: serializer,
		registry:   gometrics.NewRegistry(),
		tracked:    make(map[*client.Conn]*member),
		waiters:    list.New(),
	}
	p.metrics = newPoolMetrics(p)

	Logger.Infof("Created pool for %s:%d with up to %d connections using %s transport",
		p.config.Address, p.config.Port, p.config.MaxConnections, connector.GetName())

	return p
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Acquire returns a ready connection. It blocks until one is idle, a new one
// finished its handshake, or the creation started on behalf of this call
// failed. The connection must be handed back with Release.
func (p *Pool) Acquire() (*client.Conn, error) {
	p.metrics.acquires.Inc()

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		c := p.idle[n-1]
		p.idle[n-1] = nil
		p.idle = p.idle[:n-1]
		p.tracked[c].inUse = true
		p.mu.Unlock()
		return c, nil
	}

	w := &waiter{ch: make(chan acquireResult, 1)}
	w.elem = p.waiters.PushBack(w)
	p.growLocked()
	p.mu.Unlock()

	res := <-w.ch
	if res.err != nil {
		return nil, fmt.Errorf("acquire connection: %w", res.err)
	}
	return res.conn, nil
}

// Release hands a connection back. It goes to the longest waiting caller, or
// onto the idle stack if nobody waits. Closed connections are dropped, and a
// connection that is not currently handed out is ignored.
func (p *Pool) Release(c *client.Conn) {
	if c == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.tracked[c]
	if !ok {
		Logger.Debugf("[%s] released connection is not owned by the pool", c.Label())
		return
	}
	if !m.inUse {
		Logger.Warningf("[%s] connection released twice", c.Label())
		return
	}
	m.inUse = false

	if c.State() == client.StateClosed {
		p.evictLocked(c)
		p.growLocked()
		return
	}

	p.handOffLocked(c)
}

// Disconnect closes every connection of the pool. Afterwards the pool behaves
// like a new one.
//
// Callers still blocked in Acquire are NOT resolved: they are dropped from the
// queue and keep waiting forever. This mirrors the behavior of the protocol's
// reference client; callers must not Disconnect while Acquire calls are pending.
func (p *Pool) Disconnect() {
	p.mu.Lock()
	conns := make([]*client.Conn, 0, len(p.tracked))
	for c := range p.tracked {
		conns = append(conns, c)
	}
	p.tracked = make(map[*client.Conn]*member)
	p.idle = nil
	if n := p.waiters.Len(); n > 0 {
		Logger.Warningf("Disconnect leaves %d waiting Acquire calls unresolved", n)
	}
	p.waiters = list.New()
	p.generation++
	p.mu.Unlock()

	for _, c := range conns {
		c.Disconnect()
	}

	Logger.Infof("Disconnected %d connections", len(conns))
}

// Stats returns a snapshot of the pool state
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Tracked: len(p.tracked),
		Idle:    len(p.idle),
		Waiters: p.waiters.Len(),
	}
}

// Config returns the effective configuration of the pool
func (p *Pool) Config() common.ClientConfig {
	return p.config
}

// Registry returns the go-metrics registry holding the latency timers of all
// connections of the pool
func (p *Pool) Registry() gometrics.Registry {
	return p.registry
}

// WritePrometheus writes the pool metrics in Prometheus text format
func (p *Pool) WritePrometheus(w io.Writer) {
	p.metrics.set.WritePrometheus(w)
}

// --------------------------------------------------------------------------
// Helper Methods (p.mu must be held for all *Locked methods)
// --------------------------------------------------------------------------

// growLocked starts a connection for every waiter that has none in progress,
// as long as the pool has capacity left
func (p *Pool) growLocked() {
	for e := p.waiters.Front(); e != nil && len(p.tracked) < p.config.MaxConnections; e = e.Next() {
		w := e.Value.(*waiter)
		if w.creating {
			continue
		}

		w.creating = true
		c := p.newConnLocked()
		go p.establish(c, w, p.generation)
	}
}

// newConnLocked creates and tracks a connection in the lowest free slot
func (p *Pool) newConnLocked() *client.Conn {
	used := make(map[int]bool, len(p.tracked))
	for _, m := range p.tracked {
		used[m.slot] = true
	}
	slot := 1
	for used[slot] {
		slot++
	}

	c := client.NewConn(p.config.Label(slot), p.config, p.connector, p.serializer, p.registry)
	c.OnClose(p.onClose)
	c.OnError(p.onError)
	p.tracked[c] = &member{slot: slot, handshaking: true}
	p.metrics.created.Inc()

	Logger.Debugf("[%s] creating connection (%d/%d tracked)", c.Label(), len(p.tracked), p.config.MaxConnections)
	return c
}

// handOffLocked gives a ready tracked connection to the head of the queue or
// makes it idle
func (p *Pool) handOffLocked(c *client.Conn) {
	if e := p.waiters.Front(); e != nil {
		w := p.waiters.Remove(e).(*waiter)
		w.elem = nil
		p.tracked[c].inUse = true
		w.ch <- acquireResult{conn: c}
		return
	}

	p.idle = append(p.idle, c)
}

// evictLocked forgets a connection, it reports whether it was tracked
func (p *Pool) evictLocked(c *client.Conn) bool {
	if _, ok := p.tracked[c]; !ok {
		return false
	}
	delete(p.tracked, c)

	for i, idle := range p.idle {
		if idle == c {
			p.idle = append(p.idle[:i], p.idle[i+1:]...)
			break
		}
	}

	p.metrics.evictions.Inc()
	return true
}

// establish runs the handshake of a new connection and resolves the outcome
func (p *Pool) establish(c *client.Conn, w *waiter, generation uint64) {
	if err := p.handshake(c); err != nil {
		p.metrics.handshakeFailures.Inc()
		Logger.Warningf("[%s] handshake failed: %v", c.Label(), err)

		// runs the close handler, which evicts the connection
		c.Disconnect()

		p.mu.Lock()
		defer p.mu.Unlock()

		p.evictLocked(c)

		// only the waiter that triggered this attempt is rejected, and only
		// if it is still waiting and the pool was not disconnected meanwhile
		if generation == p.generation && w.elem != nil {
			p.waiters.Remove(w.elem)
			w.elem = nil
			w.ch <- acquireResult{err: err}
		}
		p.growLocked()
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if generation != p.generation {
		return
	}

	// closed right after the handshake, the waiter needs a new attempt
	m, ok := p.tracked[c]
	if !ok {
		w.creating = false
		p.growLocked()
		return
	}

	m.handshaking = false
	Logger.Infof("[%s] connection ready", c.Label())
	p.handOffLocked(c)
}

// handshake brings a new connection to the ready state
func (p *Pool) handshake(c *client.Conn) error {
	if err := c.Connect(p.config.Address, p.config.Port); err != nil {
		return err
	}
	if err := c.UpgradeProtocolVersion(); err != nil {
		return fmt.Errorf("upgrade protocol: %w", err)
	}
	if _, err := c.AnnounceClientInfo(c.Label()); err != nil {
		return fmt.Errorf("announce client info: %w", err)
	}
	if _, err := c.GetDeviceList(); err != nil {
		return fmt.Errorf("get device list: %w", err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Connection notifications
// --------------------------------------------------------------------------

// onClose evicts a closed connection and lets waiters use the freed capacity.
// Connections closing during their handshake are only evicted, establish
// resolves their waiter first.
func (p *Pool) onClose(c *client.Conn, cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.tracked[c]
	if !ok {
		return
	}
	p.evictLocked(c)
	if m.handshaking {
		return
	}

	Logger.Infof("[%s] connection closed: %v", c.Label(), cause)
	p.growLocked()
}

// onError only logs, the close that follows a socket error evicts the connection
func (p *Pool) onError(c *client.Conn, err error) {
	Logger.Warningf("[%s] connection error: %v", c.Label(), err)
}
