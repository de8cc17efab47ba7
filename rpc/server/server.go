package server

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/netcom/rpc/common"
	"github.com/ValentinKolb/netcom/rpc/serializer"
	"github.com/ValentinKolb/netcom/rpc/transport"
	"github.com/ValentinKolb/netcom/rpc/transport/netstring"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"io"
	"net"
	"os/signal"
	"runtime"
	"sort"
	"sync"
	"syscall"
)

var Logger = logger.GetLogger("server")

// DefaultDevice is registered when the configuration names no devices
const DefaultDevice = "sim1"

// readBufferSize is the size of a single socket read
const readBufferSize = 4096

// session is the state of one accepted connection
type session struct {
	conn net.Conn
	name string // announced via client-info, empty before
}

// Server is an in-process device server speaking the netcom protocol
type Server struct {
	config     common.ServerConfig
	connector  transport.IServerConnector
	serializer serializer.IRPCSerializer
	handler    IRequestHandler
	devices    *DeviceRegistry

	sessions *xsync.MapOf[uint64, session]
	nextID   *xsync.Counter
	requests *xsync.Counter

	mu       sync.Mutex // Protects listener and closed
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a new device simulator
// It takes a config, connector and serializer as parameters
//
// Usage:
//
//	s := server.NewServer(
//		common.ServerConfig{Endpoint: "localhost:7878", MaxConnections: 2},
//		tcp.NewTCPServerConnector(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.ListenAndServe(); err != nil {
//		panic(err)
//	}
func NewServer(
	config common.ServerConfig,
	connector transport.IServerConnector,
	serializer serializer.IRPCSerializer,
) *Server {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	devices := NewDeviceRegistry(config.Devices)
	if len(config.Devices) == 0 {
		devices.Add(DefaultDevice, nil)
	}

	Logger.Infof("Created device simulator")
	Logger.Debugf("%s", config.String())

	return &Server{
		config:     config,
		connector:  connector,
		serializer: serializer,
		handler:    NewDeviceHandler(),
		devices:    devices,
		sessions:   xsync.NewMapOf[uint64, session](),
		nextID:     xsync.NewCounter(),
		requests:   xsync.NewCounter(),
	}
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Listen binds the listener without accepting connections yet
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return net.ErrClosed
	}
	if s.listener != nil {
		return errors.New("server is already listening")
	}

	listener, err := s.connector.Listen(s.config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}
	s.listener = listener

	Logger.Infof("Listening on %s (%s) with up to %d connections",
		listener.Addr(), s.connector.GetName(), s.config.MaxConnections)
	return nil
}

// Addr returns the address of the listener, nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until Close is called, Listen must be called first
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return errors.New("server is not listening")
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		// Reject connections beyond the limit
		if limit := s.config.MaxConnections; limit > 0 && s.sessions.Size() >= limit {
			Logger.Warningf("Rejecting %s: %d connections already open", conn.RemoteAddr(), limit)
			_ = conn.Close()
			continue
		}

		if err := s.connector.UpgradeConnection(conn, s.config.Transport); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
		}

		// Sessions are registered under the lock so Close sees every one of them
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			_ = conn.Close()
			return nil
		}
		s.nextID.Inc()
		id := uint64(s.nextID.Value())
		s.sessions.Store(id, session{conn: conn})
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConnection(id, conn)
	}
}

// ListenAndServe combines Listen and Serve
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Close stops accepting, closes all open connections and waits for their handlers
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	s.sessions.Range(func(_ uint64, sess session) bool {
		_ = sess.conn.Close()
		return true
	})
	s.wg.Wait()

	Logger.Infof("Device simulator closed after %d requests", s.requests.Value())
	return err
}

// Devices returns the device registry of the simulator
func (s *Server) Devices() *DeviceRegistry {
	return s.devices
}

// Connections returns the number of open connections
func (s *Server) Connections() int {
	return s.sessions.Size()
}

// Requests returns the number of framed requests handled so far
func (s *Server) Requests() int64 {
	return s.requests.Value()
}

// ClientNames returns the sorted names announced by the open connections
func (s *Server) ClientNames() []string {
	var names []string
	s.sessions.Range(func(_ uint64, sess session) bool {
		if sess.name != "" {
			names = append(names, sess.name)
		}
		return true
	})
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handleConnection serves one connection until it is closed or misbehaves
func (s *Server) handleConnection(id uint64, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.sessions.Delete(id)
		_ = conn.Close()
	}()

	remote := conn.RemoteAddr()

	// The unframed upgrade line comes first
	upgrade := make([]byte, len(common.ProtocolUpgrade))
	if _, err := io.ReadFull(conn, upgrade); err != nil {
		Logger.Debugf("Connection from %s closed before upgrade: %v", remote, err)
		return
	}
	if string(upgrade) != common.ProtocolUpgrade {
		Logger.Warningf("Connection from %s sent %q instead of the protocol upgrade", remote, upgrade)
		return
	}
	if err := s.send(conn, result(common.ProtocolUpgrade[:len(common.ProtocolUpgrade)-1])); err != nil {
		Logger.Errorf("Failed to acknowledge upgrade: %v", err)
		return
	}

	reassembler := netstring.NewReassembler(netstring.Limits{MaxPayloadBytes: s.config.FrameLimit()})
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			frames, ferr := reassembler.Feed(buf[:n])
			for _, frame := range frames {
				if werr := s.send(conn, s.handle(id, conn, frame)); werr != nil {
					Logger.Errorf("Failed to write response to %s: %v", remote, werr)
					return
				}
			}
			if ferr != nil {
				Logger.Warningf("Closing connection from %s: %v", remote, ferr)
				return
			}
		}

		// Case EOF: Connection closed by client
		if err == io.EOF {
			Logger.Debugf("Connection from %s closed by client", remote)
			return
		}

		// Case error: log and close connection
		if err != nil {
			if !s.isClosed() {
				Logger.Errorf("Error reading from %s: %v", remote, err)
			}
			return
		}
	}
}

// handle answers one framed request
func (s *Server) handle(id uint64, conn net.Conn, payload []byte) *common.Message {
	s.requests.Inc()

	var req common.Message
	if err := s.serializer.Deserialize(payload, &req); err != nil {
		return common.NewErrorResponse(fmt.Sprintf("failed to deserialize request: %s", err))
	}

	if req.R == common.ReqClientInfo {
		s.sessions.Store(id, session{conn: conn, name: req.Name})
		Logger.Infof("Client %q connected from %s", req.Name, conn.RemoteAddr())
		return result("ok")
	}

	return s.handler.Handle(&req, s.devices)
}

// send writes msg as a single frame
func (s *Server) send(conn net.Conn, msg *common.Message) error {
	payload, err := s.serializer.Serialize(*msg)
	if err != nil {
		payload, err = s.serializer.Serialize(*common.NewErrorResponse(fmt.Sprintf("failed to serialize response: %s", err)))
		if err != nil {
			return err
		}
	}
	_, err = conn.Write(netstring.Encode(payload))
	return err
}
