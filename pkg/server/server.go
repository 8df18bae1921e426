package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/indigo-protocol/indigo-go/pkg/log"
	"github.com/indigo-protocol/indigo-go/pkg/version"
	"github.com/indigo-protocol/indigo-go/pkg/wire"
)

// DefaultPort is the conventional TCP port for the JSON client side.
const DefaultPort = 7624

var (
	// ErrAlreadyRunning reports a second Start on a running server.
	ErrAlreadyRunning = errors.New("server: already running")
	// ErrDriverExists reports an attach under a name already in use.
	ErrDriverExists = errors.New("server: driver already attached")
)

// Config configures a Server. All callbacks are optional and must not
// block; they run on server goroutines.
type Config struct {
	// Address to listen on for JSON clients (default ":7624").
	Address string

	// Policy selects decode error handling on both encodings.
	Policy wire.Policy

	// Logger for protocol logging (optional).
	Logger log.Logger

	// OnClientConnect is called when a client connection is established.
	OnClientConnect func(c *ClientConn)

	// OnClientDisconnect is called when a client connection closes.
	OnClientDisconnect func(c *ClientConn)

	// OnDriverAttached is called when a driver channel is registered.
	OnDriverAttached func(name string)

	// OnDriverDetached is called when a driver channel goes away. The
	// error is nil on a clean detach.
	OnDriverDetached func(name string, err error)

	// OnError is called for failures outside a single message.
	OnError func(err error)
}

// Server accepts JSON clients and hosts XML drivers.
type Server struct {
	cfg      Config
	listener net.Listener

	clients   map[*ClientConn]struct{}
	clientsMu sync.RWMutex

	// drivers and routes are guarded together; routes maps a device
	// name to the driver that defined it.
	drivers  map[string]*driverConn
	routes   map[string]*driverConn
	driverMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a server. Start must be called before clients can
// connect; drivers may be attached at any time.
func New(cfg Config) *Server {
	if cfg.Address == "" {
		cfg.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	return &Server{
		cfg:     cfg,
		clients: make(map[*ClientConn]struct{}),
		drivers: make(map[string]*driverConn),
		routes:  make(map[string]*driverConn),
	}
}

// Start begins accepting client connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return ErrAlreadyRunning
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	listener, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Address, err)
	}
	s.listener = listener
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener, every client connection and every driver
// channel, and waits for all server goroutines to finish.
func (s *Server) Stop() error {
	if !s.running.Load() {
		return nil
	}
	s.running.Store(false)
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.clientsMu.Lock()
	for c := range s.clients {
		c.Close()
	}
	s.clientsMu.Unlock()

	s.driverMu.Lock()
	drivers := make([]*driverConn, 0, len(s.drivers))
	for _, dc := range s.drivers {
		drivers = append(drivers, dc)
	}
	s.driverMu.Unlock()
	for _, dc := range drivers {
		dc.Close()
	}

	s.wg.Wait()
	return nil
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Drivers returns the names of the attached drivers.
func (s *Server) Drivers() []string {
	s.driverMu.RLock()
	defer s.driverMu.RUnlock()
	names := make([]string, 0, len(s.drivers))
	for name := range s.drivers {
		names = append(names, name)
	}
	return names
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.running.Load() && s.cfg.OnError != nil {
				s.cfg.OnError(fmt.Errorf("accept: %w", err))
			}
			if !s.running.Load() {
				return
			}
			continue
		}

		s.wg.Add(1)
		go s.handleClient(conn)
	}
}

func (s *Server) handleClient(conn net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	enc := wire.NewEncoder(conn)
	if s.cfg.Logger != nil {
		enc.SetLogger(s.cfg.Logger, connID)
	}

	c := &ClientConn{
		conn:       conn,
		enc:        enc,
		server:     s,
		closeCh:    make(chan struct{}),
		remoteAddr: conn.RemoteAddr(),
		connID:     connID,
	}

	s.logConn(connID, c.remoteAddr.String(), "", "connected", "")

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()

	if s.cfg.OnClientConnect != nil {
		s.cfg.OnClientConnect(c)
	}

	c.readLoop()

	s.clientsMu.Lock()
	delete(s.clients, c)
	s.clientsMu.Unlock()

	s.logConn(connID, c.remoteAddr.String(), "connected", "disconnected", "")

	if s.cfg.OnClientDisconnect != nil {
		s.cfg.OnClientDisconnect(c)
	}
}

// broadcast sends one message to every connected client. A client
// whose send fails is closed; its read loop handles the cleanup.
func (s *Server) broadcast(msg *wire.Message) {
	s.clientsMu.RLock()
	conns := make([]*ClientConn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.clientsMu.RUnlock()

	for _, c := range conns {
		if err := c.Send(msg); err != nil {
			c.Close()
		}
	}
}

// handleGetProperties answers a protocol switch itself and forwards
// the enumeration request to the addressed driver, or to all drivers
// when no device is named.
func (s *Server) handleGetProperties(c *ClientConn, gp *wire.GetProperties) {
	if gp.Switch == version.Current {
		c.Send(&wire.Message{
			Type:           wire.TypeSwitchProtocol,
			SwitchProtocol: &wire.SwitchProtocol{Version: version.Current},
		})
	}

	fwd := &wire.Message{Type: wire.TypeGetProperties, GetProperties: &wire.GetProperties{
		Version: version.CurrentWire,
		Client:  gp.Client,
		Device:  gp.Device,
		Name:    gp.Name,
	}}

	for _, dc := range s.driversFor(gp.Device) {
		if err := dc.writer.WriteMessage(fwd); err != nil {
			dc.Close()
		}
	}
}

// routeNew forwards a change request to the driver owning the device.
// Requests for unknown devices are dropped.
func (s *Server) routeNew(msg *wire.Message) {
	s.driverMu.RLock()
	dc := s.routes[msg.New.Device]
	s.driverMu.RUnlock()
	if dc == nil {
		return
	}
	if err := dc.writer.WriteMessage(msg); err != nil {
		dc.Close()
	}
}

// driversFor returns the owning driver of device, or every driver when
// device is empty or not yet routed.
func (s *Server) driversFor(device string) []*driverConn {
	s.driverMu.RLock()
	defer s.driverMu.RUnlock()

	if device != "" {
		if dc, ok := s.routes[device]; ok {
			return []*driverConn{dc}
		}
	}
	all := make([]*driverConn, 0, len(s.drivers))
	for _, dc := range s.drivers {
		all = append(all, dc)
	}
	return all
}

func (s *Server) logConn(connID, remoteAddr, from, to, reason string) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Encoding:     log.EncodingJSON,
		Category:     log.CategoryState,
		LocalRole:    log.RoleServer,
		RemoteAddr:   remoteAddr,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

// ClientConn is one JSON client connection.
type ClientConn struct {
	conn       net.Conn
	enc        *wire.Encoder
	server     *Server
	closeCh    chan struct{}
	closeOnce  sync.Once
	remoteAddr net.Addr
	connID     string
}

// ConnID returns the unique connection identifier.
func (c *ClientConn) ConnID() string {
	return c.connID
}

// RemoteAddr returns the peer address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.remoteAddr
}

// Send writes one message to the client. Safe for concurrent use.
func (c *ClientConn) Send(msg *wire.Message) error {
	return c.enc.Encode(msg)
}

// Close closes the connection.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

func (c *ClientConn) readLoop() {
	dec := wire.NewStreamDecoder(c.server.cfg.Policy)
	if c.server.cfg.Logger != nil {
		dec.SetLogger(c.server.cfg.Logger, c.connID)
	}

	buf := make([]byte, 4096)
	for {
		select {
		case <-c.closeCh:
			return
		case <-c.server.ctx.Done():
			return
		default:
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				msg, derr := dec.Next()
				if errors.Is(derr, wire.ErrIncomplete) {
					break
				}
				if derr != nil {
					c.Close()
					return
				}
				c.dispatch(msg)
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *ClientConn) dispatch(msg *wire.Message) {
	switch msg.Type {
	case wire.TypeGetProperties:
		c.server.handleGetProperties(c, msg.GetProperties)
	case wire.TypeNew:
		c.server.routeNew(msg)
	default:
		// Clients have no other say; drop.
	}
}
