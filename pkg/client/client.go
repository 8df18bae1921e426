// Package client implements the controlling side of the protocol: it
// connects to a server, mirrors the remote device population into a
// registry, and sends change requests over the concatenated-JSON
// encoding.
//
// The mirror is authoritative for the peer's last announced state. All
// callbacks fire sequentially on the connection's read goroutine, so a
// callback sees the registry exactly as the message left it; callbacks
// must not block.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/indigo-protocol/indigo-go/pkg/log"
	"github.com/indigo-protocol/indigo-go/pkg/model"
	"github.com/indigo-protocol/indigo-go/pkg/version"
	"github.com/indigo-protocol/indigo-go/pkg/wire"
)

// Client errors.
var (
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrReadOnly         = errors.New("property is read-only")
)

// Config carries client settings and event callbacks. All callbacks are
// optional and run on the read goroutine in message order.
type Config struct {
	// Name identifies this client in getProperties requests.
	Name string

	// Policy selects how malformed input is treated.
	Policy wire.Policy

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger

	// OnPropertyDefined fires after a newly announced property was
	// added to the registry.
	OnPropertyDefined func(p *model.Property)

	// OnPropertyChanged fires after an update was applied to a property.
	OnPropertyChanged func(p *model.Property)

	// OnPropertyDeleted fires before a property is removed; the
	// property still carries its last state.
	OnPropertyDeleted func(p *model.Property)

	// OnDeviceDeleted fires after a device and all its properties were
	// removed.
	OnDeviceDeleted func(device string)

	// OnDeviceMessage fires for messages directed at a device.
	OnDeviceMessage func(device, message, timestamp string)

	// OnMessage fires for connection-wide messages.
	OnMessage func(message, timestamp string)

	// OnUnknown receives every message the client has no behavior for.
	OnUnknown func(msg *wire.Message)

	// OnConnectionLost fires when the connection fails. It does not
	// fire on explicit Close.
	OnConnectionLost func(err error)
}

// Client mirrors a remote device population over one connection.
type Client struct {
	cfg      Config
	registry *model.Registry

	mu     sync.RWMutex
	conn   io.ReadWriteCloser
	enc    *wire.Encoder
	connID string
	done   chan struct{}

	watchMu  sync.Mutex
	watches  []watchEntry
	watchSeq int
}

// New creates a disconnected client with an empty registry.
func New(cfg Config) *Client {
	return &Client{
		cfg:      cfg,
		registry: model.NewRegistry(),
	}
}

// Registry returns the device mirror. It empties when a new connection
// is attached and refills as the peer announces.
func (c *Client) Registry() *model.Registry {
	return c.registry
}

// Devices returns the mirrored devices in announcement order.
func (c *Client) Devices() []*model.Device {
	return c.registry.Devices()
}

// Device returns a mirrored device by name.
func (c *Client) Device(name string) (*model.Device, error) {
	return c.registry.Get(name)
}

// Property returns a mirrored property.
func (c *Client) Property(device, property string) (*model.Property, error) {
	dev, err := c.registry.Get(device)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", device, err)
	}
	p, err := dev.Property(property)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", device, property, err)
	}
	return p, nil
}

// Connected reports whether a connection is currently attached.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

// Done returns a channel closed when the current connection ends. It
// blocks forever before the first Attach or Connect.
func (c *Client) Done() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// Connect dials the server, attaches the connection, and requests the
// full property population.
func (c *Client) Connect(ctx context.Context, addr string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if err := c.Attach(conn); err != nil {
		conn.Close()
		return err
	}
	return c.GetProperties()
}

// Attach wires the client to an established connection and starts the
// read loop. The registry is emptied first; the peer's announcements
// rebuild it. Attach does not request properties; see GetProperties.
func (c *Client) Attach(conn io.ReadWriteCloser) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	c.registry.Release()
	connID := uuid.NewString()

	enc := wire.NewEncoder(conn)
	dec := wire.NewStreamDecoder(c.cfg.Policy)
	if c.cfg.Logger != nil {
		enc.SetLogger(c.cfg.Logger, connID)
		dec.SetLogger(c.cfg.Logger, connID)
	}

	c.conn = conn
	c.enc = enc
	c.connID = connID
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	c.logState(connID, "idle", "connected", "connection attached")

	go c.readLoop(conn, dec, done)
	return nil
}

// Close detaches and closes the current connection without firing
// OnConnectionLost. The registry keeps its last state for inspection.
func (c *Client) Close() error {
	conn, _ := c.detach()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// detach clears the connection fields and returns the previous
// connection, if any, for the caller to close.
func (c *Client) detach() (io.ReadWriteCloser, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conn := c.conn
	connID := c.connID
	c.conn = nil
	c.enc = nil
	c.connID = ""
	return conn, connID
}

func (c *Client) readLoop(conn io.ReadWriteCloser, dec *wire.StreamDecoder, done chan struct{}) {
	defer close(done)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			dec.Feed(buf[:n])
			for {
				msg, derr := dec.Next()
				if errors.Is(derr, wire.ErrIncomplete) {
					break
				}
				if derr != nil {
					c.lost(conn, derr)
					return
				}
				c.apply(msg)
			}
		}
		if err != nil {
			c.lost(conn, err)
			return
		}
	}
}

// lost handles a connection failure seen by the read loop. A connection
// already detached by Close stays silent.
func (c *Client) lost(conn io.ReadWriteCloser, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	connID := c.connID
	c.conn = nil
	c.enc = nil
	c.connID = ""
	c.mu.Unlock()

	conn.Close()
	c.registry.Release()
	c.logState(connID, "connected", "lost", err.Error())

	if c.cfg.OnConnectionLost != nil {
		c.cfg.OnConnectionLost(err)
	}
}

func (c *Client) logState(connID, from, to, reason string) {
	if c.cfg.Logger == nil {
		return
	}
	c.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Encoding:     log.EncodingJSON,
		Category:     log.CategoryState,
		LocalRole:    log.RoleClient,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			Name:     c.cfg.Name,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

// GetProperties asks the peer to announce every device and property.
func (c *Client) GetProperties() error {
	return c.send(&wire.Message{
		Type: wire.TypeGetProperties,
		GetProperties: &wire.GetProperties{
			Version: version.CurrentWire,
			Client:  c.cfg.Name,
		},
	})
}

// RequestProperties asks the peer to re-announce one device, or one
// property of it when property is non-empty.
func (c *Client) RequestProperties(device, property string) error {
	return c.send(&wire.Message{
		Type: wire.TypeGetProperties,
		GetProperties: &wire.GetProperties{
			Version: version.CurrentWire,
			Client:  c.cfg.Name,
			Device:  device,
			Name:    property,
		},
	})
}

// Send writes one pre-built message to the peer. Most callers want the
// typed operations; Send covers vocabulary extensions.
func (c *Client) Send(msg *wire.Message) error {
	return c.send(msg)
}

func (c *Client) send(msg *wire.Message) error {
	c.mu.RLock()
	enc := c.enc
	c.mu.RUnlock()
	if enc == nil {
		return ErrNotConnected
	}
	return enc.Encode(msg)
}
