// Package driver implements the device side of the protocol: it hosts
// devices, answers property enumeration requests over the line-oriented
// XML encoding, and dispatches incoming change requests to handlers.
//
// A driver owns one connection at a time, conventionally its stdio when
// spawned by a server. Serve reads messages until the input closes;
// handlers run on the serve goroutine, so a driver processes requests
// strictly in arrival order.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/indigo-protocol/indigo-go/pkg/log"
	"github.com/indigo-protocol/indigo-go/pkg/version"
	"github.com/indigo-protocol/indigo-go/pkg/wire"
)

// Driver errors.
var (
	ErrDeviceExists = errors.New("device already registered")
	ErrNotServing   = errors.New("driver is not serving a connection")
)

// Config carries driver settings. The zero value of every field is
// usable: unnamed driver, lenient input handling, no logging.
type Config struct {
	// Name identifies the driver in log events.
	Name string

	// Policy selects how malformed input is treated. Drivers default
	// to lenient so one bad element does not take the device down.
	Policy wire.Policy

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger

	// OnUnknown receives every message the driver has no behavior for:
	// vocabulary the driver does not act on as well as elements outside
	// the vocabulary. Nil ignores them.
	OnUnknown func(msg *wire.Message)
}

// Driver hosts devices and serves them over one connection.
type Driver struct {
	cfg Config

	mu      sync.RWMutex
	devices map[string]*Device
	order   []*Device
	writer  *wire.Writer
}

// New creates a driver with no devices.
func New(cfg Config) *Driver {
	return &Driver{
		cfg:     cfg,
		devices: make(map[string]*Device),
	}
}

// Name returns the driver name from its config.
func (d *Driver) Name() string {
	return d.cfg.Name
}

// AddDevice registers a device with the driver. Device names are unique
// per driver.
func (d *Driver) AddDevice(dev *Device) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.devices[dev.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDeviceExists, dev.Name())
	}
	dev.drv = d
	d.devices[dev.Name()] = dev
	d.order = append(d.order, dev)
	return nil
}

// Device returns a registered device by name.
func (d *Driver) Device(name string) (*Device, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	dev, ok := d.devices[name]
	return dev, ok
}

// Devices returns the registered devices in registration order.
func (d *Driver) Devices() []*Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]*Device(nil), d.order...)
}

// Serve runs the driver over one connection until the input ends or the
// context is cancelled. Cancellation is observed between messages; close
// r to unblock a pending read.
func (d *Driver) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	tok := wire.NewTokenizer(r, d.cfg.Policy)
	wr := wire.NewWriter(w)
	if d.cfg.Logger != nil {
		tok.SetLogger(d.cfg.Logger, d.cfg.Name)
		wr.SetLogger(d.cfg.Logger, d.cfg.Name)
	}

	d.setWriter(wr)
	defer d.setWriter(nil)
	d.logState("idle", "serving", "connection accepted")
	defer d.logState("serving", "closed", "input ended")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := tok.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := d.dispatch(msg); err != nil {
			return err
		}
	}
}

func (d *Driver) setWriter(w *wire.Writer) {
	d.mu.Lock()
	d.writer = w
	d.mu.Unlock()
}

func (d *Driver) currentWriter() (*wire.Writer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.writer == nil {
		return nil, ErrNotServing
	}
	return d.writer, nil
}

func (d *Driver) dispatch(msg *wire.Message) error {
	switch msg.Type {
	case wire.TypeGetProperties:
		return d.handleGetProperties(msg.GetProperties)
	case wire.TypeNew:
		d.handleNew(msg)
		return nil
	default:
		if d.cfg.OnUnknown != nil {
			d.cfg.OnUnknown(msg)
		}
		return nil
	}
}

// handleGetProperties acknowledges a protocol switch, then announces the
// requested device or every device. The acknowledgement goes out before
// any definition so the peer can adjust its parser first.
func (d *Driver) handleGetProperties(gp *wire.GetProperties) error {
	wr, err := d.currentWriter()
	if err != nil {
		return err
	}

	if gp.Switch == version.Current {
		ack := &wire.Message{
			Type:           wire.TypeSwitchProtocol,
			SwitchProtocol: &wire.SwitchProtocol{Version: version.Current},
		}
		if err := wr.WriteMessage(ack); err != nil {
			return err
		}
	}

	for _, dev := range d.Devices() {
		if gp.Device != "" && gp.Device != dev.Name() {
			continue
		}
		if err := dev.sendAllDefinitions(wr); err != nil {
			return err
		}
	}
	return nil
}

// handleNew routes a change request to the owning device's handler.
// Requests for unknown devices or properties are dropped; the requester
// learns nothing changed by not receiving an update.
func (d *Driver) handleNew(msg *wire.Message) {
	nv := msg.New

	dev, ok := d.Device(nv.Device)
	if !ok {
		return
	}
	prop, err := dev.model.Property(nv.Name)
	if err != nil {
		return
	}

	updates := make([]Update, 0, len(nv.Items))
	for _, it := range nv.Items {
		updates = append(updates, Update{
			Name:   it.Name,
			Value:  it.Value,
			Size:   it.Size,
			Format: it.Format,
			URL:    it.URL,
		})
	}

	if h := dev.handlerFor(nv.Name); h != nil {
		h(prop, updates)
	}
}

func (d *Driver) logState(from, to, reason string) {
	if d.cfg.Logger == nil {
		return
	}
	d.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: d.cfg.Name,
		Direction:    log.DirectionIn,
		Encoding:     log.EncodingXML,
		Category:     log.CategoryState,
		LocalRole:    log.RoleDriver,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			Name:     d.cfg.Name,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}
