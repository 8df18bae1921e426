package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/indigo-protocol/indigo-go/pkg/driver"
	"github.com/indigo-protocol/indigo-go/pkg/log"
	"github.com/indigo-protocol/indigo-go/pkg/version"
	"github.com/indigo-protocol/indigo-go/pkg/wire"
)

// driverConn is one attached XML driver channel.
type driverConn struct {
	name   string
	rwc    io.ReadWriteCloser
	writer *wire.Writer
	tok    *wire.Tokenizer
	server *Server
	connID string

	closeOnce sync.Once

	// devices this driver has defined, in definition order. Guarded by
	// server.driverMu.
	devices     map[string]struct{}
	deviceOrder []string
}

// AttachDriver registers an XML driver channel under name and starts
// serving it. The server immediately asks the driver for its
// definitions, so the route table fills before any client asks.
func (s *Server) AttachDriver(name string, rwc io.ReadWriteCloser) error {
	connID := uuid.New().String()

	writer := wire.NewWriter(rwc)
	tok := wire.NewTokenizer(rwc, s.cfg.Policy)
	if s.cfg.Logger != nil {
		writer.SetLogger(s.cfg.Logger, connID)
		tok.SetLogger(s.cfg.Logger, connID)
	}

	dc := &driverConn{
		name:    name,
		rwc:     rwc,
		writer:  writer,
		tok:     tok,
		server:  s,
		connID:  connID,
		devices: make(map[string]struct{}),
	}

	s.driverMu.Lock()
	if _, ok := s.drivers[name]; ok {
		s.driverMu.Unlock()
		return fmt.Errorf("%w: %s", ErrDriverExists, name)
	}
	s.drivers[name] = dc
	s.driverMu.Unlock()

	s.logDriver(connID, name, "", "attached", "")
	if s.cfg.OnDriverAttached != nil {
		s.cfg.OnDriverAttached(name)
	}

	s.wg.Add(1)
	go dc.run()
	return nil
}

// AttachLocal hosts an in-process driver over a pipe. The driver's
// serve loop runs on its own goroutine until ctx is cancelled or the
// server detaches it.
func (s *Server) AttachLocal(ctx context.Context, drv *driver.Driver) error {
	serverEnd, driverEnd := net.Pipe()

	go func() {
		drv.Serve(ctx, driverEnd, driverEnd)
		driverEnd.Close()
	}()

	if err := s.AttachDriver(drv.Name(), serverEnd); err != nil {
		serverEnd.Close()
		return err
	}
	return nil
}

// Close closes the driver channel; the serve goroutine then detaches.
func (dc *driverConn) Close() error {
	var err error
	dc.closeOnce.Do(func() {
		err = dc.rwc.Close()
	})
	return err
}

// run asks the driver for its definitions, then bridges its output to
// the clients until the channel fails.
func (dc *driverConn) run() {
	defer dc.server.wg.Done()

	err := dc.writer.WriteMessage(&wire.Message{
		Type: wire.TypeGetProperties,
		GetProperties: &wire.GetProperties{
			Version: version.CurrentWire,
			Switch:  version.Current,
		},
	})
	if err != nil {
		dc.detach(fmt.Errorf("driver handshake: %w", err))
		return
	}

	for {
		msg, rerr := dc.tok.Next()
		if errors.Is(rerr, io.EOF) {
			dc.detach(nil)
			return
		}
		if rerr != nil {
			dc.detach(rerr)
			return
		}
		dc.server.driverMessage(dc, msg)
	}
}

// detach unregisters the driver and announces the loss of its devices
// to every client.
func (dc *driverConn) detach(err error) {
	s := dc.server
	dc.Close()

	s.driverMu.Lock()
	if s.drivers[dc.name] == dc {
		delete(s.drivers, dc.name)
	}
	gone := make([]string, len(dc.deviceOrder))
	copy(gone, dc.deviceOrder)
	for _, device := range gone {
		if s.routes[device] == dc {
			delete(s.routes, device)
		}
	}
	s.driverMu.Unlock()

	if s.running.Load() {
		for _, device := range gone {
			s.broadcast(&wire.Message{
				Type:   wire.TypeDelete,
				Delete: &wire.DeleteProperty{Device: device},
			})
		}
	}

	reason := ""
	if err != nil {
		reason = err.Error()
		if s.cfg.OnError != nil {
			s.cfg.OnError(fmt.Errorf("driver %s: %w", dc.name, err))
		}
	}
	s.logDriver(dc.connID, dc.name, "attached", "detached", reason)

	if s.cfg.OnDriverDetached != nil {
		s.cfg.OnDriverDetached(dc.name, err)
	}
}

// driverMessage bridges one parsed driver element to the client side.
func (s *Server) driverMessage(dc *driverConn, msg *wire.Message) {
	switch msg.Type {
	case wire.TypeDef:
		s.learnRoute(dc, msg.Def.Device)
		s.broadcast(msg)
	case wire.TypeSet, wire.TypeMessage:
		s.broadcast(msg)
	case wire.TypeDelete:
		if msg.Delete.Name == "" {
			s.forgetDevice(dc, msg.Delete.Device)
		}
		s.broadcast(msg)
	case wire.TypeSwitchProtocol:
		// The attach handshake's acknowledgement; clients get theirs
		// from the server directly.
	default:
		// Drivers send nothing else downstream; drop.
	}
}

// learnRoute records dc as the owner of device. The first definition
// wins; a second driver defining the same device is reported and
// ignored.
func (s *Server) learnRoute(dc *driverConn, device string) {
	if device == "" {
		return
	}

	s.driverMu.Lock()
	owner, routed := s.routes[device]
	if routed && owner != dc {
		s.driverMu.Unlock()
		if s.cfg.OnError != nil {
			s.cfg.OnError(fmt.Errorf("server: device %q defined by drivers %s and %s", device, owner.name, dc.name))
		}
		return
	}
	s.routes[device] = dc
	if _, seen := dc.devices[device]; !seen {
		dc.devices[device] = struct{}{}
		dc.deviceOrder = append(dc.deviceOrder, device)
	}
	s.driverMu.Unlock()
}

// forgetDevice drops the route for a device the driver deleted.
func (s *Server) forgetDevice(dc *driverConn, device string) {
	s.driverMu.Lock()
	defer s.driverMu.Unlock()

	if s.routes[device] == dc {
		delete(s.routes, device)
	}
	if _, seen := dc.devices[device]; seen {
		delete(dc.devices, device)
		for i, d := range dc.deviceOrder {
			if d == device {
				dc.deviceOrder = append(dc.deviceOrder[:i], dc.deviceOrder[i+1:]...)
				break
			}
		}
	}
}

func (s *Server) logDriver(connID, name, from, to, reason string) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Encoding:     log.EncodingXML,
		Category:     log.CategoryState,
		LocalRole:    log.RoleServer,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			Name:     name,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}
