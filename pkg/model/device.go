package model

import (
	"errors"
	"sync"
)

// Device errors.
var (
	ErrPropertyNotFound = errors.New("property not found")
	ErrPropertyExists   = errors.New("property already exists")
)

// Device is a named collection of properties, plus a message/timestamp pair
// for device-level notifications that reference no property. Properties keep
// insertion order. On the client side devices appear when first referenced
// by the remote peer and disappear on delete requests; on the driver side
// they are created by application code and live for the process lifetime.
type Device struct {
	mu sync.RWMutex

	name string

	message   string
	timestamp string

	props []*Property
	index map[string]*Property
}

// NewDevice creates an empty device.
func NewDevice(name string) *Device {
	return &Device{
		name:  name,
		index: make(map[string]*Property),
	}
}

// Name returns the device name, unique within a registry.
func (d *Device) Name() string {
	return d.name
}

// AddProperty attaches a property to the device. Property names are unique
// within a device; attaching a duplicate returns ErrPropertyExists and
// leaves the existing property untouched.
func (d *Device) AddProperty(p *Property) error {
	d.mu.Lock()
	if _, ok := d.index[p.Name()]; ok {
		d.mu.Unlock()
		return ErrPropertyExists
	}
	d.props = append(d.props, p)
	d.index[p.Name()] = p
	d.mu.Unlock()

	p.attach(d)
	return nil
}

// Property returns the named property.
func (d *Device) Property(name string) (*Property, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.index[name]
	if !ok {
		return nil, ErrPropertyNotFound
	}
	return p, nil
}

// HasProperty reports whether the named property exists.
func (d *Device) HasProperty(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.index[name]
	return ok
}

// Properties returns all properties in insertion order.
func (d *Device) Properties() []*Property {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Property, len(d.props))
	copy(out, d.props)
	return out
}

// RemoveProperty detaches and returns the named property.
func (d *Device) RemoveProperty(name string) (*Property, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.index[name]
	if !ok {
		return nil, ErrPropertyNotFound
	}
	delete(d.index, name)
	for i, q := range d.props {
		if q == p {
			d.props = append(d.props[:i], d.props[i+1:]...)
			break
		}
	}
	return p, nil
}

// Len returns the number of properties.
func (d *Device) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.props)
}

// SetMessage records a device-level message and its timestamp.
func (d *Device) SetMessage(message, timestamp string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.message = message
	d.timestamp = timestamp
}

// Message returns the last device-level message.
func (d *Device) Message() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.message
}

// MessageTimestamp returns the timestamp of the last device-level message.
func (d *Device) MessageTimestamp() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.timestamp
}
