package model

import (
	"errors"
	"sync"
)

// Registry errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDeviceExists   = errors.New("device already exists")
)

// Registry maps device names to devices, preserving insertion order. Each
// protocol engine owns exactly one registry: the client engine mirrors the
// remote driver into it, a driver registers the devices it owns.
type Registry struct {
	mu sync.RWMutex

	devices []*Device
	index   map[string]*Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]*Device)}
}

// Add registers a device. Device names are unique; adding a duplicate
// returns ErrDeviceExists.
func (r *Registry) Add(d *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[d.Name()]; ok {
		return ErrDeviceExists
	}
	r.devices = append(r.devices, d)
	r.index[d.Name()] = d
	return nil
}

// Get returns the named device.
func (r *Registry) Get(name string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.index[name]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d, nil
}

// GetOrCreate returns the named device, creating it if absent. The boolean
// reports whether a new device was created, so callers know when a
// notification is due.
func (r *Registry) GetOrCreate(name string) (*Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.index[name]; ok {
		return d, false
	}
	d := NewDevice(name)
	r.devices = append(r.devices, d)
	r.index[name] = d
	return d, true
}

// Remove deletes and returns the named device.
func (r *Registry) Remove(name string) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.index[name]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	delete(r.index, name)
	for i, q := range r.devices {
		if q == d {
			r.devices = append(r.devices[:i], r.devices[i+1:]...)
			break
		}
	}
	return d, nil
}

// Devices returns all devices in insertion order.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, len(r.devices))
	copy(out, r.devices)
	return out
}

// Len returns the number of devices.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Release drops every device, leaving an empty registry. Called when the
// session carrying this registry fails.
func (r *Registry) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices = nil
	r.index = make(map[string]*Device)
}
