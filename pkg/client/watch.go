package client

import (
	"github.com/indigo-protocol/indigo-go/pkg/model"
)

// WatchHandler observes one property after a definition or update.
type WatchHandler func(p *model.Property)

type watchEntry struct {
	id       int
	device   string
	property string
	handler  WatchHandler
}

// Watch registers a handler for definitions and updates of matching
// properties. Empty device or property match everything, so
// Watch("", "", h) observes the whole population.
//
// Properties already in the registry fire immediately from the calling
// goroutine; later events fire from the read goroutine. The returned
// function cancels the watch.
func (c *Client) Watch(device, property string, h WatchHandler) func() {
	c.watchMu.Lock()
	c.watchSeq++
	id := c.watchSeq
	c.watches = append(c.watches, watchEntry{
		id:       id,
		device:   device,
		property: property,
		handler:  h,
	})
	c.watchMu.Unlock()

	// Prime with the current population.
	for _, dev := range c.registry.Devices() {
		if device != "" && dev.Name() != device {
			continue
		}
		for _, p := range dev.Properties() {
			if property != "" && p.Name() != property {
				continue
			}
			h(p)
		}
	}

	return func() {
		c.watchMu.Lock()
		defer c.watchMu.Unlock()
		for i, w := range c.watches {
			if w.id == id {
				c.watches = append(c.watches[:i], c.watches[i+1:]...)
				return
			}
		}
	}
}

// notifyWatches fires the watches matching a property, in registration
// order.
func (c *Client) notifyWatches(p *model.Property) {
	device := ""
	if d := p.Device(); d != nil {
		device = d.Name()
	}

	c.watchMu.Lock()
	matched := make([]WatchHandler, 0, len(c.watches))
	for _, w := range c.watches {
		if w.device != "" && w.device != device {
			continue
		}
		if w.property != "" && w.property != p.Name() {
			continue
		}
		matched = append(matched, w.handler)
	}
	c.watchMu.Unlock()

	for _, h := range matched {
		h(p)
	}
}
