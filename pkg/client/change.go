package client

import (
	"fmt"

	"github.com/indigo-protocol/indigo-go/pkg/model"
	"github.com/indigo-protocol/indigo-go/pkg/wire"
)

// Change requests new values for items of a remote property. The
// property must have been announced; requests against read-only
// properties are refused locally. Values follow the JSON conventions:
// strings for text, numbers for numeric items, booleans for switches.
//
// The request changes nothing locally. The peer decides what to apply
// and announces the outcome, which flows back through the usual update
// path.
func (c *Client) Change(device, property string, values map[string]any) error {
	dev, err := c.registry.Get(device)
	if err != nil {
		return fmt.Errorf("%s: %w", device, err)
	}
	p, err := dev.Property(property)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", device, property, err)
	}
	if p.Perm() == model.PermReadOnly {
		return fmt.Errorf("%s.%s: %w", device, property, ErrReadOnly)
	}

	items := make([]wire.NewItem, 0, len(values))
	for _, it := range p.Items() {
		if v, ok := values[it.Name()]; ok {
			items = append(items, wire.NewItem{Name: it.Name(), Value: v})
		}
	}
	if len(items) != len(values) {
		for name := range values {
			if !p.HasItem(name) {
				return fmt.Errorf("%s.%s.%s: %w", device, property, name, model.ErrItemNotFound)
			}
		}
	}

	return c.send(&wire.Message{
		Type:      wire.TypeNew,
		ValueKind: p.Kind(),
		New: &wire.NewVector{
			Device: device,
			Name:   property,
			Items:  items,
		},
	})
}

// SetSwitch requests one switch item position.
func (c *Client) SetSwitch(device, property, item string, on bool) error {
	return c.Change(device, property, map[string]any{item: on})
}

// SetText requests new text item values.
func (c *Client) SetText(device, property string, values map[string]string) error {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return c.Change(device, property, out)
}

// SetNumber requests new number item values.
func (c *Client) SetNumber(device, property string, values map[string]float64) error {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return c.Change(device, property, out)
}
