package client

import (
	"github.com/indigo-protocol/indigo-go/pkg/model"
	"github.com/indigo-protocol/indigo-go/pkg/wire"
)

// apply routes one inbound message into the registry and callbacks.
// Runs on the read goroutine only.
func (c *Client) apply(msg *wire.Message) {
	switch msg.Type {
	case wire.TypeDef:
		c.applyDef(msg)
	case wire.TypeSet:
		c.applySet(msg)
	case wire.TypeMessage:
		c.applyNotice(msg.Notice)
	case wire.TypeDelete:
		c.applyDelete(msg.Delete)
	case wire.TypeSwitchProtocol:
		// Informational; this client already speaks the version it asked for.
	default:
		if c.cfg.OnUnknown != nil {
			c.cfg.OnUnknown(msg)
		}
	}
}

// applyDef adds a newly announced property. A definition for a property
// the registry already holds is ignored entirely: definitions announce,
// updates change.
func (c *Client) applyDef(msg *wire.Message) {
	def := msg.Def
	if def.Device == "" || def.Name == "" {
		return
	}

	dev, _ := c.registry.GetOrCreate(def.Device)
	if dev.HasProperty(def.Name) {
		return
	}

	p := propertyFromDef(msg.ValueKind, def)
	if err := dev.AddProperty(p); err != nil {
		return
	}

	if c.cfg.OnPropertyDefined != nil {
		c.cfg.OnPropertyDefined(p)
	}
	c.notifyWatches(p)

	if def.Message != "" {
		dev.SetMessage(def.Message, def.Timestamp)
		if c.cfg.OnDeviceMessage != nil {
			c.cfg.OnDeviceMessage(def.Device, def.Message, def.Timestamp)
		}
	}
}

// applySet updates an existing property. Updates for devices or
// properties never announced are dropped.
func (c *Client) applySet(msg *wire.Message) {
	set := msg.Set

	dev, err := c.registry.Get(set.Device)
	if err != nil {
		return
	}
	p, err := dev.Property(set.Name)
	if err != nil {
		return
	}

	applySetVector(p, set)

	if c.cfg.OnPropertyChanged != nil {
		c.cfg.OnPropertyChanged(p)
	}
	c.notifyWatches(p)

	if set.Message != "" {
		dev.SetMessage(set.Message, set.Timestamp)
		if c.cfg.OnDeviceMessage != nil {
			c.cfg.OnDeviceMessage(set.Device, set.Message, set.Timestamp)
		}
	}
}

func (c *Client) applyNotice(n *wire.Notice) {
	if n.Device == "" {
		if c.cfg.OnMessage != nil {
			c.cfg.OnMessage(n.Message, n.Timestamp)
		}
		return
	}

	if dev, err := c.registry.Get(n.Device); err == nil {
		dev.SetMessage(n.Message, n.Timestamp)
	}
	if c.cfg.OnDeviceMessage != nil {
		c.cfg.OnDeviceMessage(n.Device, n.Message, n.Timestamp)
	}
}

// applyDelete removes one property, or the whole device when no
// property is named. Deletion callbacks fire while the entries still
// hold their last state.
func (c *Client) applyDelete(d *wire.DeleteProperty) {
	dev, err := c.registry.Get(d.Device)
	if err != nil {
		return
	}

	if d.Name != "" {
		p, err := dev.Property(d.Name)
		if err != nil {
			return
		}
		if c.cfg.OnPropertyDeleted != nil {
			c.cfg.OnPropertyDeleted(p)
		}
		dev.RemoveProperty(d.Name)
		return
	}

	for _, p := range dev.Properties() {
		if c.cfg.OnPropertyDeleted != nil {
			c.cfg.OnPropertyDeleted(p)
		}
		dev.RemoveProperty(p.Name())
	}
	c.registry.Remove(d.Device)
	if c.cfg.OnDeviceDeleted != nil {
		c.cfg.OnDeviceDeleted(d.Device)
	}
}

// propertyFromDef builds the registry property a definition announces.
func propertyFromDef(kind model.Kind, def *wire.DefVector) *model.Property {
	p := model.NewProperty(def.Name, kind)

	if s, err := model.ParseState(def.State); err == nil {
		p.SetState(s)
	}
	if perm, err := model.ParsePerm(def.Perm); err == nil {
		p.SetPerm(perm)
	}
	if def.Rule != "" {
		if r, err := model.ParseSwitchRule(def.Rule); err == nil {
			p.SetRule(r)
		}
	}
	p.SetLabel(def.Label)
	p.SetGroup(def.Group)
	p.SetHints(def.Hints)
	p.SetTimeout(def.Timeout)
	if def.Timestamp != "" {
		p.SetTimestamp(def.Timestamp)
	}

	for _, di := range def.Items {
		it := p.AddItem(di.Name, di.Label)
		if di.Hints != "" {
			it.SetHints(di.Hints)
		}
		if di.Value != nil {
			it.SetValue(di.Value)
		}
		if kind == model.KindNumber {
			it.SetFormat(di.Format)
			it.SetRange(wire.Text(di.Min), wire.Text(di.Max), wire.Text(di.Step))
		}
	}
	return p
}

// applySetVector copies an update's fields onto the property. Item
// names the property does not carry are skipped.
func applySetVector(p *model.Property, set *wire.SetVector) {
	if set.State != "" {
		if s, err := model.ParseState(set.State); err == nil {
			p.SetState(s)
		}
	}
	if set.Timeout != 0 {
		p.SetTimeout(set.Timeout)
	}
	if set.Timestamp != "" {
		p.SetTimestamp(set.Timestamp)
	}
	if set.Message != "" {
		p.SetMessage(set.Message)
	}

	for _, si := range set.Items {
		it, err := p.Item(si.Name)
		if err != nil {
			continue
		}
		if si.Value != nil {
			it.SetValue(si.Value)
		}
		if si.Size != 0 {
			it.SetSize(si.Size)
		}
		if si.Format != "" {
			it.SetFormat(si.Format)
		}
		if si.URL != "" {
			it.SetURL(si.URL)
		}
		if si.Target != nil {
			it.SetTarget(si.Target)
		}
	}
}
