package model

import (
	"errors"
	"sync"
)

// Property errors.
var (
	ErrItemNotFound = errors.New("item not found")
)

// Property is a named, typed vector of items describing one controllable or
// observable aspect of a device. Kind is fixed at creation; state, timestamp,
// last message, and item values are the only fields meant to change
// afterwards. Items keep insertion order.
type Property struct {
	mu sync.RWMutex

	name string
	kind Kind

	device *Device

	state     State
	perm      Perm
	rule      SwitchRule
	label     string
	group     string
	hints     string
	timeout   float64
	timestamp string
	message   string

	items []*Item
	index map[string]*Item
}

// NewProperty creates a property of the given kind with state Idle,
// permission rw, and a fresh timestamp. Attach it to a device with
// Device.AddProperty.
func NewProperty(name string, kind Kind) *Property {
	return &Property{
		name:      name,
		kind:      kind,
		state:     StateIdle,
		perm:      PermReadWrite,
		timestamp: Now(),
		index:     make(map[string]*Item),
	}
}

// Name returns the property name, unique within its device.
func (p *Property) Name() string {
	return p.name
}

// Kind returns the fixed property kind.
func (p *Property) Kind() Kind {
	return p.kind
}

// Device returns the owning device, nil while unattached.
func (p *Property) Device() *Device {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.device
}

func (p *Property) attach(d *Device) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.device = d
}

// State returns the current property state.
func (p *Property) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// SetState sets the property state. The change stays local until an update
// is explicitly serialized for the remote peer.
func (p *Property) SetState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

// MarkIdle sets the state to Idle.
func (p *Property) MarkIdle() { p.SetState(StateIdle) }

// MarkOk sets the state to Ok.
func (p *Property) MarkOk() { p.SetState(StateOk) }

// MarkBusy sets the state to Busy.
func (p *Property) MarkBusy() { p.SetState(StateBusy) }

// MarkAlert sets the state to Alert.
func (p *Property) MarkAlert() { p.SetState(StateAlert) }

// Perm returns the property permission. Light properties are always
// read-only regardless of what was assigned.
func (p *Property) Perm() Perm {
	if p.kind == KindLight {
		return PermReadOnly
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.perm
}

// SetPerm sets the property permission. Ignored for Light properties.
func (p *Property) SetPerm(perm Perm) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perm = perm
}

// Rule returns the switch rule. Meaningful only for Switch properties.
func (p *Property) Rule() SwitchRule {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.rule
}

// SetRule sets the switch rule.
func (p *Property) SetRule(rule SwitchRule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rule = rule
}

// Label returns the human-readable label.
func (p *Property) Label() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.label
}

// SetLabel sets the human-readable label.
func (p *Property) SetLabel(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.label = label
}

// Group returns the presentation group.
func (p *Property) Group() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.group
}

// SetGroup sets the presentation group.
func (p *Property) SetGroup(group string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.group = group
}

// Hints returns presentation hints, if any.
func (p *Property) Hints() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hints
}

// SetHints sets presentation hints.
func (p *Property) SetHints(hints string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hints = hints
}

// Timeout returns the worst-case completion time in seconds, 0 for Light
// properties which carry none.
func (p *Property) Timeout() float64 {
	if p.kind == KindLight {
		return 0
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.timeout
}

// SetTimeout sets the worst-case completion time in seconds. Ignored for
// Light properties.
func (p *Property) SetTimeout(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = seconds
}

// Timestamp returns the most recent timestamp: the creation time for a
// never-updated property, otherwise the one carried by the last update.
func (p *Property) Timestamp() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.timestamp
}

// SetTimestamp records the timestamp carried by an update.
func (p *Property) SetTimestamp(ts string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timestamp = ts
}

// Message returns the last message attached to this property.
func (p *Property) Message() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.message
}

// SetMessage records a message attached to this property.
func (p *Property) SetMessage(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.message = msg
}

// AddItem adds an item, or returns the existing one if the name is already
// taken; item names are unique within a property.
func (p *Property) AddItem(name, label string) *Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	if it, ok := p.index[name]; ok {
		return it
	}
	it := NewItem(name, label)
	p.items = append(p.items, it)
	p.index[name] = it
	return it
}

// AddTextItem adds a text item with an initial value.
func (p *Property) AddTextItem(name, label, value string) *Item {
	it := p.AddItem(name, label)
	it.SetValue(value)
	return it
}

// AddNumberItem adds a number item. Format is a printf-style format hint;
// min/max/step are stored opaquely as provided.
func (p *Property) AddNumberItem(name, label string, value any, format, min, max, step string) *Item {
	it := p.AddItem(name, label)
	it.SetValue(value)
	it.SetFormat(format)
	it.SetRange(min, max, step)
	return it
}

// AddSwitchItem adds a switch item in the given position.
func (p *Property) AddSwitchItem(name, label string, on bool) *Item {
	it := p.AddItem(name, label)
	it.SetValue(SwitchValue(on))
	return it
}

// AddLightItem adds a light item holding a state token.
func (p *Property) AddLightItem(name, label string, value State) *Item {
	it := p.AddItem(name, label)
	it.SetValue(value.String())
	return it
}

// AddBlobItem adds a BLOB item with no payload yet.
func (p *Property) AddBlobItem(name, label string) *Item {
	return p.AddItem(name, label)
}

// Item returns the named item.
func (p *Property) Item(name string) (*Item, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	it, ok := p.index[name]
	if !ok {
		return nil, ErrItemNotFound
	}
	return it, nil
}

// HasItem reports whether the named item exists.
func (p *Property) HasItem(name string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.index[name]
	return ok
}

// Items returns all items in insertion order.
func (p *Property) Items() []*Item {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Item, len(p.items))
	copy(out, p.items)
	return out
}

// Len returns the number of items.
func (p *Property) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}
