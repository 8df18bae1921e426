package driver

import (
	"sync"

	"github.com/indigo-protocol/indigo-go/pkg/model"
	"github.com/indigo-protocol/indigo-go/pkg/wire"
)

// Update is one requested item change from a peer. Value is the wire
// text for Text/Number/Switch/Light items; Size, Format and URL are set
// only on BLOB uploads.
type Update struct {
	Name   string
	Value  any
	Size   int64
	Format string
	URL    string
}

// Text returns the update value as wire text.
func (u Update) Text() string {
	return wire.Text(u.Value)
}

// On reports whether a switch update requests the On position.
func (u Update) On() bool {
	return u.Text() == model.SwitchOn
}

// Handler processes a change request for one property. The property
// still holds its previous values when the handler runs; the handler
// decides what to apply and what to announce.
type Handler func(p *model.Property, updates []Update)

// Device is a driver-hosted device: the shared device model plus the
// handlers and send operations of the device side.
type Device struct {
	model *model.Device
	drv   *Driver

	mu             sync.RWMutex
	handlers       map[string]Handler
	defaultHandler Handler
}

// NewDevice creates a driver device with no properties. Register it
// with a driver via AddDevice before serving.
func NewDevice(name string) *Device {
	return &Device{
		model:    model.NewDevice(name),
		handlers: make(map[string]Handler),
	}
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.model.Name()
}

// Model returns the underlying device model.
func (d *Device) Model() *model.Device {
	return d.model
}

// Property returns a property by name.
func (d *Device) Property(name string) (*model.Property, error) {
	return d.model.Property(name)
}

// AddTextProperty creates and attaches a text property.
func (d *Device) AddTextProperty(name string) (*model.Property, error) {
	return d.addProperty(name, model.KindText)
}

// AddNumberProperty creates and attaches a number property.
func (d *Device) AddNumberProperty(name string) (*model.Property, error) {
	return d.addProperty(name, model.KindNumber)
}

// AddSwitchProperty creates and attaches a switch property with the
// given selection rule.
func (d *Device) AddSwitchProperty(name string, rule model.SwitchRule) (*model.Property, error) {
	p, err := d.addProperty(name, model.KindSwitch)
	if err != nil {
		return nil, err
	}
	p.SetRule(rule)
	return p, nil
}

// AddLightProperty creates and attaches a light property. Lights are
// read-only by definition.
func (d *Device) AddLightProperty(name string) (*model.Property, error) {
	return d.addProperty(name, model.KindLight)
}

// AddBlobProperty creates and attaches a BLOB property.
func (d *Device) AddBlobProperty(name string) (*model.Property, error) {
	return d.addProperty(name, model.KindBLOB)
}

func (d *Device) addProperty(name string, kind model.Kind) (*model.Property, error) {
	p := model.NewProperty(name, kind)
	if err := d.model.AddProperty(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Handle registers the handler for change requests to one property,
// replacing any previous handler for it.
func (d *Device) Handle(property string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[property] = h
}

// HandleDefault registers the handler for properties without their own.
func (d *Device) HandleDefault(h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.defaultHandler = h
}

func (d *Device) handlerFor(property string) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if h, ok := d.handlers[property]; ok {
		return h
	}
	return d.defaultHandler
}

// SendDefinition announces one property to the peer.
func (d *Device) SendDefinition(p *model.Property) error {
	wr, err := d.writer()
	if err != nil {
		return err
	}
	return wr.WriteMessage(wire.DefMessage(p))
}

// SendUpdate announces a property's current values and state, with an
// optional message shown to users.
func (d *Device) SendUpdate(p *model.Property, message string) error {
	wr, err := d.writer()
	if err != nil {
		return err
	}
	return wr.WriteMessage(wire.SetMessage(p, message))
}

// SendDelete withdraws one property from the peer and removes it from
// the device model.
func (d *Device) SendDelete(property, message string) error {
	wr, err := d.writer()
	if err != nil {
		return err
	}

	msg := &wire.Message{Type: wire.TypeDelete, Delete: &wire.DeleteProperty{
		Device:    d.Name(),
		Name:      property,
		Timestamp: model.Now(),
		Message:   message,
	}}
	if err := wr.WriteMessage(msg); err != nil {
		return err
	}
	_, err = d.model.RemoveProperty(property)
	return err
}

// SendDeleteDevice withdraws the whole device from the peer. Properties
// stay in the local model so the device can be re-announced later.
func (d *Device) SendDeleteDevice(message string) error {
	wr, err := d.writer()
	if err != nil {
		return err
	}
	msg := &wire.Message{Type: wire.TypeDelete, Delete: &wire.DeleteProperty{
		Device:    d.Name(),
		Timestamp: model.Now(),
		Message:   message,
	}}
	return wr.WriteMessage(msg)
}

// SendMessage delivers a free-form device message to the peer.
func (d *Device) SendMessage(text string) error {
	wr, err := d.writer()
	if err != nil {
		return err
	}
	ts := model.Now()
	d.model.SetMessage(text, ts)
	msg := &wire.Message{Type: wire.TypeMessage, Notice: &wire.Notice{
		Device:    d.Name(),
		Message:   text,
		Timestamp: ts,
	}}
	return wr.WriteMessage(msg)
}

func (d *Device) writer() (*wire.Writer, error) {
	if d.drv == nil {
		return nil, ErrNotServing
	}
	return d.drv.currentWriter()
}

// sendAllDefinitions announces every property in definition order.
func (d *Device) sendAllDefinitions(wr *wire.Writer) error {
	for _, p := range d.model.Properties() {
		if err := wr.WriteMessage(wire.DefMessage(p)); err != nil {
			return err
		}
	}
	return nil
}
