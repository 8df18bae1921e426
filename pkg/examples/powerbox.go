package examples

import (
	"fmt"
	"math"

	"github.com/indigo-protocol/indigo-go/pkg/driver"
	"github.com/indigo-protocol/indigo-go/pkg/model"
)

// Property and item names of the power box.
const (
	PropertyOutlets = "POWER_OUTLET"
	PropertyCurrent = "POWER_CURRENT"

	ItemCurrent = "CURRENT"
)

// outletCurrent is the simulated draw of one powered outlet, in amps.
const outletCurrent = 0.8

// OutletItem returns the item name of outlet n, counted from 1.
func OutletItem(n int) string {
	return fmt.Sprintf("OUTLET_%d", n)
}

// PowerBoxConfig configures a simulated power box.
type PowerBoxConfig struct {
	// Name is the device name, default "Power Box".
	Name string

	// Outlets is the outlet count, default 4.
	Outlets int

	// Labels names the outlets in order; missing entries fall back to
	// "Outlet n".
	Labels []string
}

// PowerBox is a simulated outlet bank: one AnyOfMany Switch property
// where each item is an independent outlet, plus a read-only Number
// reporting the total draw. Switching is refused until a peer connects
// the device.
type PowerBox struct {
	*driver.StandardDevice

	outlets *model.Property
	current *model.Property
	count   int
}

// NewPowerBox creates a simulated power box device with all outlets off.
func NewPowerBox(cfg PowerBoxConfig) *PowerBox {
	if cfg.Name == "" {
		cfg.Name = "Power Box"
	}
	if cfg.Outlets <= 0 {
		cfg.Outlets = 4
	}

	b := &PowerBox{
		StandardDevice: driver.NewStandardDevice(cfg.Name),
		count:          cfg.Outlets,
	}
	b.setupProperties(cfg)
	b.Handle(PropertyOutlets, b.handleOutlets)
	return b
}

func (b *PowerBox) setupProperties(cfg PowerBoxConfig) {
	p, _ := b.AddTextProperty(PropertyInfo)
	p.SetLabel("Info")
	p.SetGroup("Main")
	p.SetPerm(model.PermReadOnly)
	p.SetState(model.StateOk)
	p.AddTextItem(ItemModel, "Model", "INDIGO Go Power Box")

	p, _ = b.AddSwitchProperty(PropertyOutlets, model.RuleAnyOfMany)
	p.SetLabel("Outlets")
	p.SetGroup("Main")
	p.SetState(model.StateOk)
	for n := 1; n <= b.count; n++ {
		label := fmt.Sprintf("Outlet %d", n)
		if n-1 < len(cfg.Labels) && cfg.Labels[n-1] != "" {
			label = cfg.Labels[n-1]
		}
		p.AddSwitchItem(OutletItem(n), label, false)
	}
	b.outlets = p

	p, _ = b.AddNumberProperty(PropertyCurrent)
	p.SetLabel("Current draw")
	p.SetGroup("Main")
	p.SetPerm(model.PermReadOnly)
	p.SetState(model.StateOk)
	max := fmt.Sprintf("%g", float64(b.count)*outletCurrent)
	p.AddNumberItem(ItemCurrent, "Current (A)", 0.0, "%4.1f", "0", max, "0")
	b.current = p
}

// OutletOn reports outlet n, counted from 1.
func (b *PowerBox) OutletOn(n int) bool {
	it, err := b.outlets.Item(OutletItem(n))
	return err == nil && it.On()
}

// PoweredCount returns how many outlets are on.
func (b *PowerBox) PoweredCount() int {
	on := 0
	for _, it := range b.outlets.Items() {
		if it.On() {
			on++
		}
	}
	return on
}

func (b *PowerBox) handleOutlets(p *model.Property, updates []driver.Update) {
	if !b.Connected() {
		p.MarkAlert()
		_ = b.SendUpdate(p, "power box is not connected")
		return
	}

	// AnyOfMany: every named item moves to its requested position,
	// the rest stay put.
	for _, u := range updates {
		if it, err := p.Item(u.Name); err == nil {
			it.SetValue(model.SwitchValue(u.On()))
		}
	}
	p.MarkOk()
	_ = b.SendUpdate(p, "")

	b.publishCurrent()
}

func (b *PowerBox) publishCurrent() {
	if it, err := b.current.Item(ItemCurrent); err == nil {
		draw := float64(b.PoweredCount()) * outletCurrent
		it.SetValue(math.Round(draw*100) / 100)
	}
	b.current.MarkOk()
	_ = b.SendUpdate(b.current, "")
}
