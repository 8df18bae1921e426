package driver

import (
	"github.com/indigo-protocol/indigo-go/pkg/model"
)

// Well-known names of the connection property every standard device
// carries.
const (
	PropertyConnection = "CONNECTION"
	ItemConnected      = "CONNECTED"
	ItemDisconnected   = "DISCONNECTED"
)

// StandardDevice is a device with the conventional CONNECTION switch
// property wired up: a request turning CONNECTED on runs the Connect
// hook, anything else runs the Disconnect hook. The items flip and an
// update goes out only after the hook succeeds; a hook error leaves the
// items alone and announces the Alert state with the error text.
//
// Set the hooks before the driver starts serving. Devices without real
// hardware can leave them nil; connecting then simply succeeds.
type StandardDevice struct {
	*Device

	// OnConnect is called when a peer requests the connected state.
	OnConnect func() error

	// OnDisconnect is called when a peer requests the disconnected state.
	OnDisconnect func() error

	connection *model.Property
}

// NewStandardDevice creates a device carrying the CONNECTION property,
// initially disconnected.
func NewStandardDevice(name string) *StandardDevice {
	sd := &StandardDevice{Device: NewDevice(name)}

	p, _ := sd.AddSwitchProperty(PropertyConnection, model.RuleOneOfMany)
	p.SetLabel("Connection")
	p.SetGroup("Main")
	p.SetState(model.StateOk)
	p.AddSwitchItem(ItemConnected, "Connected", false)
	p.AddSwitchItem(ItemDisconnected, "Disconnected", true)
	sd.connection = p

	sd.Handle(PropertyConnection, sd.handleConnection)
	return sd
}

// Connected reports whether the device is in the connected state.
func (sd *StandardDevice) Connected() bool {
	it, err := sd.connection.Item(ItemConnected)
	if err != nil {
		return false
	}
	return it.On()
}

func (sd *StandardDevice) handleConnection(p *model.Property, updates []Update) {
	wantConnect := false
	for _, u := range updates {
		if u.Name == ItemConnected && u.On() {
			wantConnect = true
		}
	}

	var hook func() error
	if wantConnect {
		hook = sd.OnConnect
	} else {
		hook = sd.OnDisconnect
	}

	if hook != nil {
		if err := hook(); err != nil {
			p.SetState(model.StateAlert)
			sd.SendUpdate(p, err.Error())
			return
		}
	}

	sd.setConnected(wantConnect)
	p.SetState(model.StateOk)
	sd.SendUpdate(p, "")
}

func (sd *StandardDevice) setConnected(connected bool) {
	if it, err := sd.connection.Item(ItemConnected); err == nil {
		it.SetValue(model.SwitchValue(connected))
	}
	if it, err := sd.connection.Item(ItemDisconnected); err == nil {
		it.SetValue(model.SwitchValue(!connected))
	}
}
