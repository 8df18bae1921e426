package wire

import (
	"testing"

	"github.com/indigo-protocol/indigo-go/pkg/model"
)

func connectionProperty(t *testing.T) *model.Property {
	t.Helper()
	dev := model.NewDevice("CCD Simulator")
	p := model.NewProperty("CONNECTION", model.KindSwitch)
	p.SetLabel("Connection")
	p.SetGroup("Main")
	p.SetState(model.StateOk)
	p.SetPerm(model.PermReadWrite)
	p.SetRule(model.RuleOneOfMany)
	p.AddSwitchItem("CONNECTED", "Connected", false)
	p.AddSwitchItem("DISCONNECTED", "Disconnected", true)
	if err := dev.AddProperty(p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefMessageSwitch(t *testing.T) {
	p := connectionProperty(t)

	msg := DefMessage(p)
	if msg.Type != TypeDef || msg.ValueKind != model.KindSwitch {
		t.Fatalf("message = %v/%v", msg.Type, msg.ValueKind)
	}
	if msg.Key() != "defSwitchVector" {
		t.Errorf("key = %q", msg.Key())
	}

	def := msg.Def
	if def.Device != "CCD Simulator" || def.Name != "CONNECTION" {
		t.Errorf("target = %s.%s", def.Device, def.Name)
	}
	if def.State != "Ok" || def.Perm != "rw" || def.Rule != "OneOfMany" {
		t.Errorf("state/perm/rule = %q/%q/%q", def.State, def.Perm, def.Rule)
	}
	if def.Group != "Main" || def.Label != "Connection" {
		t.Errorf("group/label = %q/%q", def.Group, def.Label)
	}
	if len(def.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(def.Items))
	}
	if def.Items[0].Name != "CONNECTED" || ValueText(model.KindSwitch, def.Items[0].Value) != "Off" {
		t.Errorf("item 0 = %+v", def.Items[0])
	}
	if def.Items[1].Name != "DISCONNECTED" || ValueText(model.KindSwitch, def.Items[1].Value) != "On" {
		t.Errorf("item 1 = %+v", def.Items[1])
	}
}

func TestDefMessageNumberRange(t *testing.T) {
	dev := model.NewDevice("Weather")
	p := model.NewProperty("TEMPERATURE", model.KindNumber)
	p.SetPerm(model.PermReadOnly)
	p.AddNumberItem("VALUE", "Value", 21.5, "%.1f", "-60", "60", "0.1")
	if err := dev.AddProperty(p); err != nil {
		t.Fatal(err)
	}

	def := DefMessage(p).Def
	it := def.Items[0]
	if it.Format != "%.1f" {
		t.Errorf("format = %q", it.Format)
	}
	if Text(it.Min) != "-60" || Text(it.Max) != "60" || Text(it.Step) != "0.1" {
		t.Errorf("range = %v..%v step %v", it.Min, it.Max, it.Step)
	}
}

func TestDefMessageLightOmitsPermRule(t *testing.T) {
	dev := model.NewDevice("Weather")
	p := model.NewProperty("ALERTS", model.KindLight)
	p.AddLightItem("RAIN", "Rain", model.StateAlert)
	if err := dev.AddProperty(p); err != nil {
		t.Fatal(err)
	}

	def := DefMessage(p).Def
	if def.Perm != "" || def.Rule != "" || def.Timeout != 0 {
		t.Errorf("light def carries perm %q rule %q timeout %v", def.Perm, def.Rule, def.Timeout)
	}
	if ValueText(model.KindLight, def.Items[0].Value) != "Alert" {
		t.Errorf("item value = %v", def.Items[0].Value)
	}
}

func TestSetMessage(t *testing.T) {
	p := connectionProperty(t)
	item, err := p.Item("CONNECTED")
	if err != nil {
		t.Fatal(err)
	}
	item.SetValue(model.SwitchOn)
	p.SetState(model.StateBusy)

	msg := SetMessage(p, "connecting")
	if msg.Type != TypeSet || msg.Key() != "setSwitchVector" {
		t.Fatalf("message = %v %s", msg.Type, msg.Key())
	}

	set := msg.Set
	if set.Device != "CCD Simulator" || set.Name != "CONNECTION" {
		t.Errorf("target = %s.%s", set.Device, set.Name)
	}
	if set.State != "Busy" || set.Message != "connecting" {
		t.Errorf("state/message = %q/%q", set.State, set.Message)
	}
	if set.Timestamp == "" {
		t.Error("timestamp not stamped")
	}
	if len(set.Items) != 2 || Text(set.Items[0].Value) != "On" {
		t.Errorf("items = %+v", set.Items)
	}
}

func TestSetMessageBlobAttrs(t *testing.T) {
	dev := model.NewDevice("Cam")
	p := model.NewProperty("CCD_IMAGE", model.KindBLOB)
	it := p.AddBlobItem("IMAGE", "Image")
	it.SetBlob([]byte("ABC"), ".bin")
	if err := dev.AddProperty(p); err != nil {
		t.Fatal(err)
	}

	set := SetMessage(p, "").Set
	got := set.Items[0]
	if got.Size != 3 || got.Format != ".bin" {
		t.Errorf("blob attrs = size %d format %q", got.Size, got.Format)
	}
	if Text(got.Value) != "QUJD" {
		t.Errorf("value = %v, want base64 of ABC", got.Value)
	}
}

func TestSetMessageNumberTarget(t *testing.T) {
	dev := model.NewDevice("Focuser")
	p := model.NewProperty("POSITION", model.KindNumber)
	it := p.AddNumberItem("STEPS", "Steps", 500, "%.0f", "0", "10000", "1")
	it.SetTarget(1200)
	if err := dev.AddProperty(p); err != nil {
		t.Fatal(err)
	}

	set := SetMessage(p, "").Set
	if Text(set.Items[0].Target) != "1200" {
		t.Errorf("target = %v", set.Items[0].Target)
	}
}

func TestDetachedPropertyDefinesWithEmptyDevice(t *testing.T) {
	p := model.NewProperty("LONE", model.KindText)
	p.AddTextItem("VALUE", "Value", "x")

	if got := DefMessage(p).Def.Device; got != "" {
		t.Errorf("device = %q, want empty", got)
	}
}
