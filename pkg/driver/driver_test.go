package driver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/indigo-protocol/indigo-go/pkg/log"
	"github.com/indigo-protocol/indigo-go/pkg/model"
	"github.com/indigo-protocol/indigo-go/pkg/wire"
)

// serveInput runs the driver over a fixed input and returns everything
// it wrote.
func serveInput(t *testing.T, d *Driver, input string) string {
	t.Helper()
	var out bytes.Buffer
	if err := d.Serve(context.Background(), strings.NewReader(input), &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	return out.String()
}

// decodeOutput parses driver output back into messages.
func decodeOutput(t *testing.T, s string) []*wire.Message {
	t.Helper()
	tok := wire.NewTokenizer(strings.NewReader(s), wire.PolicyStrict)
	var msgs []*wire.Message
	for {
		msg, err := tok.Next()
		if errors.Is(err, io.EOF) {
			return msgs
		}
		if err != nil {
			t.Fatalf("decode driver output: %v", err)
		}
		msgs = append(msgs, msg)
	}
}

func newCameraDriver(t *testing.T) (*Driver, *Device) {
	t.Helper()
	d := New(Config{Name: "camera_driver"})
	dev := NewDevice("Cam")

	info, err := dev.AddTextProperty("INFO")
	if err != nil {
		t.Fatal(err)
	}
	info.SetPerm(model.PermReadOnly)
	info.SetState(model.StateOk)
	info.AddTextItem("MODEL", "Model", "SimCam")

	power, err := dev.AddSwitchProperty("POWER", model.RuleOneOfMany)
	if err != nil {
		t.Fatal(err)
	}
	power.AddSwitchItem("ON", "On", false)
	power.AddSwitchItem("OFF", "Off", true)

	if err := d.AddDevice(dev); err != nil {
		t.Fatal(err)
	}
	return d, dev
}

func TestServeAnswersGetProperties(t *testing.T) {
	d, _ := newCameraDriver(t)

	out := serveInput(t, d, "<getProperties version='2.0' switch='2.0'/>\n")
	msgs := decodeOutput(t, out)

	if len(msgs) != 3 {
		t.Fatalf("driver wrote %d messages, want 3: %q", len(msgs), out)
	}
	if msgs[0].Type != wire.TypeSwitchProtocol || msgs[0].SwitchProtocol.Version != "2.0" {
		t.Errorf("first message = %+v, want switchProtocol 2.0", msgs[0])
	}
	if msgs[1].Key() != "defTextVector" || msgs[1].Property() != "INFO" {
		t.Errorf("second message = %s %s", msgs[1].Key(), msgs[1].Property())
	}
	if msgs[2].Key() != "defSwitchVector" || msgs[2].Property() != "POWER" {
		t.Errorf("third message = %s %s", msgs[2].Key(), msgs[2].Property())
	}
}

func TestServeGetPropertiesDeviceFilter(t *testing.T) {
	d := New(Config{})
	for _, name := range []string{"A", "B"} {
		dev := NewDevice(name)
		p, err := dev.AddTextProperty("INFO")
		if err != nil {
			t.Fatal(err)
		}
		p.AddTextItem("NAME", "Name", name)
		if err := d.AddDevice(dev); err != nil {
			t.Fatal(err)
		}
	}

	out := serveInput(t, d, "<getProperties version='2.0' device='B'/>\n")
	msgs := decodeOutput(t, out)

	if len(msgs) != 1 {
		t.Fatalf("driver wrote %d messages, want 1", len(msgs))
	}
	if msgs[0].Type != wire.TypeDef || msgs[0].Device() != "B" {
		t.Errorf("message = %s for %s, want def for B", msgs[0].Key(), msgs[0].Device())
	}
}

func TestServeNoAckWithoutSwitchRequest(t *testing.T) {
	d, _ := newCameraDriver(t)

	out := serveInput(t, d, "<getProperties version='2.0'/>\n")
	for _, msg := range decodeOutput(t, out) {
		if msg.Type == wire.TypeSwitchProtocol {
			t.Fatal("driver acknowledged a switch that was not requested")
		}
	}

	out = serveInput(t, d, "<getProperties version='2.0' switch='1.7'/>\n")
	for _, msg := range decodeOutput(t, out) {
		if msg.Type == wire.TypeSwitchProtocol {
			t.Fatal("driver acknowledged an unsupported protocol version")
		}
	}
}

func TestServeDispatchesHandler(t *testing.T) {
	d, dev := newCameraDriver(t)

	var gotProperty string
	var gotUpdates []Update
	dev.Handle("POWER", func(p *model.Property, updates []Update) {
		gotProperty = p.Name()
		gotUpdates = updates

		for _, u := range updates {
			if it, err := p.Item(u.Name); err == nil {
				it.SetValue(u.Text())
			}
		}
		p.MarkOk()
		if err := dev.SendUpdate(p, ""); err != nil {
			t.Errorf("SendUpdate: %v", err)
		}
	})

	input := "<newSwitchVector device='Cam' name='POWER'>\n" +
		"  <oneSwitch name='ON'>On</oneSwitch>\n" +
		"</newSwitchVector>\n"
	out := serveInput(t, d, input)

	if gotProperty != "POWER" {
		t.Fatalf("handler property = %q, want POWER", gotProperty)
	}
	if len(gotUpdates) != 1 || gotUpdates[0].Name != "ON" || !gotUpdates[0].On() {
		t.Fatalf("updates = %+v", gotUpdates)
	}

	msgs := decodeOutput(t, out)
	if len(msgs) != 1 || msgs[0].Key() != "setSwitchVector" {
		t.Fatalf("output = %q", out)
	}
	set := msgs[0].Set
	if set.State != "Ok" || wire.Text(set.Items[0].Value) != "On" {
		t.Errorf("update = %+v", set)
	}
}

func TestServeDefaultHandler(t *testing.T) {
	d, dev := newCameraDriver(t)

	var got string
	dev.HandleDefault(func(p *model.Property, updates []Update) {
		got = p.Name()
	})

	input := "<newSwitchVector device='Cam' name='POWER'>\n  <oneSwitch name='ON'>On</oneSwitch>\n</newSwitchVector>\n"
	serveInput(t, d, input)

	if got != "POWER" {
		t.Errorf("default handler got %q, want POWER", got)
	}
}

func TestServeIgnoresUnknownTargets(t *testing.T) {
	d, dev := newCameraDriver(t)

	called := false
	dev.HandleDefault(func(p *model.Property, updates []Update) {
		called = true
	})

	input := "<newSwitchVector device='Nobody' name='POWER'>\n  <oneSwitch name='ON'>On</oneSwitch>\n</newSwitchVector>\n" +
		"<newSwitchVector device='Cam' name='MISSING'>\n  <oneSwitch name='ON'>On</oneSwitch>\n</newSwitchVector>\n"
	out := serveInput(t, d, input)

	if called {
		t.Error("handler ran for an unknown target")
	}
	if out != "" {
		t.Errorf("driver wrote %q for unknown targets", out)
	}
}

func TestServeUnknownMessageHook(t *testing.T) {
	var got *wire.Message
	d := New(Config{OnUnknown: func(msg *wire.Message) { got = msg }})

	serveInput(t, d, "<pingRequest uid='7'/>\n")

	if got == nil || got.UnknownKey != "pingRequest" {
		t.Errorf("unknown hook got %+v", got)
	}
}

func TestServeContextCancelled(t *testing.T) {
	d, _ := newCameraDriver(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	err := d.Serve(ctx, strings.NewReader("<getProperties version='2.0'/>\n"), &out)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
}

func TestSendRequiresServing(t *testing.T) {
	_, dev := newCameraDriver(t)

	p, err := dev.Property("INFO")
	if err != nil {
		t.Fatal(err)
	}
	if err := dev.SendUpdate(p, ""); !errors.Is(err, ErrNotServing) {
		t.Errorf("SendUpdate = %v, want ErrNotServing", err)
	}
	if err := dev.SendMessage("hi"); !errors.Is(err, ErrNotServing) {
		t.Errorf("SendMessage = %v, want ErrNotServing", err)
	}

	loose := NewDevice("Loose")
	if err := loose.SendDeleteDevice(""); !errors.Is(err, ErrNotServing) {
		t.Errorf("detached SendDeleteDevice = %v, want ErrNotServing", err)
	}
}

func TestSendDeleteRemovesProperty(t *testing.T) {
	d, dev := newCameraDriver(t)

	dev.Handle("POWER", func(p *model.Property, updates []Update) {
		if err := dev.SendDelete("INFO", "retired"); err != nil {
			t.Errorf("SendDelete: %v", err)
		}
	})

	input := "<newSwitchVector device='Cam' name='POWER'>\n  <oneSwitch name='ON'>On</oneSwitch>\n</newSwitchVector>\n"
	out := serveInput(t, d, input)

	msgs := decodeOutput(t, out)
	if len(msgs) != 1 || msgs[0].Type != wire.TypeDelete {
		t.Fatalf("output = %q", out)
	}
	del := msgs[0].Delete
	if del.Device != "Cam" || del.Name != "INFO" || del.Message != "retired" {
		t.Errorf("delete = %+v", del)
	}
	if dev.Model().HasProperty("INFO") {
		t.Error("INFO still present after delete")
	}
}

func TestSendMessage(t *testing.T) {
	d, dev := newCameraDriver(t)

	dev.Handle("POWER", func(p *model.Property, updates []Update) {
		if err := dev.SendMessage("power toggled"); err != nil {
			t.Errorf("SendMessage: %v", err)
		}
	})

	input := "<newSwitchVector device='Cam' name='POWER'>\n  <oneSwitch name='ON'>On</oneSwitch>\n</newSwitchVector>\n"
	out := serveInput(t, d, input)

	msgs := decodeOutput(t, out)
	if len(msgs) != 1 || msgs[0].Type != wire.TypeMessage {
		t.Fatalf("output = %q", out)
	}
	if msgs[0].Notice.Device != "Cam" || msgs[0].Notice.Message != "power toggled" {
		t.Errorf("notice = %+v", msgs[0].Notice)
	}
	if dev.Model().Message() != "power toggled" {
		t.Errorf("device message = %q", dev.Model().Message())
	}
}

func TestAddDeviceDuplicate(t *testing.T) {
	d := New(Config{})
	if err := d.AddDevice(NewDevice("Cam")); err != nil {
		t.Fatal(err)
	}
	if err := d.AddDevice(NewDevice("Cam")); !errors.Is(err, ErrDeviceExists) {
		t.Errorf("duplicate AddDevice = %v, want ErrDeviceExists", err)
	}
}

// stateLogger keeps only state-change events.
type stateLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *stateLogger) Log(event log.Event) {
	if event.Category != log.CategoryState {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func TestServeLogsConnectionState(t *testing.T) {
	logger := &stateLogger{}
	d := New(Config{Name: "logged_driver", Logger: logger})

	serveInput(t, d, "")

	if len(logger.events) != 2 {
		t.Fatalf("logged %d state events, want 2", len(logger.events))
	}
	open, closed := logger.events[0], logger.events[1]
	if open.StateChange.NewState != "serving" || open.LocalRole != log.RoleDriver {
		t.Errorf("open event = %+v", open.StateChange)
	}
	if closed.StateChange.OldState != "serving" || closed.StateChange.NewState != "closed" {
		t.Errorf("close event = %+v", closed.StateChange)
	}
	if open.StateChange.Name != "logged_driver" {
		t.Errorf("state name = %q", open.StateChange.Name)
	}
}
