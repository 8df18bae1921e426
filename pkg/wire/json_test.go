package wire

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/indigo-protocol/indigo-go/pkg/log"
	"github.com/indigo-protocol/indigo-go/pkg/model"
)

// captureLogger collects events for assertions.
type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *captureLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *captureLogger) all() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func TestStreamDecoderSingleObject(t *testing.T) {
	d := NewStreamDecoder(PolicyLenient)
	d.Feed([]byte(`{"getProperties":{"version":512,"client":"testclient"}}`))

	msg, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if msg.Type != TypeGetProperties {
		t.Fatalf("type = %v, want getProperties", msg.Type)
	}
	if msg.GetProperties.Version != 512 {
		t.Errorf("version = %d, want 512", msg.GetProperties.Version)
	}
	if msg.GetProperties.Client != "testclient" {
		t.Errorf("client = %q, want testclient", msg.GetProperties.Client)
	}

	if _, err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Next on drained buffer = %v, want ErrIncomplete", err)
	}
}

func TestStreamDecoderConcatenated(t *testing.T) {
	// Two objects abutting as }{ with no separator, as peers send them.
	input := `{"defTextVector":{"device":"Cam","name":"INFO","group":"Main","label":"Info","state":"Ok","perm":"ro","items":[{"name":"MODEL","label":"Model","value":"SimCam"}]}}` +
		`{"setTextVector":{"device":"Cam","name":"INFO","state":"Ok","items":[{"name":"MODEL","value":"SimCam2"}]}}`

	d := NewStreamDecoder(PolicyLenient)
	d.Feed([]byte(input))

	def, err := d.Next()
	if err != nil {
		t.Fatalf("Next def: %v", err)
	}
	if def.Type != TypeDef || def.ValueKind != model.KindText {
		t.Fatalf("first message = %v/%v, want def/Text", def.Type, def.ValueKind)
	}
	if def.Def.Device != "Cam" || def.Def.Name != "INFO" {
		t.Errorf("def target = %s.%s, want Cam.INFO", def.Def.Device, def.Def.Name)
	}
	if len(def.Def.Items) != 1 || def.Def.Items[0].Name != "MODEL" {
		t.Fatalf("def items = %+v", def.Def.Items)
	}
	if got := Text(def.Def.Items[0].Value); got != "SimCam" {
		t.Errorf("def MODEL = %q, want SimCam", got)
	}

	set, err := d.Next()
	if err != nil {
		t.Fatalf("Next set: %v", err)
	}
	if set.Type != TypeSet || set.ValueKind != model.KindText {
		t.Fatalf("second message = %v/%v, want set/Text", set.Type, set.ValueKind)
	}
	if got := Text(set.Set.Items[0].Value); got != "SimCam2" {
		t.Errorf("set MODEL = %q, want SimCam2", got)
	}

	if _, err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Next after both = %v, want ErrIncomplete", err)
	}
}

func TestStreamDecoderPartialFeed(t *testing.T) {
	full := `{"setNumberVector":{"device":"Weather","name":"TEMPERATURE","state":"Ok","items":[{"name":"VALUE","value":21.5}]}}`
	half := len(full) / 2

	d := NewStreamDecoder(PolicyLenient)
	d.Feed([]byte(full[:half]))

	if _, err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("Next on partial object = %v, want ErrIncomplete", err)
	}

	d.Feed([]byte(full[half:]))
	msg, err := d.Next()
	if err != nil {
		t.Fatalf("Next after completing feed: %v", err)
	}
	if msg.Type != TypeSet || msg.Set.Device != "Weather" {
		t.Fatalf("message = %+v", msg)
	}
	v, ok := msg.Set.Items[0].Value.(float64)
	if !ok || v != 21.5 {
		t.Errorf("VALUE = %v, want 21.5", msg.Set.Items[0].Value)
	}
}

func TestStreamDecoderBlankLineSeparated(t *testing.T) {
	// Our own encoder terminates each object with a blank line.
	input := "{\"message\":{\"device\":\"Cam\",\"message\":\"cooling on\"}}\n\n" +
		"{\"deleteProperty\":{\"device\":\"Cam\",\"name\":\"CCD_TEMPERATURE\"}}\n\n"

	d := NewStreamDecoder(PolicyLenient)
	d.Feed([]byte(input))

	first, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if first.Type != TypeMessage || first.Notice.Message != "cooling on" {
		t.Fatalf("first = %+v", first)
	}

	second, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if second.Type != TypeDelete || second.Delete.Name != "CCD_TEMPERATURE" {
		t.Fatalf("second = %+v", second)
	}
}

func TestStreamDecoderMultiKeyObject(t *testing.T) {
	// One object carrying two vocabulary keys dispatches both.
	input := `{"setSwitchVector":{"device":"Cam","name":"CONNECTION","state":"Ok","items":[{"name":"CONNECTED","value":true}]},"message":{"device":"Cam","message":"connected"}}`

	d := NewStreamDecoder(PolicyLenient)
	d.Feed([]byte(input))

	seen := map[MessageType]bool{}
	for i := 0; i < 2; i++ {
		msg, err := d.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		seen[msg.Type] = true
	}
	if !seen[TypeSet] || !seen[TypeMessage] {
		t.Errorf("dispatched types = %v, want set and message", seen)
	}
	if _, err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Errorf("Next after both keys = %v, want ErrIncomplete", err)
	}
}

func TestStreamDecoderUnknownKey(t *testing.T) {
	d := NewStreamDecoder(PolicyLenient)
	d.Feed([]byte(`{"enableBLOB":{"device":"Cam","mode":"Also"}}`))

	msg, err := d.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if msg.Type != TypeUnknown {
		t.Fatalf("type = %v, want unknown", msg.Type)
	}
	if msg.UnknownKey != "enableBLOB" {
		t.Errorf("key = %q, want enableBLOB", msg.UnknownKey)
	}
	if !strings.Contains(string(msg.UnknownRaw), `"mode":"Also"`) {
		t.Errorf("raw payload = %s", msg.UnknownRaw)
	}
}

func TestStreamDecoderLenientResync(t *testing.T) {
	// Garbage before and between objects is skipped, not fatal.
	input := `garbage{"message":{"message":"first"}}!!!{"message":{"message":"second"}}`

	d := NewStreamDecoder(PolicyLenient)
	d.Feed([]byte(input))

	var got []string
	for {
		msg, err := d.Next()
		if errors.Is(err, ErrIncomplete) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if msg.Type == TypeMessage {
			got = append(got, msg.Notice.Message)
		}
	}

	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("recovered messages = %v, want [first second]", got)
	}
}

func TestStreamDecoderStrictError(t *testing.T) {
	d := NewStreamDecoder(PolicyStrict)
	d.Feed([]byte(`garbage{"message":{"message":"never"}}`))

	_, err := d.Next()
	if err == nil {
		t.Fatal("expected error for malformed input under strict policy")
	}
	if errors.Is(err, ErrIncomplete) {
		t.Fatalf("err = %v, want a syntax error, not ErrIncomplete", err)
	}
}

func TestStreamDecoderFeedAcrossMessages(t *testing.T) {
	// Trailing partial data survives buffer compaction on later feeds.
	a := `{"message":{"message":"one"}}{"mess`
	b := `age":{"message":"two"}}`

	d := NewStreamDecoder(PolicyLenient)
	d.Feed([]byte(a))

	msg, err := d.Next()
	if err != nil || msg.Notice.Message != "one" {
		t.Fatalf("first = %v, %v", msg, err)
	}
	if _, err := d.Next(); !errors.Is(err, ErrIncomplete) {
		t.Fatalf("partial tail: err = %v, want ErrIncomplete", err)
	}

	d.Feed([]byte(b))
	msg, err = d.Next()
	if err != nil || msg.Notice.Message != "two" {
		t.Fatalf("second = %v, %v", msg, err)
	}
}

func TestEncoderTerminatesWithBlankLine(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	msg := &Message{Type: TypeGetProperties, GetProperties: &GetProperties{Version: 512, Client: "ctl"}}
	if err := enc.Encode(msg); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	out := buf.String()
	if !strings.HasSuffix(out, "\n\n") {
		t.Errorf("output not blank-line terminated: %q", out)
	}
	if !strings.HasPrefix(out, `{"getProperties":`) {
		t.Errorf("output key framing wrong: %q", out)
	}
	if !strings.Contains(out, `"version":512`) {
		t.Errorf("version missing: %q", out)
	}
}

func TestEncoderDecoderRoundTrip(t *testing.T) {
	msgs := []*Message{
		{Type: TypeGetProperties, GetProperties: &GetProperties{Version: 512, Client: "rt"}},
		{Type: TypeDef, ValueKind: model.KindSwitch, Def: &DefVector{
			Device: "Power Box", Name: "OUTLET", Group: "Main", Label: "Outlets",
			State: "Ok", Perm: "rw", Rule: "AnyOfMany",
			Items: []DefItem{{Name: "OUT_1", Label: "Outlet 1", Value: "On"}},
		}},
		{Type: TypeSet, ValueKind: model.KindBLOB, Set: &SetVector{
			Device: "Cam", Name: "CCD_IMAGE", State: "Ok",
			Items: []SetItem{{Name: "IMAGE", Value: "QUJD", Size: 3, Format: ".bin"}},
		}},
		{Type: TypeNew, ValueKind: model.KindNumber, New: &NewVector{
			Device: "Focuser", Name: "POSITION",
			Items: []NewItem{{Name: "STEPS", Value: float64(1200)}},
		}},
		{Type: TypeMessage, Notice: &Notice{Device: "Cam", Message: "hello"}},
		{Type: TypeDelete, Delete: &DeleteProperty{Device: "Cam", Name: "OLD"}},
		{Type: TypeSwitchProtocol, SwitchProtocol: &SwitchProtocol{Version: "2.0"}},
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			t.Fatalf("Encode %s: %v", m.Key(), err)
		}
	}

	d := NewStreamDecoder(PolicyStrict)
	d.Feed(buf.Bytes())
	for i, want := range msgs {
		got, err := d.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if got.Type != want.Type {
			t.Fatalf("message %d type = %v, want %v", i, got.Type, want.Type)
		}
		if got.Key() != want.Key() {
			t.Errorf("message %d key = %q, want %q", i, got.Key(), want.Key())
		}
		if got.Device() != want.Device() {
			t.Errorf("message %d device = %q, want %q", i, got.Device(), want.Device())
		}
	}

	// BLOB attrs survive the trip.
	d2 := NewStreamDecoder(PolicyStrict)
	var buf2 bytes.Buffer
	enc2 := NewEncoder(&buf2)
	if err := enc2.Encode(msgs[2]); err != nil {
		t.Fatal(err)
	}
	d2.Feed(buf2.Bytes())
	blob, err := d2.Next()
	if err != nil {
		t.Fatal(err)
	}
	it := blob.Set.Items[0]
	if it.Size != 3 || it.Format != ".bin" || Text(it.Value) != "QUJD" {
		t.Errorf("blob item = %+v", it)
	}
}

func TestStreamDecoderLogging(t *testing.T) {
	logger := &captureLogger{}
	d := NewStreamDecoder(PolicyLenient)
	d.SetLogger(logger, "conn-1")

	raw := `{"setTextVector":{"device":"Cam","name":"INFO","state":"Ok","items":[{"name":"MODEL","value":"X"}]}}`
	d.Feed([]byte(raw))
	if _, err := d.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}

	events := logger.all()
	if len(events) != 1 {
		t.Fatalf("logged %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.ConnectionID != "conn-1" {
		t.Errorf("connection id = %q", ev.ConnectionID)
	}
	if ev.Direction != log.DirectionIn || ev.Encoding != log.EncodingJSON {
		t.Errorf("direction/encoding = %v/%v", ev.Direction, ev.Encoding)
	}
	if ev.Category != log.CategoryMessage {
		t.Errorf("category = %v, want message", ev.Category)
	}
	if ev.Message == nil {
		t.Fatal("message detail missing")
	}
	if ev.Message.Kind != "setTextVector" || ev.Message.Device != "Cam" || ev.Message.Property != "INFO" {
		t.Errorf("message detail = %+v", ev.Message)
	}
	if string(ev.Message.Payload) != raw {
		t.Errorf("payload = %q, want the wire bytes", ev.Message.Payload)
	}
}

func TestStreamDecoderLogsControlCategory(t *testing.T) {
	logger := &captureLogger{}
	d := NewStreamDecoder(PolicyLenient)
	d.SetLogger(logger, "conn-2")

	d.Feed([]byte(`{"getProperties":{"version":512}}`))
	if _, err := d.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}

	events := logger.all()
	if len(events) != 1 || events[0].Category != log.CategoryControl {
		t.Fatalf("events = %+v, want one control event", events)
	}
}

func TestStreamDecoderLogsErrors(t *testing.T) {
	logger := &captureLogger{}
	d := NewStreamDecoder(PolicyLenient)
	d.SetLogger(logger, "conn-3")

	d.Feed([]byte(`!bad!{"message":{"message":"ok"}}`))
	if _, err := d.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}

	var sawError bool
	for _, ev := range logger.all() {
		if ev.Category == log.CategoryError && ev.Error != nil && ev.Error.Encoding == log.EncodingJSON {
			sawError = true
		}
	}
	if !sawError {
		t.Error("no error event logged for malformed input")
	}
}

func TestEncoderLogging(t *testing.T) {
	logger := &captureLogger{}
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.SetLogger(logger, "conn-4")

	msg := &Message{Type: TypeNew, ValueKind: model.KindSwitch, New: &NewVector{
		Device: "Cam", Name: "CONNECTION",
		Items: []NewItem{{Name: "CONNECTED", Value: "On"}},
	}}
	if err := enc.Encode(msg); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	events := logger.all()
	if len(events) != 1 {
		t.Fatalf("logged %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Direction != log.DirectionOut {
		t.Errorf("direction = %v, want out", ev.Direction)
	}
	if ev.Message == nil || ev.Message.Size != buf.Len() {
		t.Errorf("payload size = %+v, want %d", ev.Message, buf.Len())
	}
	if ev.Message.Truncated {
		t.Error("small payload marked truncated")
	}
}

func TestMessageEventTruncation(t *testing.T) {
	big := &Message{Type: TypeSet, ValueKind: model.KindBLOB, Set: &SetVector{
		Device: "Cam", Name: "CCD_IMAGE", State: "Ok",
		Items: []SetItem{{Name: "IMAGE", Value: strings.Repeat("A", 2*MaxLogPayloadSize), Size: 2 * MaxLogPayloadSize}},
	}}

	logger := &captureLogger{}
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	enc.SetLogger(logger, "conn-5")
	if err := enc.Encode(big); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	events := logger.all()
	if len(events) != 1 {
		t.Fatalf("logged %d events, want 1", len(events))
	}
	me := events[0].Message
	if me == nil {
		t.Fatal("message detail missing")
	}
	if !me.Truncated {
		t.Error("oversized payload not marked truncated")
	}
	if len(me.Payload) != MaxLogPayloadSize {
		t.Errorf("payload kept %d bytes, want %d", len(me.Payload), MaxLogPayloadSize)
	}
	if me.Size != buf.Len() {
		t.Errorf("size = %d, want full %d", me.Size, buf.Len())
	}
}
