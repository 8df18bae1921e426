package interactive

import (
	"reflect"
	"testing"

	"github.com/indigo-protocol/indigo-go/pkg/model"
)

func TestSplitQuoted(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"list", []string{"list"}},
		{"get Imager.CCD_EXPOSURE", []string{"get", "Imager.CCD_EXPOSURE"}},
		{`get "CCD Simulator".CCD_EXPOSURE`, []string{"get", "CCD Simulator.CCD_EXPOSURE"}},
		{`connect 'my host':7624`, []string{"connect", "my host:7624"}},
		{`set "CCD Simulator".CCD_COOLER COOLER_ON=On`, []string{"set", "CCD Simulator.CCD_COOLER", "COOLER_ON=On"}},
		{`say "hello world" again`, []string{"say", "hello world", "again"}},
		{`say ""`, []string{"say", ""}},
	}
	for _, tt := range tests {
		got := splitQuoted(tt.line)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitQuoted(%q) = %q, want %q", tt.line, got, tt.want)
		}
	}
}

func TestParseTarget(t *testing.T) {
	device, property, item := parseTarget("CCD Simulator.CCD_EXPOSURE.EXPOSURE")
	if device != "CCD Simulator" || property != "CCD_EXPOSURE" || item != "EXPOSURE" {
		t.Errorf("unexpected split: %q %q %q", device, property, item)
	}

	device, property, item = parseTarget("Meteo.WEATHER")
	if device != "Meteo" || property != "WEATHER" || item != "" {
		t.Errorf("unexpected split: %q %q %q", device, property, item)
	}

	device, property, item = parseTarget("Meteo")
	if device != "Meteo" || property != "" || item != "" {
		t.Errorf("unexpected split: %q %q %q", device, property, item)
	}
}

func TestParseValue(t *testing.T) {
	if v, err := parseValue(model.KindSwitch, "On"); err != nil || v != true {
		t.Errorf("switch On = %v, %v", v, err)
	}
	if v, err := parseValue(model.KindSwitch, "off"); err != nil || v != false {
		t.Errorf("switch off = %v, %v", v, err)
	}
	if _, err := parseValue(model.KindSwitch, "maybe"); err == nil {
		t.Error("expected error for bad switch value")
	}
	if v, err := parseValue(model.KindNumber, "2.5"); err != nil || v != 2.5 {
		t.Errorf("number 2.5 = %v, %v", v, err)
	}
	if _, err := parseValue(model.KindNumber, "fast"); err == nil {
		t.Error("expected error for bad number")
	}
	if v, err := parseValue(model.KindText, "hello"); err != nil || v != "hello" {
		t.Errorf("text = %v, %v", v, err)
	}
}

func TestFormatItem(t *testing.T) {
	p := model.NewProperty("CCD_TEMPERATURE", model.KindNumber)
	p.AddNumberItem("TEMPERATURE", "Temperature", 25.0, "%5.2f", "-50", "50", "0.5")
	it, err := p.Item("TEMPERATURE")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if got := formatItem(model.KindNumber, it); got != "25" {
		t.Errorf("number item = %q, want 25", got)
	}

	b := model.NewProperty("CCD_IMAGE", model.KindBLOB)
	b.AddBlobItem("IMAGE", "Image")
	img, err := b.Item("IMAGE")
	if err != nil {
		t.Fatalf("Item: %v", err)
	}
	if got := formatItem(model.KindBLOB, img); got != "<no data>" {
		t.Errorf("empty blob = %q, want <no data>", got)
	}
	img.SetBlob([]byte("abcd"), ".raw")
	if got := formatItem(model.KindBLOB, img); got != "<4 bytes .raw>" {
		t.Errorf("blob = %q, want <4 bytes .raw>", got)
	}
}

func TestClock(t *testing.T) {
	if got := clock("2026-08-22T14:30:05"); got != "14:30:05" {
		t.Errorf("clock = %q, want 14:30:05", got)
	}
	if got := clock("noon"); got != "noon" {
		t.Errorf("clock passthrough = %q, want noon", got)
	}
}
