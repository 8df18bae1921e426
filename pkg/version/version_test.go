package version

import (
	"testing"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		input string
		major uint16
		minor uint16
	}{
		{"1.7", 1, 7},
		{"2.0", 2, 0},
		{"2.1", 2, 1},
		{"10.23", 10, 23},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) returned error: %v", tt.input, err)
			}
			if v.Major != tt.major {
				t.Errorf("Major = %d, want %d", v.Major, tt.major)
			}
			if v.Minor != tt.minor {
				t.Errorf("Minor = %d, want %d", v.Minor, tt.minor)
			}
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"2",
		"abc",
		"2.0.0",
		"2.x",
		"-2.0",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if err == nil {
				t.Errorf("Parse(%q) should return error", input)
			}
		})
	}
}

func TestSpecVersion_String(t *testing.T) {
	v, err := Parse("2.0")
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "2.0" {
		t.Errorf("String() = %q, want %q", v.String(), "2.0")
	}

	v2, err := Parse("10.23")
	if err != nil {
		t.Fatal(err)
	}
	if v2.String() != "10.23" {
		t.Errorf("String() = %q, want %q", v2.String(), "10.23")
	}
}

func TestCompatible(t *testing.T) {
	v20, _ := Parse("2.0")
	v21, _ := Parse("2.1")
	v17, _ := Parse("1.7")

	if !v20.Compatible(v21) {
		t.Error("2.0 should be compatible with 2.1")
	}
	if v20.Compatible(v17) {
		t.Error("2.0 should NOT be compatible with 1.7")
	}
}

func TestWireRoundTrip(t *testing.T) {
	tests := []struct {
		version string
		wire    int
	}{
		{"2.0", 0x200},
		{"1.7", 0x107},
		{"2.1", 0x201},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			v, err := Parse(tt.version)
			if err != nil {
				t.Fatal(err)
			}
			if got := v.Wire(); got != tt.wire {
				t.Errorf("Wire() = %#x, want %#x", got, tt.wire)
			}
			if back := FromWire(tt.wire); back != v {
				t.Errorf("FromWire(%#x) = %v, want %v", tt.wire, back, v)
			}
		})
	}
}

func TestCurrent(t *testing.T) {
	v, err := Parse(Current)
	if err != nil {
		t.Fatalf("Parse(Current) returned error: %v", err)
	}
	if v.Major != 2 || v.Minor != 0 {
		t.Errorf("Current version = %s, want 2.0", v)
	}
	if v.Wire() != CurrentWire {
		t.Errorf("Wire() = %#x, want %#x", v.Wire(), CurrentWire)
	}
}
