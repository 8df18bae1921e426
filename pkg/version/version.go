// Package version provides protocol version constants, parsing, and the
// numeric wire form used by the JSON encoding.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this library.
const Current = "2.0"

// CurrentWire is the numeric form of Current as carried by JSON
// getProperties requests: major<<8 | minor.
const CurrentWire = 0x200

// SpecVersion represents a parsed "major.minor" protocol version.
type SpecVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (SpecVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return SpecVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return SpecVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return SpecVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return SpecVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v SpecVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v SpecVersion) Compatible(other SpecVersion) bool {
	return v.Major == other.Major
}

// Wire returns the numeric wire form: major<<8 | minor.
func (v SpecVersion) Wire() int {
	return int(v.Major)<<8 | int(v.Minor)&0xff
}

// FromWire decodes the numeric wire form back into a version.
func FromWire(w int) SpecVersion {
	return SpecVersion{Major: uint16(w >> 8), Minor: uint16(w & 0xff)}
}
