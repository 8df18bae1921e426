package model

import "fmt"

// Kind identifies the value type of a property and all its items.
// It is fixed at creation and never changes.
type Kind uint8

const (
	KindText Kind = iota
	KindNumber
	KindSwitch
	KindLight
	KindBLOB
)

// String returns the wire token for the kind, as it appears inside
// message keys and element tags (defTextVector, oneBLOB, ...).
func (k Kind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindNumber:
		return "Number"
	case KindSwitch:
		return "Switch"
	case KindLight:
		return "Light"
	case KindBLOB:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// ParseKind parses a wire kind token.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "Text":
		return KindText, nil
	case "Number":
		return KindNumber, nil
	case "Switch":
		return KindSwitch, nil
	case "Light":
		return KindLight, nil
	case "BLOB":
		return KindBLOB, nil
	default:
		return 0, fmt.Errorf("unknown property kind %q", s)
	}
}

// Kinds returns all property kinds in wire order.
func Kinds() []Kind {
	return []Kind{KindText, KindNumber, KindSwitch, KindLight, KindBLOB}
}

// State communicates the progress or outcome of the operation a property
// represents.
type State uint8

const (
	StateIdle State = iota
	StateOk
	StateBusy
	StateAlert
)

// String returns the wire token for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOk:
		return "Ok"
	case StateBusy:
		return "Busy"
	case StateAlert:
		return "Alert"
	default:
		return "UNKNOWN"
	}
}

// ParseState parses a wire state token.
func ParseState(s string) (State, error) {
	switch s {
	case "Idle":
		return StateIdle, nil
	case "Ok":
		return StateOk, nil
	case "Busy":
		return StateBusy, nil
	case "Alert":
		return StateAlert, nil
	default:
		return StateIdle, fmt.Errorf("unknown property state %q", s)
	}
}

// Perm governs whether a client may request changes to a property.
type Perm uint8

const (
	PermReadWrite Perm = iota
	PermReadOnly
	PermWriteOnly
)

// String returns the wire token for the permission.
func (p Perm) String() string {
	switch p {
	case PermReadWrite:
		return "rw"
	case PermReadOnly:
		return "ro"
	case PermWriteOnly:
		return "wo"
	default:
		return "UNKNOWN"
	}
}

// ParsePerm parses a wire permission token.
func ParsePerm(s string) (Perm, error) {
	switch s {
	case "rw":
		return PermReadWrite, nil
	case "ro":
		return PermReadOnly, nil
	case "wo":
		return PermWriteOnly, nil
	default:
		return PermReadWrite, fmt.Errorf("unknown permission %q", s)
	}
}

// SwitchRule is advisory metadata describing how many items of a switch
// property may be On at once. The engine never enforces it; enforcement is
// the owning device's responsibility.
type SwitchRule uint8

const (
	RuleOneOfMany SwitchRule = iota
	RuleAtMostOne
	RuleAnyOfMany
)

// String returns the wire token for the rule.
func (r SwitchRule) String() string {
	switch r {
	case RuleOneOfMany:
		return "OneOfMany"
	case RuleAtMostOne:
		return "AtMostOne"
	case RuleAnyOfMany:
		return "AnyOfMany"
	default:
		return "UNKNOWN"
	}
}

// ParseSwitchRule parses a wire switch rule token.
func ParseSwitchRule(s string) (SwitchRule, error) {
	switch s {
	case "OneOfMany":
		return RuleOneOfMany, nil
	case "AtMostOne":
		return RuleAtMostOne, nil
	case "AnyOfMany":
		return RuleAnyOfMany, nil
	default:
		return RuleOneOfMany, fmt.Errorf("unknown switch rule %q", s)
	}
}

// Switch item value tokens.
const (
	SwitchOn  = "On"
	SwitchOff = "Off"
)

// SwitchValue returns the wire token for a boolean switch position.
func SwitchValue(on bool) string {
	if on {
		return SwitchOn
	}
	return SwitchOff
}
