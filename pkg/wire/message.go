package wire

import (
	"strconv"

	"github.com/indigo-protocol/indigo-go/pkg/model"
)

// Bare vocabulary tags. Vector tags are built from a prefix, a kind
// token, and the "Vector" suffix; see VectorKey.
const (
	TagGetProperties  = "getProperties"
	TagDeleteProperty = "deleteProperty"
	TagMessage        = "message"
	TagSwitchProtocol = "switchProtocol"
)

// MessageType identifies which vocabulary entry a Message carries.
type MessageType uint8

const (
	// TypeUnknown is any key/tag outside the vocabulary; kept for the
	// forward-compatibility hook, never an error.
	TypeUnknown MessageType = iota
	// TypeGetProperties asks the peer to announce its properties.
	TypeGetProperties
	// TypeDef announces a property and its items.
	TypeDef
	// TypeSet reports new state/values for an existing property.
	TypeSet
	// TypeNew requests a change to a property's items.
	TypeNew
	// TypeMessage carries a device-level or connection-wide notice.
	TypeMessage
	// TypeDelete removes a property or an entire device.
	TypeDelete
	// TypeSwitchProtocol acknowledges a protocol version switch.
	TypeSwitchProtocol
)

// String returns the type name as it appears on the wire (vector types
// without their kind token).
func (t MessageType) String() string {
	switch t {
	case TypeGetProperties:
		return TagGetProperties
	case TypeDef:
		return "def*Vector"
	case TypeSet:
		return "set*Vector"
	case TypeNew:
		return "new*Vector"
	case TypeMessage:
		return TagMessage
	case TypeDelete:
		return TagDeleteProperty
	case TypeSwitchProtocol:
		return TagSwitchProtocol
	default:
		return "unknown"
	}
}

// VectorKey builds the wire key/tag for a def/set/new message of the
// given value kind, e.g. VectorKey(TypeDef, model.KindSwitch) returns
// "defSwitchVector". For non-vector types it returns the bare tag.
func VectorKey(t MessageType, k model.Kind) string {
	switch t {
	case TypeDef:
		return "def" + k.String() + "Vector"
	case TypeSet:
		return "set" + k.String() + "Vector"
	case TypeNew:
		return "new" + k.String() + "Vector"
	default:
		return t.String()
	}
}

// ParseVectorKey splits a def/set/new wire key into its message type and
// value kind. Returns false for anything outside the vector vocabulary.
func ParseVectorKey(key string) (MessageType, model.Kind, bool) {
	if len(key) < len("defTextVector") || key[len(key)-6:] != "Vector" {
		return TypeUnknown, 0, false
	}

	var t MessageType
	switch key[:3] {
	case "def":
		t = TypeDef
	case "set":
		t = TypeSet
	case "new":
		t = TypeNew
	default:
		return TypeUnknown, 0, false
	}

	k, err := model.ParseKind(key[3 : len(key)-6])
	if err != nil {
		return TypeUnknown, 0, false
	}
	return t, k, true
}

// Message is one decoded wire message: a tagged union over the closed
// vocabulary. Type selects which payload pointer is set; ValueKind is
// meaningful only for Def/Set/New.
type Message struct {
	Type      MessageType
	ValueKind model.Kind

	GetProperties  *GetProperties
	Def            *DefVector
	Set            *SetVector
	New            *NewVector
	Notice         *Notice
	Delete         *DeleteProperty
	SwitchProtocol *SwitchProtocol

	// Unknown messages keep their key and raw JSON payload (XML side
	// keeps the key only) for the catch-all hook.
	UnknownKey string
	UnknownRaw []byte
}

// Key returns the full wire key/tag for the message.
func (m *Message) Key() string {
	if m.Type == TypeUnknown {
		return m.UnknownKey
	}
	return VectorKey(m.Type, m.ValueKind)
}

// Device returns the device name the message references, if any.
func (m *Message) Device() string {
	switch m.Type {
	case TypeGetProperties:
		return m.GetProperties.Device
	case TypeDef:
		return m.Def.Device
	case TypeSet:
		return m.Set.Device
	case TypeNew:
		return m.New.Device
	case TypeMessage:
		return m.Notice.Device
	case TypeDelete:
		return m.Delete.Device
	default:
		return ""
	}
}

// Property returns the property name the message references, if any.
func (m *Message) Property() string {
	switch m.Type {
	case TypeGetProperties:
		return m.GetProperties.Name
	case TypeDef:
		return m.Def.Name
	case TypeSet:
		return m.Set.Name
	case TypeNew:
		return m.New.Name
	case TypeDelete:
		return m.Delete.Name
	default:
		return ""
	}
}

// GetProperties asks the remote end to (re)announce properties.
// Device/Name narrow the request; empty means everything. Switch is a
// protocol version switch request the receiver acknowledges with
// switchProtocol.
type GetProperties struct {
	Version int    `json:"version,omitempty"`
	Client  string `json:"client,omitempty"`
	Device  string `json:"device,omitempty"`
	Name    string `json:"name,omitempty"`
	Switch  string `json:"switch,omitempty"`
}

// DefVector is the payload of a def<Kind>Vector message.
type DefVector struct {
	Device    string    `json:"device"`
	Name      string    `json:"name"`
	Group     string    `json:"group,omitempty"`
	Label     string    `json:"label,omitempty"`
	State     string    `json:"state,omitempty"`
	Perm      string    `json:"perm,omitempty"`
	Rule      string    `json:"rule,omitempty"`
	Hints     string    `json:"hints,omitempty"`
	Timeout   float64   `json:"timeout,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	Message   string    `json:"message,omitempty"`
	Items     []DefItem `json:"items,omitempty"`
}

// DefItem is one item of a definition. Scalar-typed fields that may
// arrive as either JSON strings or numbers are held as any and rendered
// with Text.
type DefItem struct {
	Name   string `json:"name"`
	Label  string `json:"label,omitempty"`
	Hints  string `json:"hints,omitempty"`
	Value  any    `json:"value,omitempty"`
	Format string `json:"format,omitempty"`
	Min    any    `json:"min,omitempty"`
	Max    any    `json:"max,omitempty"`
	Step   any    `json:"step,omitempty"`
}

// SetVector is the payload of a set<Kind>Vector message.
type SetVector struct {
	Device    string    `json:"device"`
	Name      string    `json:"name"`
	State     string    `json:"state,omitempty"`
	Timeout   float64   `json:"timeout,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
	Message   string    `json:"message,omitempty"`
	Items     []SetItem `json:"items,omitempty"`
}

// SetItem is one item of an update.
type SetItem struct {
	Name   string `json:"name"`
	Value  any    `json:"value,omitempty"`
	Target any    `json:"target,omitempty"`
	Size   int64  `json:"size,omitempty"`
	Format string `json:"format,omitempty"`
	URL    string `json:"url,omitempty"`
}

// NewVector is the payload of a new<Kind>Vector change request.
type NewVector struct {
	Device    string    `json:"device"`
	Name      string    `json:"name"`
	Timestamp string    `json:"timestamp,omitempty"`
	Items     []NewItem `json:"items"`
}

// NewItem is one requested item value.
type NewItem struct {
	Name   string `json:"name"`
	Value  any    `json:"value"`
	Size   int64  `json:"size,omitempty"`
	Format string `json:"format,omitempty"`
	URL    string `json:"url,omitempty"`
}

// Notice is the payload of a message message. Without a device name it
// is connection-wide.
type Notice struct {
	Device    string `json:"device,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// DeleteProperty removes one property, or the whole device when Name
// is empty.
type DeleteProperty struct {
	Device    string `json:"device"`
	Name      string `json:"name,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SwitchProtocol acknowledges a requested protocol version switch.
type SwitchProtocol struct {
	Version string `json:"version"`
}

// Text renders a decoded JSON scalar as wire text. JSON carries numeric
// values as float64; the XML side carries everything as text.
func Text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

// ValueText renders an item value as wire text for the given kind.
// Booleans on Switch items become the On/Off tokens clients habitually
// send in JSON.
func ValueText(k model.Kind, v any) string {
	if b, ok := v.(bool); ok && k == model.KindSwitch {
		return model.SwitchValue(b)
	}
	return Text(v)
}
