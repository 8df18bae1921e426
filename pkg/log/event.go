package log

import (
	"time"
)

// Event represents a protocol log event captured on either wire encoding.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection or session (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Encoding is the wire encoding the event was captured on.
	Encoding Encoding `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// LocalRole indicates which protocol role captured the event.
	LocalRole Role `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port), when known.
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"` // One wire message
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Lifecycle transitions
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"` // Errors at any point
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Encoding indicates which wire encoding carried the event.
type Encoding uint8

const (
	// EncodingJSON is the client-side concatenated-JSON encoding.
	EncodingJSON Encoding = 0
	// EncodingXML is the driver-side streamed-XML encoding.
	EncodingXML Encoding = 1
)

// String returns the encoding name.
func (e Encoding) String() string {
	switch e {
	case EncodingJSON:
		return "JSON"
	case EncodingXML:
		return "XML"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (define/set/new/delete/message).
	CategoryMessage Category = 0
	// CategoryControl indicates protocol control traffic (getProperties, switchProtocol).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Role indicates which protocol role the local endpoint plays.
type Role uint8

const (
	// RoleClient indicates the JSON client role.
	RoleClient Role = 0
	// RoleDriver indicates the XML driver role.
	RoleDriver Role = 1
	// RoleServer indicates the bridging server.
	RoleServer Role = 2
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "CLIENT"
	case RoleDriver:
		return "DRIVER"
	case RoleServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures one wire message.
type MessageEvent struct {
	// Kind is the message kind as it appears on the wire
	// (defSwitchVector, setNumberVector, getProperties, ...).
	Kind string `cbor:"1,keyasint"`

	// Device is the device name the message references, if any.
	Device string `cbor:"2,keyasint,omitempty"`

	// Property is the property name the message references, if any.
	Property string `cbor:"3,keyasint,omitempty"`

	// Size is the encoded message size in bytes.
	Size int `cbor:"4,keyasint"`

	// Payload is the raw wire text (may be truncated for large messages,
	// BLOB transfers in particular).
	Payload []byte `cbor:"5,keyasint,omitempty"`

	// Truncated indicates if Payload was truncated.
	Truncated bool `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures connection, session, and property lifecycle
// transitions.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// Name identifies the entity ("device" or "device.property"); empty for
	// connection-level changes.
	Name string `cbor:"2,keyasint,omitempty"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"3,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"4,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"5,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntityDevice indicates a device appeared or was deleted.
	StateEntityDevice StateEntity = 1
	// StateEntityProperty indicates a property state transition.
	StateEntityProperty StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityDevice:
		return "DEVICE"
	case StateEntityProperty:
		return "PROPERTY"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any point of a session.
type ErrorEventData struct {
	// Encoding where the error occurred.
	Encoding Encoding `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being done ("decode", "dispatch", "write").
	Context string `cbor:"3,keyasint,omitempty"`
}
