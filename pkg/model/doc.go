// Package model implements the INDIGO property data model.
//
// # Hierarchy
//
// The protocol uses a 3-level hierarchy shared by clients and drivers:
//
//	Device > Property > Item
//
// A Device represents one physical or logical instrument (a camera, a mount,
// a focuser). Devices contain Properties, each describing one controllable
// or observable aspect. Properties contain Items, the leaf value holders.
// All three levels are keyed by name and preserve insertion order.
//
//	Device ("CCD Simulator")
//	├── CONNECTION            (Switch, OneOfMany)
//	│   ├── CONNECTED
//	│   └── DISCONNECTED
//	├── CCD_EXPOSURE          (Number)
//	│   └── EXPOSURE
//	└── CCD_IMAGE             (BLOB)
//	    └── IMAGE
//
// # Property Kinds
//
// Every property has a fixed kind: Text, Number, Switch, Light, or BLOB.
// The kind determines which item attributes are meaningful: Number items
// carry format/min/max/step (and a target during updates), BLOB items carry
// size/format/url, Switch items hold the tokens "On"/"Off", Light items hold
// a state token. Binary values are stored base64-encoded together with the
// decoded byte size; SetValue performs the encoding when handed raw bytes.
//
// # States and Permissions
//
// Property state is one of Idle, Ok, Busy, Alert. There is no enforced
// transition graph; by convention a device is Busy while an operation runs,
// Ok on success, Alert on failure. Permission is rw, ro, or wo. Light
// properties are always read-only and carry no permission or timeout on the
// wire.
//
// # Registry
//
// A Registry maps device names to devices. The client engine fills it from
// received definitions; a driver fills it with the devices it owns. Mutating
// a property or item never touches the network: announcing a change to the
// remote peer is always a separate, explicit serialization step.
package model
