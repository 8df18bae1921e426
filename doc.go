// Package indigo implements the INDIGO protocol for device control:
// drivers expose devices as named properties of typed items, and
// clients mirror those properties and request changes to them.
//
// The module is organized by role. pkg/driver serves devices over the
// line-oriented XML encoding, pkg/client speaks the concatenated-JSON
// encoding and maintains a local mirror of everything a server defines,
// and pkg/server bridges the two while fanning driver traffic out to
// every connected client. The shared data model lives in pkg/model and
// the message codecs in pkg/wire. Supporting packages cover mDNS
// discovery (pkg/discovery), connection retry (pkg/reconnect), and
// structured protocol capture (pkg/log).
package indigo
