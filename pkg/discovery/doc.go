// Package discovery implements mDNS/DNS-SD discovery for servers.
//
// A server advertises one _indigo._tcp service per listener; the
// instance name is the user-facing server name. TXT records carry
// "key=value" pairs, conventionally at least the protocol version.
// Clients browse the same service type and connect to the advertised
// host and port.
package discovery
