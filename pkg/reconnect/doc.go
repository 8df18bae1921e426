// Package reconnect keeps a client connected to a server across failures.
//
// The protocol engines deliberately know nothing about redialing: a lost
// connection surfaces as a single callback and the session is over. This
// package supplies the policy layer on top. A Manager owns a ConnectFunc
// (dial + attach, whatever the caller needs) and drives it through a small
// state machine: deliberate disconnects stay down, detected losses trigger
// automatic redialing with exponential backoff and jitter.
//
// Backoff is also usable on its own for callers that want the delay
// schedule without the state machine.
package reconnect
