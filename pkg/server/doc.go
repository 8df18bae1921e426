// Package server bridges JSON clients and XML drivers.
//
// A Server listens for TCP clients speaking the concatenated-JSON
// encoding and hosts any number of drivers speaking line-oriented XML
// over attached byte channels (in-process pipes or spawned process
// stdio). Definitions, updates, deletions and messages from drivers
// are broadcast to every client; getProperties and new*Vector requests
// from clients are routed to the driver owning the addressed device.
// The route table is learned from the definitions each driver sends.
package server
