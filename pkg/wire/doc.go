// Package wire defines the message vocabulary shared by both protocol
// encodings and the codecs that move it on and off the wire.
//
// A message is decoded once at the boundary into a tagged union (Message)
// and dispatched by its Type; the engines never inspect wire keys or tag
// names themselves.
//
// # Encodings
//
// The client side speaks concatenated JSON objects with no delimiter or
// length prefix: StreamDecoder splits adjacent objects and Encoder
// terminates each outbound object with a blank line to aid peer framing.
//
// The driver side speaks a rootless stream of XML elements: Tokenizer
// yields one element at a time as bytes arrive, and Writer emits
// definition/update/delete elements in the conventional layout.
//
// # Recovery
//
// Both decoders take a Policy. PolicyLenient (the default everywhere but
// tests) skips a malformed unit and resumes at the next plausible message
// boundary; PolicyStrict surfaces the first syntax error.
package wire
