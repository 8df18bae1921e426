// Package log provides structured protocol logging for INDIGO sessions.
//
// This package defines the Logger interface and Event types for capturing
// wire-level traffic on both encodings (client-side JSON, driver-side XML).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/var/log/indigo/server.ilog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    log.NewFileLogger("/var/log/indigo/server.ilog"),
//	)
//
// # Event Types
//
// Each event carries the connection it belongs to, the direction, and the
// wire encoding it was captured on, plus one typed payload:
//   - MessageEvent: one protocol message, with its kind and the device and
//     property names it references
//   - StateChangeEvent: connection, session, or property state transitions
//   - ErrorEventData: parse errors, dropped requests, transport failures
//
// # File Format
//
// Log files use CBOR encoding with .ilog extension. The indigo-log CLI tool
// provides viewing, filtering, and export capabilities.
package log
