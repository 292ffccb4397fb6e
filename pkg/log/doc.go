// Package log provides structured telemetry event logging.
//
// Components emit Event values through the Logger interface rather than
// writing free-form text. An event carries a timestamp, the engine session
// ID, a category, and exactly one typed payload: a connection state change,
// a subscription action, an interest update, a trouble-code scan result, a
// dropped measurement, or an error.
//
// Sinks provided here:
//   - NoopLogger: discards everything (the nil-safe default)
//   - SlogAdapter: renders events through log/slog for console output
//   - FileLogger: appends CBOR-encoded events to a file
//   - MultiLogger: fans out to several sinks
//
// Reader streams events back out of a FileLogger file, optionally filtered,
// for offline session analysis.
package log
