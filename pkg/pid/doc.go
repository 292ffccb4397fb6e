// Package pid defines parameter identifiers and measurement values for
// vehicle telemetry.
//
// A parameter (PID) is one queryable value on the vehicle: engine speed,
// vehicle speed, coolant temperature, and so on. Parameters are identified
// by an opaque ID and classified by Kind. The transport delivers decoded
// Measurement values per parameter; this package makes no assumptions about
// the wire encoding.
//
// # Sets
//
// Set is the value type used everywhere demand is expressed: each UI
// consumer declares a Set, the interest registry folds them into a union,
// and the stream supervisor opens subscriptions for exactly one Set.
// Sets are plain maps; use Clone before sharing across goroutines.
package pid
