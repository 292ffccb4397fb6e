// Package telemetry wires the demand-aggregation core together.
//
// Engine owns the connection lifecycle state machine and the collaborating
// components: the interest registry, the stream supervisor, and the
// statistics collection. UI surfaces interact with exactly one Engine
// instance, constructed once at process start and passed by handle;
// there is no package-level singleton.
//
// # Lifecycle
//
// Disconnected -> Connecting -> Connected, with Connecting -> Failed on a
// handshake error and Failed -> Connecting on retry. While Connected,
// every interested-set change restarts the transport subscription; in any
// other state changes are recorded and take effect on the next successful
// connect. A full disconnect cancels the subscription and wipes all
// accumulated statistics; an interest-driven restart does not.
//
// All published values (state, statistics, trouble codes) are snapshots;
// consumers never receive handles into mutable engine state.
package telemetry
