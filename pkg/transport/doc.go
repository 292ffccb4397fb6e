// Package transport defines the contract between the telemetry core and a
// vehicle adapter implementation.
//
// The core never decodes protocol bytes itself: an implementation of
// Transport owns the wire-level OBD-II conversation and delivers already
// decoded measurements. The core's obligations are purely lifecycle-shaped:
// one handshake per connect, at most one live subscription, cancel before
// replace.
//
// Implementations must tolerate Close and Subscription.Cancel being called
// more than once.
package transport
