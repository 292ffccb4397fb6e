// Package stream supervises the single transport subscription.
//
// The supervisor guarantees that at most one subscription to the
// transport's continuous-update feed exists at any instant. Restart always
// cancels the old handle before opening the replacement, so subscriptions
// never overlap even transiently.
//
// Arriving measurements are routed into the statistics collection.
// Measurements for parameters of an unrecognized kind are dropped and
// logged; stream-level errors are logged and never escalate beyond this
// package.
package stream
