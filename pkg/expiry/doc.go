// Package expiry implements time-limited interest registrations.
//
// A registration made with a TTL is automatically cleared when the TTL
// elapses, so consumers that disappear without cleaning up (a closed
// browser tab, a crashed script) do not pin the subscription to their
// parameters forever.
//
// # Timer Lifecycle
//
// The timer starts when the registration is accepted. Re-registering the
// same token replaces any pending timer; there is no stacking. An explicit
// clear cancels the timer without firing the expiry callback.
//
// # Accuracy
//
// Timer accuracy is +/- 1% or +/- 1 second, whichever is greater. The
// implementation uses monotonic time, so wall clock adjustments do not
// shift pending expiries.
package expiry
