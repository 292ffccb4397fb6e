package transport

import (
	"context"
	"errors"

	"github.com/obdkit/obdkit-go/pkg/dtc"
	"github.com/obdkit/obdkit-go/pkg/pid"
)

// Transport errors implementations may return.
var (
	ErrNotConnected = errors.New("transport not connected")
	ErrEmptySet     = errors.New("subscription parameter set is empty")
)

// DeliverFunc receives one decoded measurement from the continuous feed.
// Implementations call it from their own goroutine; it must return quickly.
type DeliverFunc func(id pid.ID, m pid.Measurement)

// FailFunc receives stream-level errors (decode failures, dropped frames).
// Such errors are advisory: the subscription stays live and later
// measurements may still arrive.
type FailFunc func(err error)

// Subscription is a live handle to the continuous-update feed.
type Subscription interface {
	// Cancel stops delivery. It is idempotent and returns after the
	// transport has stopped calling the handlers for this subscription.
	Cancel()
}

// Transport is implemented by vehicle adapter drivers.
type Transport interface {
	// Open performs the one-shot handshake with the adapter.
	// A non-nil error means the connect attempt failed; the caller may
	// retry with a fresh Open.
	Open(ctx context.Context) error

	// Close tears down any live connection. Idempotent.
	Close()

	// Subscribe opens a continuous push feed for exactly the given
	// parameter set. deliver is invoked per arriving measurement, fail per
	// stream-level error. The returned handle is the only way to stop the
	// feed; the transport never closes it on its own.
	Subscribe(set pid.Set, deliver DeliverFunc, fail FailFunc) (Subscription, error)

	// ScanCodes performs a one-shot diagnostic trouble-code scan.
	ScanCodes(ctx context.Context) ([]dtc.Code, error)
}
