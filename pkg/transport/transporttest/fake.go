// Package transporttest provides a scriptable in-memory Transport for tests.
package transporttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/obdkit/obdkit-go/pkg/dtc"
	"github.com/obdkit/obdkit-go/pkg/pid"
	"github.com/obdkit/obdkit-go/pkg/transport"
)

// Fake implements transport.Transport with recorded calls and scriptable
// failures. Tests push measurements through the most recent subscription.
type Fake struct {
	mu sync.Mutex

	// OpenErr, if set, is returned by Open.
	OpenErr error

	// SubscribeErr, if set, is returned by Subscribe.
	SubscribeErr error

	// ScanCodesResult is returned by ScanCodes.
	ScanCodesResult []dtc.Code

	// ScanErr, if set, is returned by ScanCodes.
	ScanErr error

	openCalls  int
	closeCalls int
	scanCalls  int

	subs []*FakeSubscription
	ops  []string
}

// New creates an empty fake transport.
func New() *Fake {
	return &Fake{}
}

// Open records the handshake attempt and returns OpenErr.
func (f *Fake) Open(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	f.ops = append(f.ops, "open")
	return f.OpenErr
}

// Close records the teardown.
func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.ops = append(f.ops, "close")
}

// Subscribe records the requested set and returns a live FakeSubscription.
func (f *Fake) Subscribe(set pid.Set, deliver transport.DeliverFunc, fail transport.FailFunc) (transport.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SubscribeErr != nil {
		f.ops = append(f.ops, "subscribe-err")
		return nil, f.SubscribeErr
	}

	sub := &FakeSubscription{
		fake:    f,
		Set:     set.Clone(),
		deliver: deliver,
		fail:    fail,
	}
	f.subs = append(f.subs, sub)
	f.ops = append(f.ops, fmt.Sprintf("subscribe %s", set))
	return sub, nil
}

// ScanCodes returns the scripted scan result.
func (f *Fake) ScanCodes(_ context.Context) ([]dtc.Code, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanCalls++
	f.ops = append(f.ops, "scan")
	if f.ScanErr != nil {
		return nil, f.ScanErr
	}
	return f.ScanCodesResult, nil
}

// OpenCalls returns the number of Open calls.
func (f *Fake) OpenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openCalls
}

// CloseCalls returns the number of Close calls.
func (f *Fake) CloseCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeCalls
}

// ScanCalls returns the number of ScanCodes calls.
func (f *Fake) ScanCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanCalls
}

// Subscriptions returns every subscription ever opened, in order.
func (f *Fake) Subscriptions() []*FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*FakeSubscription, len(f.subs))
	copy(out, f.subs)
	return out
}

// Active returns the currently uncancelled subscriptions.
// A correct supervisor never lets this exceed one.
func (f *Fake) Active() []*FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	var active []*FakeSubscription
	for _, sub := range f.subs {
		if !sub.cancelled {
			active = append(active, sub)
		}
	}
	return active
}

// Last returns the most recently opened subscription, or nil.
func (f *Fake) Last() *FakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	return f.subs[len(f.subs)-1]
}

// Ops returns the ordered operation log ("open", "subscribe <set>",
// "cancel <set>", "scan", "close").
func (f *Fake) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.ops))
	copy(out, f.ops)
	return out
}

// FakeSubscription is the handle returned by Fake.Subscribe.
type FakeSubscription struct {
	fake *Fake

	// Set is the parameter set the subscription was opened with.
	Set pid.Set

	deliver   transport.DeliverFunc
	fail      transport.FailFunc
	cancelled bool
}

// Cancel marks the subscription cancelled. Idempotent.
func (s *FakeSubscription) Cancel() {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	if s.cancelled {
		return
	}
	s.cancelled = true
	s.fake.ops = append(s.fake.ops, fmt.Sprintf("cancel %s", s.Set))
}

// Cancelled reports whether Cancel has been called.
func (s *FakeSubscription) Cancelled() bool {
	s.fake.mu.Lock()
	defer s.fake.mu.Unlock()
	return s.cancelled
}

// Deliver pushes one measurement through the subscription's handler.
// Cancelled subscriptions drop it, matching real transport behavior.
func (s *FakeSubscription) Deliver(id pid.ID, m pid.Measurement) {
	s.fake.mu.Lock()
	cancelled := s.cancelled
	deliver := s.deliver
	s.fake.mu.Unlock()
	if cancelled {
		return
	}
	deliver(id, m)
}

// Fail pushes one stream-level error through the subscription's handler.
func (s *FakeSubscription) Fail(err error) {
	s.fake.mu.Lock()
	cancelled := s.cancelled
	fail := s.fail
	s.fake.mu.Unlock()
	if cancelled || fail == nil {
		return
	}
	fail(err)
}

// Compile-time interface satisfaction check.
var _ transport.Transport = (*Fake)(nil)
