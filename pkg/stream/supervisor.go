package stream

import (
	"sync"
	"time"

	"github.com/obdkit/obdkit-go/pkg/log"
	"github.com/obdkit/obdkit-go/pkg/pid"
	"github.com/obdkit/obdkit-go/pkg/stats"
	"github.com/obdkit/obdkit-go/pkg/transport"
)

// Supervisor owns the at-most-one active transport subscription.
// It is safe for concurrent use; the cancel+open pair inside Restart is
// atomic with respect to other supervisor calls.
type Supervisor struct {
	mu sync.Mutex

	transport transport.Transport
	sink      *stats.Collection

	active    transport.Subscription
	activeSet pid.Set

	restarts uint64

	logger    log.Logger
	sessionID string
}

// NewSupervisor creates a supervisor routing measurements into sink.
func NewSupervisor(tp transport.Transport, sink *stats.Collection, logger log.Logger, sessionID string) *Supervisor {
	return &Supervisor{
		transport: tp,
		sink:      sink,
		logger:    log.OrNoop(logger),
		sessionID: sessionID,
	}
}

// Start opens a subscription for the given set. An empty set opens nothing
// and records an idle "nothing to monitor" condition, which is not an error.
// Calling Start while a subscription is live is a programming error on the
// caller's side; use Restart instead. Start tolerates it by cancelling the
// stale handle first, preserving the invariant.
func (s *Supervisor) Start(set pid.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(set)
}

// Restart cancels the existing subscription unconditionally (a no-op if
// none exists), then opens a new one for the updated set. It does not
// return until the prior subscription's cancellation has been issued.
func (s *Supervisor) Restart(set pid.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.restarts++
	return s.startLocked(set)
}

// Cancel stops the active subscription. Idempotent.
func (s *Supervisor) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// ActiveSet returns a copy of the parameter set the live subscription was
// opened with, or nil if nothing is active.
func (s *Supervisor) ActiveSet() pid.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}
	return s.activeSet.Clone()
}

// Restarts returns how many times the subscription has been replaced.
func (s *Supervisor) Restarts() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

func (s *Supervisor) startLocked(set pid.Set) error {
	if s.active != nil {
		s.cancelLocked()
	}

	if len(set) == 0 {
		s.logger.Log(s.subscriptionEvent(log.SubscriptionIdle, nil))
		return nil
	}

	sub, err := s.transport.Subscribe(set, s.deliver, s.streamError)
	if err != nil {
		s.logger.Log(log.Event{
			Timestamp: time.Now(),
			SessionID: s.sessionID,
			Category:  log.CategoryError,
			Error:     &log.ErrorEvent{Op: "subscribe", Message: err.Error()},
		})
		return err
	}

	s.active = sub
	s.activeSet = set.Clone()
	s.logger.Log(s.subscriptionEvent(log.SubscriptionOpened, set))
	return nil
}

func (s *Supervisor) cancelLocked() {
	if s.active == nil {
		return
	}
	s.active.Cancel()
	s.logger.Log(s.subscriptionEvent(log.SubscriptionCancelled, s.activeSet))
	s.active = nil
	s.activeSet = nil
}

// deliver routes one measurement into the statistics collection.
// Runs on the transport's delivery goroutine; keep it short.
func (s *Supervisor) deliver(id pid.ID, m pid.Measurement) {
	if pid.KindOf(id) == pid.KindUnknown {
		s.logger.Log(log.Event{
			Timestamp: time.Now(),
			SessionID: s.sessionID,
			Category:  log.CategoryDrop,
			Drop: &log.DropEvent{
				Parameter: uint16(id),
				Reason:    "unrecognized parameter kind",
			},
		})
		return
	}
	s.sink.Apply(id, m)
}

// streamError logs a mid-subscription failure. The subscription is left
// running and the connection state is untouched; statistics simply stop
// advancing until the next successful measurement.
func (s *Supervisor) streamError(err error) {
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Category:  log.CategoryError,
		Error:     &log.ErrorEvent{Op: "stream", Message: err.Error()},
	})
}

func (s *Supervisor) subscriptionEvent(action log.SubscriptionAction, set pid.Set) log.Event {
	var params []uint16
	for _, id := range set.Sorted() {
		params = append(params, uint16(id))
	}
	return log.Event{
		Timestamp: time.Now(),
		SessionID: s.sessionID,
		Category:  log.CategorySubscription,
		Subscription: &log.SubscriptionEvent{
			Action:     action,
			Parameters: params,
		},
	}
}
