package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/obdkit/obdkit-go/pkg/dtc"
	"github.com/obdkit/obdkit-go/pkg/expiry"
	"github.com/obdkit/obdkit-go/pkg/interest"
	"github.com/obdkit/obdkit-go/pkg/log"
	"github.com/obdkit/obdkit-go/pkg/pid"
	"github.com/obdkit/obdkit-go/pkg/stats"
	"github.com/obdkit/obdkit-go/pkg/stream"
	"github.com/obdkit/obdkit-go/pkg/transport"
)

// StateFunc receives lifecycle transitions. Called only on actual change.
type StateFunc func(old, new State, reason string)

// Engine is the coordination core between UI consumers and one transport.
type Engine struct {
	mu sync.Mutex

	cfg       Config
	sessionID string

	transport  transport.Transport
	registry   *interest.Registry
	supervisor *stream.Supervisor
	statistics *stats.Collection
	expiries   *expiry.Manager

	state      State
	failReason string
	codes      []dtc.Code

	stateSubs map[uint64]StateFunc
	nextSubID uint64

	cancelInterest func()

	logger log.Logger
}

// New constructs an engine over the given transport.
// The engine starts Disconnected; call Connect to begin streaming and
// Close when the engine will not be used again.
func New(cfg Config, tp transport.Transport, logger log.Logger) *Engine {
	sessionID := uuid.NewString()
	logger = log.OrNoop(logger)

	e := &Engine{
		cfg:        cfg,
		sessionID:  sessionID,
		transport:  tp,
		registry:   interest.NewRegistry(logger, sessionID),
		statistics: stats.NewCollection(),
		expiries:   expiry.NewManager(),
		state:      StateDisconnected,
		stateSubs:  make(map[uint64]StateFunc),
		logger:     logger,
	}
	e.supervisor = stream.NewSupervisor(tp, e.statistics, logger, sessionID)
	e.cancelInterest = e.registry.OnChange(e.onInterestChanged)
	e.expiries.OnExpiry(e.registry.Clear)
	return e
}

// SessionID returns the engine's session identifier, used to correlate
// log events.
func (e *Engine) SessionID() string {
	return e.sessionID
}

// Connect initiates the transport handshake. Calling it while already
// Connecting or Connected is a logged no-op, so two rapid connect requests
// result in exactly one handshake attempt. Retrying from Failed is allowed.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateConnecting || e.state == StateConnected {
		state := e.state
		e.mu.Unlock()
		e.logger.Log(log.Event{
			Timestamp: time.Now(),
			SessionID: e.sessionID,
			Category:  log.CategoryState,
			StateChange: &log.StateChangeEvent{
				From:   state.String(),
				To:     state.String(),
				Reason: "connect ignored",
			},
		})
		return nil
	}
	notify := e.setStateLocked(StateConnecting, "")
	e.mu.Unlock()
	notify()

	// The handshake is the one blocking operation; no engine state is
	// held while it is in flight.
	err := e.transport.Open(ctx)

	e.mu.Lock()
	if e.state != StateConnecting {
		// A disconnect won the race; abandon this attempt.
		e.mu.Unlock()
		if err == nil {
			e.transport.Close()
		}
		return nil
	}

	if err != nil {
		notify = e.setStateLocked(StateFailed, err.Error())
		e.mu.Unlock()
		notify()
		return err
	}

	notify = e.setStateLocked(StateConnected, "")
	set := e.registry.InterestedSet()

	if e.cfg.ScanOnConnect {
		e.scanCodesLocked(ctx)
	}

	// First restart: nothing was active while disconnected.
	_ = e.supervisor.Start(set)
	e.mu.Unlock()
	notify()
	return nil
}

// Disconnect tears the connection down from any state: the active
// subscription is cancelled, the transport closed, and all accumulated
// statistics and trouble codes discarded. Calling it while already
// Disconnected is a no-op.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	if e.state == StateDisconnected {
		e.mu.Unlock()
		return
	}

	e.supervisor.Cancel()
	e.transport.Close()
	e.statistics.Clear()
	e.codes = nil
	notify := e.setStateLocked(StateDisconnected, "")
	e.mu.Unlock()
	notify()
}

// Close disconnects and releases the engine's internal worker.
// The engine must not be used afterwards.
func (e *Engine) Close() {
	e.Disconnect()
	e.expiries.Close()
	e.cancelInterest()
	e.registry.Close()
}

// Status returns the published lifecycle snapshot.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{State: e.state, FailReason: e.failReason}
}

// OnStateChange registers a lifecycle observer and returns a cancel func.
// Observers fire only on actual transitions (change suppression).
func (e *Engine) OnStateChange(fn StateFunc) (cancel func()) {
	e.mu.Lock()
	e.nextSubID++
	id := e.nextSubID
	e.stateSubs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.stateSubs, id)
		e.mu.Unlock()
	}
}

// MakeToken allocates an interest token for one UI consumer.
func (e *Engine) MakeToken() interest.Token {
	return e.registry.MakeToken()
}

// Replace declares the parameter set a token currently cares about.
// Any pending expiry for the token is cancelled.
func (e *Engine) Replace(set pid.Set, token interest.Token) {
	_ = e.expiries.Cancel(token)
	e.registry.Replace(set, token)
}

// ReplaceFor is Replace with a TTL: when the TTL elapses without a
// re-registration, the token's demand is cleared as if the consumer had
// called Clear.
func (e *Engine) ReplaceFor(set pid.Set, token interest.Token, ttl time.Duration) error {
	if err := e.expiries.Set(token, ttl); err != nil {
		return err
	}
	e.registry.Replace(set, token)
	return nil
}

// Clear retracts a token's demand entirely. Deferred; see package interest.
func (e *Engine) Clear(token interest.Token) {
	_ = e.expiries.Cancel(token)
	e.registry.Clear(token)
}

// InterestExpiry reports when the token's registration will expire, or
// ok=false when no TTL is pending.
func (e *Engine) InterestExpiry(token interest.Token) (time.Time, bool) {
	t := e.expiries.Get(token)
	if t == nil {
		return time.Time{}, false
	}
	return t.ExpiresAt(), true
}

// InterestedSet returns the current published union of all tokens' sets.
func (e *Engine) InterestedSet() pid.Set {
	return e.registry.InterestedSet()
}

// TokenCount returns the number of tokens currently holding a non-empty
// interest set.
func (e *Engine) TokenCount() int {
	return e.registry.TokenCount()
}

// Statistics returns a snapshot of all per-parameter statistics.
func (e *Engine) Statistics() map[pid.ID]stats.Statistics {
	return e.statistics.Snapshot()
}

// ParameterStatistics returns the snapshot for one parameter.
func (e *Engine) ParameterStatistics(id pid.ID) (stats.Statistics, bool) {
	return e.statistics.Get(id)
}

// ResetStats collapses one parameter's min/max window around its latest
// reading without losing it.
func (e *Engine) ResetStats(id pid.ID) {
	e.statistics.Reset(id)
}

// ResetAllStats applies ResetStats to every tracked parameter.
func (e *Engine) ResetAllStats() {
	e.statistics.ResetAll()
}

// Codes returns the trouble codes from the scan performed on connect.
func (e *Engine) Codes() []dtc.Code {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]dtc.Code, len(e.codes))
	copy(out, e.codes)
	return out
}

// Restarts returns how many times the subscription has been replaced.
func (e *Engine) Restarts() uint64 {
	return e.supervisor.Restarts()
}

// TotalSamples returns the number of measurements applied this session.
func (e *Engine) TotalSamples() uint64 {
	return e.statistics.TotalSamples()
}

// Sync waits for deferred interest clears to settle. Intended for tests
// and shutdown paths that need a deterministic view.
func (e *Engine) Sync() {
	e.registry.Sync()
}

// onInterestChanged reacts to a newly published interested set.
// While Connected it restarts the subscription; in every other state the
// registry already holds the set and it takes effect on the next connect.
func (e *Engine) onInterestChanged(set pid.Set) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateConnected {
		return
	}
	_ = e.supervisor.Restart(set)
}

// scanCodesLocked performs the one-shot trouble-code scan.
// Scan failures are logged, not surfaced; the connection stays up.
func (e *Engine) scanCodesLocked(ctx context.Context) {
	codes, err := e.transport.ScanCodes(ctx)
	if err != nil {
		e.logger.Log(log.Event{
			Timestamp: time.Now(),
			SessionID: e.sessionID,
			Category:  log.CategoryError,
			Error:     &log.ErrorEvent{Op: "scan", Message: err.Error()},
		})
		return
	}
	e.codes = codes

	names := make([]string, 0, len(codes))
	for _, c := range codes {
		names = append(names, c.String())
	}
	e.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Category:  log.CategoryScan,
		Scan:      &log.ScanEvent{Codes: names},
	})
}

// setStateLocked applies a transition and returns the notification closure
// to run after the engine mutex is released. Caller holds e.mu.
func (e *Engine) setStateLocked(new State, reason string) (notify func()) {
	if e.state == new && e.failReason == reason {
		return func() {}
	}

	old := e.state
	e.state = new
	e.failReason = reason

	subs := make([]StateFunc, 0, len(e.stateSubs))
	for _, fn := range e.stateSubs {
		subs = append(subs, fn)
	}

	e.logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			From:   old.String(),
			To:     new.String(),
			Reason: reason,
		},
	})

	return func() {
		for _, fn := range subs {
			fn(old, new, reason)
		}
	}
}
