package expiry

import (
	"errors"
	"sync"
	"time"

	"github.com/obdkit/obdkit-go/pkg/interest"
)

// Duration bounds for TTL registrations.
const (
	// MinTTL is the shortest accepted TTL.
	MinTTL = 1 * time.Second

	// MaxTTL is the longest accepted TTL.
	MaxTTL = 24 * time.Hour

	// AccuracyPercent is the relative timer accuracy.
	AccuracyPercent = 1

	// AccuracyAbsolute is the absolute timer accuracy floor.
	AccuracyAbsolute = 1 * time.Second
)

// Expiry errors.
var (
	ErrInvalidTTL    = errors.New("ttl out of range")
	ErrTimerNotFound = errors.New("no timer for token")
)

// Timer represents one pending expiry.
type Timer struct {
	// Token is the registration this timer will clear.
	Token interest.Token

	// StartTime is when the timer started.
	StartTime time.Time

	// TTL is the timer duration.
	TTL time.Duration

	timer *time.Timer
}

// ExpiresAt returns when the timer will expire.
func (t *Timer) ExpiresAt() time.Time {
	return t.StartTime.Add(t.TTL)
}

// Remaining returns time until expiry.
func (t *Timer) Remaining() time.Duration {
	remaining := t.TTL - time.Since(t.StartTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired returns true if the timer has expired.
func (t *Timer) IsExpired() bool {
	return time.Since(t.StartTime) >= t.TTL
}

// Manager tracks pending expiries by token.
type Manager struct {
	mu sync.RWMutex

	timers map[interest.Token]*Timer
	closed bool

	onExpiry func(interest.Token)
}

// NewManager creates an expiry manager.
func NewManager() *Manager {
	return &Manager{
		timers: make(map[interest.Token]*Timer),
	}
}

// Set creates or replaces the expiry timer for a token.
// The timer starts immediately.
func (m *Manager) Set(token interest.Token, ttl time.Duration) error {
	if ttl < MinTTL || ttl > MaxTTL {
		return ErrInvalidTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	if existing, exists := m.timers[token]; exists {
		existing.timer.Stop()
	}

	t := &Timer{
		Token:     token,
		StartTime: time.Now(),
		TTL:       ttl,
	}
	t.timer = time.AfterFunc(ttl, func() {
		m.expire(token)
	})

	m.timers[token] = t
	return nil
}

// Cancel removes a token's timer without firing the expiry callback.
func (m *Manager) Cancel(token interest.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, exists := m.timers[token]
	if !exists {
		return ErrTimerNotFound
	}

	t.timer.Stop()
	delete(m.timers, token)
	return nil
}

// Get returns a copy of the token's timer, or nil if none is pending.
func (m *Manager) Get(token interest.Token) *Timer {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if t, exists := m.timers[token]; exists {
		return &Timer{
			Token:     t.Token,
			StartTime: t.StartTime,
			TTL:       t.TTL,
		}
	}
	return nil
}

// Count returns the number of pending timers.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.timers)
}

// OnExpiry sets the callback invoked when a timer fires.
func (m *Manager) OnExpiry(fn func(token interest.Token)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpiry = fn
}

// Close cancels all pending timers. Expiry callbacks will not fire
// afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, t := range m.timers {
		t.timer.Stop()
		delete(m.timers, token)
	}
	m.closed = true
}

func (m *Manager) expire(token interest.Token) {
	m.mu.Lock()

	if _, exists := m.timers[token]; !exists || m.closed {
		m.mu.Unlock()
		return
	}
	delete(m.timers, token)
	callback := m.onExpiry

	m.mu.Unlock()

	// Callback runs outside the lock.
	if callback != nil {
		callback(token)
	}
}

// Accuracy returns the timer accuracy for a given TTL.
// Accuracy is +/- 1% or +/- 1 second, whichever is greater.
func Accuracy(ttl time.Duration) time.Duration {
	percent := time.Duration(float64(ttl) * float64(AccuracyPercent) / 100)
	if percent > AccuracyAbsolute {
		return percent
	}
	return AccuracyAbsolute
}
