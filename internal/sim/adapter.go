// Package sim provides a simulated OBD adapter for demos and manual
// testing. It implements transport.Transport without any vehicle: each
// subscription is fed by a ticker producing plausible drifting values for
// the subscribed parameters.
package sim

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/obdkit/obdkit-go/pkg/dtc"
	"github.com/obdkit/obdkit-go/pkg/pid"
	"github.com/obdkit/obdkit-go/pkg/transport"
)

// DefaultInterval is the sample period when Config.Interval is zero.
const DefaultInterval = 200 * time.Millisecond

// Config controls the simulated adapter.
type Config struct {
	// Interval between samples per subscription tick.
	Interval time.Duration

	// Codes are reported by ScanCodes.
	Codes []dtc.Code

	// OpenDelay simulates handshake latency.
	OpenDelay time.Duration

	// OpenErr, if set, makes Open fail.
	OpenErr error

	// Seed makes value generation reproducible. Zero seeds from the clock.
	Seed int64
}

// Adapter is a simulated transport.
type Adapter struct {
	cfg Config

	mu        sync.Mutex
	connected bool
	rng       *rand.Rand
	phase     float64
}

// New creates a simulated adapter.
func New(cfg Config) *Adapter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Adapter{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Open simulates the handshake.
func (a *Adapter) Open(ctx context.Context) error {
	if a.cfg.OpenDelay > 0 {
		select {
		case <-time.After(a.cfg.OpenDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if a.cfg.OpenErr != nil {
		return a.cfg.OpenErr
	}

	a.mu.Lock()
	a.connected = true
	a.mu.Unlock()
	return nil
}

// Close drops the simulated connection.
func (a *Adapter) Close() {
	a.mu.Lock()
	a.connected = false
	a.mu.Unlock()
}

// Subscribe starts a ticker goroutine generating values for every
// parameter in the set, round-robin one parameter per tick.
func (a *Adapter) Subscribe(set pid.Set, deliver transport.DeliverFunc, fail transport.FailFunc) (transport.Subscription, error) {
	a.mu.Lock()
	connected := a.connected
	a.mu.Unlock()

	if !connected {
		return nil, transport.ErrNotConnected
	}
	if len(set) == 0 {
		return nil, transport.ErrEmptySet
	}

	stop := make(chan struct{})
	sub := &subscription{stop: stop}

	go a.generate(set.Sorted(), deliver, stop)

	return sub, nil
}

// ScanCodes returns the configured trouble codes.
func (a *Adapter) ScanCodes(ctx context.Context) ([]dtc.Code, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.connected {
		return nil, transport.ErrNotConnected
	}
	out := make([]dtc.Code, len(a.cfg.Codes))
	copy(out, a.cfg.Codes)
	return out, nil
}

func (a *Adapter) generate(ids []pid.ID, deliver transport.DeliverFunc, stop <-chan struct{}) {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	i := 0
	for {
		select {
		case <-ticker.C:
			id := ids[i%len(ids)]
			i++
			deliver(id, a.sample(id))
		case <-stop:
			return
		}
	}
}

// sample produces a plausible value for the parameter: a slow sine drift
// around a per-parameter baseline plus a little noise.
func (a *Adapter) sample(id pid.ID) pid.Measurement {
	a.mu.Lock()
	a.phase += 0.05
	drift := math.Sin(a.phase)
	noise := a.rng.Float64()*2 - 1
	a.mu.Unlock()

	info, ok := pid.Lookup(id)
	unit := pid.UnitNone
	if ok {
		unit = info.Unit
	}

	var base, swing float64
	switch id {
	case pid.IDEngineRPM:
		base, swing = 1800, 900
	case pid.IDVehicleSpeed:
		base, swing = 55, 25
	case pid.IDCoolantTemp:
		base, swing = 88, 4
	case pid.IDEngineLoad, pid.IDThrottlePosition:
		base, swing = 35, 20
	case pid.IDFuelLevel:
		base, swing = 60, 2
	case pid.IDIntakeAirTemp:
		base, swing = 30, 5
	default:
		base, swing = 50, 10
	}

	value := base + drift*swing + noise*swing*0.05
	if value < 0 {
		value = 0
	}
	return pid.Measurement{Value: math.Round(value*100) / 100, Unit: unit}
}

type subscription struct {
	once sync.Once
	stop chan struct{}
}

func (s *subscription) Cancel() {
	s.once.Do(func() { close(s.stop) })
}
