// Package metrics exposes Prometheus metrics for a telemetry engine.
//
// The Collector translates engine snapshots into gauges and counters; the
// Server serves them over HTTP for scraping. Both are optional: an engine
// runs fine without either.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/obdkit/obdkit-go/pkg/telemetry"
)

var (
	obdInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "obdkit_info",
			Help: "Information about the session (value always 1)",
		},
		[]string{"session", "adapter"},
	)

	obdConnectionState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "obdkit_connection_state",
			Help: "Connection lifecycle state (1 for the current state, 0 otherwise)",
		},
		[]string{"state"},
	)

	obdConnectAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "obdkit_connect_attempts_total",
			Help: "Total connection attempts",
		},
	)

	obdConnectFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "obdkit_connect_failures_total",
			Help: "Total failed connection attempts",
		},
	)

	obdSamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "obdkit_samples_total",
			Help: "Total parameter samples accepted into statistics",
		},
	)

	obdStreamRestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "obdkit_stream_restarts_total",
			Help: "Total subscription restarts caused by interest changes",
		},
	)

	obdInterestedParameters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obdkit_interested_parameters",
			Help: "Size of the aggregated interested parameter set",
		},
	)

	obdInterestTokens = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obdkit_interest_tokens",
			Help: "Number of consumer tokens holding a non-empty interest set",
		},
	)

	obdTroubleCodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "obdkit_trouble_codes",
			Help: "Trouble codes reported by the last scan",
		},
	)
)

// allStates is iterated so every state series exists from the start.
var allStates = []telemetry.State{
	telemetry.StateDisconnected,
	telemetry.StateConnecting,
	telemetry.StateConnected,
	telemetry.StateFailed,
}

// Collector manages Prometheus metrics for one engine.
type Collector struct {
	engine *telemetry.Engine

	mu           sync.Mutex
	prevSamples  uint64
	prevRestarts uint64

	cancelState func()
}

// NewCollector creates a collector registered on the default registry and
// hooks it to the engine's state observer. Call Close to detach.
func NewCollector(engine *telemetry.Engine, adapter string) *Collector {
	return NewCollectorWithRegistry(engine, adapter, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(engine *telemetry.Engine, adapter string, registry prometheus.Registerer) *Collector {
	registry.MustRegister(
		obdInfo,
		obdConnectionState,
		obdConnectAttemptsTotal,
		obdConnectFailuresTotal,
		obdSamplesTotal,
		obdStreamRestartsTotal,
		obdInterestedParameters,
		obdInterestTokens,
		obdTroubleCodes,
	)

	c := &Collector{engine: engine}

	obdInfo.WithLabelValues(engine.SessionID(), adapter).Set(1)
	c.setState(engine.Status().State)

	c.cancelState = engine.OnStateChange(func(old, new telemetry.State, reason string) {
		c.setState(new)
		if new == telemetry.StateConnecting {
			obdConnectAttemptsTotal.Inc()
		}
		if new == telemetry.StateFailed {
			obdConnectFailuresTotal.Inc()
		}
	})

	return c
}

// Update refreshes the snapshot-derived metrics from the engine.
// Call it periodically, or via Run.
func (c *Collector) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()

	samples := c.engine.TotalSamples()
	if samples > c.prevSamples {
		obdSamplesTotal.Add(float64(samples - c.prevSamples))
	}
	c.prevSamples = samples

	restarts := c.engine.Restarts()
	if restarts > c.prevRestarts {
		obdStreamRestartsTotal.Add(float64(restarts - c.prevRestarts))
	}
	c.prevRestarts = restarts

	obdInterestedParameters.Set(float64(len(c.engine.InterestedSet())))
	obdInterestTokens.Set(float64(c.engine.TokenCount()))
	obdTroubleCodes.Set(float64(len(c.engine.Codes())))
}

// Run updates the collector on the given interval until the context is
// cancelled.
func (c *Collector) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Update()
		case <-ctx.Done():
			return
		}
	}
}

// Close detaches the collector from the engine.
func (c *Collector) Close() {
	if c.cancelState != nil {
		c.cancelState()
		c.cancelState = nil
	}
}

func (c *Collector) setState(s telemetry.State) {
	for _, state := range allStates {
		v := 0.0
		if state == s {
			v = 1.0
		}
		obdConnectionState.WithLabelValues(state.String()).Set(v)
	}
}
