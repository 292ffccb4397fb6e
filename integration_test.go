package obdkit_test

import (
	"context"
	"testing"
	"time"

	"github.com/obdkit/obdkit-go/internal/sim"
	"github.com/obdkit/obdkit-go/pkg/dtc"
	"github.com/obdkit/obdkit-go/pkg/log"
	"github.com/obdkit/obdkit-go/pkg/pid"
	"github.com/obdkit/obdkit-go/pkg/telemetry"
)

// TestE2E_SimulatedSession drives a full session against the simulated
// adapter: register interest, connect, accumulate statistics, widen the
// interest from a second consumer, and disconnect.
func TestE2E_SimulatedSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	adapter := sim.New(sim.Config{
		Interval: 2 * time.Millisecond,
		Codes:    []dtc.Code{dtc.MustParse("P0301")},
		Seed:     42,
	})

	engine := telemetry.New(telemetry.DefaultConfig(), adapter, nil)
	defer engine.Close()

	dash := engine.MakeToken()
	engine.Replace(pid.NewSet(pid.IDEngineRPM), dash)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := engine.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if got := engine.Status().State; got != telemetry.StateConnected {
		t.Fatalf("state = %v, want CONNECTED", got)
	}

	codes := engine.Codes()
	if len(codes) != 1 || codes[0].String() != "P0301" {
		t.Errorf("Codes() = %v, want [P0301]", codes)
	}

	waitForSamples(t, engine, pid.IDEngineRPM, 3)

	rpm, ok := engine.ParameterStatistics(pid.IDEngineRPM)
	if !ok {
		t.Fatal("no rpm statistics after streaming")
	}
	if rpm.Min > rpm.Latest.Value || rpm.Max < rpm.Latest.Value {
		t.Errorf("latest %v outside [min %v, max %v]", rpm.Latest.Value, rpm.Min, rpm.Max)
	}

	// A second consumer widens the interest; the stream restarts and the
	// accumulated rpm statistics survive.
	logger := engine.MakeToken()
	engine.Replace(pid.NewSet(pid.IDVehicleSpeed, pid.IDCoolantTemp), logger)

	if got := engine.Restarts(); got != 1 {
		t.Errorf("Restarts() = %d, want 1", got)
	}
	after, _ := engine.ParameterStatistics(pid.IDEngineRPM)
	if after.SampleCount < rpm.SampleCount {
		t.Errorf("rpm samples dropped across restart: %d -> %d", rpm.SampleCount, after.SampleCount)
	}

	waitForSamples(t, engine, pid.IDVehicleSpeed, 1)
	waitForSamples(t, engine, pid.IDCoolantTemp, 1)

	engine.Disconnect()
	if len(engine.Statistics()) != 0 {
		t.Error("statistics survived disconnect")
	}
	if len(engine.Codes()) != 0 {
		t.Error("codes survived disconnect")
	}
}

// TestE2E_EventLog verifies the session can be replayed from the CBOR
// event log.
func TestE2E_EventLog(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	path := t.TempDir() + "/session.cbor"
	fl, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	adapter := sim.New(sim.Config{Interval: 2 * time.Millisecond, Seed: 7})
	engine := telemetry.New(telemetry.DefaultConfig(), adapter, fl)

	tok := engine.MakeToken()
	engine.Replace(pid.NewSet(pid.IDEngineRPM), tok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := engine.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	engine.Disconnect()
	sessionID := engine.SessionID()
	engine.Close()
	if err := fl.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reader, err := log.NewFilteredReader(path, log.Filter{SessionID: sessionID})
	if err != nil {
		t.Fatalf("NewFilteredReader() error = %v", err)
	}
	defer reader.Close()

	events, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(events) == 0 {
		t.Fatal("event log is empty")
	}

	var sawInterest, sawConnected, sawSubscription bool
	for _, ev := range events {
		switch ev.Category {
		case log.CategoryInterest:
			sawInterest = true
		case log.CategoryState:
			if ev.StateChange != nil && ev.StateChange.To == "CONNECTED" {
				sawConnected = true
			}
		case log.CategorySubscription:
			sawSubscription = true
		}
	}
	if !sawInterest || !sawConnected || !sawSubscription {
		t.Errorf("log missing categories: interest=%v connected=%v subscription=%v",
			sawInterest, sawConnected, sawSubscription)
	}
}

func waitForSamples(t *testing.T, engine *telemetry.Engine, id pid.ID, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s, ok := engine.ParameterStatistics(id); ok && s.SampleCount >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d samples of %s", n, id.Hex())
}
