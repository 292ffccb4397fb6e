package telemetry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obdkit/obdkit-go/pkg/dtc"
	"github.com/obdkit/obdkit-go/pkg/pid"
	"github.com/obdkit/obdkit-go/pkg/transport/transporttest"
)

func newTestEngine(t *testing.T) (*Engine, *transporttest.Fake) {
	t.Helper()
	fake := transporttest.New()
	e := New(DefaultConfig(), fake, nil)
	t.Cleanup(e.Close)
	return e, fake
}

func TestConnectSuccess(t *testing.T) {
	e, fake := newTestEngine(t)

	tok := e.MakeToken()
	e.Replace(pid.NewSet(pid.IDEngineRPM), tok)

	require.NoError(t, e.Connect(context.Background()))

	assert.Equal(t, StateConnected, e.Status().State)
	assert.Equal(t, 1, fake.OpenCalls())

	subs := fake.Subscriptions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Set.Equal(pid.NewSet(pid.IDEngineRPM)))
}

func TestConnectEmptyInterestOpensNothing(t *testing.T) {
	e, fake := newTestEngine(t)

	require.NoError(t, e.Connect(context.Background()))

	assert.Equal(t, StateConnected, e.Status().State)
	assert.Empty(t, fake.Subscriptions())
}

func TestConnectFailure(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.OpenErr = errors.New("adapter unreachable")

	err := e.Connect(context.Background())
	require.Error(t, err)

	st := e.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "adapter unreachable", st.FailReason)
	assert.Empty(t, fake.Subscriptions())

	// Retry from Failed is allowed.
	fake.OpenErr = nil
	require.NoError(t, e.Connect(context.Background()))
	assert.Equal(t, StateConnected, e.Status().State)
	assert.Equal(t, 2, fake.OpenCalls())
}

// blockingTransport holds Open until released, for in-flight guards.
type blockingTransport struct {
	*transporttest.Fake
	release chan struct{}
	opened  chan struct{}
	once    sync.Once
}

func (b *blockingTransport) Open(ctx context.Context) error {
	b.once.Do(func() { close(b.opened) })
	<-b.release
	return b.Fake.Open(ctx)
}

func TestRapidDoubleConnectSingleHandshake(t *testing.T) {
	bt := &blockingTransport{
		Fake:    transporttest.New(),
		release: make(chan struct{}),
		opened:  make(chan struct{}),
	}
	e := New(DefaultConfig(), bt, nil)
	defer e.Close()

	done := make(chan error, 1)
	go func() { done <- e.Connect(context.Background()) }()
	<-bt.opened

	// Second connect while the first is still Connecting: logged no-op.
	require.NoError(t, e.Connect(context.Background()))

	close(bt.release)
	require.NoError(t, <-done)

	assert.Equal(t, 1, bt.OpenCalls(), "exactly one handshake attempt")
	assert.Equal(t, StateConnected, e.Status().State)
}

func TestConnectWhileConnectedIsNoop(t *testing.T) {
	e, fake := newTestEngine(t)

	require.NoError(t, e.Connect(context.Background()))
	require.NoError(t, e.Connect(context.Background()))

	assert.Equal(t, 1, fake.OpenCalls())
}

func TestDisconnectClearsEverything(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.ScanCodesResult = []dtc.Code{dtc.MustParse("P0301")}

	tok := e.MakeToken()
	e.Replace(pid.NewSet(pid.IDEngineRPM), tok)
	require.NoError(t, e.Connect(context.Background()))

	fake.Last().Deliver(pid.IDEngineRPM, pid.Measurement{Value: 1500, Unit: pid.UnitRPM})
	require.NotEmpty(t, e.Statistics())
	require.NotEmpty(t, e.Codes())

	e.Disconnect()

	assert.Equal(t, StateDisconnected, e.Status().State)
	assert.Empty(t, e.Statistics(), "disconnect discards accumulated statistics")
	assert.Empty(t, e.Codes())
	assert.Equal(t, 1, fake.CloseCalls())
	assert.Empty(t, fake.Active(), "no dangling subscription after disconnect")
}

func TestDisconnectFromFailed(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.OpenErr = errors.New("handshake rejected")

	_ = e.Connect(context.Background())
	require.Equal(t, StateFailed, e.Status().State)

	e.Disconnect()

	st := e.Status()
	assert.Equal(t, StateDisconnected, st.State)
	assert.Empty(t, st.FailReason)
}

func TestInterestChangeWhileConnectedRestarts(t *testing.T) {
	e, fake := newTestEngine(t)

	t1 := e.MakeToken()
	e.Replace(pid.NewSet(pid.IDEngineRPM), t1)
	require.NoError(t, e.Connect(context.Background()))

	t2 := e.MakeToken()
	e.Replace(pid.NewSet(pid.IDVehicleSpeed), t2)

	// Exactly one cancel then one open; at most one subscription alive.
	var seq []string
	for _, op := range fake.Ops() {
		if strings.HasPrefix(op, "cancel") || strings.HasPrefix(op, "subscribe") {
			seq = append(seq, strings.Fields(op)[0])
		}
	}
	assert.Equal(t, []string{"subscribe", "cancel", "subscribe"}, seq)

	active := fake.Active()
	require.Len(t, active, 1)
	assert.True(t, active[0].Set.Equal(pid.NewSet(pid.IDEngineRPM, pid.IDVehicleSpeed)))
}

func TestInterestChangeWhileDisconnectedDefersToConnect(t *testing.T) {
	e, fake := newTestEngine(t)

	tok := e.MakeToken()
	e.Replace(pid.NewSet(pid.IDCoolantTemp), tok)

	assert.Empty(t, fake.Subscriptions(), "no subscription activity while disconnected")

	require.NoError(t, e.Connect(context.Background()))

	subs := fake.Subscriptions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].Set.Equal(pid.NewSet(pid.IDCoolantTemp)))
}

func TestInterestShrinkToEmptyWhileConnected(t *testing.T) {
	e, fake := newTestEngine(t)

	tok := e.MakeToken()
	e.Replace(pid.NewSet(pid.IDEngineRPM), tok)
	require.NoError(t, e.Connect(context.Background()))

	e.Clear(tok)
	e.Sync()

	assert.Empty(t, fake.Active(), "empty interested set must leave no subscription")
	assert.Equal(t, StateConnected, e.Status().State, "nothing to monitor is not an error")
}

func TestScanOnConnect(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.ScanCodesResult = []dtc.Code{dtc.MustParse("P0301"), dtc.MustParse("U0100")}

	require.NoError(t, e.Connect(context.Background()))

	codes := e.Codes()
	require.Len(t, codes, 2)
	assert.Equal(t, "P0301", codes[0].String())
	assert.Equal(t, 1, fake.ScanCalls())
}

func TestScanDisabled(t *testing.T) {
	fake := transporttest.New()
	cfg := DefaultConfig()
	cfg.ScanOnConnect = false
	e := New(cfg, fake, nil)
	defer e.Close()

	require.NoError(t, e.Connect(context.Background()))
	assert.Zero(t, fake.ScanCalls())
}

func TestScanFailureKeepsConnection(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.ScanErr = errors.New("scan unsupported")

	require.NoError(t, e.Connect(context.Background()))

	assert.Equal(t, StateConnected, e.Status().State)
	assert.Empty(t, e.Codes())
}

func TestOnStateChange(t *testing.T) {
	e, fake := newTestEngine(t)
	fake.OpenErr = errors.New("no adapter")

	var mu sync.Mutex
	var transitions []string
	cancel := e.OnStateChange(func(old, new State, reason string) {
		mu.Lock()
		transitions = append(transitions, old.String()+">"+new.String())
		mu.Unlock()
	})
	defer cancel()

	_ = e.Connect(context.Background())
	fake.OpenErr = nil
	require.NoError(t, e.Connect(context.Background()))
	e.Disconnect()
	e.Disconnect() // no-op, must not notify

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		"DISCONNECTED>CONNECTING",
		"CONNECTING>FAILED",
		"FAILED>CONNECTING",
		"CONNECTING>CONNECTED",
		"CONNECTED>DISCONNECTED",
	}, transitions)
}

func TestEndToEndScenario(t *testing.T) {
	e, fake := newTestEngine(t)

	// Register T1 interested in {rpm}; connect; subscription opens for {rpm}.
	t1 := e.MakeToken()
	e.Replace(pid.NewSet(pid.IDEngineRPM), t1)
	require.NoError(t, e.Connect(context.Background()))

	require.Len(t, fake.Subscriptions(), 1)

	// Deliver rpm=1500 then rpm=1800.
	fake.Last().Deliver(pid.IDEngineRPM, pid.Measurement{Value: 1500, Unit: pid.UnitRPM})
	s, ok := e.ParameterStatistics(pid.IDEngineRPM)
	require.True(t, ok)
	assert.Equal(t, 1500.0, s.Latest.Value)
	assert.Equal(t, uint64(1), s.SampleCount)

	fake.Last().Deliver(pid.IDEngineRPM, pid.Measurement{Value: 1800, Unit: pid.UnitRPM})
	s, _ = e.ParameterStatistics(pid.IDEngineRPM)
	assert.Equal(t, 1800.0, s.Latest.Value)
	assert.Equal(t, 1500.0, s.Min)
	assert.Equal(t, 1800.0, s.Max)
	assert.Equal(t, uint64(2), s.SampleCount)

	// Register T2 interested in {speed}: exactly one restart.
	t2 := e.MakeToken()
	e.Replace(pid.NewSet(pid.IDVehicleSpeed), t2)

	require.Equal(t, uint64(1), e.Restarts())
	require.Len(t, fake.Subscriptions(), 2)

	// speed=60 lands; rpm stats untouched by the restart.
	fake.Last().Deliver(pid.IDVehicleSpeed, pid.Measurement{Value: 60, Unit: pid.UnitKmh})

	speed, ok := e.ParameterStatistics(pid.IDVehicleSpeed)
	require.True(t, ok)
	assert.Equal(t, 60.0, speed.Latest.Value)
	assert.Equal(t, uint64(1), speed.SampleCount)

	rpm, _ := e.ParameterStatistics(pid.IDEngineRPM)
	assert.Equal(t, uint64(2), rpm.SampleCount, "restart must not disturb accumulated stats")
}

func TestResetStats(t *testing.T) {
	e, fake := newTestEngine(t)

	tok := e.MakeToken()
	e.Replace(pid.NewSet(pid.IDEngineRPM), tok)
	require.NoError(t, e.Connect(context.Background()))

	fake.Last().Deliver(pid.IDEngineRPM, pid.Measurement{Value: 1000, Unit: pid.UnitRPM})
	fake.Last().Deliver(pid.IDEngineRPM, pid.Measurement{Value: 4000, Unit: pid.UnitRPM})

	e.ResetStats(pid.IDEngineRPM)

	s, _ := e.ParameterStatistics(pid.IDEngineRPM)
	assert.Equal(t, 4000.0, s.Latest.Value)
	assert.Equal(t, 4000.0, s.Min)
	assert.Equal(t, uint64(1), s.SampleCount)
}

func TestDisconnectDuringHandshake(t *testing.T) {
	bt := &blockingTransport{
		Fake:    transporttest.New(),
		release: make(chan struct{}),
		opened:  make(chan struct{}),
	}
	e := New(DefaultConfig(), bt, nil)
	defer e.Close()

	done := make(chan error, 1)
	go func() { done <- e.Connect(context.Background()) }()
	<-bt.opened

	e.Disconnect()
	close(bt.release)
	require.NoError(t, <-done)

	// Disconnect won the race: the attempt is abandoned, not resurrected.
	assert.Equal(t, StateDisconnected, e.Status().State)
	assert.Empty(t, bt.Active())

	// The engine remains usable.
	require.NoError(t, e.Connect(context.Background()))
	assert.Equal(t, StateConnected, e.Status().State)
}

func TestStatusSnapshotRace(t *testing.T) {
	e, _ := newTestEngine(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				_ = e.Status()
				_ = e.Statistics()
			}
		}
	}()

	for i := 0; i < 20; i++ {
		_ = e.Connect(context.Background())
		e.Disconnect()
	}
	close(stop)
	wg.Wait()

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, StateDisconnected, e.Status().State)
}

func TestReplaceForTTL(t *testing.T) {
	e, _ := newTestEngine(t)

	tok := e.MakeToken()
	if err := e.ReplaceFor(pid.NewSet(pid.IDEngineRPM), tok, 500*time.Millisecond); err == nil {
		t.Error("ReplaceFor with sub-second TTL succeeded, want error")
	}

	require.NoError(t, e.ReplaceFor(pid.NewSet(pid.IDEngineRPM), tok, time.Minute))
	expiresAt, ok := e.InterestExpiry(tok)
	require.True(t, ok)
	assert.InDelta(t, time.Until(expiresAt).Seconds(), 60, 5)
	assert.True(t, e.InterestedSet().Contains(pid.IDEngineRPM))

	// A plain Replace cancels the pending expiry.
	e.Replace(pid.NewSet(pid.IDEngineRPM, pid.IDVehicleSpeed), tok)
	if _, ok := e.InterestExpiry(tok); ok {
		t.Error("expiry survived a plain Replace")
	}

	e.Clear(tok)
	e.Sync()
	assert.Empty(t, e.InterestedSet())
}
