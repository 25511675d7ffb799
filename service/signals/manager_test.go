package signals

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mantis-trade/mantis/service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		msgs:   make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case msg := <-c.msgs:
		return msg, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// scriptDialer fails a configured number of dials per URL, then hands
// out fake connections.
type scriptDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	conns    []*fakeConn
}

func (d *scriptDialer) Dial(ctx context.Context, url string) (MessageConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("dial tcp: connection refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *scriptDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *scriptDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func testSignalsConfig() config.SignalsConfig {
	return config.SignalsConfig{
		PumpFunWSURL:     "wss://example.test/pumpfun",
		ReconnectBase:    time.Millisecond,
		MaxReconnects:    5,
		FallbackAfter:    30 * time.Millisecond,
		FallbackInterval: 5 * time.Millisecond,
	}
}

func newTestManager(cfg config.SignalsConfig, dialer Dialer) *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(cfg, dialer, nil, nil, logger)
}

func waitForState(t *testing.T, m *Manager, source Source, want ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.States()[source] == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("source %s never reached state %s (last: %s)", source, want, m.States()[source])
}

func TestManager_StopDuringFallbackActivation(t *testing.T) {
	// Stop racing the grace timer must never strand a generator past
	// wg.Wait, where its first emit would hit the closed stream.
	cfg := config.SignalsConfig{
		FallbackAfter:    time.Nanosecond,
		FallbackInterval: time.Hour,
	}
	for i := 0; i < 2000; i++ {
		m := newTestManager(cfg, &scriptDialer{})
		m.Start(context.Background())
		m.Stop()
		for range m.Signals() {
		}
	}
}

func TestManager_FallbackWhenNoSourceConnects(t *testing.T) {
	dialer := &scriptDialer{failures: 1 << 20} // never connects
	m := newTestManager(testSignalsConfig(), dialer)
	m.Start(context.Background())
	defer m.Stop()

	select {
	case sig := <-m.Signals():
		assert.Equal(t, SourceSynthetic, sig.Source)
		assert.NotEmpty(t, sig.ID)
		assert.True(t, validAddress(sig.Address))
	case <-time.After(2 * time.Second):
		t.Fatal("no synthetic signal within deadline")
	}
	assert.True(t, m.FallbackActive())
	assert.Equal(t, StateFallbackActive, m.States()[SourceSynthetic])
}

func TestManager_NoFallbackWhenSourceConnected(t *testing.T) {
	dialer := &scriptDialer{}
	m := newTestManager(testSignalsConfig(), dialer)
	m.Start(context.Background())
	defer m.Stop()

	waitForState(t, m, SourcePumpFun, StateConnected)

	// Well past the grace window; the generator must not have started.
	time.Sleep(100 * time.Millisecond)
	assert.False(t, m.FallbackActive())

	select {
	case sig := <-m.Signals():
		t.Fatalf("unexpected signal %q from source %s", sig.ID, sig.Source)
	default:
	}
}

func TestManager_ExactlyOneGeneratorUnderRepeatedActivation(t *testing.T) {
	cfg := testSignalsConfig()
	cfg.PumpFunWSURL = "" // no sources at all
	cfg.FallbackInterval = time.Hour

	m := newTestManager(cfg, &scriptDialer{})
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.maybeStartFallback(ctx)
	m.maybeStartFallback(ctx)
	m.maybeStartFallback(ctx)

	// Each generator emits one signal immediately; a duplicate generator
	// would produce a second one.
	select {
	case <-m.out:
	case <-time.After(2 * time.Second):
		t.Fatal("generator emitted nothing")
	}

	select {
	case sig := <-m.out:
		t.Fatalf("second generator detected, got extra signal %q", sig.ID)
	case <-time.After(50 * time.Millisecond):
	}

	m.Stop()
}

func TestManager_ReconnectsAfterDialFailures(t *testing.T) {
	dialer := &scriptDialer{failures: 2}
	m := newTestManager(testSignalsConfig(), dialer)
	m.Start(context.Background())
	defer m.Stop()

	waitForState(t, m, SourcePumpFun, StateConnected)
	assert.Equal(t, 3, dialer.dialCount())
}

func TestManager_StaysDownAfterExhaustingReconnects(t *testing.T) {
	cfg := testSignalsConfig()
	cfg.MaxReconnects = 2
	cfg.FallbackAfter = time.Hour // keep the generator out of this test

	dialer := &scriptDialer{failures: 1 << 20}
	m := newTestManager(cfg, dialer)
	m.Start(context.Background())
	defer m.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if dialer.dialCount() >= 3 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	// Initial attempt plus MaxReconnects retries, then the source gives up.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, dialer.dialCount())
	assert.Equal(t, StateDisconnected, m.States()[SourcePumpFun])
}

func TestManager_NormalizesStreamedPayloads(t *testing.T) {
	dialer := &scriptDialer{}
	m := newTestManager(testSignalsConfig(), dialer)
	m.Start(context.Background())
	defer m.Stop()

	waitForState(t, m, SourcePumpFun, StateConnected)
	conn := dialer.lastConn()
	require.NotNil(t, conn)

	// A malformed frame must be dropped without ending the connection.
	conn.msgs <- []byte(`{garbage`)
	conn.msgs <- []byte(`{"mint": "` + bonkMint + `", "symbol": "BONK", "volumeUsd": 12000}`)

	select {
	case sig := <-m.Signals():
		assert.Equal(t, SourcePumpFun, sig.Source)
		assert.Equal(t, "BONK", sig.Symbol)
		assert.Equal(t, ActionBuy, sig.Action)
	case <-time.After(2 * time.Second):
		t.Fatal("no signal from streamed payload")
	}
	assert.Equal(t, StateConnected, m.States()[SourcePumpFun])
}

func TestManager_DedupeKeepsNewestTimestamp(t *testing.T) {
	m := newTestManager(testSignalsConfig(), &scriptDialer{})
	ctx := context.Background()

	t0 := time.Now().UTC()
	m.deliver(ctx, Signal{ID: "sig-1", Price: 1.0, Timestamp: t0})
	m.deliver(ctx, Signal{ID: "sig-1", Price: 2.0, Timestamp: t0.Add(time.Second)})
	m.deliver(ctx, Signal{ID: "sig-1", Price: 3.0, Timestamp: t0.Add(-time.Second)}) // stale, dropped

	recent := m.Recent(0)
	require.Len(t, recent, 1)
	assert.Equal(t, 2.0, recent[0].Price)
}

func TestManager_RecentSortsNewestFirst(t *testing.T) {
	m := newTestManager(testSignalsConfig(), &scriptDialer{})
	ctx := context.Background()

	t0 := time.Now().UTC()
	m.deliver(ctx, Signal{ID: "a", Timestamp: t0})
	m.deliver(ctx, Signal{ID: "b", Timestamp: t0.Add(2 * time.Second)})
	m.deliver(ctx, Signal{ID: "c", Timestamp: t0.Add(time.Second)})

	recent := m.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)
	assert.Equal(t, "c", recent[1].ID)
}

func TestManager_RequestTradeIsFireAndForget(t *testing.T) {
	m := newTestManager(testSignalsConfig(), &scriptDialer{})

	// No receiver attached: a no-op, not a panic or a block.
	m.RequestTrade(TradeIntent{Token: bonkMint, Side: ActionBuy, Amount: 0.1})

	ch := make(chan TradeIntent, 1)
	m.AttachTradeRequests(ch)
	m.RequestTrade(TradeIntent{Token: bonkMint, Side: ActionBuy, Amount: 0.1})
	m.RequestTrade(TradeIntent{Token: wifMint, Side: ActionSell, Amount: 0.2}) // receiver full, dropped

	require.Len(t, ch, 1)
	got := <-ch
	assert.Equal(t, bonkMint, got.Token)
}
