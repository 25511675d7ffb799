package signals

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/mantis-trade/mantis/service/config"
	"github.com/mantis-trade/mantis/service/events"
	"github.com/mantis-trade/mantis/service/metrics"
)

// Manager maintains one connection per configured source, normalizes
// everything into a single deduplicated Signal stream, and falls back to
// a synthetic generator when no source connects within the grace window.
// Sources run independently; one source failing never blocks another.
type Manager struct {
	cfg       config.SignalsConfig
	dialer    Dialer
	publisher events.Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	out     chan Signal
	tradeCh chan<- TradeIntent

	mu         sync.Mutex
	states     map[Source]ConnectionState
	latest     map[string]Signal
	fallbackOn bool
	stopped    bool

	fallbackTimer *time.Timer
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewManager creates a signal stream manager. publisher may be nil to
// skip event publication; metrics may be nil.
func NewManager(cfg config.SignalsConfig, dialer Dialer, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:       cfg,
		dialer:    dialer,
		publisher: publisher,
		logger:    logger,
		metrics:   m,
		out:       make(chan Signal, 256),
		states:    make(map[Source]ConnectionState),
		latest:    make(map[string]Signal),
	}
}

// AttachTradeRequests sets the outbound trade-intent channel. Must be
// called before Start. Intents are sent best effort and dropped when the
// receiver is saturated.
func (m *Manager) AttachTradeRequests(ch chan<- TradeIntent) {
	m.tradeCh = ch
}

// Signals returns the merged stream. The channel is closed by Stop.
func (m *Manager) Signals() <-chan Signal {
	return m.out
}

// Start connects every configured source and arms the fallback timer.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	// Arm the timer before any source goroutine runs so a fast connect
	// can cancel it without racing the assignment.
	m.fallbackTimer = time.AfterFunc(m.cfg.FallbackAfter, func() {
		m.maybeStartFallback(ctx)
	})

	specs := m.sourceSpecs()
	for _, spec := range specs {
		m.setState(spec.name, StateDisconnected)
		m.wg.Add(1)
		go func(spec sourceSpec) {
			defer m.wg.Done()
			m.runSource(ctx, spec)
		}(spec)
	}

	m.logger.InfoContext(ctx, "signal stream manager started",
		"sources", len(specs),
		"fallback_after", m.cfg.FallbackAfter,
	)
}

// Stop tears down every source connection, the fallback generator, and
// closes the merged stream.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	if m.fallbackTimer != nil {
		m.fallbackTimer.Stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	close(m.out)
}

// States returns a snapshot of each source's connection state.
func (m *Manager) States() map[Source]ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Source]ConnectionState, len(m.states))
	for k, v := range m.states {
		out[k] = v
	}
	return out
}

// Recent returns up to limit deduplicated signals, newest first.
func (m *Manager) Recent(limit int) []Signal {
	m.mu.Lock()
	out := make([]Signal, 0, len(m.latest))
	for _, sig := range m.latest {
		out = append(out, sig)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RequestTrade pushes an intent toward the execution layer. The send is
// non-blocking; when no receiver is attached or it is saturated the
// intent is silently dropped rather than queued.
func (m *Manager) RequestTrade(intent TradeIntent) {
	if m.tradeCh == nil {
		return
	}
	select {
	case m.tradeCh <- intent:
	default:
	}
}

func (m *Manager) sourceSpecs() []sourceSpec {
	var specs []sourceSpec
	if m.cfg.PumpFunWSURL != "" {
		sub, _ := json.Marshal(map[string]string{"method": "subscribeNewToken"})
		specs = append(specs, sourceSpec{
			name:      SourcePumpFun,
			url:       m.cfg.PumpFunWSURL,
			subscribe: sub,
			normalize: normalizePumpFun,
		})
	}
	if m.cfg.DexScreenerWSURL != "" {
		specs = append(specs, sourceSpec{
			name:      SourceDexScreener,
			url:       m.cfg.DexScreenerWSURL,
			normalize: normalizeDexScreener,
		})
	}
	if m.cfg.WhaleWatchWSURL != "" {
		specs = append(specs, sourceSpec{
			name:      SourceWhaleWatch,
			url:       m.cfg.WhaleWatchWSURL,
			normalize: normalizeWhaleWatch,
		})
	}
	return specs
}

// runSource owns one source's connect/read/reconnect lifecycle. The
// attempt counter resets whenever a connection is established, so the
// reconnect cap applies per disconnected stretch.
func (m *Manager) runSource(ctx context.Context, spec sourceSpec) {
	attempt := 0
	for ctx.Err() == nil {
		m.setState(spec.name, StateConnecting)
		conn, err := m.dialer.Dial(ctx, spec.url)
		if err != nil {
			m.setState(spec.name, StateDisconnected)
			attempt++
			if attempt > m.cfg.MaxReconnects {
				m.logger.WarnContext(ctx, "source exhausted reconnect attempts, staying down",
					"source", spec.name,
					"attempts", attempt-1,
				)
				return
			}
			if m.metrics != nil {
				m.metrics.RecordSourceReconnect(string(spec.name))
			}
			delay := m.cfg.ReconnectBase * time.Duration(attempt)
			m.logger.InfoContext(ctx, "source connect failed, scheduling reconnect",
				"source", spec.name,
				"attempt", attempt,
				"delay", delay,
				"error", err,
			)
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		m.setState(spec.name, StateConnected)
		m.cancelFallbackTimer()
		attempt = 0
		m.logger.InfoContext(ctx, "source connected", "source", spec.name)

		if spec.subscribe != nil {
			if err := conn.WriteMessage(spec.subscribe); err != nil {
				m.logger.WarnContext(ctx, "source subscription failed",
					"source", spec.name,
					"error", err,
				)
				conn.Close()
				m.setState(spec.name, StateDisconnected)
				continue
			}
		}

		m.readLoop(ctx, spec, conn)
		conn.Close()
		m.setState(spec.name, StateDisconnected)
	}
}

// readLoop consumes messages until the connection drops or ctx ends.
// Malformed payloads are logged and dropped; they never end the
// connection.
func (m *Manager) readLoop(ctx context.Context, spec sourceSpec, conn MessageConn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.logger.InfoContext(ctx, "source connection dropped",
					"source", spec.name,
					"error", err,
				)
			}
			return
		}

		sig, err := spec.normalize(payload)
		if err != nil {
			m.logger.WarnContext(ctx, "dropping malformed payload",
				"source", spec.name,
				"error", err,
			)
			if m.metrics != nil {
				m.metrics.RecordSignalDropped(string(spec.name), "malformed")
			}
			continue
		}
		m.deliver(ctx, *sig)
	}
}

// deliver merges one signal into the stream. Deduplication is by ID
// with last-write-wins by newest timestamp; the outbound send is
// non-blocking so a slow consumer sheds load instead of stalling a
// source.
func (m *Manager) deliver(ctx context.Context, sig Signal) {
	m.mu.Lock()
	if existing, ok := m.latest[sig.ID]; ok && existing.Timestamp.After(sig.Timestamp) {
		m.mu.Unlock()
		return
	}
	m.latest[sig.ID] = sig
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSignalReceived(string(sig.Source))
	}

	if m.publisher != nil {
		if err := m.publisher.PublishSignal(ctx, signalEvent(sig)); err != nil {
			m.logger.WarnContext(ctx, "failed to publish signal event",
				"signal_id", sig.ID,
				"error", err,
			)
		}
	}

	select {
	case m.out <- sig:
	default:
		if m.metrics != nil {
			m.metrics.RecordSignalDropped(string(sig.Source), "backpressure")
		}
	}
}

func (m *Manager) setState(source Source, state ConnectionState) {
	m.mu.Lock()
	m.states[source] = state
	m.mu.Unlock()
}

func (m *Manager) cancelFallbackTimer() {
	if m.fallbackTimer != nil {
		m.fallbackTimer.Stop()
	}
}

// maybeStartFallback runs once when the grace window elapses. It starts
// exactly one generator, and only if no source ever reached Connected.
func (m *Manager) maybeStartFallback(ctx context.Context) {
	m.mu.Lock()
	if m.stopped || m.fallbackOn {
		m.mu.Unlock()
		return
	}
	for _, state := range m.states {
		if state == StateConnected {
			m.mu.Unlock()
			return
		}
	}
	m.fallbackOn = true
	m.states[SourceSynthetic] = StateFallbackActive
	// Register the generator before releasing the lock so Stop, which
	// sets stopped under the same lock, either turns this call away at
	// the top or waits for the generator it let through.
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.WarnContext(ctx, "no source connected within grace window, starting synthetic generator",
		"grace", m.cfg.FallbackAfter,
	)
	if m.metrics != nil {
		m.metrics.RecordFallbackActivation()
	}

	go func() {
		defer m.wg.Done()
		m.runGenerator(ctx)
	}()
}

// FallbackActive reports whether the synthetic generator is running.
func (m *Manager) FallbackActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fallbackOn
}

func signalEvent(sig Signal) *events.SignalEvent {
	ev := &events.SignalEvent{
		Type:       events.TypeSignal,
		ID:         sig.ID,
		Symbol:     sig.Symbol,
		Address:    sig.Address,
		Action:     string(sig.Action),
		Confidence: sig.Confidence,
		Price:      sig.Price,
		Volume24h:  sig.Volume24h,
		Source:     string(sig.Source),
		Timestamp:  sig.Timestamp,
	}
	if sig.Risk != nil {
		ev.MarketCap = sig.Risk.MarketCap
		ev.LiquidityUSD = sig.Risk.LiquidityUSD
		ev.PriceChange24h = sig.Risk.PriceChange24h
		ev.RugRisk = sig.Risk.RugRisk
		ev.DevWalletPct = sig.Risk.DevWalletPct
	}
	return ev
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
