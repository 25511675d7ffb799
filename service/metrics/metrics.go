package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics. Components
// treat a nil *Metrics as "metrics disabled".
type Metrics struct {
	// Resilient call executor
	retryAttemptsTotal  *prometheus.CounterVec
	retryExhaustedTotal *prometheus.CounterVec
	connectAttempts     *prometheus.CounterVec

	// Solana RPC
	rpcCallsTotal   *prometheus.CounterVec
	rpcCallDuration *prometheus.HistogramVec

	// Signal stream manager
	signalsReceivedTotal     *prometheus.CounterVec
	signalsDroppedTotal      *prometheus.CounterVec
	sourceReconnectsTotal    *prometheus.CounterVec
	fallbackActivationsTotal prometheus.Counter

	// Trade execution engine
	tradesTotal   *prometheus.CounterVec
	tradeDuration *prometheus.HistogramVec

	// Transaction protection router
	protectionDecisionsTotal *prometheus.CounterVec
	protectionCostSOL        *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		retryAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retry_attempts_total",
				Help: "Total retry attempts by operation name and outcome",
			},
			[]string{"operation", "outcome"},
		),
		retryExhaustedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retry_exhausted_total",
				Help: "Operations that failed after exhausting all retry attempts",
			},
			[]string{"operation"},
		),
		connectAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shared_connect_attempts_total",
				Help: "Shared connection establishment attempts by outcome",
			},
			[]string{"outcome"},
		),

		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),

		signalsReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signals_received_total",
				Help: "Signals received per source (including the synthetic generator)",
			},
			[]string{"source"},
		),
		signalsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signals_dropped_total",
				Help: "Malformed or unroutable signal payloads dropped, by source and reason",
			},
			[]string{"source", "reason"},
		),
		sourceReconnectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signal_source_reconnects_total",
				Help: "Reconnect attempts per signal source",
			},
			[]string{"source"},
		),
		fallbackActivationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "signal_fallback_activations_total",
				Help: "Times the synthetic signal generator was activated",
			},
		),

		tradesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trades_total",
				Help: "Trade executions by side and status",
			},
			[]string{"side", "status"},
		),
		tradeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trade_duration_seconds",
				Help:    "Wall-clock trade processing time in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"side"},
		),

		protectionDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protection_decisions_total",
				Help: "Protection strategy selections by method and whether protection applied",
			},
			[]string{"method", "applied"},
		),
		protectionCostSOL: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protection_cost_sol_total",
				Help: "Cumulative estimated protection cost in SOL by method",
			},
			[]string{"method"},
		),
	}
}

// RecordRetryAttempt records a single attempt of a retried operation.
func (m *Metrics) RecordRetryAttempt(operation, outcome string) {
	m.retryAttemptsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordRetryExhausted records an operation that ran out of attempts.
func (m *Metrics) RecordRetryExhausted(operation string) {
	m.retryExhaustedTotal.WithLabelValues(operation).Inc()
}

// RecordConnectAttempt records a shared-connection attempt.
func (m *Metrics) RecordConnectAttempt(outcome string) {
	m.connectAttempts.WithLabelValues(outcome).Inc()
}

// RecordRPCCall records a Solana RPC call with its duration in seconds.
func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.rpcCallsTotal.WithLabelValues(method, status).Inc()
	m.rpcCallDuration.WithLabelValues(method).Observe(duration)
}

// RecordSignalReceived records a normalized signal from a source.
func (m *Metrics) RecordSignalReceived(source string) {
	m.signalsReceivedTotal.WithLabelValues(source).Inc()
}

// RecordSignalDropped records a payload dropped during normalization.
func (m *Metrics) RecordSignalDropped(source, reason string) {
	m.signalsDroppedTotal.WithLabelValues(source, reason).Inc()
}

// RecordSourceReconnect records a reconnect attempt for a signal source.
func (m *Metrics) RecordSourceReconnect(source string) {
	m.sourceReconnectsTotal.WithLabelValues(source).Inc()
}

// RecordFallbackActivation records activation of the synthetic generator.
func (m *Metrics) RecordFallbackActivation() {
	m.fallbackActivationsTotal.Inc()
}

// RecordTrade records a completed or failed trade with its duration in seconds.
func (m *Metrics) RecordTrade(side, status string, duration float64) {
	m.tradesTotal.WithLabelValues(side, status).Inc()
	m.tradeDuration.WithLabelValues(side).Observe(duration)
}

// RecordProtectionDecision records a protection routing decision.
func (m *Metrics) RecordProtectionDecision(method string, applied bool, costSOL float64) {
	appliedLabel := "false"
	if applied {
		appliedLabel = "true"
	}
	m.protectionDecisionsTotal.WithLabelValues(method, appliedLabel).Inc()
	m.protectionCostSOL.WithLabelValues(method).Add(costSOL)
}
