package protect

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mantis-trade/mantis/service/config"
	"github.com/mantis-trade/mantis/service/db"
	"github.com/mantis-trade/mantis/service/metrics"
	"github.com/mantis-trade/mantis/service/retry"
)

// Method identifies a protection strategy.
type Method string

const (
	MethodBundle       Method = "bundle"
	MethodPrivateRelay Method = "private_relay"
	MethodDelayed      Method = "delayed"
	MethodStealth      Method = "stealth"
)

// Protection describes the strategy chosen for one submission attempt.
type Protection struct {
	Method   Method
	Applied  bool
	CostSOL  float64
	BundleID string // set only for bundled submissions
}

// ProtectedTransaction wraps a transaction with its protection record.
// One is created per submission attempt; it always carries a method, even
// when protection failed to apply.
type ProtectedTransaction struct {
	Tx         *solana.Transaction
	RiskScore  float64
	Protection Protection
}

// BundleSender submits a transaction through a bundling relay and returns
// the relay's bundle identifier.
type BundleSender interface {
	SendBundle(ctx context.Context, tx *solana.Transaction) (string, error)
}

// UsageRecorder persists protection routing decisions.
type UsageRecorder interface {
	RecordProtectionUsage(ctx context.Context, params db.RecordProtectionUsageParams) error
}

// Router selects and applies one anti-front-running strategy per
// transaction based on its MEV risk score. It never fails the caller's
// submission: any strategy that cannot apply degrades to stealth with
// applied=false, and the underlying transaction remains the caller's to
// submit.
type Router struct {
	cfg     config.ProtectionConfig
	bundles BundleSender
	store   UsageRecorder
	exec    *retry.Executor
	logger  *slog.Logger
	metrics *metrics.Metrics

	// sleep and randFloat are swappable so tests don't wait out delays.
	sleep     func(ctx context.Context, d time.Duration)
	randFloat func() float64
}

// NewRouter creates a protection router. bundles may be nil when no
// bundling relay is configured; store may be nil to skip usage persistence.
func NewRouter(cfg config.ProtectionConfig, bundles BundleSender, store UsageRecorder, exec *retry.Executor, m *metrics.Metrics, logger *slog.Logger) *Router {
	return &Router{
		cfg:     cfg,
		bundles: bundles,
		store:   store,
		exec:    exec,
		logger:  logger,
		metrics: m,
		sleep: func(ctx context.Context, d time.Duration) {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		},
		randFloat: rand.Float64,
	}
}

// AssessRisk scores a transaction with the router's configured weights.
func (r *Router) AssessRisk(tx *solana.Transaction, valueUSD, congestion float64) float64 {
	return ScoreRisk(r.cfg, AssessTransaction(tx, valueUSD, congestion))
}

// Protect applies exactly one strategy to tx and returns the protection
// record. Strategies are evaluated in descending risk order; the first
// whose threshold and preconditions hold wins.
func (r *Router) Protect(ctx context.Context, tx *solana.Transaction, riskScore float64) *ProtectedTransaction {
	protected := &ProtectedTransaction{
		Tx:        tx,
		RiskScore: riskScore,
	}

	switch {
	case riskScore > r.cfg.BundleThreshold && r.bundleConfigured():
		bundleID, err := r.bundles.SendBundle(ctx, tx)
		if err != nil {
			// Degrade rather than failing the caller's transaction.
			r.logger.WarnContext(ctx, "bundle submission failed, degrading to stealth",
				"risk_score", riskScore,
				"error", err,
			)
			protected.Protection = r.stealth(ctx, false)
			break
		}
		protected.Protection = Protection{
			Method:   MethodBundle,
			Applied:  true,
			CostSOL:  r.cfg.BundleCostEstimate,
			BundleID: bundleID,
		}

	case riskScore > r.cfg.RelayThreshold && r.cfg.PrivateRelayEnabled:
		protected.Protection = Protection{
			Method:  MethodPrivateRelay,
			Applied: true,
			CostSOL: r.cfg.RelayCostEstimate,
		}

	case riskScore > r.cfg.DelayedThreshold:
		delay := time.Duration(r.randFloat() * float64(r.cfg.MaxDelay))
		r.sleep(ctx, delay)
		protected.Protection = Protection{
			Method:  MethodDelayed,
			Applied: true,
		}

	default:
		protected.Protection = r.stealth(ctx, true)
	}

	r.logger.InfoContext(ctx, "protection strategy selected",
		"method", protected.Protection.Method,
		"applied", protected.Protection.Applied,
		"risk_score", riskScore,
		"cost_sol", protected.Protection.CostSOL,
	)
	if r.metrics != nil {
		r.metrics.RecordProtectionDecision(string(protected.Protection.Method), protected.Protection.Applied, protected.Protection.CostSOL)
	}

	r.recordUsage(ctx, tx, protected)
	return protected
}

// stealth is the weakest strategy and the degradation target: a small
// random sub-100ms delay to decorrelate submission timing.
func (r *Router) stealth(ctx context.Context, applied bool) Protection {
	r.sleep(ctx, time.Duration(r.randFloat()*float64(100*time.Millisecond)))
	return Protection{
		Method:  MethodStealth,
		Applied: applied,
	}
}

func (r *Router) bundleConfigured() bool {
	return r.cfg.BundlingEnabled && r.cfg.BundleAuthKey != "" && r.bundles != nil
}

// recordUsage persists the decision through the resilient executor.
// Persistence failure is logged, never surfaced: statistics are best
// effort, the trade is not.
func (r *Router) recordUsage(ctx context.Context, tx *solana.Transaction, protected *ProtectedTransaction) {
	if r.store == nil {
		return
	}

	params := db.RecordProtectionUsageParams{
		Method:     string(protected.Protection.Method),
		CostSOL:    protected.Protection.CostSOL,
		RiskScore:  protected.RiskScore,
		Complexity: classifyComplexity(tx),
		Applied:    protected.Protection.Applied,
	}

	err := r.exec.Do(ctx, "record_protection_usage", func(ctx context.Context) error {
		return r.store.RecordProtectionUsage(ctx, params)
	})
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to persist protection usage",
			"method", params.Method,
			"error", err,
		)
	}
}
