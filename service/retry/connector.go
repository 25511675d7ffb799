package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/mantis-trade/mantis/service/config"
	"github.com/mantis-trade/mantis/service/metrics"
	"golang.org/x/sync/singleflight"
)

// Dialer is the process-wide handle the Connector manages. Implementations
// wrap whatever shared client the service depends on (a pgx pool, an RPC
// client) behind connect/close semantics.
type Dialer interface {
	// Connect establishes the underlying connection.
	Connect(ctx context.Context) error
	// Close tears the connection down so the next Connect starts fresh.
	Close(ctx context.Context) error
}

// Connector owns the single shared connection handle and serializes
// (re)connect attempts. Concurrent callers of Connect are coalesced into
// one in-flight attempt; everyone gets that attempt's result. This is
// what prevents a reconnect storm when many operations hit the same
// transient failure at once.
type Connector struct {
	dialer  Dialer
	cfg     config.RetryConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	group    singleflight.Group
	failures atomic.Int64 // consecutive transient failures since last success

	sleep func(ctx context.Context, d time.Duration) error
}

// NewConnector creates a Connector around the given dialer.
func NewConnector(dialer Dialer, cfg config.RetryConfig, m *metrics.Metrics, logger *slog.Logger) *Connector {
	return &Connector{
		dialer:  dialer,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		sleep:   sleepCtx,
	}
}

// Connect establishes the shared connection with exponential backoff and
// jitter, up to the configured attempt cap. If an attempt is already in
// flight, the caller awaits its result instead of dialing again.
//
// Note: the coalesced attempt runs under the context of the caller that
// started it; later joiners inherit that attempt's outcome.
func (c *Connector) Connect(ctx context.Context) error {
	_, err, shared := c.group.Do("connect", func() (any, error) {
		return nil, c.connectWithRetry(ctx)
	})
	if shared {
		c.logger.DebugContext(ctx, "joined in-flight connect attempt")
	}
	return err
}

// Reset closes the current connection and re-establishes it. Used by the
// executor after a transient failure.
func (c *Connector) Reset(ctx context.Context) error {
	if err := c.dialer.Close(ctx); err != nil {
		c.logger.DebugContext(ctx, "close before reconnect failed", "error", err)
	}
	return c.Connect(ctx)
}

// Failures returns the consecutive transient failure count since the last
// successful operation.
func (c *Connector) Failures() int64 {
	return c.failures.Load()
}

func (c *Connector) markHealthy() {
	c.failures.Store(0)
}

func (c *Connector) connectWithRetry(ctx context.Context) error {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		err := c.dialer.Connect(ctx)
		if err == nil {
			if c.metrics != nil {
				c.metrics.RecordConnectAttempt("success")
			}
			c.failures.Store(0)
			if attempt > 1 {
				c.logger.InfoContext(ctx, "shared connection established after retry", "attempt", attempt)
			}
			return nil
		}

		lastErr = err
		c.failures.Add(1)
		if c.metrics != nil {
			c.metrics.RecordConnectAttempt("error")
		}

		if attempt == c.cfg.MaxAttempts {
			break
		}

		// Backoff doubles per attempt: 2s, 4s, 8s... plus jitter.
		delay := 2 * c.cfg.BaseDelay << uint(attempt-1)
		if c.cfg.MaxJitter > 0 {
			delay += time.Duration(rand.Int63n(int64(c.cfg.MaxJitter)))
		}
		c.logger.WarnContext(ctx, "connect failed, backing off",
			"attempt", attempt,
			"max_attempts", c.cfg.MaxAttempts,
			"backoff", delay,
			"error", err,
		)
		if serr := c.sleep(ctx, delay); serr != nil {
			return serr
		}
	}

	c.logger.ErrorContext(ctx, "connect failed after exhausting attempts",
		"attempts", c.cfg.MaxAttempts,
		"error", lastErr,
	)
	return lastErr
}
