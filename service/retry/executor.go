package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/mantis-trade/mantis/service/config"
	"github.com/mantis-trade/mantis/service/metrics"
)

// ErrNotConnected marks operations attempted before the shared connection
// was established. It is always classified as transient.
var ErrNotConnected = errors.New("not yet connected")

// transientFragments are error-message substrings that indicate a
// connectivity failure worth retrying. RPC nodes, aggregator gateways and
// managed Postgres all surface these as plain strings, so substring
// matching is the only classification that works across all of them.
var transientFragments = []string{
	"connection reset",
	"connection refused",
	"forcibly closed",
	"broken pipe",
	"not yet connected",
	"i/o timeout",
	"no such host",
	"unexpected EOF",
	"429",
	"502",
	"503",
}

// IsTransient reports whether err is a connectivity failure that should be
// retried. Validation and business-rule errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotConnected) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := err.Error()
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Executor runs fallible operations with exponential backoff and jitter.
// Non-transient errors propagate immediately; transient errors trigger a
// forced reset of the shared connection (when one is attached) followed by
// a delayed re-attempt, up to MaxAttempts total invocations.
//
// The executor carries no overall deadline beyond its attempt cap; callers
// needing a hard deadline wrap the context themselves.
type Executor struct {
	cfg       config.RetryConfig
	connector *Connector // optional shared connection, may be nil
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// sleep is swappable so tests do not wait out real backoff delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an Executor. connector may be nil when there is no
// shared connection to reset between attempts. If metrics is nil, no
// metrics are recorded.
func NewExecutor(cfg config.RetryConfig, connector *Connector, m *metrics.Metrics, logger *slog.Logger) *Executor {
	return &Executor{
		cfg:       cfg,
		connector: connector,
		logger:    logger,
		metrics:   m,
		sleep:     sleepCtx,
	}
}

// Do runs op until it succeeds, fails non-transiently, or exhausts the
// attempt cap. The name labels logs and metrics only.
func (e *Executor) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if e.connector != nil {
				e.connector.markHealthy()
			}
			if e.metrics != nil {
				e.metrics.RecordRetryAttempt(name, "success")
			}
			if attempt > 1 {
				e.logger.InfoContext(ctx, "operation recovered after retry",
					"operation", name,
					"attempt", attempt,
				)
			}
			return nil
		}

		if !IsTransient(err) {
			if e.metrics != nil {
				e.metrics.RecordRetryAttempt(name, "permanent_error")
			}
			e.logger.DebugContext(ctx, "operation failed with non-transient error",
				"operation", name,
				"error", err,
			)
			return err
		}

		lastErr = err
		if e.metrics != nil {
			e.metrics.RecordRetryAttempt(name, "transient_error")
		}

		if attempt == e.cfg.MaxAttempts {
			break
		}

		// Transient failure usually means the shared handle is wedged;
		// cycle it before the next attempt.
		if e.connector != nil {
			if rerr := e.connector.Reset(ctx); rerr != nil {
				e.logger.WarnContext(ctx, "shared connection reset failed",
					"operation", name,
					"error", rerr,
				)
			}
		}

		delay := e.backoff(attempt)
		e.logger.WarnContext(ctx, "transient failure, backing off",
			"operation", name,
			"attempt", attempt,
			"max_attempts", e.cfg.MaxAttempts,
			"backoff", delay,
			"error", err,
		)
		if serr := e.sleep(ctx, delay); serr != nil {
			return serr
		}
	}

	if e.metrics != nil {
		e.metrics.RecordRetryExhausted(name)
	}
	e.logger.ErrorContext(ctx, "operation failed after exhausting retries",
		"operation", name,
		"attempts", e.cfg.MaxAttempts,
		"error", lastErr,
	)
	return lastErr
}

// backoff returns BaseDelay doubled per prior attempt plus uniform jitter.
func (e *Executor) backoff(attempt int) time.Duration {
	delay := e.cfg.BaseDelay << uint(attempt-1)
	if e.cfg.MaxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(e.cfg.MaxJitter)))
	}
	return delay
}

// Value runs op through the executor and returns its result. This is the
// typed counterpart of Executor.Do for request/response calls.
func Value[T any](ctx context.Context, e *Executor, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, name, func(ctx context.Context) error {
		var opErr error
		out, opErr = op(ctx)
		return opErr
	})
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
