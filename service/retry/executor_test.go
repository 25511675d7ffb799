package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/mantis-trade/mantis/service/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxJitter:   time.Second,
	}
}

func newTestExecutor(connector *Connector) *Executor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewExecutor(testConfig(), connector, nil, logger)
	e.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return e
}

func TestDo_TransientThenSuccess(t *testing.T) {
	ctx := context.Background()
	e := newTestExecutor(nil)

	calls := 0
	err := e.Do(ctx, "flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("read tcp 10.0.0.1:5432: connection reset by peer")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls, "two transient failures then success should take exactly 3 invocations")
}

func TestDo_NonTransientPropagatesImmediately(t *testing.T) {
	ctx := context.Background()
	e := newTestExecutor(nil)

	businessErr := errors.New("slippage exceeds maximum")
	calls := 0
	err := e.Do(ctx, "validate", func(ctx context.Context) error {
		calls++
		return businessErr
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Same(t, businessErr, err, "non-transient error must propagate unchanged")
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	ctx := context.Background()
	e := newTestExecutor(nil)

	calls := 0
	lastErr := errors.New("dial tcp: connection refused")
	err := e.Do(ctx, "broken", func(ctx context.Context) error {
		calls++
		return lastErr
	})

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.Same(t, lastErr, err)
}

func TestDo_ResetsSharedConnectionBetweenAttempts(t *testing.T) {
	ctx := context.Background()
	dialer := &countingDialer{}
	connector := newTestConnector(dialer)
	e := newTestExecutor(connector)

	calls := 0
	err := e.Do(ctx, "flaky", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return ErrNotConnected
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, dialer.closes.get(), "transient failure should cycle the shared handle once")
	assert.Equal(t, 1, dialer.connects.get())
	assert.Equal(t, int64(0), connector.Failures(), "success resets the shared failure counter")
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	e := newTestExecutor(nil)
	e.sleep = sleepCtx // real sleep so cancellation has something to interrupt

	cancel()
	err := e.Do(ctx, "flaky", func(ctx context.Context) error {
		return io.ErrUnexpectedEOF
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestValue_ReturnsOperationResult(t *testing.T) {
	ctx := context.Background()
	e := newTestExecutor(nil)

	calls := 0
	got, err := Value(ctx, e, "quote", func(ctx context.Context) (float64, error) {
		calls++
		if calls == 1 {
			return 0, syscall.ECONNRESET
		}
		return 42.5, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42.5, got)
	assert.Equal(t, 2, calls)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"not connected sentinel", ErrNotConnected, true},
		{"wrapped not connected", fmt.Errorf("query: %w", ErrNotConnected), true},
		{"econnreset", syscall.ECONNRESET, true},
		{"econnrefused", syscall.ECONNREFUSED, true},
		{"broken pipe string", errors.New("write: broken pipe"), true},
		{"forcibly closed", errors.New("wsarecv: An existing connection was forcibly closed by the remote host"), true},
		{"rate limited", errors.New("server responded with 429 Too Many Requests"), true},
		{"validation error", errors.New("amount must be positive"), false},
		{"business rejection", errors.New("insufficient balance"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
