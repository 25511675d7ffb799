package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mantis-trade/mantis/service/retry"
)

// Conn is the process-wide database handle. It implements retry.Dialer so
// the resilient connector can cycle it after transient failures; the Store
// reads the current pool through it on every query.
type Conn struct {
	url string

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

// NewConn creates an unconnected handle for the given database URL.
// Call Connect (normally through retry.Connector) before use.
func NewConn(url string) *Conn {
	return &Conn{url: url}
}

// Connect establishes the connection pool and verifies it with a ping.
func (c *Conn) Connect(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, c.url)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping: %w", err)
	}

	c.mu.Lock()
	if c.pool != nil {
		c.pool.Close()
	}
	c.pool = pool
	c.mu.Unlock()
	return nil
}

// Close tears the pool down so the next Connect starts fresh.
func (c *Conn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	return nil
}

// Pool returns the current pool, or retry.ErrNotConnected when the handle
// has not been established yet (or is mid-reset).
func (c *Conn) Pool() (*pgxpool.Pool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.pool == nil {
		return nil, retry.ErrNotConnected
	}
	return c.pool, nil
}
