package db

import (
	"context"
	"testing"

	"github.com/mantis-trade/mantis/service/retry"
	"github.com/stretchr/testify/assert"
)

func TestPool_BeforeConnect(t *testing.T) {
	conn := NewConn("postgres://localhost/mantis")

	pool, err := conn.Pool()
	assert.Nil(t, pool)
	assert.ErrorIs(t, err, retry.ErrNotConnected)
}

func TestClose_IsIdempotent(t *testing.T) {
	conn := NewConn("postgres://localhost/mantis")

	assert.NoError(t, conn.Close(context.Background()))
	assert.NoError(t, conn.Close(context.Background()))

	_, err := conn.Pool()
	assert.ErrorIs(t, err, retry.ErrNotConnected)
}
