package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querygate/internal/core"
)

func TestPoolAcquireAndReuse(t *testing.T) {
	pools := NewPoolManager(PoolConfig{MaxOpen: 2, MaxIdle: 1, ConnMaxLifetime: time.Minute, AcquireTimeout: time.Second})
	defer pools.Close()
	dsn := newBackendDB(t)

	conn, err := pools.Acquire(context.Background(), core.KindSQLite, "c1", dsn)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	conn, err = pools.Acquire(context.Background(), core.KindSQLite, "c1", dsn)
	require.NoError(t, err)
	conn.Close()
}

func TestPoolExhaustionIsRetryableConnectionError(t *testing.T) {
	pools := NewPoolManager(PoolConfig{MaxOpen: 1, MaxIdle: 1, ConnMaxLifetime: time.Minute, AcquireTimeout: 100 * time.Millisecond})
	defer pools.Close()
	dsn := newBackendDB(t)

	held, err := pools.Acquire(context.Background(), core.KindSQLite, "c1", dsn)
	require.NoError(t, err)
	defer held.Close()

	start := time.Now()
	_, err = pools.Acquire(context.Background(), core.KindSQLite, "c1", dsn)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConnection))
	assert.Contains(t, err.Error(), "retry")
	assert.Less(t, time.Since(start), 5*time.Second, "exhaustion surfaces after the acquire timeout, not never")
}

func TestPoolFingerprintInvalidation(t *testing.T) {
	pools := NewPoolManager(PoolConfig{MaxOpen: 2, MaxIdle: 1, ConnMaxLifetime: time.Minute, AcquireTimeout: time.Second})
	defer pools.Close()

	dsnA := newBackendDB(t)
	dsnB := filepath.Join(t.TempDir(), "other.db")

	conn, err := pools.Acquire(context.Background(), core.KindSQLite, "c1", dsnA)
	require.NoError(t, err)
	conn.Close()

	// same connector id with a changed descriptor gets a fresh pool
	conn, err = pools.Acquire(context.Background(), core.KindSQLite, "c1", dsnB)
	require.NoError(t, err)
	conn.Close()
}

func TestPoolUnknownKind(t *testing.T) {
	pools := NewPoolManager(PoolConfig{MaxOpen: 1, MaxIdle: 1, ConnMaxLifetime: time.Minute, AcquireTimeout: time.Second})
	defer pools.Close()

	_, err := pools.Acquire(context.Background(), "oracle", "c1", "x")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConnection))
}

func TestPoolInvalidate(t *testing.T) {
	pools := NewPoolManager(PoolConfig{MaxOpen: 1, MaxIdle: 1, ConnMaxLifetime: time.Minute, AcquireTimeout: time.Second})
	defer pools.Close()
	dsn := newBackendDB(t)

	conn, err := pools.Acquire(context.Background(), core.KindSQLite, "c1", dsn)
	require.NoError(t, err)
	conn.Close()

	pools.Invalidate("c1")

	conn, err = pools.Acquire(context.Background(), core.KindSQLite, "c1", dsn)
	require.NoError(t, err, "invalidated pool rebuilds lazily")
	conn.Close()
}
