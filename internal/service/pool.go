package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"querygate/internal/core"
	"querygate/internal/metrics"
)

// PoolConfig bounds every per-connector pool.
type PoolConfig struct {
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	AcquireTimeout  time.Duration
}

type pool struct {
	db *sql.DB
	// fingerprint of kind+dsn; a descriptor change invalidates the pool
	fingerprint string
}

// PoolManager holds one lazily created, bounded *sql.DB per connector id.
// Handles never cross request boundaries: callers acquire a single
// connection, use it, and release it.
type PoolManager struct {
	mu    sync.Mutex
	pools map[string]*pool
	cfg   PoolConfig
}

func NewPoolManager(cfg PoolConfig) *PoolManager {
	return &PoolManager{pools: make(map[string]*pool), cfg: cfg}
}

func fingerprint(kind, dsn string) string {
	sum := sha256.Sum256([]byte(kind + "\x00" + dsn))
	return hex.EncodeToString(sum[:])
}

func (p *PoolManager) get(kind, connectorID, dsn string) (*sql.DB, error) {
	driver := core.DriverName(kind)
	if driver == "" {
		return nil, core.ConnectionError(nil, "unsupported connector kind %q", kind)
	}

	fp := fingerprint(kind, dsn)

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.pools[connectorID]; ok {
		if existing.fingerprint == fp {
			return existing.db, nil
		}
		existing.db.Close()
		delete(p.pools, connectorID)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, core.ConnectionError(err, "open %s connector", kind)
	}
	db.SetMaxOpenConns(p.cfg.MaxOpen)
	db.SetMaxIdleConns(p.cfg.MaxIdle)
	db.SetConnMaxLifetime(p.cfg.ConnMaxLifetime)

	p.pools[connectorID] = &pool{db: db, fingerprint: fp}
	return db, nil
}

// Acquire pulls one connection from the connector's pool, waiting at most
// the configured acquire timeout for a free slot. Exhaustion surfaces as a
// retryable connection error instead of blocking indefinitely.
func (p *PoolManager) Acquire(ctx context.Context, kind, connectorID, dsn string) (*sql.Conn, error) {
	db, err := p.get(kind, connectorID, dsn)
	if err != nil {
		return nil, err
	}

	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	conn, err := db.Conn(acquireCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			metrics.PoolAcquireTimeouts.Inc()
			return nil, core.ConnectionError(err, "connection pool exhausted or connector unreachable, retry later")
		}
		return nil, core.ConnectionError(err, "connect to %s backend", kind)
	}
	return conn, nil
}

// Invalidate closes and drops the pool for a connector. Called on connector
// update and delete; the next use rebuilds the pool lazily.
func (p *PoolManager) Invalidate(connectorID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.pools[connectorID]; ok {
		existing.db.Close()
		delete(p.pools, connectorID)
	}
}

// Close shuts every pool down.
func (p *PoolManager) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, pl := range p.pools {
		pl.db.Close()
		delete(p.pools, id)
	}
}
