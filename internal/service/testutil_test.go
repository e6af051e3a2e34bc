package service

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"querygate/internal/data"
)

const testKey = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	registry   *Registry
	catalog    *Catalog
	dispatcher *Dispatcher
	auth       *AuthService
	exec       *Executor
	pools      *PoolManager
	logs       *data.LogRepo
}

// newTestEnv wires the full service stack over a throwaway catalog.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := data.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cipher, err := NewCipher(testKey)
	require.NoError(t, err)

	pools := NewPoolManager(PoolConfig{
		MaxOpen:         5,
		MaxIdle:         2,
		ConnMaxLifetime: time.Minute,
		AcquireTimeout:  2 * time.Second,
	})
	t.Cleanup(pools.Close)

	logs := data.NewLogRepo(db)
	registry := NewRegistry(data.NewConnectorRepo(db), cipher, pools, 2*time.Second)
	exec := NewExecutor(pools, 5*time.Second)
	catalog := NewCatalog(data.NewQueryRepo(db), registry, exec, logs, 1000)
	auth := NewAuthService(data.NewApiKeyRepo(db))
	dispatcher := NewDispatcher(data.NewMappingRepo(db), data.NewQueryRepo(db), registry, auth, exec, logs, 100)

	return &testEnv{
		registry:   registry,
		catalog:    catalog,
		dispatcher: dispatcher,
		auth:       auth,
		exec:       exec,
		pools:      pools,
		logs:       logs,
	}
}

// newBackendDB creates a sqlite backend with a small users table and returns
// its path for use as a connector DSN.
func newBackendDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "backend.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, active INTEGER NOT NULL DEFAULT 1)`)
	require.NoError(t, err)
	for i, name := range []string{"ada", "brin", "cody", "dana", "eiko"} {
		_, err = db.Exec(`INSERT INTO users (id, name, active) VALUES (?, ?, ?)`, i+1, name, i%2)
		require.NoError(t, err)
	}
	return path
}
