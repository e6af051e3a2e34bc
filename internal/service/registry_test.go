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

func TestValidateDSN(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		dsn     string
		wantErr bool
	}{
		{"sqlite path", core.KindSQLite, "/var/lib/app.db", false},
		{"sqlite memory", core.KindSQLite, ":memory:", false},
		{"empty dsn", core.KindSQLite, "   ", true},
		{"mysql valid", core.KindMySQL, "user:pass@tcp(localhost:3306)/shop", false},
		{"mysql garbage", core.KindMySQL, "not a dsn", true},
		{"postgres url", core.KindPostgres, "postgres://u:p@localhost:5432/db?sslmode=disable", false},
		{"postgres keyvalue", core.KindPostgres, "host=localhost user=u dbname=db", false},
		{"postgres garbage", core.KindPostgres, "just-words", true},
		{"mssql url", core.KindMSSQL, "sqlserver://sa:pw@localhost:1433?database=master", false},
		{"mssql keyvalue", core.KindMSSQL, "server=localhost;user id=sa", false},
		{"odbc descriptor", core.KindCustom, "DSN=warehouse;UID=svc", false},
		{"odbc garbage", core.KindCustom, "warehouse", true},
		{"unknown kind", "oracle", "anything=x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDSN(tt.kind, tt.dsn)
			if tt.wantErr {
				assert.True(t, core.IsKind(err, core.KindValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistryCreateEncryptsDSN(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.registry.Create("sales", core.KindSQLite, "/tmp/sales.db")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.NotEqual(t, "/tmp/sales.db", c.DSNEnc, "DSN is stored encrypted")

	kind, dsn, err := env.registry.Credentials(c.ID)
	require.NoError(t, err)
	assert.Equal(t, core.KindSQLite, kind)
	assert.Equal(t, "/tmp/sales.db", dsn)
}

func TestRegistryDuplicateName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.Create("sales", core.KindSQLite, "/tmp/a.db")
	require.NoError(t, err)
	_, err = env.registry.Create("sales", core.KindSQLite, "/tmp/b.db")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConflict))
}

func TestRegistryRenameToExistingName(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registry.Create("alpha", core.KindSQLite, "/tmp/a.db")
	require.NoError(t, err)
	b, err := env.registry.Create("beta", core.KindSQLite, "/tmp/b.db")
	require.NoError(t, err)

	name := "alpha"
	_, err = env.registry.Update(b.ID, &name, nil, nil)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindConflict))
}

func TestRegistryUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)

	c, err := env.registry.Create("sales", core.KindSQLite, "/tmp/a.db")
	require.NoError(t, err)

	newDSN := "/tmp/b.db"
	updated, err := env.registry.Update(c.ID, nil, nil, &newDSN)
	require.NoError(t, err)
	_, dsn, err := env.registry.Credentials(updated.ID)
	require.NoError(t, err)
	assert.Equal(t, newDSN, dsn)

	require.NoError(t, env.registry.Delete(c.ID))
	_, err = env.registry.Get(c.ID)
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestRegistryGetMissing(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.registry.Get("nope")
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestConnectivityTestSuccess(t *testing.T) {
	env := newTestEnv(t)
	dsn := newBackendDB(t)

	c, err := env.registry.Create("backend", core.KindSQLite, dsn)
	require.NoError(t, err)

	res, err := env.registry.Test(context.Background(), c.ID)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Empty(t, res.Error)
}

func TestConnectivityTestUnreachable(t *testing.T) {
	env := newTestEnv(t)

	// a path whose parent directory does not exist cannot be opened
	dsn := filepath.Join(t.TempDir(), "no", "such", "dir", "x.db")
	c, err := env.registry.Create("broken", core.KindSQLite, dsn)
	require.NoError(t, err)

	start := time.Now()
	res, err := env.registry.Test(context.Background(), c.ID)
	require.NoError(t, err, "an unreachable backend is a structured result, not an error")
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)
	assert.Less(t, time.Since(start), 10*time.Second)
}
