package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querygate/internal/core"
)

func TestCatalogCreate(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.registry.Create("backend", core.KindSQLite, newBackendDB(t))
	require.NoError(t, err)

	q, err := env.catalog.Create(c.ID, "user-by-id", "SELECT * FROM users WHERE id = :id", false, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, q.Params, "parameter set is derived from the text")

	got, err := env.catalog.Get(q.ID)
	require.NoError(t, err)
	assert.Equal(t, q.SQLText, got.SQLText)
	assert.Equal(t, []string{"id"}, got.Params)
}

func TestCatalogCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.registry.Create("backend", core.KindSQLite, newBackendDB(t))
	require.NoError(t, err)

	_, err = env.catalog.Create(c.ID, "x", "   ", false, "")
	assert.True(t, core.IsKind(err, core.KindValidation), "empty sql_text")

	_, err = env.catalog.Create(c.ID, "", "SELECT 1", false, "")
	assert.True(t, core.IsKind(err, core.KindValidation), "empty name")

	_, err = env.catalog.Create("missing-connector", "x", "SELECT 1", false, "")
	assert.True(t, core.IsKind(err, core.KindValidation), "dangling connector reference")

	_, err = env.catalog.Create(c.ID, "x", "SELECT 1", true, "")
	assert.True(t, core.IsKind(err, core.KindValidation), "is_proc on a plain select")
}

func TestCatalogUpdateRescansParams(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.registry.Create("backend", core.KindSQLite, newBackendDB(t))
	require.NoError(t, err)
	q, err := env.catalog.Create(c.ID, "u", "SELECT * FROM users WHERE id = :id", false, "")
	require.NoError(t, err)

	newSQL := "SELECT * FROM users WHERE name = :name AND active = :active"
	updated, err := env.catalog.Update(q.ID, nil, nil, &newSQL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "active"}, updated.Params)
}

func TestPreviewDefaultsAndCaps(t *testing.T) {
	env := newTestEnv(t)
	dsn := newBackendDB(t)
	c, err := env.registry.Create("backend", core.KindSQLite, dsn)
	require.NoError(t, err)

	// seed well past the default preview window
	seedManyUsers(t, dsn, 50)

	requestID, res, err := env.catalog.Preview(context.Background(), c.ID,
		"SELECT id FROM users ORDER BY id", nil, 0, false)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 10, "max_rows defaults to 10")
	assert.True(t, res.More)

	entry, err := env.logs.Get(requestID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusOK, entry.Status)
	assert.Empty(t, entry.MappingID, "previews log with no mapping id")
	assert.Equal(t, 10, entry.RowCount)
}

func TestPreviewExplicitMaxRows(t *testing.T) {
	env := newTestEnv(t)
	dsn := newBackendDB(t)
	c, err := env.registry.Create("backend", core.KindSQLite, dsn)
	require.NoError(t, err)
	seedManyUsers(t, dsn, 30)

	_, res, err := env.catalog.Preview(context.Background(), c.ID,
		"SELECT id FROM users", nil, 20, false)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 20)
}

func TestPreviewErrorIsLogged(t *testing.T) {
	env := newTestEnv(t)
	c, err := env.registry.Create("backend", core.KindSQLite, newBackendDB(t))
	require.NoError(t, err)

	requestID, _, err := env.catalog.Preview(context.Background(), c.ID,
		"SELECT * FROM no_such_table", nil, 0, false)
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindExecution))

	entry, logErr := env.logs.Get(requestID)
	require.NoError(t, logErr)
	assert.Equal(t, core.StatusError, entry.Status)
	assert.NotEmpty(t, entry.Error)
}

func seedManyUsers(t *testing.T, dsn string, n int) {
	t.Helper()
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db.Close()
	for i := 0; i < n; i++ {
		_, err = db.Exec(`INSERT INTO users (name) VALUES (?)`, fmt.Sprintf("user%03d", i))
		require.NoError(t, err)
	}
}
