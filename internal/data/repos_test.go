package data

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querygate/internal/core"
)

func openTestDB(t *testing.T) *testRepos {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &testRepos{
		connectors: NewConnectorRepo(db),
		queries:    NewQueryRepo(db),
		mappings:   NewMappingRepo(db),
		logs:       NewLogRepo(db),
		keys:       NewApiKeyRepo(db),
	}
}

type testRepos struct {
	connectors *ConnectorRepo
	queries    *QueryRepo
	mappings   *MappingRepo
	logs       *LogRepo
	keys       *ApiKeyRepo
}

func TestConnectorRepoCRUD(t *testing.T) {
	r := openTestDB(t)

	c := &core.Connector{ID: "c1", Name: "sales", Kind: core.KindSQLite, DSNEnc: "enc", CreatedAt: time.Now().UTC()}
	require.NoError(t, r.connectors.Create(c))

	got, err := r.connectors.GetByID("c1")
	require.NoError(t, err)
	assert.Equal(t, "sales", got.Name)

	byName, err := r.connectors.GetByName("sales")
	require.NoError(t, err)
	assert.Equal(t, "c1", byName.ID)

	got.Name = "sales-eu"
	require.NoError(t, r.connectors.Update(got))
	got, err = r.connectors.GetByID("c1")
	require.NoError(t, err)
	assert.Equal(t, "sales-eu", got.Name)

	require.NoError(t, r.connectors.Delete("c1"))
	_, err = r.connectors.GetByID("c1")
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestConnectorRepoUniqueName(t *testing.T) {
	r := openTestDB(t)

	require.NoError(t, r.connectors.Create(&core.Connector{ID: "c1", Name: "dup", Kind: core.KindSQLite, DSNEnc: "x", CreatedAt: time.Now().UTC()}))
	err := r.connectors.Create(&core.Connector{ID: "c2", Name: "dup", Kind: core.KindSQLite, DSNEnc: "y", CreatedAt: time.Now().UTC()})
	assert.True(t, core.IsKind(err, core.KindConflict))
}

func TestQueryRepoDerivesParams(t *testing.T) {
	r := openTestDB(t)

	q := &core.Query{ID: "q1", ConnectorID: "c1", Name: "find", SQLText: "SELECT * FROM t WHERE a = :a AND b = :b", CreatedAt: time.Now().UTC()}
	require.NoError(t, r.queries.Create(q))

	got, err := r.queries.GetByID("q1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Params, "params are derived from sql_text on read, never stored")
}

func TestMappingRepoDeployFlag(t *testing.T) {
	r := openTestDB(t)

	m := &core.Mapping{
		ID: "m1", QueryID: "q1", ConnectorID: "c1",
		Path: "/users/{id}", Method: "GET",
		Params:    []core.ParamSpec{{Name: "id", In: core.InPath, Type: core.TypeInteger, Required: true}},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, r.mappings.Create(m))

	deployed, err := r.mappings.GetDeployed()
	require.NoError(t, err)
	assert.Empty(t, deployed)

	require.NoError(t, r.mappings.SetDeployed("m1", true))
	deployed, err = r.mappings.GetDeployed()
	require.NoError(t, err)
	require.Len(t, deployed, 1)
	assert.Equal(t, "m1", deployed[0].ID)
	require.Len(t, deployed[0].Params, 1)
	assert.Equal(t, "id", deployed[0].Params[0].Name, "parameter schema survives the round trip")

	require.NoError(t, r.mappings.SetDeployed("m1", false))
	deployed, err = r.mappings.GetDeployed()
	require.NoError(t, err)
	assert.Empty(t, deployed)
}

func TestLogRepoAppendAndGet(t *testing.T) {
	r := openTestDB(t)

	e := &core.LogEntry{
		RequestID:  "req-1",
		MappingID:  "m1",
		Timestamp:  time.Now().UTC(),
		DurationMs: 12,
		Status:     core.StatusOK,
		Params:     map[string]any{"id": float64(7)},
		RowCount:   3,
	}
	require.NoError(t, r.logs.Append(e))

	got, err := r.logs.Get("req-1")
	require.NoError(t, err)
	assert.Equal(t, "m1", got.MappingID)
	assert.Equal(t, core.StatusOK, got.Status)
	assert.Equal(t, 3, got.RowCount)
	assert.Equal(t, float64(7), got.Params["id"])
	assert.Empty(t, got.Error)

	_, err = r.logs.Get("missing")
	assert.True(t, core.IsKind(err, core.KindNotFound))
}

func TestLogRepoErrorEntry(t *testing.T) {
	r := openTestDB(t)

	e := &core.LogEntry{
		RequestID: "req-err",
		Timestamp: time.Now().UTC(),
		Status:    core.StatusError,
		Error:     "query failed: no such table",
		Stack:     "goroutine 1 [running]:",
	}
	require.NoError(t, r.logs.Append(e))

	got, err := r.logs.Get("req-err")
	require.NoError(t, err)
	assert.Empty(t, got.MappingID, "preview entries have no mapping id")
	assert.Contains(t, got.Error, "no such table")
	assert.NotEmpty(t, got.Stack)
}

func TestLogRepoRecentOrderAndLimit(t *testing.T) {
	r := openTestDB(t)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		require.NoError(t, r.logs.Append(&core.LogEntry{
			RequestID: string(rune('a' + i)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Status:    core.StatusOK,
		}))
	}

	recent, err := r.logs.Recent(3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "e", recent[0].RequestID, "newest first")
}

func TestApiKeyRepoPrefixLookup(t *testing.T) {
	r := openTestDB(t)

	require.NoError(t, r.keys.Create(&core.ApiKey{ID: "k1", KeyPrefix: "aaaa1111", KeyHash: "h1", Role: core.RoleAdmin, CreatedAt: time.Now().UTC()}))
	require.NoError(t, r.keys.Create(&core.ApiKey{ID: "k2", KeyPrefix: "bbbb2222", KeyHash: "h2", Role: core.RoleConsumer, CreatedAt: time.Now().UTC()}))

	keys, err := r.keys.GetByPrefix("aaaa1111")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "k1", keys[0].ID)

	keys, err = r.keys.GetByPrefix("nope0000")
	require.NoError(t, err)
	assert.Empty(t, keys)

	all, err := r.keys.GetAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
