package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp keeps .env and querygate.yaml side effects out of the package dir.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("QUERYGATE_KEY", "0123456789abcdef0123456789abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "querygate.db", cfg.CatalogPath)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 100, cfg.MaxSampleRows)
	assert.Equal(t, 1000, cfg.MaxPreviewRows)
	assert.Equal(t, 100, cfg.DefaultRows)
	assert.False(t, cfg.DevMode)
}

func TestLoadYAMLThenEnvWins(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "querygate.yaml"), []byte(
		"port: 9090\ncatalog_path: /data/cat.db\nquery_timeout: 10s\n"), 0o644))

	t.Setenv("QUERYGATE_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port, "environment overrides yaml")
	assert.Equal(t, "/data/cat.db", cfg.CatalogPath, "yaml overrides defaults")
	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
}

func TestLoadGeneratesAndPersistsKey(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("QUERYGATE_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(cfg.EncryptionKey), 32)

	b, err := os.ReadFile(filepath.Join(dir, ".env"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "QUERYGATE_KEY=")
}

func TestLoadDevMode(t *testing.T) {
	chdirTemp(t)
	t.Setenv("QUERYGATE_KEY", "0123456789abcdef0123456789abcdef")
	t.Setenv("DEV_MODE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.DevMode)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "querygate.yaml"), []byte("port: [not an int"), 0o644))
	t.Setenv("QUERYGATE_KEY", "0123456789abcdef0123456789abcdef")

	_, err := Load()
	assert.Error(t, err)
}
