package data

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens the catalog database at path and runs migrations. The catalog
// holds connectors, queries, mappings, api keys and the request log.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// The catalog is small and serialized writes are fine; a single
	// connection avoids SQLITE_BUSY under concurrent dispatch logging.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS connectors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		kind TEXT NOT NULL,
		dsn_enc TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS queries (
		id TEXT PRIMARY KEY,
		connector_id TEXT NOT NULL,
		name TEXT NOT NULL,
		sql_text TEXT NOT NULL,
		is_proc INTEGER NOT NULL DEFAULT 0,
		description TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mappings (
		id TEXT PRIMARY KEY,
		query_id TEXT NOT NULL,
		connector_id TEXT NOT NULL,
		path TEXT NOT NULL,
		method TEXT NOT NULL,
		params_json TEXT NOT NULL DEFAULT '[]',
		auth_required INTEGER NOT NULL DEFAULT 1,
		deployed INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS request_logs (
		request_id TEXT PRIMARY KEY,
		mapping_id TEXT,
		timestamp DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		status TEXT NOT NULL,
		params_json TEXT,
		row_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		stack TEXT
	);

	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_prefix TEXT NOT NULL,
		key_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_api_keys_prefix ON api_keys(key_prefix);
	`
	_, err := db.Exec(schema)
	return err
}
