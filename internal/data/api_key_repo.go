package data

import (
	"database/sql"

	"querygate/internal/core"
)

type ApiKeyRepo struct {
	db *sql.DB
}

func NewApiKeyRepo(db *sql.DB) *ApiKeyRepo {
	return &ApiKeyRepo{db: db}
}

func (r *ApiKeyRepo) Create(k *core.ApiKey) error {
	_, err := r.db.Exec(`INSERT INTO api_keys (id, key_prefix, key_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		k.ID, k.KeyPrefix, k.KeyHash, k.Role, k.CreatedAt)
	return err
}

// GetByPrefix returns the keys sharing a plaintext prefix. The prefix only
// narrows the candidate set; the caller still verifies the full hash.
func (r *ApiKeyRepo) GetByPrefix(prefix string) ([]core.ApiKey, error) {
	return r.list(`SELECT id, key_prefix, key_hash, role, created_at FROM api_keys WHERE key_prefix = ?`, prefix)
}

func (r *ApiKeyRepo) GetAll() ([]core.ApiKey, error) {
	return r.list(`SELECT id, key_prefix, key_hash, role, created_at FROM api_keys ORDER BY created_at, id`)
}

func (r *ApiKeyRepo) list(query string, args ...any) ([]core.ApiKey, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.ApiKey
	for rows.Next() {
		var k core.ApiKey
		if err := rows.Scan(&k.ID, &k.KeyPrefix, &k.KeyHash, &k.Role, &k.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
