package service

import (
	"context"
	"database/sql"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"querygate/internal/core"
)

// Registry owns connection descriptors and their pools. Creation never
// connects eagerly; pools come to life on first use.
type Registry struct {
	repo        core.ConnectorRepository
	cipher      *Cipher
	pools       *PoolManager
	testTimeout time.Duration
}

func NewRegistry(repo core.ConnectorRepository, cipher *Cipher, pools *PoolManager, testTimeout time.Duration) *Registry {
	return &Registry{repo: repo, cipher: cipher, pools: pools, testTimeout: testTimeout}
}

// ValidateDSN performs a syntactic check of a connection descriptor for the
// given kind, without touching the network.
func ValidateDSN(kind, dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		return core.ValidationError("connection string is required")
	}
	switch kind {
	case core.KindSQLite:
		// any non-empty path, including :memory:
		return nil
	case core.KindMySQL:
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return core.ValidationError("invalid mysql DSN: %v", err)
		}
	case core.KindPostgres:
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if _, err := url.Parse(dsn); err != nil {
				return core.ValidationError("invalid postgres URL: %v", err)
			}
			return nil
		}
		if !strings.Contains(dsn, "=") {
			return core.ValidationError("postgres DSN must be a URL or key=value pairs")
		}
	case core.KindMSSQL:
		if strings.HasPrefix(dsn, "sqlserver://") {
			if _, err := url.Parse(dsn); err != nil {
				return core.ValidationError("invalid sqlserver URL: %v", err)
			}
			return nil
		}
		if !strings.Contains(dsn, "=") {
			return core.ValidationError("sqlserver DSN must be a URL or key=value pairs")
		}
	case core.KindCustom:
		if !strings.Contains(dsn, "=") {
			return core.ValidationError("ODBC descriptor must contain key=value pairs")
		}
	default:
		return core.ValidationError("unsupported connector kind %q", kind)
	}
	return nil
}

func (r *Registry) Create(name, kind, dsn string) (*core.Connector, error) {
	if strings.TrimSpace(name) == "" {
		return nil, core.ValidationError("connector name is required")
	}
	if err := ValidateDSN(kind, dsn); err != nil {
		return nil, err
	}
	enc, err := r.cipher.Encrypt(dsn)
	if err != nil {
		return nil, err
	}
	c := &core.Connector{
		ID:        uuid.New().String(),
		Name:      name,
		Kind:      kind,
		DSNEnc:    enc,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.repo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *Registry) Get(id string) (*core.Connector, error) {
	return r.repo.GetByID(id)
}

func (r *Registry) List() ([]core.Connector, error) {
	return r.repo.GetAll()
}

// Update replaces descriptor fields and invalidates the pool so the next
// use reconnects with the new descriptor.
func (r *Registry) Update(id string, name, kind, dsn *string) (*core.Connector, error) {
	c, err := r.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		c.Name = *name
	}
	if kind != nil {
		c.Kind = *kind
	}
	if dsn != nil {
		if err := ValidateDSN(c.Kind, *dsn); err != nil {
			return nil, err
		}
		enc, err := r.cipher.Encrypt(*dsn)
		if err != nil {
			return nil, err
		}
		c.DSNEnc = enc
	} else if kind != nil {
		plain, err := r.cipher.Decrypt(c.DSNEnc)
		if err != nil {
			return nil, err
		}
		if err := ValidateDSN(c.Kind, plain); err != nil {
			return nil, err
		}
	}
	if err := r.repo.Update(c); err != nil {
		return nil, err
	}
	r.pools.Invalidate(id)
	return c, nil
}

// Delete removes the descriptor and closes its pool. Dependent queries and
// mappings are left orphaned on purpose; dispatch against them fails at
// request time with a connection error.
func (r *Registry) Delete(id string) error {
	if err := r.repo.Delete(id); err != nil {
		return err
	}
	r.pools.Invalidate(id)
	return nil
}

// Credentials resolves a connector to its kind and decrypted DSN.
func (r *Registry) Credentials(id string) (kind, dsn string, err error) {
	c, err := r.repo.GetByID(id)
	if err != nil {
		return "", "", err
	}
	plain, err := r.cipher.Decrypt(c.DSNEnc)
	if err != nil {
		return "", "", err
	}
	return c.Kind, plain, nil
}

// Test opens a short-lived connection under the configured timeout and
// measures wall-clock latency. Raw driver errors never cross this boundary.
func (r *Registry) Test(ctx context.Context, id string) (*core.TestResult, error) {
	c, err := r.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	dsn, err := r.cipher.Decrypt(c.DSNEnc)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	db, err := sql.Open(core.DriverName(c.Kind), dsn)
	if err != nil {
		return &core.TestResult{OK: false, Error: err.Error()}, nil
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, r.testTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return &core.TestResult{OK: false, Error: err.Error()}, nil
	}
	return &core.TestResult{OK: true, LatencyMs: time.Since(start).Milliseconds()}, nil
}
