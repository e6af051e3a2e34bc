package data

import (
	"database/sql"
	"strings"

	"querygate/internal/core"
)

type ConnectorRepo struct {
	db *sql.DB
}

func NewConnectorRepo(db *sql.DB) *ConnectorRepo {
	return &ConnectorRepo{db: db}
}

func (r *ConnectorRepo) Create(c *core.Connector) error {
	_, err := r.db.Exec(`INSERT INTO connectors (id, name, kind, dsn_enc, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Kind, c.DSNEnc, c.CreatedAt)
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return core.ConflictError("connector name %q already exists", c.Name)
	}
	return err
}

func (r *ConnectorRepo) GetAll() ([]core.Connector, error) {
	rows, err := r.db.Query(`SELECT id, name, kind, dsn_enc, created_at FROM connectors ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Connector
	for rows.Next() {
		var c core.Connector
		if err := rows.Scan(&c.ID, &c.Name, &c.Kind, &c.DSNEnc, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ConnectorRepo) GetByID(id string) (*core.Connector, error) {
	return r.get(`SELECT id, name, kind, dsn_enc, created_at FROM connectors WHERE id = ?`, id)
}

func (r *ConnectorRepo) GetByName(name string) (*core.Connector, error) {
	return r.get(`SELECT id, name, kind, dsn_enc, created_at FROM connectors WHERE name = ?`, name)
}

func (r *ConnectorRepo) get(query, arg string) (*core.Connector, error) {
	var c core.Connector
	err := r.db.QueryRow(query, arg).Scan(&c.ID, &c.Name, &c.Kind, &c.DSNEnc, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, core.NotFoundError("connector not found")
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ConnectorRepo) Update(c *core.Connector) error {
	res, err := r.db.Exec(`UPDATE connectors SET name=?, kind=?, dsn_enc=? WHERE id=?`,
		c.Name, c.Kind, c.DSNEnc, c.ID)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return core.ConflictError("connector name %q already exists", c.Name)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundError("connector not found")
	}
	return nil
}

func (r *ConnectorRepo) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM connectors WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundError("connector not found")
	}
	return nil
}
