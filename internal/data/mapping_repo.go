package data

import (
	"database/sql"
	"encoding/json"

	"querygate/internal/core"
)

type MappingRepo struct {
	db *sql.DB
}

func NewMappingRepo(db *sql.DB) *MappingRepo {
	return &MappingRepo{db: db}
}

const mappingCols = `id, query_id, connector_id, path, method, params_json, auth_required, deployed, created_at`

func (r *MappingRepo) Create(m *core.Mapping) error {
	params, err := json.Marshal(m.Params)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`INSERT INTO mappings (`+mappingCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.QueryID, m.ConnectorID, m.Path, m.Method, string(params), boolInt(m.AuthRequired), boolInt(m.Deployed), m.CreatedAt)
	return err
}

func scanMapping(row interface{ Scan(...any) error }) (*core.Mapping, error) {
	var m core.Mapping
	var params string
	var authRequired, deployed int
	if err := row.Scan(&m.ID, &m.QueryID, &m.ConnectorID, &m.Path, &m.Method, &params, &authRequired, &deployed, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.AuthRequired = authRequired == 1
	m.Deployed = deployed == 1
	if err := json.Unmarshal([]byte(params), &m.Params); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MappingRepo) GetAll() ([]core.Mapping, error) {
	return r.list(`SELECT ` + mappingCols + ` FROM mappings ORDER BY created_at, id`)
}

func (r *MappingRepo) GetDeployed() ([]core.Mapping, error) {
	return r.list(`SELECT ` + mappingCols + ` FROM mappings WHERE deployed = 1 ORDER BY created_at, id`)
}

func (r *MappingRepo) list(query string) ([]core.Mapping, error) {
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func (r *MappingRepo) GetByID(id string) (*core.Mapping, error) {
	m, err := scanMapping(r.db.QueryRow(`SELECT `+mappingCols+` FROM mappings WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, core.NotFoundError("mapping not found")
	}
	return m, err
}

func (r *MappingRepo) SetDeployed(id string, deployed bool) error {
	res, err := r.db.Exec(`UPDATE mappings SET deployed=? WHERE id=?`, boolInt(deployed), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundError("mapping not found")
	}
	return nil
}

func (r *MappingRepo) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM mappings WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundError("mapping not found")
	}
	return nil
}
