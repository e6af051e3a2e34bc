package data

import (
	"database/sql"

	"querygate/internal/core"
)

type QueryRepo struct {
	db *sql.DB
}

func NewQueryRepo(db *sql.DB) *QueryRepo {
	return &QueryRepo{db: db}
}

func (r *QueryRepo) Create(q *core.Query) error {
	_, err := r.db.Exec(`INSERT INTO queries (id, connector_id, name, sql_text, is_proc, description, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.ConnectorID, q.Name, q.SQLText, boolInt(q.IsProc), q.Description, q.CreatedAt)
	return err
}

const queryCols = `id, connector_id, name, sql_text, is_proc, description, created_at`

func scanQuery(row interface{ Scan(...any) error }) (*core.Query, error) {
	var q core.Query
	var isProc int
	var desc sql.NullString
	if err := row.Scan(&q.ID, &q.ConnectorID, &q.Name, &q.SQLText, &isProc, &desc, &q.CreatedAt); err != nil {
		return nil, err
	}
	q.IsProc = isProc == 1
	q.Description = desc.String
	// derived, never stored: sql_text edits take effect immediately
	q.Params = core.ScanParams(q.SQLText)
	return &q, nil
}

func (r *QueryRepo) GetAll() ([]core.Query, error) {
	rows, err := r.db.Query(`SELECT ` + queryCols + ` FROM queries ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.Query
	for rows.Next() {
		q, err := scanQuery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *QueryRepo) GetByID(id string) (*core.Query, error) {
	q, err := scanQuery(r.db.QueryRow(`SELECT `+queryCols+` FROM queries WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, core.NotFoundError("query not found")
	}
	return q, err
}

func (r *QueryRepo) Update(q *core.Query) error {
	res, err := r.db.Exec(`UPDATE queries SET connector_id=?, name=?, sql_text=?, is_proc=?, description=? WHERE id=?`,
		q.ConnectorID, q.Name, q.SQLText, boolInt(q.IsProc), q.Description, q.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundError("query not found")
	}
	return nil
}

func (r *QueryRepo) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM queries WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NotFoundError("query not found")
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
