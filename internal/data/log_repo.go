package data

import (
	"database/sql"
	"encoding/json"

	"querygate/internal/core"
)

// LogRepo is the append-only request audit trail. Entries are never
// updated or deleted.
type LogRepo struct {
	db *sql.DB
}

func NewLogRepo(db *sql.DB) *LogRepo {
	return &LogRepo{db: db}
}

func (r *LogRepo) Append(e *core.LogEntry) error {
	var params any
	if len(e.Params) > 0 {
		b, err := json.Marshal(e.Params)
		if err != nil {
			return err
		}
		params = string(b)
	}
	var mappingID any
	if e.MappingID != "" {
		mappingID = e.MappingID
	}
	_, err := r.db.Exec(`INSERT INTO request_logs (request_id, mapping_id, timestamp, duration_ms, status, params_json, row_count, error_message, stack)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, mappingID, e.Timestamp, e.DurationMs, e.Status, params, e.RowCount, nullable(e.Error), nullable(e.Stack))
	return err
}

const logCols = `request_id, mapping_id, timestamp, duration_ms, status, params_json, row_count, error_message, stack`

func scanLog(row interface{ Scan(...any) error }) (*core.LogEntry, error) {
	var e core.LogEntry
	var mappingID, params, errMsg, stack sql.NullString
	if err := row.Scan(&e.RequestID, &mappingID, &e.Timestamp, &e.DurationMs, &e.Status, &params, &e.RowCount, &errMsg, &stack); err != nil {
		return nil, err
	}
	e.MappingID = mappingID.String
	e.Error = errMsg.String
	e.Stack = stack.String
	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &e.Params); err != nil {
			return nil, err
		}
	}
	return &e, nil
}

func (r *LogRepo) Get(requestID string) (*core.LogEntry, error) {
	e, err := scanLog(r.db.QueryRow(`SELECT `+logCols+` FROM request_logs WHERE request_id = ?`, requestID))
	if err == sql.ErrNoRows {
		return nil, core.NotFoundError("log entry not found")
	}
	return e, err
}

func (r *LogRepo) Recent(limit int) ([]core.LogEntry, error) {
	rows, err := r.db.Query(`SELECT `+logCols+` FROM request_logs ORDER BY timestamp DESC, request_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.LogEntry
	for rows.Next() {
		e, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
