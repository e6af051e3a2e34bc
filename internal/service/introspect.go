package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"querygate/internal/core"
)

// ColumnInfo is one column of a described table.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// TableInfo is the result of describing a single table: declared columns,
// the primary key column set and read-only sample rows.
type TableInfo struct {
	Table      string           `json:"table"`
	Columns    []ColumnInfo     `json:"columns"`
	PK         []string         `json:"pk"`
	SampleRows []map[string]any `json:"sample_rows"`
}

// Introspector performs on-demand table and column discovery against a
// connector.
type Introspector struct {
	registry     *Registry
	pools        *PoolManager
	maxSample    int
	queryTimeout time.Duration
}

func NewIntrospector(registry *Registry, pools *PoolManager, maxSample int, queryTimeout time.Duration) *Introspector {
	return &Introspector{registry: registry, pools: pools, maxSample: maxSample, queryTimeout: queryTimeout}
}

// identRe guards table names that get interpolated into catalog statements.
var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.$]*$`)

// Discover enumerates tables visible to the connector. Discovery is
// best-effort: a backend without catalog access yields an empty set, not an
// error. Connectivity failures still fail the call.
func (in *Introspector) Discover(ctx context.Context, connectorID string) ([]string, error) {
	kind, dsn, err := in.registry.Credentials(connectorID)
	if err != nil {
		return nil, err
	}

	stmt := tableListStmt(kind)
	if stmt == "" {
		// no portable catalog facility for this backend
		return []string{}, nil
	}

	conn, err := in.pools.Acquire(ctx, kind, connectorID, dsn)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	queryCtx, cancel := context.WithTimeout(ctx, in.queryTimeout)
	defer cancel()

	rows, err := conn.QueryContext(queryCtx, stmt)
	if err != nil {
		return []string{}, nil
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return []string{}, nil
		}
		tables = append(tables, name)
	}
	return tables, nil
}

func tableListStmt(kind string) string {
	switch kind {
	case core.KindSQLite:
		return `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	case core.KindMySQL:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name`
	case core.KindPostgres:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name`
	case core.KindMSSQL:
		return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' ORDER BY TABLE_NAME`
	}
	return ""
}

// Describe returns column metadata, the primary key column set and up to
// sampleN sample rows. sampleN is capped server-side; the operation never
// mutates data.
func (in *Introspector) Describe(ctx context.Context, connectorID, table string, sampleN int) (*TableInfo, error) {
	if !identRe.MatchString(table) {
		return nil, core.ValidationError("invalid table name %q", table)
	}
	if sampleN < 0 {
		sampleN = 0
	}
	if sampleN > in.maxSample {
		sampleN = in.maxSample
	}

	kind, dsn, err := in.registry.Credentials(connectorID)
	if err != nil {
		return nil, err
	}

	conn, err := in.pools.Acquire(ctx, kind, connectorID, dsn)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	queryCtx, cancel := context.WithTimeout(ctx, in.queryTimeout)
	defer cancel()

	info := &TableInfo{Table: table, Columns: []ColumnInfo{}, PK: []string{}, SampleRows: []map[string]any{}}

	if err := in.describeColumns(queryCtx, conn, kind, table, info); err != nil {
		return nil, err
	}

	if sampleN > 0 {
		stmt := fmt.Sprintf(`SELECT * FROM %s`, quoteIdent(kind, table))
		rows, err := conn.QueryContext(queryCtx, stmt)
		if err == nil {
			defer rows.Close()
			if res, scanErr := scanRows(rows, sampleN); scanErr == nil {
				info.SampleRows = res.Rows
			}
		}
	}

	return info, nil
}

func (in *Introspector) describeColumns(ctx context.Context, conn *sql.Conn, kind, table string, info *TableInfo) error {
	switch kind {
	case core.KindSQLite:
		rows, err := conn.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, quoteIdent(kind, table)))
		if err != nil {
			return core.ExecutionError(err, "describe %s", table)
		}
		defer rows.Close()
		for rows.Next() {
			var cid int
			var name, declType string
			var notNull, pk int
			var dflt sql.NullString
			if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
				return core.ExecutionError(err, "describe %s", table)
			}
			info.Columns = append(info.Columns, ColumnInfo{Name: name, Type: declType, Nullable: notNull == 0})
			if pk > 0 {
				info.PK = append(info.PK, name)
			}
		}
		return rows.Err()

	case core.KindMySQL, core.KindPostgres, core.KindMSSQL:
		colStmt, pkStmt := infoSchemaStmts(kind)
		rows, err := conn.QueryContext(ctx, colStmt, table)
		if err != nil {
			return core.ExecutionError(err, "describe %s", table)
		}
		defer rows.Close()
		for rows.Next() {
			var name, declType, nullable string
			if err := rows.Scan(&name, &declType, &nullable); err != nil {
				return core.ExecutionError(err, "describe %s", table)
			}
			info.Columns = append(info.Columns, ColumnInfo{Name: name, Type: declType, Nullable: nullable == "YES"})
		}
		if err := rows.Err(); err != nil {
			return err
		}

		pkRows, err := conn.QueryContext(ctx, pkStmt, table)
		if err != nil {
			// primary key metadata is best-effort
			return nil
		}
		defer pkRows.Close()
		for pkRows.Next() {
			var name string
			if err := pkRows.Scan(&name); err != nil {
				return nil
			}
			info.PK = append(info.PK, name)
		}
		return nil
	}

	// custom/ODBC backends expose no portable column catalog
	return nil
}

func infoSchemaStmts(kind string) (colStmt, pkStmt string) {
	switch kind {
	case core.KindMySQL:
		return `SELECT column_name, column_type, is_nullable FROM information_schema.columns WHERE table_schema = DATABASE() AND table_name = ? ORDER BY ordinal_position`,
			`SELECT column_name FROM information_schema.key_column_usage WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY' ORDER BY ordinal_position`
	case core.KindPostgres:
		return `SELECT column_name, data_type, is_nullable FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1 ORDER BY ordinal_position`,
			`SELECT kcu.column_name FROM information_schema.table_constraints tc
			 JOIN information_schema.key_column_usage kcu ON kcu.constraint_name = tc.constraint_name
			 WHERE tc.table_schema = current_schema() AND tc.table_name = $1 AND tc.constraint_type = 'PRIMARY KEY'
			 ORDER BY kcu.ordinal_position`
	case core.KindMSSQL:
		return `SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE FROM INFORMATION_SCHEMA.COLUMNS WHERE TABLE_NAME = @p1 ORDER BY ORDINAL_POSITION`,
			`SELECT kcu.COLUMN_NAME FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			 JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu ON kcu.CONSTRAINT_NAME = tc.CONSTRAINT_NAME
			 WHERE tc.TABLE_NAME = @p1 AND tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
			 ORDER BY kcu.ORDINAL_POSITION`
	}
	return "", ""
}

func quoteIdent(kind, ident string) string {
	switch kind {
	case core.KindMySQL:
		return "`" + ident + "`"
	case core.KindMSSQL:
		return "[" + ident + "]"
	default:
		return `"` + ident + `"`
	}
}
