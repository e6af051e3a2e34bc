package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"querygate/internal/core"
	"querygate/internal/metrics"
)

// Executor is the single execution primitive behind both deployed dispatch
// and ad hoc preview: acquire a pooled connection, rewrite named placeholders
// for the backend's bind style, run one attempt, scan rows generically.
type Executor struct {
	pools        *PoolManager
	queryTimeout time.Duration
}

func NewExecutor(pools *PoolManager, queryTimeout time.Duration) *Executor {
	return &Executor{pools: pools, queryTimeout: queryTimeout}
}

// Execute runs sqlText against the connector with the given name→value
// bindings, truncating row results to maxRows server-side. isProc selects
// the stored-procedure call path. There is no retry: one invocation is at
// most one execution attempt.
func (e *Executor) Execute(ctx context.Context, kind, connectorID, dsn, sqlText string, params map[string]any, maxRows int, isProc bool) (*core.Result, error) {
	rewritten, order := core.RewriteParams(sqlText, core.PlaceholderFor(kind))
	args, err := bindArgs(core.PlaceholderFor(kind), order, params)
	if err != nil {
		return nil, err
	}

	conn, err := e.pools.Acquire(ctx, kind, connectorID, dsn)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	execCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.QueryDuration.Observe(time.Since(start).Seconds())
	}()

	if returnsRows(sqlText, isProc) {
		rows, err := conn.QueryContext(execCtx, rewritten, args...)
		if err != nil {
			return nil, core.ExecutionError(err, "query failed")
		}
		defer rows.Close()
		return scanRows(rows, maxRows)
	}

	res, err := conn.ExecContext(execCtx, rewritten, args...)
	if err != nil {
		return nil, core.ExecutionError(err, "statement failed")
	}
	affected, _ := res.RowsAffected()
	return &core.Result{RowsAffected: affected}, nil
}

// returnsRows decides between the query and exec paths. Stored procedures
// always take the query path since they may yield result sets.
func returnsRows(sqlText string, isProc bool) bool {
	if isProc {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(sqlText))
	for _, kw := range []string{"select", "with", "values", "show", "pragma", "explain"} {
		if strings.HasPrefix(head, kw) {
			return true
		}
	}
	return false
}

func bindArgs(style core.Placeholder, order []string, params map[string]any) ([]any, error) {
	args := make([]any, 0, len(order))
	for _, name := range order {
		val, ok := params[name]
		if !ok {
			return nil, core.ValidationError("query references parameter %q with no bound value", name)
		}
		switch style {
		case core.PlaceholderNamed, core.PlaceholderAt:
			args = append(args, sql.Named(name, val))
		default:
			args = append(args, val)
		}
	}
	return args, nil
}

// scanRows maps a generic result set into name→value rows, stopping at
// maxRows. More is set when the backend had further rows past the cut.
func scanRows(rows *sql.Rows, maxRows int) (*core.Result, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, core.ExecutionError(err, "read columns")
	}

	out := &core.Result{Columns: cols, Rows: []map[string]any{}}
	for len(out.Rows) < maxRows && rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, core.ExecutionError(err, "scan row")
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out.Rows = append(out.Rows, row)
	}
	if rows.Next() {
		out.More = true
	}
	if err := rows.Err(); err != nil {
		return nil, core.ExecutionError(err, "iterate rows")
	}
	return out, nil
}
