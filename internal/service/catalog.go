package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"querygate/internal/core"
	"querygate/internal/logger"
)

// Catalog owns named parameterized SQL definitions and ad hoc preview
// execution.
type Catalog struct {
	queries        core.QueryRepository
	registry       *Registry
	exec           *Executor
	logs           core.LogRepository
	maxPreviewRows int
}

func NewCatalog(queries core.QueryRepository, registry *Registry, exec *Executor, logs core.LogRepository, maxPreviewRows int) *Catalog {
	return &Catalog{
		queries:        queries,
		registry:       registry,
		exec:           exec,
		logs:           logs,
		maxPreviewRows: maxPreviewRows,
	}
}

// Create stores a query definition. The detected parameter set is derived
// from sql_text for display; binding at execution time is by name, so the
// order carries no semantics.
func (c *Catalog) Create(connectorID, name, sqlText string, isProc bool, description string) (*core.Query, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, core.ValidationError("sql_text is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, core.ValidationError("query name is required")
	}
	if _, err := c.registry.Get(connectorID); err != nil {
		return nil, core.ValidationError("connector_id not found")
	}
	if isProc && !looksLikeProcCall(sqlText) {
		return nil, core.ValidationError("is_proc is set but sql_text does not look like a stored procedure call")
	}

	q := &core.Query{
		ID:          uuid.New().String(),
		ConnectorID: connectorID,
		Name:        name,
		SQLText:     sqlText,
		IsProc:      isProc,
		Description: description,
		Params:      core.ScanParams(sqlText),
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.queries.Create(q); err != nil {
		return nil, err
	}
	return q, nil
}

func looksLikeProcCall(sqlText string) bool {
	head := strings.ToLower(strings.TrimSpace(sqlText))
	return strings.HasPrefix(head, "call") || strings.HasPrefix(head, "exec") ||
		strings.Contains(head, "procedure")
}

func (c *Catalog) Get(id string) (*core.Query, error) {
	return c.queries.GetByID(id)
}

func (c *Catalog) List() ([]core.Query, error) {
	return c.queries.GetAll()
}

// Update edits a stored definition. The change takes effect immediately for
// every mapping that references the query; there is no versioning.
func (c *Catalog) Update(id string, connectorID, name, sqlText *string, isProc *bool, description *string) (*core.Query, error) {
	q, err := c.queries.GetByID(id)
	if err != nil {
		return nil, err
	}
	if connectorID != nil {
		q.ConnectorID = *connectorID
	}
	if name != nil {
		q.Name = *name
	}
	if sqlText != nil {
		if strings.TrimSpace(*sqlText) == "" {
			return nil, core.ValidationError("sql_text is required")
		}
		q.SQLText = *sqlText
	}
	if isProc != nil {
		q.IsProc = *isProc
	}
	if description != nil {
		q.Description = *description
	}
	if q.IsProc && !looksLikeProcCall(q.SQLText) {
		return nil, core.ValidationError("is_proc is set but sql_text does not look like a stored procedure call")
	}
	if err := c.queries.Update(q); err != nil {
		return nil, err
	}
	q.Params = core.ScanParams(q.SQLText)
	return q, nil
}

// Delete removes the definition. Mappings that reference it are left
// orphaned; dispatch against them fails at request time.
func (c *Catalog) Delete(id string) error {
	return c.queries.Delete(id)
}

// Preview executes sqlText ad hoc against the connector, through the same
// execution path used for deployed dispatch. Rows are truncated to maxRows
// server-side no matter how many the backend yields; errors return with no
// partial rows. Every preview writes a log entry with an empty mapping id.
func (c *Catalog) Preview(ctx context.Context, connectorID, sqlText string, params map[string]any, maxRows int, isProc bool) (string, *core.Result, error) {
	kind, dsn, err := c.registry.Credentials(connectorID)
	if err != nil {
		return "", nil, err
	}

	if maxRows <= 0 {
		maxRows = 10
	}
	if maxRows > c.maxPreviewRows {
		maxRows = c.maxPreviewRows
	}

	requestID := uuid.New().String()
	start := time.Now()
	result, err := c.exec.Execute(ctx, kind, connectorID, dsn, sqlText, params, maxRows, isProc)

	entry := &core.LogEntry{
		RequestID:  requestID,
		Timestamp:  start.UTC(),
		DurationMs: time.Since(start).Milliseconds(),
		Params:     params,
	}
	if err != nil {
		entry.Status = core.StatusError
		entry.Error = err.Error()
	} else {
		entry.Status = core.StatusOK
		entry.RowCount = len(result.Rows)
	}
	if logErr := c.logs.Append(entry); logErr != nil {
		logger.Error.Printf("append preview log %s: %v", requestID, logErr)
	}

	if err != nil {
		return requestID, nil, err
	}
	return requestID, result, nil
}
