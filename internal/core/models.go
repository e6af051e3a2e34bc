package core

import (
	"time"
)

// Connector kinds map one-to-one onto registered database/sql drivers.
const (
	KindSQLite   = "sqlite"
	KindMSSQL    = "mssql"
	KindPostgres = "postgres"
	KindMySQL    = "mysql"
	KindCustom   = "custom" // raw ODBC descriptor
)

// DriverName returns the database/sql driver registered for a connector kind.
// Empty string means the kind is unknown.
func DriverName(kind string) string {
	switch kind {
	case KindSQLite:
		return "sqlite"
	case KindMSSQL:
		return "sqlserver"
	case KindPostgres:
		return "postgres"
	case KindMySQL:
		return "mysql"
	case KindCustom:
		return "odbc"
	}
	return ""
}

// ValidKind reports whether kind is one of the supported connector kinds.
func ValidKind(kind string) bool {
	return DriverName(kind) != ""
}

// Connector is a named connection descriptor for one SQL backend.
// The DSN is encrypted at rest and masked in API responses.
type Connector struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	DSNEnc    string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Query is a named parameterized SQL text bound to a connector. The
// connector reference may dangle after a connector is deleted; dispatch
// against it fails at request time.
type Query struct {
	ID          string    `json:"id"`
	ConnectorID string    `json:"connector_id"`
	Name        string    `json:"name"`
	SQLText     string    `json:"sql_text"`
	IsProc      bool      `json:"is_proc"`
	Description string    `json:"description,omitempty"`
	Params      []string  `json:"params"`
	CreatedAt   time.Time `json:"created_at"`
}

// Parameter locations and types form closed sets; anything outside them is
// rejected when a mapping is created.
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InBody   = "body"
)

const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// ParamSpec is one entry of a mapping's ordered parameter schema.
type ParamSpec struct {
	Name     string  `json:"name"`
	In       string  `json:"in"`
	Type     string  `json:"type"`
	Required bool    `json:"required"`
	Default  *string `json:"default,omitempty"`
}

// Mapping binds a query to an HTTP method and path template with a
// declarative parameter schema and a deploy lifecycle. The connector id is
// independent of the query's original connector and may override it.
type Mapping struct {
	ID           string      `json:"id"`
	QueryID      string      `json:"query_id"`
	ConnectorID  string      `json:"connector_id"`
	Path         string      `json:"path"`
	Method       string      `json:"method"`
	Params       []ParamSpec `json:"params"`
	AuthRequired bool        `json:"auth_required"`
	Deployed     bool        `json:"deployed"`
	CreatedAt    time.Time   `json:"created_at"`
}

// Log statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// LogEntry is the append-only audit record of one dispatched or previewed
// execution. MappingID is empty for ad hoc previews.
type LogEntry struct {
	RequestID  string         `json:"request_id"`
	MappingID  string         `json:"mapping_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMs int64          `json:"duration_ms"`
	Status     string         `json:"status"`
	Params     map[string]any `json:"params,omitempty"`
	RowCount   int            `json:"row_count"`
	Error      string         `json:"error,omitempty"`
	Stack      string         `json:"stack,omitempty"`
}

// API key roles.
const (
	RoleAdmin    = "admin"
	RoleConsumer = "consumer"
)

// ApiKey stores only the bcrypt hash of the token; the plaintext is shown
// exactly once, at creation. The prefix narrows the hash comparison set.
type ApiKey struct {
	ID        string    `json:"id"`
	KeyPrefix string    `json:"key_prefix"`
	KeyHash   string    `json:"-"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Result of a query execution: either returned rows with their column order,
// or an affected-row count for non-row-returning statements.
type Result struct {
	Columns      []string         `json:"columns,omitempty"`
	Rows         []map[string]any `json:"rows,omitempty"`
	RowsAffected int64            `json:"rows_affected,omitempty"`
	More         bool             `json:"more,omitempty"`
}

// TestResult is the structured outcome of a connectivity test.
type TestResult struct {
	OK        bool   `json:"ok"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}
