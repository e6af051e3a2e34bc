package service

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"querygate/internal/core"
	"querygate/internal/logger"
	"querygate/internal/metrics"
)

// MappingSpec is the author-facing input for creating a mapping. The path
// may use :name segments; they are normalized to {name} on write.
type MappingSpec struct {
	QueryID      string           `json:"query_id"`
	ConnectorID  string           `json:"connector_id"`
	Path         string           `json:"path"`
	Method       string           `json:"method"`
	Params       []core.ParamSpec `json:"params"`
	AuthRequired bool             `json:"auth_required"`
}

// Dispatcher owns the mapping lifecycle and the per-request
// resolve-coerce-execute pipeline. The live route table is an immutable
// snapshot swapped atomically on every deploy/undeploy, so the hot path
// reads one pointer and never takes a lock.
type Dispatcher struct {
	mappings    core.MappingRepository
	queries     core.QueryRepository
	registry    *Registry
	auth        *AuthService
	exec        *Executor
	logs        core.LogRepository
	defaultRows int

	mu    sync.Mutex // serializes deploy/undeploy/delete
	table atomic.Pointer[core.RouteTable]
}

func NewDispatcher(mappings core.MappingRepository, queries core.QueryRepository, registry *Registry, auth *AuthService, exec *Executor, logs core.LogRepository, defaultRows int) *Dispatcher {
	d := &Dispatcher{
		mappings:    mappings,
		queries:     queries,
		registry:    registry,
		auth:        auth,
		exec:        exec,
		logs:        logs,
		defaultRows: defaultRows,
	}
	empty, _ := core.BuildRouteTable(nil)
	d.table.Store(empty)
	return d
}

var allowedMethods = map[string]bool{"GET": true, "POST": true, "PUT": true, "DELETE": true}

// Create validates and stores a mapping in the undeployed state.
func (d *Dispatcher) Create(spec MappingSpec) (*core.Mapping, error) {
	method := strings.ToUpper(spec.Method)
	if !allowedMethods[method] {
		return nil, core.ValidationError("method must be one of GET/POST/PUT/DELETE")
	}
	if strings.TrimSpace(spec.Path) == "" {
		return nil, core.ValidationError("path is required")
	}
	path := core.NormalizePath(spec.Path)
	if path == "/admin" || strings.HasPrefix(path, "/admin/") {
		return nil, core.ValidationError("path prefix /admin is reserved for the management API")
	}
	if err := core.ValidateSpecs(spec.Params); err != nil {
		return nil, err
	}
	if err := core.ValidatePathParams(path, spec.Params); err != nil {
		return nil, err
	}
	if _, err := d.queries.GetByID(spec.QueryID); err != nil {
		return nil, core.ValidationError("query_id not found")
	}
	if _, err := d.registry.Get(spec.ConnectorID); err != nil {
		return nil, core.ValidationError("connector_id not found")
	}

	m := &core.Mapping{
		ID:           uuid.New().String(),
		QueryID:      spec.QueryID,
		ConnectorID:  spec.ConnectorID,
		Path:         path,
		Method:       method,
		Params:       spec.Params,
		AuthRequired: spec.AuthRequired,
		CreatedAt:    time.Now().UTC(),
	}
	if err := d.mappings.Create(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *Dispatcher) Get(id string) (*core.Mapping, error) {
	return d.mappings.GetByID(id)
}

func (d *Dispatcher) List() ([]core.Mapping, error) {
	return d.mappings.GetAll()
}

// Deploy publishes the mapping into the live route table as one atomic
// table replacement. A (method, path) collision with a different deployed
// mapping is rejected. Deploying an already-deployed mapping is a no-op.
func (d *Dispatcher) Deploy(id string) (*core.Mapping, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, err := d.mappings.GetByID(id)
	if err != nil {
		return nil, err
	}
	if m.Deployed {
		return m, nil
	}

	next := append(d.table.Load().Routes(), *m)
	table, err := core.BuildRouteTable(next)
	if err != nil {
		return nil, err
	}
	if err := d.mappings.SetDeployed(id, true); err != nil {
		return nil, err
	}
	m.Deployed = true
	d.publish(table)
	logger.Info.Printf("deployed mapping %s: %s %s", m.ID, m.Method, m.Path)
	return m, nil
}

// Undeploy removes the mapping from the live table with the same atomic
// swap discipline. Requests already admitted continue to completion.
func (d *Dispatcher) Undeploy(id string) (*core.Mapping, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.undeployLocked(id)
}

func (d *Dispatcher) undeployLocked(id string) (*core.Mapping, error) {
	m, err := d.mappings.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !m.Deployed {
		return m, nil
	}

	var next []core.Mapping
	for _, route := range d.table.Load().Routes() {
		if route.ID != id {
			next = append(next, route)
		}
	}
	table, err := core.BuildRouteTable(next)
	if err != nil {
		return nil, err
	}
	if err := d.mappings.SetDeployed(id, false); err != nil {
		return nil, err
	}
	m.Deployed = false
	d.publish(table)
	logger.Info.Printf("undeployed mapping %s: %s %s", m.ID, m.Method, m.Path)
	return m, nil
}

// Delete removes the mapping, implicitly undeploying it first.
func (d *Dispatcher) Delete(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.undeployLocked(id); err != nil {
		return err
	}
	return d.mappings.Delete(id)
}

// LoadDeployed rebuilds the route table from persisted deployed mappings.
// Called once at startup.
func (d *Dispatcher) LoadDeployed() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	deployed, err := d.mappings.GetDeployed()
	if err != nil {
		return err
	}
	table, err := core.BuildRouteTable(deployed)
	if err != nil {
		return err
	}
	d.publish(table)
	logger.Info.Printf("restored %d deployed mapping(s)", table.Len())
	return nil
}

func (d *Dispatcher) publish(t *core.RouteTable) {
	d.table.Store(t)
	metrics.RouteTableSize.Set(float64(t.Len()))
}

// Snapshot returns the live route table. Dispatch reads exactly one
// snapshot per request.
func (d *Dispatcher) Snapshot() *core.RouteTable {
	return d.table.Load()
}

// Run executes the dispatch pipeline for a request already matched against
// a snapshot. Exactly one log entry is written per admitted request; any
// failure is converted to a per-request error, never a process fault.
func (d *Dispatcher) Run(ctx context.Context, m core.Mapping, rv core.RequestValues, apiKey string) (string, *core.Result, error) {
	requestID := uuid.New().String()
	start := time.Now()

	finish := func(params map[string]any, result *core.Result, err error) (string, *core.Result, error) {
		entry := &core.LogEntry{
			RequestID:  requestID,
			MappingID:  m.ID,
			Timestamp:  start.UTC(),
			DurationMs: time.Since(start).Milliseconds(),
			Params:     params,
		}
		if err != nil {
			entry.Status = core.StatusError
			entry.Error = err.Error()
			if core.IsKind(err, core.KindExecution) {
				entry.Stack = string(debug.Stack())
			}
			metrics.DispatchTotal.WithLabelValues(string(core.KindOf(err))).Inc()
		} else {
			entry.Status = core.StatusOK
			entry.RowCount = len(result.Rows)
			metrics.DispatchTotal.WithLabelValues(core.StatusOK).Inc()
		}
		if logErr := d.logs.Append(entry); logErr != nil {
			logger.Error.Printf("append dispatch log %s: %v", requestID, logErr)
		}
		return requestID, result, err
	}

	// Auth is checked before any parameter resolution or connector use.
	if m.AuthRequired {
		if _, err := d.auth.Validate(apiKey); err != nil {
			return finish(nil, nil, err)
		}
	}

	params, err := core.ResolveParams(m.Params, rv)
	if err != nil {
		return finish(nil, nil, err)
	}

	q, err := d.queries.GetByID(m.QueryID)
	if err != nil {
		return finish(params, nil, core.ExecutionError(nil, "query behind this mapping no longer exists"))
	}

	kind, dsn, err := d.registry.Credentials(m.ConnectorID)
	if err != nil {
		// orphaned mapping: the connector was deleted after binding
		return finish(params, nil, core.ConnectionError(nil, "connector behind this mapping is unavailable"))
	}

	result, err := d.exec.Execute(ctx, kind, m.ConnectorID, dsn, q.SQLText, params, d.defaultRows, q.IsProc)
	if err != nil {
		return finish(params, nil, err)
	}
	return finish(params, result, nil)
}
