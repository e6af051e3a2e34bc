package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"querygate/internal/core"
	"querygate/internal/service"
)

// Handler wires the admin REST surface and the dynamic dispatch entry point.
type Handler struct {
	registry   *service.Registry
	catalog    *service.Catalog
	introspect *service.Introspector
	dispatcher *service.Dispatcher
	auth       *service.AuthService
	logs       core.LogRepository
	keys       core.ApiKeyRepository
	sessions   *SessionManager
	limiter    *RateLimiter
	devMode    bool
}

func NewHandler(
	registry *service.Registry,
	catalog *service.Catalog,
	introspect *service.Introspector,
	dispatcher *service.Dispatcher,
	auth *service.AuthService,
	logs core.LogRepository,
	keys core.ApiKeyRepository,
	sessions *SessionManager,
	limiter *RateLimiter,
	devMode bool,
) *Handler {
	return &Handler{
		registry:   registry,
		catalog:    catalog,
		introspect: introspect,
		dispatcher: dispatcher,
		auth:       auth,
		logs:       logs,
		keys:       keys,
		sessions:   sessions,
		limiter:    limiter,
		devMode:    devMode,
	}
}

// Routes assembles the router. Admin endpoints sit under /admin behind the
// auth gate; everything unmatched falls through to dynamic dispatch so
// deployed mappings may claim any path.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(LoggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	docs := NewDocHandler(h.dispatcher, h.catalog)
	r.Get("/docs", docs.ServeSwaggerUI)
	r.Get("/openapi.json", docs.GetOpenAPISpec)

	r.With(h.limiter.MiddlewareByIP).Post("/admin/session", h.CreateSession)
	r.Delete("/admin/session", h.DeleteSession)

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.AdminMiddleware)

		r.Post("/connectors", h.CreateConnector)
		r.Get("/connectors", h.ListConnectors)
		r.Get("/connectors/{id}", h.GetConnector)
		r.Put("/connectors/{id}", h.UpdateConnector)
		r.Delete("/connectors/{id}", h.DeleteConnector)
		r.Post("/connectors/{id}/test", h.TestConnector)
		r.Post("/connectors/{id}/discover", h.DiscoverConnector)
		r.Get("/connectors/{id}/schema/{table}", h.DescribeTable)

		r.Post("/queries", h.CreateQuery)
		r.Get("/queries", h.ListQueries)
		r.Post("/queries/preview", h.PreviewQuery)
		r.Get("/queries/{id}", h.GetQuery)
		r.Put("/queries/{id}", h.UpdateQuery)
		r.Delete("/queries/{id}", h.DeleteQuery)

		r.Post("/mappings", h.CreateMapping)
		r.Get("/mappings", h.ListMappings)
		r.Get("/mappings/{id}", h.GetMapping)
		r.Delete("/mappings/{id}", h.DeleteMapping)
		r.Post("/mappings/{id}/deploy", h.DeployMapping)
		r.Post("/mappings/{id}/undeploy", h.UndeployMapping)

		r.Get("/logs", h.ListLogs)
		r.Get("/logs/{requestID}", h.GetLog)

		r.Post("/api-keys", h.CreateApiKey)
		r.Get("/api-keys", h.ListApiKeys)

		r.Get("/debug/routes", h.DebugRoutes)
	})

	// Deployed mappings live outside the static route set.
	r.NotFound(h.limiter.MiddlewareByAPIKey(http.HandlerFunc(h.Dispatch)).ServeHTTP)

	return r
}

// --- connectors ---

type connectorRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	DSN  string `json:"dsn"`
}

type connectorUpdateRequest struct {
	Name *string `json:"name"`
	Kind *string `json:"kind"`
	DSN  *string `json:"dsn"`
}

func (h *Handler) CreateConnector(w http.ResponseWriter, r *http.Request) {
	var req connectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.ValidationError("invalid JSON body"), "")
		return
	}
	c, err := h.registry.Create(req.Name, req.Kind, req.DSN)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) ListConnectors(w http.ResponseWriter, _ *http.Request) {
	out, err := h.registry.List()
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetConnector(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateConnector(w http.ResponseWriter, r *http.Request) {
	var req connectorUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.ValidationError("invalid JSON body"), "")
		return
	}
	c, err := h.registry.Update(chi.URLParam(r, "id"), req.Name, req.Kind, req.DSN)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) DeleteConnector(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.registry.Delete(id); err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func (h *Handler) TestConnector(w http.ResponseWriter, r *http.Request) {
	res, err := h.registry.Test(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) DiscoverConnector(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tables, err := h.introspect.Discover(r.Context(), id)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"connector_id": id, "tables": tables})
}

func (h *Handler) DescribeTable(w http.ResponseWriter, r *http.Request) {
	sample := 10
	if v := r.URL.Query().Get("sample"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, core.ValidationError("sample must be an integer"), "")
			return
		}
		sample = n
	}
	info, err := h.introspect.Describe(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "table"), sample)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// --- queries ---

type queryRequest struct {
	ConnectorID string `json:"connector_id"`
	Name        string `json:"name"`
	SQLText     string `json:"sql_text"`
	IsProc      bool   `json:"is_proc"`
	Description string `json:"description"`
}

type queryUpdateRequest struct {
	ConnectorID *string `json:"connector_id"`
	Name        *string `json:"name"`
	SQLText     *string `json:"sql_text"`
	IsProc      *bool   `json:"is_proc"`
	Description *string `json:"description"`
}

func (h *Handler) CreateQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.ValidationError("invalid JSON body"), "")
		return
	}
	q, err := h.catalog.Create(req.ConnectorID, req.Name, req.SQLText, req.IsProc, req.Description)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (h *Handler) ListQueries(w http.ResponseWriter, _ *http.Request) {
	out, err := h.catalog.List()
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	q, err := h.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) UpdateQuery(w http.ResponseWriter, r *http.Request) {
	var req queryUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.ValidationError("invalid JSON body"), "")
		return
	}
	q, err := h.catalog.Update(chi.URLParam(r, "id"), req.ConnectorID, req.Name, req.SQLText, req.IsProc, req.Description)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) DeleteQuery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.catalog.Delete(id); err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

type previewRequest struct {
	ConnectorID string         `json:"connector_id"`
	SQLText     string         `json:"sql_text"`
	Params      map[string]any `json:"params"`
	MaxRows     int            `json:"max_rows"`
	IsProc      bool           `json:"is_proc"`
}

func (h *Handler) PreviewQuery(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.ValidationError("invalid JSON body"), "")
		return
	}
	requestID, res, err := h.catalog.Preview(r.Context(), req.ConnectorID, req.SQLText, req.Params, req.MaxRows, req.IsProc)
	if err != nil {
		writeError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": requestID,
		"columns":    res.Columns,
		"rows":       res.Rows,
		"more":       res.More,
	})
}

// --- mappings ---

func (h *Handler) CreateMapping(w http.ResponseWriter, r *http.Request) {
	var spec service.MappingSpec
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, core.ValidationError("invalid JSON body"), "")
		return
	}
	m, err := h.dispatcher.Create(spec)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) ListMappings(w http.ResponseWriter, _ *http.Request) {
	out, err := h.dispatcher.List()
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetMapping(w http.ResponseWriter, r *http.Request) {
	m, err := h.dispatcher.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) DeleteMapping(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.dispatcher.Delete(id); err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

func (h *Handler) DeployMapping(w http.ResponseWriter, r *http.Request) {
	m, err := h.dispatcher.Deploy(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": m.ID, "status": "deployed", "path": m.Path, "method": m.Method})
}

func (h *Handler) UndeployMapping(w http.ResponseWriter, r *http.Request) {
	m, err := h.dispatcher.Undeploy(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": m.ID, "status": "undeployed"})
}

// --- logs ---

func (h *Handler) GetLog(w http.ResponseWriter, r *http.Request) {
	entry, err := h.logs.Get(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	out, err := h.logs.Recent(limit)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- api keys ---

type apiKeyRequest struct {
	Role string `json:"role"`
}

func (h *Handler) CreateApiKey(w http.ResponseWriter, r *http.Request) {
	req := apiKeyRequest{Role: core.RoleConsumer}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, core.ValidationError("invalid JSON body"), "")
			return
		}
	}
	token, key, err := h.auth.CreateKey(req.Role)
	if err != nil {
		writeError(w, err, "")
		return
	}
	// the token appears here exactly once; only the hash is stored
	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"id":         key.ID,
		"key_prefix": key.KeyPrefix,
		"role":       key.Role,
		"created_at": key.CreatedAt,
	})
}

func (h *Handler) ListApiKeys(w http.ResponseWriter, _ *http.Request) {
	out, err := h.keys.GetAll()
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// --- diagnostics ---

func (h *Handler) DebugRoutes(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.dispatcher.Snapshot()
	out := make([]map[string]any, 0, snapshot.Len())
	for _, m := range snapshot.Routes() {
		out = append(out, map[string]any{"mapping_id": m.ID, "method": m.Method, "path": m.Path})
	}
	writeJSON(w, http.StatusOK, out)
}

// --- dynamic dispatch ---

// Dispatch matches an inbound request against the live route table and runs
// the resolve-coerce-execute pipeline. A routing-level miss is a plain 404
// and is not logged as a mapping event.
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	snapshot := h.dispatcher.Snapshot()
	m, pathParams, ok := snapshot.Match(r.Method, r.URL.Path)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{
			ErrorCode: "NOT_FOUND",
			Message:   "no deployed mapping matches this route",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	var body map[string]any
	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "application/json") && r.Body != nil {
		// a malformed body only matters if a parameter needs it
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	rv := core.RequestValues{
		Path:   pathParams,
		Query:  r.URL.Query(),
		Header: r.Header,
		Body:   body,
	}

	start := time.Now()
	requestID, res, err := h.dispatcher.Run(r.Context(), m, rv, r.Header.Get(apiKeyHeader))
	if err != nil {
		writeError(w, err, requestID)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id":  requestID,
		"duration_ms": time.Since(start).Milliseconds(),
		"result":      res,
		"more":        res.More,
	})
}
