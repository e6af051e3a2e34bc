package api

import (
	"net/http"
	"strings"

	"querygate/internal/core"
	"querygate/internal/service"
)

// DocHandler serves an OpenAPI 3.0 document generated from the live route
// table, so consumers always see exactly what is deployed right now.
type DocHandler struct {
	dispatcher *service.Dispatcher
	catalog    *service.Catalog
}

func NewDocHandler(dispatcher *service.Dispatcher, catalog *service.Catalog) *DocHandler {
	return &DocHandler{dispatcher: dispatcher, catalog: catalog}
}

func (h *DocHandler) ServeSwaggerUI(w http.ResponseWriter, r *http.Request) {
	html := `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>QueryGate API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
        window.ui = SwaggerUIBundle({
            url: '/openapi.json',
            dom_id: '#swagger-ui',
        });
    };
</script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}

func schemaType(t string) string {
	switch t {
	case core.TypeInteger:
		return "integer"
	case core.TypeNumber:
		return "number"
	case core.TypeBoolean:
		return "boolean"
	default:
		return "string"
	}
}

func (h *DocHandler) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	snapshot := h.dispatcher.Snapshot()

	paths := make(map[string]any)

	for _, m := range snapshot.Routes() {
		var parameters []map[string]any
		bodyProps := make(map[string]any)
		var bodyRequired []string

		for _, p := range m.Params {
			if p.In == core.InBody {
				bodyProps[p.Name] = map[string]any{"type": schemaType(p.Type)}
				if p.Required {
					bodyRequired = append(bodyRequired, p.Name)
				}
				continue
			}
			param := map[string]any{
				"name":     p.Name,
				"in":       p.In,
				"required": p.Required,
				"schema":   map[string]any{"type": schemaType(p.Type)},
			}
			if p.Default != nil {
				param["schema"] = map[string]any{"type": schemaType(p.Type), "default": *p.Default}
			}
			parameters = append(parameters, param)
		}

		summary := m.Path
		if q, err := h.catalog.Get(m.QueryID); err == nil {
			summary = q.Name
		}

		operation := map[string]any{
			"summary":     summary,
			"operationId": m.ID,
			"responses": map[string]any{
				"200": map[string]any{
					"description": "Successful execution",
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"request_id":  map[string]any{"type": "string"},
									"duration_ms": map[string]any{"type": "integer"},
									"result": map[string]any{
										"type": "object",
										"properties": map[string]any{
											"columns": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
											"rows":    map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
										},
									},
									"more": map[string]any{"type": "boolean"},
								},
							},
						},
					},
				},
				"400": map[string]any{"description": "Validation failure"},
				"401": map[string]any{"description": "Missing or invalid API key"},
				"503": map[string]any{"description": "Backend unreachable"},
			},
		}
		if len(parameters) > 0 {
			operation["parameters"] = parameters
		}
		if len(bodyProps) > 0 {
			bodySchema := map[string]any{"type": "object", "properties": bodyProps}
			if len(bodyRequired) > 0 {
				bodySchema["required"] = bodyRequired
			}
			operation["requestBody"] = map[string]any{
				"required": len(bodyRequired) > 0,
				"content": map[string]any{
					"application/json": map[string]any{"schema": bodySchema},
				},
			}
		}

		entry, ok := paths[m.Path].(map[string]any)
		if !ok {
			entry = make(map[string]any)
			paths[m.Path] = entry
		}
		entry[strings.ToLower(m.Method)] = operation
	}

	spec := map[string]any{
		"openapi": "3.0.0",
		"info": map[string]any{
			"title":       "QueryGate API",
			"version":     "1.0.0",
			"description": "Endpoints generated from deployed query mappings.",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"ApiKeyAuth": map[string]any{
					"type": "apiKey",
					"in":   "header",
					"name": apiKeyHeader,
				},
			},
		},
		"security": []map[string]any{
			{"ApiKeyAuth": []string{}},
		},
	}

	writeJSON(w, http.StatusOK, spec)
}
