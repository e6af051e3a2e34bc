package core

import (
	"strings"
)

// NormalizePath converts a path template to canonical {name} form. Author
// input may use :name segments; both normalize to {name}. The result always
// carries a leading slash and no trailing slash (except the root).
func NormalizePath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	segs := strings.Split(path[1:], "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") && len(s) > 1 {
			segs[i] = "{" + s[1:] + "}"
		}
	}
	return "/" + strings.Join(segs, "/")
}

// PathPlaceholders returns the {name} placeholder names of a canonical path
// template in order.
func PathPlaceholders(path string) []string {
	var names []string
	for _, s := range strings.Split(strings.TrimPrefix(path, "/"), "/") {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") && len(s) > 2 {
			names = append(names, s[1:len(s)-1])
		}
	}
	return names
}

// ValidatePathParams enforces the 1:1 correspondence between {name}
// placeholders in the template and in=path schema entries.
func ValidatePathParams(path string, specs []ParamSpec) error {
	placeholders := PathPlaceholders(path)
	inPath := make(map[string]bool)
	for _, s := range specs {
		if s.In == InPath {
			inPath[s.Name] = true
		}
	}
	for _, name := range placeholders {
		if !inPath[name] {
			return ValidationError("path placeholder {%s} has no matching path parameter", name)
		}
		delete(inPath, name)
	}
	for name := range inPath {
		return ValidationError("path parameter %q does not appear in the template", name)
	}
	return nil
}

type segment struct {
	literal string
	param   string // non-empty for a {name} segment
}

type route struct {
	mapping  Mapping
	segments []segment
}

// RouteTable is an immutable snapshot of the deployed routes. Deploy and
// undeploy publish a whole new table; dispatch reads exactly one snapshot
// per request, so a half-updated table is never observable.
type RouteTable struct {
	byMethod map[string][]route
}

func splitSegments(path string) []segment {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	segs := make([]segment, len(parts))
	for i, p := range parts {
		if strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") && len(p) > 2 {
			segs[i] = segment{param: p[1 : len(p)-1]}
		} else {
			segs[i] = segment{literal: p}
		}
	}
	return segs
}

// shapeKey treats every placeholder segment as equivalent, so two templates
// that would match the same URLs collide even under different placeholder
// names.
func shapeKey(method, path string) string {
	segs := splitSegments(path)
	var b strings.Builder
	b.WriteString(method)
	for _, s := range segs {
		b.WriteByte('/')
		if s.param != "" {
			b.WriteByte('*')
		} else {
			b.WriteString(s.literal)
		}
	}
	return b.String()
}

// BuildRouteTable builds a snapshot from the given deployed mappings. A
// (method, path) collision between two mappings is a conflict.
func BuildRouteTable(mappings []Mapping) (*RouteTable, error) {
	t := &RouteTable{byMethod: make(map[string][]route)}
	seen := make(map[string]string)
	for _, m := range mappings {
		key := shapeKey(m.Method, m.Path)
		if other, ok := seen[key]; ok && other != m.ID {
			return nil, ConflictError("%s %s is already deployed", m.Method, m.Path)
		}
		seen[key] = m.ID
		t.byMethod[m.Method] = append(t.byMethod[m.Method], route{
			mapping:  m,
			segments: splitSegments(m.Path),
		})
	}
	return t, nil
}

// Match finds the deployed mapping for method and a concrete URL path and
// binds its named segments. ok is false on a routing-level miss.
func (t *RouteTable) Match(method, path string) (Mapping, map[string]string, bool) {
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for _, r := range t.byMethod[method] {
		if len(r.segments) != len(parts) {
			continue
		}
		params := make(map[string]string, len(parts))
		matched := true
		for i, seg := range r.segments {
			if seg.param != "" {
				params[seg.param] = parts[i]
			} else if seg.literal != parts[i] {
				matched = false
				break
			}
		}
		if matched {
			return r.mapping, params, true
		}
	}
	return Mapping{}, nil, false
}

// Len returns the number of deployed routes in the snapshot.
func (t *RouteTable) Len() int {
	n := 0
	for _, rs := range t.byMethod {
		n += len(rs)
	}
	return n
}

// Routes lists the deployed (method, path) pairs for diagnostics.
func (t *RouteTable) Routes() []Mapping {
	var out []Mapping
	for _, rs := range t.byMethod {
		for _, r := range rs {
			out = append(out, r.mapping)
		}
	}
	return out
}
