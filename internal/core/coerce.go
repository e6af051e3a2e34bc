package core

import (
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RequestValues holds the four locations a parameter may be resolved from.
// Body is the JSON-decoded request body, or nil when no JSON body was sent.
type RequestValues struct {
	Path   map[string]string
	Query  url.Values
	Header http.Header
	Body   map[string]any
}

// ResolveParams resolves and coerces every schema entry from its declared
// location. A missing required entry or a coercion failure yields a
// validation error; a missing optional entry uses its default, or is left
// out of the binding set entirely when no default exists.
func ResolveParams(specs []ParamSpec, rv RequestValues) (map[string]any, error) {
	bound := make(map[string]any, len(specs))
	for _, spec := range specs {
		raw, present := lookup(spec, rv)
		if !present {
			if spec.Required {
				return nil, ValidationError("missing required %s parameter %q", spec.In, spec.Name)
			}
			if spec.Default == nil {
				continue
			}
			raw = *spec.Default
		}
		val, err := Coerce(spec, raw)
		if err != nil {
			return nil, err
		}
		bound[spec.Name] = val
	}
	return bound, nil
}

func lookup(spec ParamSpec, rv RequestValues) (any, bool) {
	switch spec.In {
	case InPath:
		v, ok := rv.Path[spec.Name]
		return v, ok
	case InQuery:
		if rv.Query.Has(spec.Name) {
			return rv.Query.Get(spec.Name), true
		}
	case InHeader:
		if v := rv.Header.Get(spec.Name); v != "" {
			return v, true
		}
	case InBody:
		if rv.Body != nil {
			v, ok := rv.Body[spec.Name]
			return v, ok
		}
	}
	return nil, false
}

// Coerce converts a resolved raw value to the entry's declared type. Raw is
// a string for path/query/header values and defaults, or any JSON value for
// body fields.
func Coerce(spec ParamSpec, raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return coerceString(spec, v)
	case bool:
		if spec.Type == TypeBoolean {
			return v, nil
		}
	case float64:
		// encoding/json decodes every number to float64
		switch spec.Type {
		case TypeNumber:
			return v, nil
		case TypeInteger:
			if v == math.Trunc(v) {
				return int64(v), nil
			}
		}
	case nil:
		return nil, ValidationError("parameter %q is null", spec.Name)
	}
	return nil, ValidationError("parameter %q is not a valid %s", spec.Name, spec.Type)
}

func coerceString(spec ParamSpec, raw string) (any, error) {
	switch spec.Type {
	case TypeString:
		return raw, nil
	case TypeInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, ValidationError("parameter %q: %q is not an integer", spec.Name, raw)
		}
		return n, nil
	case TypeNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, ValidationError("parameter %q: %q is not a number", spec.Name, raw)
		}
		return f, nil
	case TypeBoolean:
		return coerceBool(spec.Name, raw)
	}
	return nil, ValidationError("parameter %q has unknown type %q", spec.Name, spec.Type)
}

func coerceBool(name, raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "1", "t", "true", "y", "yes", "on":
		return true, nil
	case "0", "f", "false", "n", "no", "off":
		return false, nil
	}
	return false, ValidationError("parameter %q: %q is not a boolean", name, raw)
}

// ValidateSpecs checks a mapping's parameter schema against the closed
// location and type sets and rejects duplicate names.
func ValidateSpecs(specs []ParamSpec) error {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return ValidationError("parameter schema entry without a name")
		}
		if seen[s.Name] {
			return ValidationError("duplicate parameter %q", s.Name)
		}
		seen[s.Name] = true
		switch s.In {
		case InPath, InQuery, InHeader, InBody:
		default:
			return ValidationError("parameter %q: unknown location %q", s.Name, s.In)
		}
		switch s.Type {
		case TypeString, TypeInteger, TypeNumber, TypeBoolean:
		default:
			return ValidationError("parameter %q: unknown type %q", s.Name, s.Type)
		}
		if s.In == InPath && !s.Required {
			return ValidationError("path parameter %q must be required", s.Name)
		}
		if s.Default != nil {
			if _, err := Coerce(s, *s.Default); err != nil {
				return ValidationError("parameter %q: default %q is not a valid %s", s.Name, *s.Default, s.Type)
			}
		}
	}
	return nil
}
