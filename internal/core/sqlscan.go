package core

import (
	"fmt"
	"strings"
)

// Placeholder is the bind-parameter style a driver expects.
type Placeholder int

const (
	// PlaceholderNamed keeps :name tokens and binds with sql.Named (sqlite).
	PlaceholderNamed Placeholder = iota
	// PlaceholderAt rewrites :name to @name and binds with sql.Named (mssql).
	PlaceholderAt
	// PlaceholderDollar rewrites to $1..$n, one ordinal per distinct name (postgres).
	PlaceholderDollar
	// PlaceholderQuestion rewrites every occurrence to ? (mysql, odbc).
	PlaceholderQuestion
)

// PlaceholderFor returns the placeholder style for a connector kind.
func PlaceholderFor(kind string) Placeholder {
	switch kind {
	case KindMSSQL:
		return PlaceholderAt
	case KindPostgres:
		return PlaceholderDollar
	case KindMySQL, KindCustom:
		return PlaceholderQuestion
	}
	return PlaceholderNamed
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// scanSQL walks sql and calls emit for every :name token found outside string
// literals and comments. emit receives the token name and its byte span
// including the leading colon. A `::` sequence (cast syntax) never yields a
// token.
func scanSQL(sql string, emit func(name string, start, end int)) {
	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			// Quoted string or identifier. A doubled quote stays inside.
			q := c
			i++
			for i < n {
				if sql[i] == q {
					if i+1 < n && sql[i+1] == q {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
		case c == '-' && i+1 < n && sql[i+1] == '-':
			for i < n && sql[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && sql[i+1] == '*':
			i += 2
			for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			if i+1 < n {
				i += 2
			} else {
				i = n
			}
		case c == ':':
			if i+1 < n && sql[i+1] == ':' {
				// cast, swallow both colons so the type name is not a token
				i += 2
				for i < n && isWordChar(sql[i]) {
					i++
				}
				continue
			}
			start := i
			i++
			j := i
			for j < n && isWordChar(sql[j]) {
				j++
			}
			if j > i {
				emit(sql[i:j], start, j)
			}
			i = j
		default:
			i++
		}
	}
}

// ScanParams returns the distinct named parameters of sql in order of first
// appearance. The scan is literal- and comment-aware, so ':' inside strings,
// line comments, block comments and '::' casts never produce a token.
func ScanParams(sql string) []string {
	var names []string
	seen := make(map[string]bool)
	scanSQL(sql, func(name string, _, _ int) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	})
	return names
}

// RewriteParams converts the :name tokens of sql to the given placeholder
// style. The returned order lists, for styles that bind positionally, the
// parameter name behind each positional argument slot: every occurrence for
// PlaceholderQuestion, each distinct name once for PlaceholderDollar. For the
// named styles it lists distinct names in first-appearance order.
func RewriteParams(sql string, style Placeholder) (string, []string) {
	if style == PlaceholderNamed {
		return sql, ScanParams(sql)
	}

	var b strings.Builder
	var order []string
	ordinal := make(map[string]int)
	last := 0

	scanSQL(sql, func(name string, start, end int) {
		b.WriteString(sql[last:start])
		last = end
		switch style {
		case PlaceholderAt:
			b.WriteByte('@')
			b.WriteString(name)
			if _, ok := ordinal[name]; !ok {
				ordinal[name] = len(order) + 1
				order = append(order, name)
			}
		case PlaceholderDollar:
			n, ok := ordinal[name]
			if !ok {
				n = len(order) + 1
				ordinal[name] = n
				order = append(order, name)
			}
			fmt.Fprintf(&b, "$%d", n)
		case PlaceholderQuestion:
			b.WriteByte('?')
			order = append(order, name)
		}
	})
	b.WriteString(sql[last:])
	return b.String(), order
}
