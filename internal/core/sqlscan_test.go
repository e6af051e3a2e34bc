package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanParams(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "distinct names in first-appearance order",
			sql:  "SELECT * FROM orders WHERE status = :status AND total > :min AND status = :status",
			want: []string{"status", "min"},
		},
		{
			name: "colon inside single-quoted literal",
			sql:  "SELECT 'a:b' FROM t WHERE id = :id",
			want: []string{"id"},
		},
		{
			name: "doubled quote stays inside the literal",
			sql:  "SELECT 'it''s :not_a_param' WHERE x = :x",
			want: []string{"x"},
		},
		{
			name: "postgres cast is not a parameter",
			sql:  "SELECT created_at::date FROM t WHERE id = :id",
			want: []string{"id"},
		},
		{
			name: "cast inside a literal",
			sql:  "SELECT '::text'",
			want: nil,
		},
		{
			name: "line comment",
			sql:  "SELECT 1 -- :ignored\nFROM t WHERE id = :id",
			want: []string{"id"},
		},
		{
			name: "block comment",
			sql:  "SELECT /* :ignored */ id FROM t WHERE id = :id",
			want: []string{"id"},
		},
		{
			name: "unterminated block comment swallows the rest",
			sql:  "SELECT 1 /* :ignored",
			want: nil,
		},
		{
			name: "bare colon yields nothing",
			sql:  "SELECT 1 WHERE x = ':'",
			want: nil,
		},
		{
			name: "no parameters",
			sql:  "SELECT count(*) FROM users",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScanParams(tt.sql))
		})
	}
}

func TestRewriteParamsNamed(t *testing.T) {
	sql := "SELECT * FROM t WHERE a = :a AND b = :b AND a2 = :a"
	got, order := RewriteParams(sql, PlaceholderNamed)
	assert.Equal(t, sql, got, "named style leaves the text untouched")
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRewriteParamsAt(t *testing.T) {
	got, order := RewriteParams("SELECT * FROM t WHERE a = :a AND b = :b AND c = :a", PlaceholderAt)
	assert.Equal(t, "SELECT * FROM t WHERE a = @a AND b = @b AND c = @a", got)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRewriteParamsDollar(t *testing.T) {
	got, order := RewriteParams("SELECT * FROM t WHERE a = :a AND b = :b AND c = :a", PlaceholderDollar)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2 AND c = $1", got, "repeated name reuses its ordinal")
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRewriteParamsQuestion(t *testing.T) {
	got, order := RewriteParams("SELECT * FROM t WHERE a = :a AND b = :b AND c = :a", PlaceholderQuestion)
	assert.Equal(t, "SELECT * FROM t WHERE a = ? AND b = ? AND c = ?", got)
	assert.Equal(t, []string{"a", "b", "a"}, order, "positional style repeats the name per occurrence")
}

func TestRewriteParamsPreservesLiterals(t *testing.T) {
	sql := "SELECT ':x' AS lit, val::int FROM t WHERE id = :id"
	got, order := RewriteParams(sql, PlaceholderDollar)
	assert.Equal(t, "SELECT ':x' AS lit, val::int FROM t WHERE id = $1", got)
	require.Equal(t, []string{"id"}, order)
}

func TestPlaceholderFor(t *testing.T) {
	assert.Equal(t, PlaceholderNamed, PlaceholderFor(KindSQLite))
	assert.Equal(t, PlaceholderAt, PlaceholderFor(KindMSSQL))
	assert.Equal(t, PlaceholderDollar, PlaceholderFor(KindPostgres))
	assert.Equal(t, PlaceholderQuestion, PlaceholderFor(KindMySQL))
	assert.Equal(t, PlaceholderQuestion, PlaceholderFor(KindCustom))
}
