package sqlgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) *Fragment {
	t.Helper()
	f, err := ParseFragment(s)
	require.NoError(t, err)
	return f
}

func TestFragmentRoundTrip(t *testing.T) {
	inputs := []string{
		"[users].id = :id",
		"this.name LIKE 'a:b%' AND [posts].created::date > :since",
		"`weird:col` = \"x:y\"",
		"",
	}
	for _, in := range inputs {
		assert.Equal(t, in, mustParse(t, in).String())
	}
}

func TestFragmentParams(t *testing.T) {
	f := mustParse(t, "[users].id BETWEEN :from AND :to OR [users].id = :from AND name = ':literal' AND x::int = 1")
	assert.Equal(t, []string{":from", ":to"}, f.Params())
}

func TestFragmentTableRefs(t *testing.T) {
	f := mustParse(t, "[posts].user_id = [users].id AND [posts].x = 1")
	assert.Equal(t, []string{"posts", "users"}, f.TableRefs())
}

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		aliases map[string]string
		this    string
		want    string
	}{
		{
			name:    "table references",
			input:   "[posts].user_id = [users].id",
			aliases: map[string]string{"posts": "p", "users": "u"},
			want:    "p.user_id = u.id",
		},
		{
			name:    "unknown reference is kept",
			input:   "[tags].id = [users].id",
			aliases: map[string]string{"users": "u"},
			want:    "[tags].id = u.id",
		},
		{
			name:  "this keyword",
			input: "this.active = 1",
			this:  "p",
			want:  "p.active = 1",
		},
		{
			name:  "qualified this is a column",
			input: "this.this = 1",
			this:  "p",
			want:  "p.this = 1",
		},
		{
			name:  "this inside a literal",
			input: "this.name = 'this'",
			this:  "p",
			want:  "p.name = 'this'",
		},
		{
			name:  "empty this",
			input: "this.active = 1",
			want:  "this.active = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustParse(t, tt.input)
			assert.Equal(t, tt.want, f.Substitute(tt.aliases, tt.this).String())
			assert.Equal(t, tt.input, f.String(), "receiver untouched")
		})
	}
}

func TestReplaceParam(t *testing.T) {
	f := mustParse(t, ":a = :b OR :a = 1")

	assert.Equal(t, ":a_2 = :b OR :a_2 = 1", f.ReplaceParam(":a", ":a_2").String())

	out, name := f.ReplaceFirstParam("u.id")
	assert.Equal(t, ":a", name)
	assert.Equal(t, "u.id = :b OR :a = 1", out.String())

	out, name = mustParse(t, "x = 1").ReplaceFirstParam("u.id")
	assert.Equal(t, "", name)
	assert.Equal(t, "x = 1", out.String())
}

func TestExpandList(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		placeholders []string
		inList       bool
		want         string
	}{
		{
			name:         "parenthesized list",
			input:        "u.id IN (:ids)",
			placeholders: []string{":ids_0", ":ids_1"},
			inList:       true,
			want:         "u.id IN (:ids_0, :ids_1)",
		},
		{
			name:         "bare list",
			input:        "u.id in :ids",
			placeholders: []string{":ids_0"},
			inList:       true,
			want:         "u.id in (:ids_0)",
		},
		{
			name:   "empty list",
			input:  "u.id IN (:ids)",
			inList: true,
			want:   "u.id IN (NULL)",
		},
		{
			name:   "not a list",
			input:  "u.id = :ids",
			inList: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustParse(t, tt.input)
			assert.Equal(t, tt.inList, f.InList(":ids"))
			if tt.inList {
				assert.Equal(t, tt.want, f.ExpandList(":ids", tt.placeholders).String())
			}
		})
	}
}

func TestEscapeColons(t *testing.T) {
	f := mustParse(t, "x::int = :id AND label = 'a:b'")
	assert.Equal(t, "x::::int = :id AND label = 'a::b'", f.EscapeColons())
}
