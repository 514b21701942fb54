package builder

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/sqlgen"
	"github.com/voilab/acedao/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()

	f, err := os.Open("testdata/schema.yaml")
	require.NoError(t, err)
	defer f.Close()

	reg := schema.NewRegistry()
	require.NoError(t, reg.Load(f))
	return reg
}

func newContext(t *testing.T, from string, mode acedao.Mode) *Context {
	t.Helper()

	base, err := ast.ParseTarget(from)
	require.NoError(t, err)

	opts := acedao.DefaultOptions()
	opts.Mode = mode
	ctx, err := NewContext(testRegistry(t), sqlgen.NewGenerator(opts.Dialect), opts, base)
	require.NoError(t, err)
	return ctx
}

func TestNewContext(t *testing.T) {
	ctx := newContext(t, "posts p", acedao.Strict)
	assert.Equal(t, "`posts`", ctx.Parts.From)
	assert.Equal(t, "p", ctx.Parts.Alias)

	base, err := ast.ParseTarget("nope n")
	require.NoError(t, err)
	_, err = NewContext(testRegistry(t), sqlgen.NewGenerator(""), acedao.DefaultOptions(), base)
	assert.ErrorIs(t, err, acedao.ErrUnknownDependency)
}

func TestSelect(t *testing.T) {
	ctx := newContext(t, "users u", acedao.Strict)

	require.NoError(t, ctx.SelectBase(ast.Fields{AddSelect: []string{"age"}}))
	ctx.Select(ast.Target{Table: "users", Alias: "u"}, []string{"name"})

	assert.Equal(t, []string{
		"u.id AS u__id",
		"u.name AS u__name",
		"u.email AS u__email",
		"u.age AS u__age",
	}, ctx.Parts.Columns)
}

func TestSetLimit(t *testing.T) {
	tests := []struct {
		name    string
		limit   []int
		wantErr bool
	}{
		{name: "none"},
		{name: "count", limit: []int{10}},
		{name: "offset and count", limit: []int{20, 10}},
		{name: "too many values", limit: []int{1, 2, 3}, wantErr: true},
		{name: "negative", limit: []int{-1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newContext(t, "users u", acedao.Strict)
			err := ctx.SetLimit(tt.limit)
			if tt.wantErr {
				assert.ErrorIs(t, err, acedao.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.limit, ctx.Parts.Limit)
		})
	}
}

func TestFinalize(t *testing.T) {
	ctx := newContext(t, "users u", acedao.Strict)
	require.NoError(t, ctx.AddWhere(ast.Where("active", nil)))
	require.NoError(t, ctx.AddWhere(ast.Where("active", nil)))
	require.NoError(t, ctx.AddSort(ast.Sort{Name: "name"}))
	require.NoError(t, ctx.AddSort(ast.Sort{Name: "name", Dir: "ASC"}))

	ctx.Finalize()

	assert.Equal(t, []string{"u.active = 1"}, ctx.Parts.Where)
	assert.Equal(t, []string{"u.name ASC"}, ctx.Parts.OrderBy)
}
