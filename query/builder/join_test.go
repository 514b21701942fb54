package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/sqlgen"
	"github.com/voilab/acedao/schema"
)

func TestJoin(t *testing.T) {
	ctx := newContext(t, "users u", acedao.Strict)

	err := ctx.Join(ast.Join{
		Target: "posts p",
		Name:   "articles",
		On:     ast.Filters{ast.Where("published", nil)},
		Join:   ast.Joins{{Target: "comments c"}},
	}, ctx.Base)
	require.NoError(t, err)

	assert.Equal(t, []sqlgen.Join{
		{Type: "LEFT", Table: "`posts`", Alias: "p", On: []string{"p.user_id = u.id", "p.published = 1"}},
		{Type: "INNER", Table: "comments", Alias: "c", On: []string{"c.post_id = p.id"}},
	}, ctx.Parts.Joins)

	assert.Equal(t, []string{
		"p.id AS p__id",
		"p.title AS p__title",
		"c.id AS c__id",
		"c.body AS c__body",
	}, ctx.Parts.Columns)

	path, ok := ctx.Aliases.Path("c")
	require.True(t, ok)
	assert.Equal(t, []string{"articles", "comments"}, path)

	card, _ := ctx.Aliases.RelationType("articles")
	assert.Equal(t, schema.Many, card)
}

func TestJoinSelfReference(t *testing.T) {
	ctx := newContext(t, "users u", acedao.Strict)

	require.NoError(t, ctx.Join(ast.Join{Target: "users m", Name: "manager"}, ctx.Base))

	require.Len(t, ctx.Parts.Joins, 1)
	assert.Equal(t, []string{"m.id = u.manager_id"}, ctx.Parts.Joins[0].On)
	// the join filter default selection applies
	assert.Equal(t, []string{"m.id AS m__id", "m.name AS m__name"}, ctx.Parts.Columns)
	assert.Equal(t, []string{"u", "m"}, ctx.Aliases.Aliases("users"))
}

func TestJoinFieldsOverrideDefaults(t *testing.T) {
	ctx := newContext(t, "users u", acedao.Strict)

	require.NoError(t, ctx.Join(ast.Join{
		Target: "users m",
		Fields: ast.Fields{Select: []string{"email"}},
	}, ctx.Base))
	assert.Equal(t, []string{"m.id AS m__id", "m.email AS m__email"}, ctx.Parts.Columns)
}

func TestJoinInner(t *testing.T) {
	ctx := newContext(t, "users u", acedao.Strict)

	require.NoError(t, ctx.Join(ast.Join{Target: "posts p", Inner: true}, ctx.Base))
	require.Len(t, ctx.Parts.Joins, 1)
	assert.Equal(t, "INNER", ctx.Parts.Joins[0].Type)
}

func TestJoinWithoutPredicates(t *testing.T) {
	ctx := newContext(t, "comments c", acedao.Strict)

	require.NoError(t, ctx.Join(ast.Join{Target: "users u"}, ctx.Base))
	assert.Empty(t, ctx.Parts.Joins)
	assert.True(t, ctx.Aliases.Has("u"))
	assert.Contains(t, ctx.Parts.Columns, "u.name AS u__name")
}

func TestJoinDefaultSubJoins(t *testing.T) {
	t.Run("applied", func(t *testing.T) {
		ctx := newContext(t, "teams t", acedao.Strict)

		require.NoError(t, ctx.Join(ast.Join{Target: "users tu"}, ctx.Base))
		require.Len(t, ctx.Parts.Joins, 2)
		assert.Equal(t, "tp", ctx.Parts.Joins[1].Alias)
		assert.Equal(t, []string{"tp.user_id = tu.id"}, ctx.Parts.Joins[1].On)

		path, ok := ctx.Aliases.Path("tp")
		require.True(t, ok)
		assert.Equal(t, []string{"users", "posts"}, path)
	})

	t.Run("requested alias wins", func(t *testing.T) {
		ctx := newContext(t, "teams t", acedao.Strict)

		require.NoError(t, ctx.Join(ast.Join{
			Target: "users tu",
			Join:   ast.Joins{{Target: "posts tp", Fields: ast.Fields{Select: []string{"user_id"}}}},
		}, ctx.Base))
		require.Len(t, ctx.Parts.Joins, 2)
		assert.Contains(t, ctx.Parts.Columns, "tp.user_id AS tp__user_id")
		assert.NotContains(t, ctx.Parts.Columns, "tp.title AS tp__title")
	})
}

func TestJoinSameRelationTwice(t *testing.T) {
	t.Run("unnamed", func(t *testing.T) {
		ctx := newContext(t, "users u", acedao.Strict)

		require.NoError(t, ctx.Join(ast.Join{Target: "posts p1"}, ctx.Base))
		err := ctx.Join(ast.Join{Target: "posts p2"}, ctx.Base)
		assert.ErrorIs(t, err, acedao.ErrConfiguration)
		assert.ErrorContains(t, err, `relation "posts"`)
		assert.False(t, ctx.Aliases.Has("p2"))
	})

	t.Run("named", func(t *testing.T) {
		ctx := newContext(t, "users u", acedao.Strict)

		require.NoError(t, ctx.Join(ast.Join{Target: "posts p1"}, ctx.Base))
		require.NoError(t, ctx.Join(ast.Join{Target: "posts p2", Name: "drafts"}, ctx.Base))

		path, ok := ctx.Aliases.Path("p2")
		require.True(t, ok)
		assert.Equal(t, []string{"drafts"}, path)
	})

	t.Run("default sub join skipped", func(t *testing.T) {
		ctx := newContext(t, "teams t", acedao.Strict)

		require.NoError(t, ctx.Join(ast.Join{
			Target: "users tu",
			Join:   ast.Joins{{Target: "posts x"}},
		}, ctx.Base))
		require.Len(t, ctx.Parts.Joins, 2)
		assert.Equal(t, "x", ctx.Parts.Joins[1].Alias)
		assert.False(t, ctx.Aliases.Has("tp"))
	})
}

func TestJoinErrors(t *testing.T) {
	tests := []struct {
		name    string
		join    ast.Join
		wantErr error
	}{
		{name: "undeclared join", join: ast.Join{Target: "comments c"}, wantErr: acedao.ErrUnknownFilter},
		{name: "alias reused", join: ast.Join{Target: "posts u"}, wantErr: acedao.ErrConfiguration},
		{name: "bad target", join: ast.Join{Target: "posts a b"}, wantErr: acedao.ErrConfiguration},
		{name: "unknown on filter", join: ast.Join{Target: "posts p", On: ast.Filters{ast.Where("nope", nil)}}, wantErr: acedao.ErrUnknownFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newContext(t, "users u", acedao.Strict)
			assert.ErrorIs(t, ctx.Join(tt.join, ctx.Base), tt.wantErr)
		})
	}
}
