package alias

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voilab/acedao/schema"
)

var (
	userJoins = map[string]schema.JoinFilter{
		"posts": {Type: schema.Many},
		"users": {},
	}
	postJoins = map[string]schema.JoinFilter{
		"comments": {Type: schema.Many},
	}
)

func newTree(t *testing.T) *Tree {
	t.Helper()

	tree := New("users", "u")
	require.True(t, tree.Register("u", "p", "posts", userJoins, ""))
	require.True(t, tree.Register("p", "c", "comments", postJoins, "replies"))
	require.True(t, tree.Register("u", "m", "users", userJoins, "manager"))
	return tree
}

func TestRegister(t *testing.T) {
	tree := newTree(t)

	assert.Equal(t, 3, tree.Len())
	assert.False(t, tree.Register("u", "x", "tags", userJoins, ""), "undeclared join")
	assert.Equal(t, 3, tree.Len())

	node, ok := tree.Node("c")
	require.True(t, ok)
	assert.Equal(t, "comments", node.Table)
	assert.Equal(t, "replies", node.Relation)
	assert.Equal(t, schema.Many, node.Cardinality)

	manager, ok := tree.Node("m")
	require.True(t, ok)
	assert.Equal(t, schema.One, manager.Cardinality)
	assert.Equal(t, Root, manager.Parent)
}

func TestLookups(t *testing.T) {
	tree := newTree(t)

	table, alias := tree.Base()
	assert.Equal(t, "users", table)
	assert.Equal(t, "u", alias)

	assert.True(t, tree.Has("u"))
	assert.True(t, tree.Has("c"))
	assert.False(t, tree.Has("x"))
	assert.True(t, tree.IsBase("u"))
	assert.False(t, tree.IsBase("m"))

	table, ok := tree.Table("p")
	assert.True(t, ok)
	assert.Equal(t, "posts", table)

	_, ok = tree.Table("x")
	assert.False(t, ok)
}

func TestPath(t *testing.T) {
	tree := newTree(t)

	tests := []struct {
		alias string
		want  []string
		ok    bool
	}{
		{alias: "u", want: nil, ok: true},
		{alias: "p", want: []string{"posts"}, ok: true},
		{alias: "c", want: []string{"posts", "replies"}, ok: true},
		{alias: "m", want: []string{"manager"}, ok: true},
		{alias: "x", want: nil, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			got, ok := tree.Path(tt.alias)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChildren(t *testing.T) {
	tree := newTree(t)

	var roots []string
	for _, n := range tree.Children("u") {
		roots = append(roots, n.Alias)
	}
	assert.Equal(t, []string{"p", "m"}, roots)

	children := tree.Children("p")
	require.Len(t, children, 1)
	assert.Equal(t, "c", children[0].Alias)

	assert.Empty(t, tree.Children("c"))
	assert.Nil(t, tree.Children("x"))
}

func TestRelationIndexes(t *testing.T) {
	tree := newTree(t)

	card, ok := tree.RelationType("posts")
	assert.True(t, ok)
	assert.Equal(t, schema.Many, card)

	table, ok := tree.RelationTable("manager")
	assert.True(t, ok)
	assert.Equal(t, "users", table)

	_, ok = tree.RelationType("unknown")
	assert.False(t, ok)

	// the flat index agrees with the tree
	for _, a := range []string{"p", "c", "m"} {
		node, _ := tree.Node(a)
		card, _ := tree.RelationType(node.Relation)
		table, _ := tree.RelationTable(node.Relation)
		assert.Equal(t, node.Cardinality, card)
		assert.Equal(t, node.Table, table)
	}
}

func TestAliases(t *testing.T) {
	tree := newTree(t)

	assert.Equal(t, []string{"u", "m"}, tree.Aliases("users"))
	assert.Equal(t, []string{"p"}, tree.Aliases("posts"))
	assert.Empty(t, tree.Aliases("tags"))

	aliases := tree.Aliases("users")
	aliases[0] = "changed"
	assert.Equal(t, []string{"u", "m"}, tree.Aliases("users"))
}

func TestChild(t *testing.T) {
	tree := newTree(t)

	node, ok := tree.Child("u", "posts")
	require.True(t, ok)
	assert.Equal(t, "p", node.Alias)

	node, ok = tree.Child("u", "manager")
	require.True(t, ok)
	assert.Equal(t, "m", node.Alias)

	_, ok = tree.Child("p", "comments")
	assert.False(t, ok)

	node, ok = tree.Child("p", "replies")
	require.True(t, ok)
	assert.Equal(t, "c", node.Alias)
}
