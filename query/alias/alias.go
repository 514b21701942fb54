// Package alias tracks the table occurrences of one compiled query as a tree
// rooted at the base alias.
package alias

import (
	"slices"

	"github.com/voilab/acedao/schema"
)

// Root is the parent index of nodes joined directly to the base table.
const Root = -1

// Node is one joined table occurrence.
type Node struct {
	Alias       string
	Table       string
	Relation    string
	Cardinality schema.Cardinality
	Parent      int
	Children    []int
}

// Tree is an arena of nodes indexed by alias. The base alias is the implicit
// root and has no node of its own.
type Tree struct {
	baseAlias string
	baseTable string

	nodes          []Node
	index          map[string]int
	roots          []int
	relationTypes  map[string]schema.Cardinality
	relationTables map[string]string
	flat           map[string][]string
}

// New creates a tree rooted at the base table occurrence.
func New(baseTable, baseAlias string) *Tree {
	return &Tree{
		baseAlias:      baseAlias,
		baseTable:      baseTable,
		index:          make(map[string]int),
		relationTypes:  make(map[string]schema.Cardinality),
		relationTables: make(map[string]string),
		flat:           map[string][]string{baseTable: {baseAlias}},
	}
}

// Base returns the base table and alias.
func (t *Tree) Base() (table, alias string) {
	return t.baseTable, t.baseAlias
}

// Register attaches joinedAlias under localAlias. It returns false without
// touching the tree when localJoins declares no join to joinedTable. An
// unknown localAlias is taken to be the base alias. The relation name
// defaults to joinedTable and the cardinality comes from the local table's
// join filter.
func (t *Tree) Register(localAlias, joinedAlias, joinedTable string, localJoins map[string]schema.JoinFilter, relation string) bool {
	jf, ok := localJoins[joinedTable]
	if !ok {
		return false
	}
	if relation == "" {
		relation = joinedTable
	}

	node := Node{
		Alias:       joinedAlias,
		Table:       joinedTable,
		Relation:    relation,
		Cardinality: jf.Cardinality(),
		Parent:      Root,
	}
	id := len(t.nodes)

	if parent, found := t.index[localAlias]; found {
		node.Parent = parent
		t.nodes = append(t.nodes, node)
		t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	} else {
		t.nodes = append(t.nodes, node)
		t.roots = append(t.roots, id)
	}

	t.index[joinedAlias] = id
	t.relationTypes[relation] = node.Cardinality
	t.relationTables[relation] = joinedTable
	t.flat[joinedTable] = append(t.flat[joinedTable], joinedAlias)
	return true
}

// Has reports whether alias is the base alias or a registered node.
func (t *Tree) Has(alias string) bool {
	if alias == t.baseAlias {
		return true
	}
	_, ok := t.index[alias]
	return ok
}

// IsBase reports whether alias is the base alias.
func (t *Tree) IsBase(alias string) bool {
	return alias == t.baseAlias
}

// Table returns the table behind alias.
func (t *Tree) Table(alias string) (string, bool) {
	if alias == t.baseAlias {
		return t.baseTable, true
	}
	id, ok := t.index[alias]
	if !ok {
		return "", false
	}
	return t.nodes[id].Table, true
}

// Node returns the node registered for alias.
func (t *Tree) Node(alias string) (Node, bool) {
	id, ok := t.index[alias]
	if !ok {
		return Node{}, false
	}
	return t.nodes[id], true
}

// Path returns the relation names from the root down to alias. The base
// alias has an empty path.
func (t *Tree) Path(alias string) ([]string, bool) {
	if alias == t.baseAlias {
		return nil, true
	}
	id, ok := t.index[alias]
	if !ok {
		return nil, false
	}

	var path []string
	for id != Root {
		path = append(path, t.nodes[id].Relation)
		id = t.nodes[id].Parent
	}
	slices.Reverse(path)
	return path, true
}

// Children returns the nodes attached directly under alias, in registration
// order. The base alias returns the root-level nodes.
func (t *Tree) Children(alias string) []Node {
	ids := t.roots
	if alias != t.baseAlias {
		id, ok := t.index[alias]
		if !ok {
			return nil
		}
		ids = t.nodes[id].Children
	}

	out := make([]Node, len(ids))
	for i, id := range ids {
		out[i] = t.nodes[id]
	}
	return out
}

// Child returns the node attached directly under alias with the given
// relation name. Sibling relations share one key in hydrated records, so a
// relation name is unique among the children of a node.
func (t *Tree) Child(alias, relation string) (Node, bool) {
	for _, n := range t.Children(alias) {
		if n.Relation == relation {
			return n, true
		}
	}
	return Node{}, false
}

// RelationType returns the cardinality recorded for a relation name.
func (t *Tree) RelationType(relation string) (schema.Cardinality, bool) {
	c, ok := t.relationTypes[relation]
	return c, ok
}

// RelationTable returns the table recorded for a relation name.
func (t *Tree) RelationTable(relation string) (string, bool) {
	table, ok := t.relationTables[relation]
	return table, ok
}

// Aliases returns every alias used for table in this query, base included,
// in registration order.
func (t *Tree) Aliases(table string) []string {
	return slices.Clone(t.flat[table])
}

// Len returns the number of joined nodes.
func (t *Tree) Len() int {
	return len(t.nodes)
}
