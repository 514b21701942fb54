// Package schema describes the tables a query can reach: their fields,
// their named filters and the joins they declare. Descriptors are looked up
// by table name through a Resolver.
package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/voilab/acedao/query/ast"
)

// FilterKind selects one of the fragment registries of a table.
type FilterKind string

const (
	Where   FilterKind = "where"
	OrderBy FilterKind = "orderby"
)

// Cardinality tells whether a relation yields one record or a list.
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// Descriptor is the capability a table exposes to the query compiler.
type Descriptor interface {
	// Name returns the table name.
	Name() string
	// DefaultFields returns the fields selected when a query names none.
	DefaultFields() []string
	// AllowedFields returns every field that may be referenced or written.
	AllowedFields() []string
	// EscapeTableName reports whether the table name must be quoted.
	EscapeTableName() bool
	// Filters returns the where or orderby fragments keyed by filter name.
	Filters(kind FilterKind) map[string][]string
	// Joins returns the join filters keyed by joined table name.
	Joins() map[string]JoinFilter
	// SupportsAuditing reports whether saves get journal fields injected.
	SupportsAuditing() bool
	// AuditFields returns created_* fields for inserts, updated_* for updates.
	AuditFields(update bool) map[string]any
}

// Resolver maps table names to descriptors.
type Resolver interface {
	Resolve(table string) (Descriptor, error)
}

// JoinFilter declares how a table joins another one.
type JoinFilter struct {
	On         Fragments   `yaml:"on"`
	Type       Cardinality `yaml:"type"`
	Inner      bool        `yaml:"inner"`
	ast.Fields `yaml:",inline"`
	Join       ast.Joins `yaml:"join"`
}

// Cardinality returns the declared type, one when unset.
func (j JoinFilter) Cardinality() Cardinality {
	if j.Type == "" {
		return One
	}
	return j.Type
}

// Fragments is a list of SQL fragments. A single string is accepted in YAML.
type Fragments []string

// UnmarshalYAML accepts a scalar or a sequence of strings.
func (f *Fragments) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
		*f = Fragments{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*f = list
		return nil
	default:
		return fmt.Errorf("line %d: expected a fragment or a list of fragments", node.Line)
	}
}
