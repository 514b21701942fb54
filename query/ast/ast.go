// Package ast defines the declarative query configuration compiled by the
// query builder. A Config is an immutable input: nothing in the compiler
// writes to it.
package ast

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/voilab/acedao"
)

// OrFilter is the reserved filter name grouping alternatives.
const OrFilter = "or"

// Config describes one query: a base table, the fields to select, joins,
// where and order by filters and an optional limit.
type Config struct {
	From     string `yaml:"from"`
	Fields   `yaml:",inline"`
	Distinct bool    `yaml:"distinct"`
	Where    Filters `yaml:"where"`
	OrderBy  Sorts   `yaml:"orderby"`
	Join     Joins   `yaml:"join"`
	Limit    Limit   `yaml:"limit"`
}

// Fields is one layer of field selection options. A nil Select means "no
// explicit selection"; an empty non-nil Select selects the primary key only.
type Fields struct {
	Select    []string `yaml:"select"`
	AddSelect []string `yaml:"addselect"`
	Omit      []string `yaml:"omit"`
}

// Filter applies the named where filter with an optional value. The value is
// nil, a scalar, a slice (positional values) or a map (named values).
type Filter struct {
	Name  string
	Value any
	Or    []Filter
}

// Sort applies the named order by filter. Map pins a table to one of its
// aliases when the table is joined more than once.
type Sort struct {
	Name string
	Dir  string
	Map  map[string]string
}

// Join requests a join to Target ("table [alias]"). Name overrides the
// relation name used in hydrated records.
type Join struct {
	Target string `yaml:"-"`
	Name   string `yaml:"name"`
	Inner  bool   `yaml:"inner"`
	Fields `yaml:",inline"`
	On     Filters `yaml:"on"`
	Join   Joins   `yaml:"join"`
}

// Filters keeps where filters in declaration order.
type Filters []Filter

// Sorts keeps order by filters in declaration order.
type Sorts []Sort

// Joins keeps joins in declaration order.
type Joins []Join

// Limit is either [count] or [offset, count].
type Limit []int

// Where builds a filter.
func Where(name string, value any) Filter {
	return Filter{Name: name, Value: value}
}

// Or groups filters into a single disjunction.
func Or(filters ...Filter) Filter {
	return Filter{Name: OrFilter, Or: filters}
}

// Target is a table occurrence and the alias it is known by.
type Target struct {
	Table string
	Alias string
}

// String renders "table alias".
func (t Target) String() string {
	if t.Alias == "" || t.Alias == t.Table {
		return t.Table
	}
	return t.Table + " " + t.Alias
}

// ParseTarget splits "table", "table alias" or "table AS alias". Without an
// alias the table name doubles as the alias.
func ParseTarget(s string) (Target, error) {
	parts := strings.Fields(s)
	switch {
	case len(parts) == 1:
		return Target{Table: parts[0], Alias: parts[0]}, nil
	case len(parts) == 2:
		return Target{Table: parts[0], Alias: parts[1]}, nil
	case len(parts) == 3 && strings.EqualFold(parts[1], "as"):
		return Target{Table: parts[0], Alias: parts[2]}, nil
	default:
		return Target{}, fmt.Errorf("%w: cannot parse table reference %q", acedao.ErrConfiguration, s)
	}
}

// Parse decodes a YAML (or JSON) query configuration. Unknown top-level keys
// are rejected.
func Parse(data []byte) (*Config, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads a query configuration from r.
func Decode(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty query configuration", acedao.ErrConfiguration)
		}
		return nil, fmt.Errorf("%w: %v", acedao.ErrConfiguration, err)
	}
	return &cfg, nil
}

// UnmarshalYAML decodes a mapping of filter name to value. The "or" key takes
// a sequence of mappings (or a single mapping) of alternatives.
func (f *Filters) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: filters must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		name, value := node.Content[i].Value, node.Content[i+1]
		if name == OrFilter {
			alternatives, err := decodeAlternatives(value)
			if err != nil {
				return err
			}
			*f = append(*f, Or(alternatives...))
			continue
		}

		var v any
		if err := value.Decode(&v); err != nil {
			return fmt.Errorf("line %d: filter %q: %w", value.Line, name, err)
		}
		*f = append(*f, Filter{Name: name, Value: v})
	}
	return nil
}

func decodeAlternatives(node *yaml.Node) ([]Filter, error) {
	switch node.Kind {
	case yaml.MappingNode:
		var fs Filters
		if err := fs.UnmarshalYAML(node); err != nil {
			return nil, err
		}
		return fs, nil
	case yaml.SequenceNode:
		var out []Filter
		for _, item := range node.Content {
			var fs Filters
			if err := fs.UnmarshalYAML(item); err != nil {
				return nil, err
			}
			out = append(out, fs...)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("line %d: %q expects a list of filters", node.Line, OrFilter)
	}
}

// UnmarshalYAML decodes a mapping of sort name to a direction scalar, null,
// or a {dir, map} mapping.
func (s *Sorts) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: orderby must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		sort := Sort{Name: node.Content[i].Value}
		value := node.Content[i+1]

		switch {
		case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
		case value.Kind == yaml.ScalarNode:
			sort.Dir = value.Value
		case value.Kind == yaml.MappingNode:
			var opts struct {
				Dir string            `yaml:"dir"`
				Map map[string]string `yaml:"map"`
			}
			if err := value.Decode(&opts); err != nil {
				return fmt.Errorf("line %d: orderby %q: %w", value.Line, sort.Name, err)
			}
			sort.Dir, sort.Map = opts.Dir, opts.Map
		default:
			return fmt.Errorf("line %d: orderby %q has an invalid option", value.Line, sort.Name)
		}
		*s = append(*s, sort)
	}
	return nil
}

// UnmarshalYAML decodes a mapping of "table [alias]" to join options. A
// string option is shorthand for the relation name.
func (j *Joins) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: join must be a mapping", node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		target, value := node.Content[i].Value, node.Content[i+1]
		join := Join{}

		switch {
		case value.Kind == yaml.ScalarNode && value.Tag == "!!null":
		case value.Kind == yaml.ScalarNode:
			join.Name = value.Value
		case value.Kind == yaml.MappingNode:
			if err := value.Decode(&join); err != nil {
				return fmt.Errorf("line %d: join %q: %w", value.Line, target, err)
			}
		default:
			return fmt.Errorf("line %d: join %q has an invalid option", value.Line, target)
		}
		join.Target = target
		*j = append(*j, join)
	}
	return nil
}

// UnmarshalYAML accepts a scalar count or a sequence.
func (l *Limit) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
		var n int
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("line %d: limit: %w", node.Line, err)
		}
		*l = Limit{n}
	case yaml.SequenceNode:
		var ns []int
		if err := node.Decode(&ns); err != nil {
			return fmt.Errorf("line %d: limit: %w", node.Line, err)
		}
		*l = ns
	default:
		return fmt.Errorf("line %d: limit must be a number or a list", node.Line)
	}
	return nil
}
