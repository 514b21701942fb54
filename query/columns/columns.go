// Package columns resolves which fields a table occurrence selects.
package columns

import (
	"slices"

	"github.com/voilab/acedao/query/ast"
)

// PrimaryKey is always selected: hydration and fusion key records on it.
const PrimaryKey = "id"

// Resolve picks the fields to select from layered options, most specific
// layer first. The first layer with an explicit Select wins, together with
// the AddSelect fields of the layers scanned so far. Without any Select the
// result is the defaults plus every AddSelect, minus every Omit. The primary
// key is present exactly once in every result.
func Resolve(layers []ast.Fields, defaults []string) []string {
	var add, omit []string

	for _, layer := range layers {
		add = append(add, layer.AddSelect...)
		if layer.Select != nil {
			return withPrimaryKey(unique(append(slices.Clone(layer.Select), add...)))
		}
		omit = append(omit, layer.Omit...)
	}

	fields := make([]string, 0, len(defaults)+len(add))
	for _, f := range unique(append(slices.Clone(defaults), add...)) {
		if !slices.Contains(omit, f) {
			fields = append(fields, f)
		}
	}
	return withPrimaryKey(fields)
}

// Column is a field of an aliased table occurrence. Ref, when set, is how
// the occurrence is written in SQL; it differs from Alias for escaped tables
// used under their own name.
type Column struct {
	Alias string
	Field string
	Ref   string
}

// Qualified returns "ref.field", falling back to the alias.
func (c Column) Qualified() string {
	if c.Ref != "" {
		return c.Ref + "." + c.Field
	}
	return c.Alias + "." + c.Field
}

// As returns the select alias "alias<sep>field".
func (c Column) As(sep string) string {
	return c.Alias + sep + c.Field
}

// Aliased turns resolved fields into columns of alias.
func Aliased(alias string, fields []string) []Column {
	out := make([]Column, len(fields))
	for i, f := range fields {
		out[i] = Column{Alias: alias, Field: f}
	}
	return out
}

func withPrimaryKey(fields []string) []string {
	if slices.Contains(fields, PrimaryKey) {
		return fields
	}
	return append([]string{PrimaryKey}, fields...)
}

func unique(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
