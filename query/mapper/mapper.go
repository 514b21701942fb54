// Package mapper rebuilds nested records from the flat rows of a joined
// SELECT and fuses the rows that belong to the same base record.
package mapper

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/query/alias"
	"github.com/voilab/acedao/query/columns"
	"github.com/voilab/acedao/schema"
)

// Record is one hydrated entity. Relation fields hold a Record (one) or a
// []Record (many).
type Record map[string]any

// ID returns the primary key of the record.
func (r Record) ID() (any, bool) {
	id, ok := r[columns.PrimaryKey]
	return id, ok && id != nil
}

// Result holds hydrated records in order of first appearance.
type Result struct {
	records []Record
	byID    map[string]int
}

// Records returns the records in order of first appearance.
func (r *Result) Records() []Record {
	return r.records
}

// Len returns the number of records.
func (r *Result) Len() int {
	return len(r.records)
}

// ByID returns the record with the given primary key.
func (r *Result) ByID(id any) (Record, bool) {
	i, ok := r.byID[idKey(id)]
	if !ok {
		return nil, false
	}
	return r.records[i], true
}

// Map returns the records keyed by primary key. Records without an id are
// left out.
func (r *Result) Map() map[string]Record {
	out := make(map[string]Record, len(r.byID))
	for k, i := range r.byID {
		out[k] = r.records[i]
	}
	return out
}

// Hydrate splits every column on sep into alias and field, nests relation
// columns under their relation path, applies cardinality and fuses rows
// sharing a base id.
func Hydrate(rows []map[string]any, tree *alias.Tree, sep string) (*Result, error) {
	res := &Result{byID: make(map[string]int)}
	_, baseAlias := tree.Base()

	for _, row := range rows {
		record, err := hydrateRow(row, tree, baseAlias, sep)
		if err != nil {
			return nil, err
		}
		applyCardinality(record, tree, baseAlias)

		id, ok := record.ID()
		if !ok {
			res.records = append(res.records, record)
			continue
		}
		key := idKey(id)
		if i, seen := res.byID[key]; seen {
			Fuse(res.records[i], record)
			continue
		}
		res.byID[key] = len(res.records)
		res.records = append(res.records, record)
	}
	return res, nil
}

type column struct {
	path  []string
	field string
	value any
}

func hydrateRow(row map[string]any, tree *alias.Tree, baseAlias, sep string) (Record, error) {
	record := make(Record)
	var relations []column
	excluded := make(map[string]bool)

	for name, value := range row {
		prefix, field, found := strings.Cut(name, sep)
		if !found || prefix == baseAlias {
			if !found {
				field = name
			}
			record[field] = value
			continue
		}

		path, ok := tree.Path(prefix)
		if !ok {
			return nil, fmt.Errorf("%w: column %q", acedao.ErrUnresolvableAlias, name)
		}
		if field == columns.PrimaryKey && value == nil {
			excluded[pathKey(path)] = true
			continue
		}
		relations = append(relations, column{path: path, field: field, value: value})
	}

	for _, col := range relations {
		if isExcluded(col.path, excluded) {
			continue
		}
		nested := record
		for _, rel := range col.path {
			child, ok := nested[rel].(Record)
			if !ok {
				child = make(Record)
				nested[rel] = child
			}
			nested = child
		}
		nested[col.field] = col.value
	}
	return record, nil
}

// applyCardinality wraps the relations registered as many into single
// element lists, innermost first.
func applyCardinality(record Record, tree *alias.Tree, parentAlias string) {
	for _, node := range tree.Children(parentAlias) {
		child, ok := record[node.Relation].(Record)
		if !ok {
			continue
		}
		applyCardinality(child, tree, node.Alias)
		if node.Cardinality == schema.Many {
			record[node.Relation] = []Record{child}
		}
	}
}

// Fuse merges src into dst. Identical values are left alone, lists of
// records are merged by member id (first match wins, unknown ids are
// appended) and nested records are merged field by field. Scalars already
// in dst are kept.
func Fuse(dst, src Record) {
	for key, sv := range src {
		dv, ok := dst[key]
		if !ok {
			dst[key] = sv
			continue
		}

		switch d := dv.(type) {
		case []Record:
			if s, ok := sv.([]Record); ok {
				dst[key] = fuseList(d, s)
			}
		case Record:
			if s, ok := sv.(Record); ok && !reflect.DeepEqual(d, s) {
				Fuse(d, s)
			}
		}
	}
}

func fuseList(dst, src []Record) []Record {
	for _, s := range src {
		id, ok := s.ID()
		if !ok {
			dst = append(dst, s)
			continue
		}
		match := -1
		for i, d := range dst {
			if did, ok := d.ID(); ok && idKey(did) == idKey(id) {
				match = i
				break
			}
		}
		if match < 0 {
			dst = append(dst, s)
			continue
		}
		Fuse(dst[match], s)
	}
	return dst
}

func isExcluded(path []string, excluded map[string]bool) bool {
	for i := 1; i <= len(path); i++ {
		if excluded[pathKey(path[:i])] {
			return true
		}
	}
	return false
}

func pathKey(path []string) string {
	return strings.Join(path, "\x00")
}

func idKey(id any) string {
	if b, ok := id.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(id)
}
