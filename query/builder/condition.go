package builder

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/sqlgen"
	"github.com/voilab/acedao/schema"
)

// AddWhere builds a where filter against the base table and appends it to
// the WHERE clause.
func (c *Context) AddWhere(f ast.Filter) error {
	sql, err := c.BuildCondition(f, c.Base, "AND")
	if err != nil {
		return err
	}
	if sql != "" {
		c.Parts.Where = append(c.Parts.Where, sql)
	}
	return nil
}

// BuildCondition renders a where filter. Undotted names apply to scope;
// "alias.name" applies to the table behind alias. The fragments of a filter
// are joined with connector and their placeholders bound from f.Value into
// c.Params.
func (c *Context) BuildCondition(f ast.Filter, scope ast.Target, connector string) (string, error) {
	if f.Name == ast.OrFilter {
		return c.buildOr(f, scope, connector)
	}

	target, name, _, err := c.scope(f.Name, scope)
	if err != nil {
		return "", err
	}
	desc, err := c.Descriptor(target.Table)
	if err != nil {
		return "", err
	}
	frags, ok := desc.Filters(schema.Where)[name]
	if !ok {
		return "", fmt.Errorf("%w: where filter %q on table %q", acedao.ErrUnknownFilter, name, target.Table)
	}

	substituted := make([]string, 0, len(frags))
	for _, raw := range frags {
		frag, err := sqlgen.ParseFragment(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %v", acedao.ErrConfiguration, err)
		}
		ref := c.ref(target)
		substituted = append(substituted, frag.Substitute(map[string]string{target.Table: ref}, ref).String())
	}

	sql := strings.Join(substituted, " "+connector+" ")
	if len(substituted) > 1 {
		sql = "(" + sql + ")"
	}
	frag, err := sqlgen.ParseFragment(sql)
	if err != nil {
		return "", fmt.Errorf("%w: %v", acedao.ErrConfiguration, err)
	}
	return c.bind(frag, f.Value, fmt.Sprintf("%s.%s", target.Table, name))
}

func (c *Context) buildOr(f ast.Filter, scope ast.Target, connector string) (string, error) {
	if len(f.Or) == 0 {
		return "", fmt.Errorf("%w: %q filter without alternatives", acedao.ErrConfiguration, ast.OrFilter)
	}

	var alternatives []string
	for _, alt := range f.Or {
		sql, err := c.BuildCondition(alt, scope, connector)
		if err != nil {
			return "", err
		}
		if sql != "" {
			alternatives = append(alternatives, sql)
		}
	}
	return "(" + strings.Join(alternatives, " OR ") + ")", nil
}

// bind resolves the placeholders of frag from value and records the
// parameters. Names already bound by an earlier filter are renamed.
func (c *Context) bind(frag *sqlgen.Fragment, value any, filter string) (string, error) {
	placeholders := frag.Params()
	if len(placeholders) == 0 {
		return frag.String(), nil
	}

	if ref, ok := c.columnReference(value); ok && len(placeholders) == 1 {
		out, _ := frag.ReplaceFirstParam(ref)
		return out.String(), nil
	}

	var bindings map[string]any
	if list, ok := asList(value); ok && len(placeholders) == 1 && frag.InList(placeholders[0]) {
		bindings = map[string]any{placeholders[0]: list}
	} else {
		var err error
		if bindings, err = mapParameters(placeholders, value); err != nil {
			return "", fmt.Errorf("filter %s: %w", filter, err)
		}
	}

	for _, p := range placeholders {
		v := bindings[p]
		if list, ok := asList(v); ok && frag.InList(p) {
			names := make([]string, len(list))
			for i, item := range list {
				names[i] = c.paramName(p + "_" + strconv.Itoa(i))
				c.Params[names[i]] = item
			}
			frag = frag.ExpandList(p, names)
			continue
		}

		name := c.paramName(p)
		if name != p {
			frag = frag.ReplaceParam(p, name)
		}
		c.Params[name] = v
	}
	return frag.String(), nil
}

// paramName returns name, or name_N when name is already bound.
func (c *Context) paramName(name string) string {
	if _, taken := c.Params[name]; !taken {
		return name
	}
	for n := 2; ; n++ {
		candidate := name + "_" + strconv.Itoa(n)
		if _, taken := c.Params[candidate]; !taken {
			return candidate
		}
	}
}

// columnReference turns "alias.field" into a column of the query when the
// alias is known and the field is allowed on its table.
func (c *Context) columnReference(value any) (string, bool) {
	s, ok := value.(string)
	if !ok || strings.Count(s, ".") != 1 {
		return "", false
	}
	aliasName, field, _ := strings.Cut(s, ".")
	target, ok := c.resolveAlias(aliasName)
	if !ok {
		return "", false
	}
	desc, err := c.Descriptor(target.Table)
	if err != nil || !slices.Contains(desc.AllowedFields(), field) {
		return "", false
	}
	return c.ref(target) + "." + field, true
}

// MapFilterParametersNames pairs the placeholders of a fragment with the
// supplied values. Positional values (a slice, or a single scalar) are
// assigned in order of first appearance; surplus values are dropped. Named
// values (a map, keys with or without the leading colon) must name exactly
// the placeholders of the fragment.
func MapFilterParametersNames(fragment string, value any) (map[string]any, error) {
	frag, err := sqlgen.ParseFragment(fragment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", acedao.ErrConfiguration, err)
	}
	return mapParameters(frag.Params(), value)
}

func mapParameters(placeholders []string, value any) (map[string]any, error) {
	out := make(map[string]any, len(placeholders))
	if len(placeholders) == 0 {
		return out, nil
	}

	if named, ok := asNamed(value); ok {
		want := slices.Clone(placeholders)
		sort.Strings(want)
		got := make([]string, 0, len(named))
		for k := range named {
			got = append(got, k)
		}
		sort.Strings(got)

		if !slices.Equal(want, got) {
			return nil, fmt.Errorf("%w: placeholders [%s] do not match values [%s]",
				acedao.ErrParameterMismatch, strings.Join(want, ", "), strings.Join(got, ", "))
		}
		for i := range want {
			out[want[i]] = named[got[i]]
		}
		return out, nil
	}

	values, ok := asList(value)
	if !ok {
		values = []any{value}
		if value == nil {
			values = nil
		}
	}
	if len(values) < len(placeholders) {
		return nil, fmt.Errorf("%w: placeholders [%s] need %d values, got %d",
			acedao.ErrParameterMismatch, strings.Join(placeholders, ", "), len(placeholders), len(values))
	}
	for i, p := range placeholders {
		out[p] = values[i]
	}
	return out, nil
}

// asList returns the elements of a slice or array value. Strings and byte
// slices are scalars.
func asList(value any) ([]any, bool) {
	switch v := value.(type) {
	case nil, string, []byte:
		return nil, false
	case []any:
		return v, true
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// asNamed returns a string-keyed map with every key prefixed by a colon.
func asNamed(value any) (map[string]any, bool) {
	if value == nil {
		return nil, false
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}

	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().String()
		if !strings.HasPrefix(key, ":") {
			key = ":" + key
		}
		out[key] = iter.Value().Interface()
	}
	return out, true
}
