package builder

import (
	"fmt"
	"slices"
	"strings"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/internal/debug"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/sqlgen"
	"github.com/voilab/acedao/schema"
)

// DirectionParam is replaced by the resolved sort direction.
const DirectionParam = ":dir"

// SortDirection resolves a sort option to "asc" or "desc". An empty option
// is "asc". Anything else is an error in strict mode and "asc" otherwise.
func SortDirection(dir string, mode acedao.Mode) (string, error) {
	switch d := strings.ToLower(strings.TrimSpace(dir)); d {
	case "":
		return "asc", nil
	case "asc", "desc":
		return d, nil
	}

	if mode == acedao.Lenient {
		debug.Warn("invalid sort direction, using asc", "direction", dir)
		return "asc", nil
	}
	return "", fmt.Errorf("%w: invalid sort direction %q", acedao.ErrConfiguration, dir)
}

// AddSort appends an order by filter. Unknown filters are an error in strict
// mode and skipped otherwise.
func (c *Context) AddSort(s ast.Sort) error {
	target, name, qualified, err := c.scope(s.Name, c.Base)
	if err != nil {
		return err
	}
	desc, err := c.Descriptor(target.Table)
	if err != nil {
		return err
	}

	frags, ok := desc.Filters(schema.OrderBy)[name]
	if !ok {
		if c.opts.Strict() {
			return fmt.Errorf("%w: order by filter %q on table %q", acedao.ErrUnknownFilter, name, target.Table)
		}
		debug.Warn("skipping unknown order by filter", "table", target.Table, "filter", name)
		return nil
	}

	dir, err := SortDirection(s.Dir, c.opts.Mode)
	if err != nil {
		return err
	}

	for _, raw := range frags {
		frag, err := sqlgen.ParseFragment(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", acedao.ErrConfiguration, err)
		}
		for _, p := range frag.Params() {
			if p != DirectionParam {
				return fmt.Errorf("%w: order by filter %q only accepts %s, found %s",
					acedao.ErrParameterMismatch, name, DirectionParam, p)
			}
		}

		aliases := make(map[string]string)
		for _, table := range frag.TableRefs() {
			a, err := c.sortAlias(table, target, qualified, s.Map)
			if err != nil {
				return fmt.Errorf("order by %q: %w", s.Name, err)
			}
			aliases[table] = c.ref(ast.Target{Table: table, Alias: a})
		}

		out := frag.Substitute(aliases, c.ref(target)).ReplaceParam(DirectionParam, strings.ToUpper(dir))
		c.Parts.OrderBy = append(c.Parts.OrderBy, out.String())
	}
	return nil
}

// sortAlias picks the alias of [table] in an order by fragment.
func (c *Context) sortAlias(table string, target ast.Target, qualified bool, pinned map[string]string) (string, error) {
	if qualified && table == target.Table {
		return target.Alias, nil
	}

	aliases := c.Aliases.Aliases(table)
	if a, ok := pinned[table]; ok {
		if !slices.Contains(aliases, a) {
			return "", fmt.Errorf("%w: alias %q is not used for table %q", acedao.ErrConfiguration, a, table)
		}
		return a, nil
	}

	switch len(aliases) {
	case 0:
		return "", fmt.Errorf("%w: table %q is not part of the query", acedao.ErrConfiguration, table)
	case 1:
		return aliases[0], nil
	default:
		return "", fmt.Errorf("%w: table %q is joined as %s, map it to one alias",
			acedao.ErrAmbiguousAlias, table, strings.Join(aliases, ", "))
	}
}
