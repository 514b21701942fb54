package builder

import (
	"fmt"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/columns"
	"github.com/voilab/acedao/query/sqlgen"
)

// ParentToken stands for the parent alias in join filter ON fragments.
const ParentToken = "parent"

// Join compiles a join under parent: it registers the alias, selects the
// joined fields, emits the JOIN clause when it has predicates and recurses
// into the requested and default sub joins.
func (c *Context) Join(j ast.Join, parent ast.Target) error {
	target, err := ast.ParseTarget(j.Target)
	if err != nil {
		return err
	}

	parentDesc, err := c.Descriptor(parent.Table)
	if err != nil {
		return err
	}
	jf, ok := parentDesc.Joins()[target.Table]
	if !ok {
		return fmt.Errorf("%w: table %q declares no join to %q", acedao.ErrUnknownFilter, parent.Table, target.Table)
	}
	if c.baseNames[target.Alias] || c.Aliases.Has(target.Alias) {
		return fmt.Errorf("%w: alias %q is used twice", acedao.ErrConfiguration, target.Alias)
	}
	relation := relationName(j, target)
	if other, taken := c.Aliases.Child(parent.Alias, relation); taken {
		return fmt.Errorf("%w: joins %q and %q both fill relation %q, give one of them a name",
			acedao.ErrConfiguration, other.Alias, target.Alias, relation)
	}
	joinedDesc, err := c.Descriptor(target.Table)
	if err != nil {
		return err
	}

	if !c.Aliases.Register(parent.Alias, target.Alias, target.Table, parentDesc.Joins(), j.Name) {
		return fmt.Errorf("%w: table %q declares no join to %q", acedao.ErrUnknownFilter, parent.Table, target.Table)
	}

	c.Select(target, columns.Resolve([]ast.Fields{j.Fields, jf.Fields}, joinedDesc.DefaultFields()))

	parentRef, targetRef := c.ref(parent), c.ref(target)
	aliases := map[string]string{ParentToken: parentRef}
	aliases[parent.Table] = parentRef
	aliases[target.Table] = targetRef

	var on []string
	for _, raw := range jf.On {
		frag, err := sqlgen.ParseFragment(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", acedao.ErrConfiguration, err)
		}
		on = append(on, frag.Substitute(aliases, targetRef).String())
	}
	for _, f := range j.On {
		sql, err := c.BuildCondition(f, target, "AND")
		if err != nil {
			return err
		}
		if sql != "" {
			on = append(on, sql)
		}
	}

	if len(on) > 0 {
		kind := "LEFT"
		if j.Inner || jf.Inner {
			kind = "INNER"
		}
		c.Parts.Joins = append(c.Parts.Joins, sqlgen.Join{
			Type:  kind,
			Table: c.gen.TableName(target.Table, joinedDesc.EscapeTableName()),
			Alias: targetRef,
			On:    on,
		})
	}

	requested := make(map[string]bool, len(j.Join))
	for _, sub := range j.Join {
		if t, err := ast.ParseTarget(sub.Target); err == nil {
			requested[t.Alias] = true
		}
		if err := c.Join(sub, target); err != nil {
			return err
		}
	}
	for _, sub := range jf.Join {
		t, err := ast.ParseTarget(sub.Target)
		if err != nil {
			return err
		}
		if _, taken := c.Aliases.Child(target.Alias, relationName(sub, t)); requested[t.Alias] || taken {
			continue
		}
		if err := c.Join(sub, target); err != nil {
			return err
		}
	}
	return nil
}

// relationName is the key a join hydrates into: its name, or its table.
func relationName(j ast.Join, target ast.Target) string {
	if j.Name != "" {
		return j.Name
	}
	return target.Table
}
