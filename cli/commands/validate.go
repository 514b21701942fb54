package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voilab/acedao/cli/internal/ui"
	"github.com/voilab/acedao/query/builder"
	"github.com/voilab/acedao/query/sqlgen"
	"github.com/voilab/acedao/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the schema file",
	Long: `Validate the schema file for syntax and reference errors.

This command will:
- Parse the schema file
- Lex every where, orderby and join fragment
- Check that [table] references and joins name registered tables
- Display a summary`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	ui.PrintHeader("acedao", "Validate Schema")

	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	problems := validateRegistry(reg)
	if len(problems) > 0 {
		ui.PrintError("Schema validation failed:")
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  • %s\n", p)
		}
		return fmt.Errorf("schema has %d problem(s)", len(problems))
	}

	absPath, _ := filepath.Abs(cfg.SchemaPath)
	ui.PrintSuccess("Schema is valid: %s", absPath)

	ui.PrintSection("Tables")
	for _, name := range reg.Names() {
		desc, _ := reg.Resolve(name)
		ui.PrintInfo("%s (%d where, %d orderby, %d joins)", name,
			len(desc.Filters(schema.Where)), len(desc.Filters(schema.OrderBy)), len(desc.Joins()))
	}
	return nil
}

// validateRegistry returns one message per broken fragment or reference.
func validateRegistry(reg *schema.Registry) []string {
	var problems []string
	known := make(map[string]bool)
	for _, name := range reg.Names() {
		known[name] = true
	}

	check := func(table, where, raw string) {
		frag, err := sqlgen.ParseFragment(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s %s: %v", table, where, err))
			return
		}
		for _, ref := range frag.TableRefs() {
			if known[ref] || ref == builder.ParentToken {
				continue
			}
			problems = append(problems, fmt.Sprintf("%s %s: unknown table [%s]", table, where, ref))
		}
	}

	for _, name := range reg.Names() {
		desc, err := reg.Resolve(name)
		if err != nil {
			problems = append(problems, err.Error())
			continue
		}
		for _, kind := range []schema.FilterKind{schema.Where, schema.OrderBy} {
			filters := desc.Filters(kind)
			for _, filter := range sortedKeys(filters) {
				for _, raw := range filters[filter] {
					check(name, fmt.Sprintf("%s %q", kind, filter), raw)
				}
			}
		}
		joins := desc.Joins()
		for _, target := range sortedKeys(joins) {
			if !known[target] {
				problems = append(problems, fmt.Sprintf("%s join %q: unknown table", name, target))
				continue
			}
			for _, raw := range joins[target].On {
				check(name, fmt.Sprintf("join %q", target), raw)
			}
		}
	}
	return problems
}
