package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voilab/acedao/cli/internal/ui"
	"github.com/voilab/acedao/schema"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the tables of the schema",
	Args:  cobra.NoArgs,
	RunE:  runTables,
}

var tablesDescribeCmd = &cobra.Command{
	Use:   "describe <table>",
	Short: "Describe the fields, filters and joins of a table",
	Args:  cobra.ExactArgs(1),
	RunE:  runTablesDescribe,
}

var describeRaw bool

func init() {
	tablesDescribeCmd.Flags().BoolVar(&describeRaw, "raw", false, "print markdown without rendering it")

	tablesCmd.AddCommand(tablesDescribeCmd)
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}

	rows := make([][]string, 0)
	for _, name := range reg.Names() {
		desc, err := reg.Resolve(name)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			name,
			strings.Join(desc.DefaultFields(), ", "),
			fmt.Sprintf("%d", len(desc.Filters(schema.Where))),
			fmt.Sprintf("%d", len(desc.Filters(schema.OrderBy))),
			strings.Join(sortedKeys(desc.Joins()), ", "),
		})
	}
	return ui.PrintTable(cmd.OutOrStdout(), []string{"Table", "Default fields", "Where", "Order by", "Joins"}, rows)
}

func runTablesDescribe(cmd *cobra.Command, args []string) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	desc, err := reg.Resolve(args[0])
	if err != nil {
		return err
	}

	md := describeTable(desc)
	if describeRaw {
		_, err := fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	}
	return ui.PrintMarkdown(cmd.OutOrStdout(), md)
}

// describeTable renders a descriptor as markdown.
func describeTable(desc schema.Descriptor) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", desc.Name())
	fmt.Fprintf(&b, "- **Default fields:** %s\n", codeList(desc.DefaultFields()))
	fmt.Fprintf(&b, "- **Allowed fields:** %s\n", codeList(desc.AllowedFields()))
	fmt.Fprintf(&b, "- **Escaped name:** %t\n", desc.EscapeTableName())
	fmt.Fprintf(&b, "- **Auditing:** %t\n", desc.SupportsAuditing())

	for _, kind := range []schema.FilterKind{schema.Where, schema.OrderBy} {
		filters := desc.Filters(kind)
		if len(filters) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n| Filter | Fragments |\n|---|---|\n", kind)
		for _, name := range sortedKeys(filters) {
			fmt.Fprintf(&b, "| %s | %s |\n", name, codeList(filters[name]))
		}
	}

	joins := desc.Joins()
	if len(joins) > 0 {
		b.WriteString("\n## join\n\n| Table | Type | On | Fields |\n|---|---|---|---|\n")
		for _, name := range sortedKeys(joins) {
			jf := joins[name]
			kind := string(jf.Cardinality())
			if jf.Inner {
				kind += ", inner"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", name, kind, codeList(jf.On), codeList(jf.Select))
		}
	}
	return b.String()
}

func codeList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "`" + strings.ReplaceAll(item, "|", "\\|") + "`"
	}
	return strings.Join(quoted, ", ")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
