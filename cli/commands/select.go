package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/voilab/acedao/cli/internal/ui"
	"github.com/voilab/acedao/query/mapper"
)

var selectCmd = &cobra.Command{
	Use:   "select <query-file>",
	Short: "Run a query and print the hydrated records",
	Long: `Run a YAML query configuration and print the records rebuilt from
the joined rows. Relations are nested under their relation name.

Formats:
  json   nested records (default)
  table  one row per record; relations are summarized`,
	Args: cobra.ExactArgs(1),
	RunE: runSelect,
}

var selectFormat string

func init() {
	selectCmd.Flags().StringVarP(&selectFormat, "format", "f", "json", "output format: json or table")

	rootCmd.AddCommand(selectCmd)
}

func runSelect(cmd *cobra.Command, args []string) error {
	if selectFormat != "json" && selectFormat != "table" {
		return fmt.Errorf("unknown format %q", selectFormat)
	}
	q, err := readQuery(args[0])
	if err != nil {
		return err
	}

	c, err := openClient()
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Select(cmd.Context(), q)
	if err != nil {
		return err
	}
	return printRecords(cmd.OutOrStdout(), res.Records(), selectFormat)
}

func printRecords(w io.Writer, records []mapper.Record, format string) error {
	if format == "json" {
		if records == nil {
			records = []mapper.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	headers := recordColumns(records)
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = cell(rec[h])
		}
		rows = append(rows, row)
	}
	return ui.PrintTable(w, headers, rows)
}

// recordColumns returns the top-level keys of records, id first.
func recordColumns(records []mapper.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, rec := range records {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i] == "id" || cols[j] == "id" {
			return cols[i] == "id"
		}
		return cols[i] < cols[j]
	})
	return cols
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []mapper.Record:
		return fmt.Sprintf("[%d]", len(val))
	case mapper.Record:
		if id, ok := val.ID(); ok {
			return fmt.Sprintf("{id: %v}", id)
		}
		return "{}"
	}
	return fmt.Sprintf("%v", v)
}
