package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voilab/acedao/cli/internal/ui"
)

var saveCmd = &cobra.Command{
	Use:   "save <table> <data-file>",
	Short: "Insert or update a row",
	Long: `Save the columns of a YAML (or JSON) mapping into a table. Without an
id, or with an empty one, the row is inserted and the new id printed.
Otherwise the row with that id is updated and the number of updated rows
printed. Auditing tables get their created_* or updated_* fields set.`,
	Args: cobra.ExactArgs(2),
	RunE: runSave,
}

func init() {
	rootCmd.AddCommand(saveCmd)
}

func runSave(cmd *cobra.Command, args []string) error {
	table := args[0]
	data, err := readData(args[1])
	if err != nil {
		return err
	}

	c, err := openClient()
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.Save(cmd.Context(), table, data)
	if err != nil {
		return err
	}

	if id := data["id"]; id != nil && id != "" {
		ui.PrintSuccess("Updated %d row(s) in %s", n, table)
	} else {
		ui.PrintSuccess("Inserted into %s", table)
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}
