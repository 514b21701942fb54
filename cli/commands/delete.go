package commands

import (
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/voilab/acedao/cli/internal/ui"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [query-file]",
	Short: "Delete the rows matched by a query, or one row by id",
	Long: `Delete rows from the base table of a query configuration. Joins and
where filters narrow the deleted rows; selected fields, order by and limit
are ignored.

With --table and --id a single row is deleted by primary key instead.`,
	Example: `  acedao delete stale_sessions.yaml
  acedao delete --table users --id 42 --yes`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDelete,
}

var (
	deleteTable string
	deleteID    string
	deleteYes   bool
)

func init() {
	deleteCmd.Flags().StringVarP(&deleteTable, "table", "t", "", "table to delete from by id")
	deleteCmd.Flags().StringVar(&deleteID, "id", "", "primary key of the row to delete")
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	byID := deleteTable != "" || deleteID != ""
	switch {
	case byID && len(args) > 0:
		return errors.New("pass either a query file or --table and --id")
	case byID && (deleteTable == "" || deleteID == ""):
		return errors.New("--table and --id go together")
	case !byID && len(args) == 0:
		return errors.New("missing query file")
	}

	var (
		target = deleteTable + " #" + deleteID
		run    func() (int64, error)
	)

	c, err := openClient()
	if err != nil {
		return err
	}
	defer c.Close()

	if byID {
		run = func() (int64, error) {
			return c.DeleteByID(cmd.Context(), deleteTable, deleteID)
		}
	} else {
		q, err := readQuery(args[0])
		if err != nil {
			return err
		}
		stmt, err := c.Query().CompileDelete(q)
		if err != nil {
			return err
		}
		target = "the rows matched by " + args[0]
		ui.PrintInfo("%s", stmt.SQL)
		run = func() (int64, error) {
			return c.Delete(cmd.Context(), q)
		}
	}

	if !deleteYes {
		confirmed := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Delete %s?", target),
			Default: false,
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return err
		}
		if !confirmed {
			ui.PrintWarning("Aborted")
			return nil
		}
	}

	n, err := run()
	if err != nil {
		return err
	}
	ui.PrintSuccess("Deleted %d row(s)", n)
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}
