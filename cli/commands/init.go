package commands

import (
	"fmt"
	"path/filepath"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/cli/internal/config"
	"github.com/voilab/acedao/cli/internal/ui"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .acedao.yaml and a sample schema",
	Long: `Initialize an acedao project in the current directory.

This command will:
- Ask for the database driver, connection string and schema path
- Write .acedao.yaml
- Write a sample schema file unless one already exists`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var initYes bool

func init() {
	initCmd.Flags().BoolVarP(&initYes, "yes", "y", false, "accept the defaults without prompting")

	rootCmd.AddCommand(initCmd)
}

const sampleSchema = `tables:
  users:
    default_fields: [name, email]
    allowed_fields: [name, email]
    where:
      id: "[users].id = :id"
      search: ["[users].name LIKE :q", "[users].email LIKE :q"]
    orderby:
      name: "[users].name :dir"
    join:
      posts:
        type: many
        on: "[posts].user_id = [parent].id"
  posts:
    default_fields: [title]
    allowed_fields: [title, user_id]
    where:
      title: "[posts].title = :title"
`

func runInit(cmd *cobra.Command, args []string) error {
	ui.PrintHeader("acedao", "Initialize Project")

	answers := struct {
		Driver string
		DSN    string
		Schema string
	}{
		Driver: cfg.Driver,
		DSN:    cfg.DSN,
		Schema: cfg.SchemaPath,
	}

	if !initYes {
		questions := []*survey.Question{
			{
				Name: "driver",
				Prompt: &survey.Select{
					Message: "Database driver:",
					Options: []string{acedao.MySQL, acedao.Postgres, "sqlite"},
					Default: defaultDriver(cfg.Driver),
				},
			},
			{
				Name:   "dsn",
				Prompt: &survey.Input{Message: "Connection string:", Default: cfg.DSN},
			},
			{
				Name:     "schema",
				Prompt:   &survey.Input{Message: "Schema file:", Default: cfg.SchemaPath},
				Validate: survey.Required,
			},
		}
		if err := survey.Ask(questions, &answers); err != nil {
			return err
		}
	}

	exists, err := afero.Exists(config.AppFs, config.FileName)
	if err != nil {
		return err
	}
	if exists {
		ui.PrintWarning("%s already exists, overwriting", config.FileName)
	}

	out := &config.Config{
		SchemaPath: answers.Schema,
		Driver:     answers.Driver,
		DSN:        answers.DSN,
		Mode:       cfg.Mode,
		Separator:  cfg.Separator,
	}
	if err := config.SaveConfig(out, config.FileName); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.FileName, err)
	}
	ui.PrintSuccess("Created %s", config.FileName)

	exists, err = afero.Exists(config.AppFs, answers.Schema)
	if err != nil {
		return err
	}
	if exists {
		ui.PrintInfo("Schema file already exists: %s", answers.Schema)
	} else {
		if err := config.AppFs.MkdirAll(filepath.Dir(answers.Schema), 0755); err != nil {
			return err
		}
		if err := afero.WriteFile(config.AppFs, answers.Schema, []byte(sampleSchema), 0644); err != nil {
			return fmt.Errorf("failed to create schema file: %w", err)
		}
		ui.PrintSuccess("Created schema file: %s", answers.Schema)
	}

	ui.PrintSection("Next Steps")
	ui.PrintList([]string{
		"Describe your tables in " + answers.Schema,
		"Run: acedao validate",
		"Write a query file and run: acedao compile query.yaml",
	})
	return nil
}

func defaultDriver(driver string) string {
	switch d, _ := acedao.ParseDialect(driver); d {
	case acedao.Postgres:
		return acedao.Postgres
	case acedao.SQLite:
		return "sqlite"
	default:
		return acedao.MySQL
	}
}
