// Package commands implements the acedao command-line tool.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/voilab/acedao/cli/internal/config"
	"github.com/voilab/acedao/cli/internal/ui"
	"github.com/voilab/acedao/cli/internal/version"
	"github.com/voilab/acedao/internal/debug"
)

var rootCmd = &cobra.Command{
	Use:   "acedao",
	Short: "Compile and run declarative SQL queries",
	Long: `acedao compiles YAML query configurations into parameterized SQL
against a schema of table descriptors, runs them and hydrates the joined
rows back into nested records.

Configuration is read from .acedao.yaml (current directory, home directory
or ~/.config/acedao), ACEDAO_* environment variables and .env files.
Flags win over both.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

var (
	cfgFile    string
	schemaPath string
	driver     string
	dsn        string
	mode       string
	debugMode  bool
	quiet      bool

	cfg *config.Config
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .acedao.yaml)")
	flags.StringVarP(&schemaPath, "schema", "s", "", "path to the schema file")
	flags.StringVar(&driver, "driver", "", "database driver: mysql, postgres or sqlite")
	flags.StringVar(&dsn, "dsn", "", "database connection string")
	flags.StringVar(&mode, "mode", "", "strict or lenient handling of unknown sorts")
	flags.BoolVar(&debugMode, "debug", false, "log compiled SQL and database calls")
	flags.BoolVarP(&quiet, "quiet", "q", false, "print results only")

	rootCmd.Version = version.Get().String()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("schema") {
		loaded.SchemaPath = schemaPath
	}
	if flags.Changed("driver") {
		loaded.Driver = driver
	}
	if flags.Changed("dsn") {
		loaded.DSN = dsn
	}
	if flags.Changed("mode") {
		loaded.Mode = mode
	}
	if flags.Changed("debug") {
		loaded.Debug = debugMode
	}

	cfg = loaded
	ui.Quiet = quiet
	debug.Init(cfg.Debug)
	debug.Debug("configuration loaded", "schema", cfg.SchemaPath, "driver", cfg.Driver, "mode", cfg.Mode)

	return version.Check(cfg.Version)
}

// Execute is the main entry point for the CLI
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("%v", err)
		return err
	}
	return nil
}
