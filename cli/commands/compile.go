package commands

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voilab/acedao/cli/internal/ui"
	"github.com/voilab/acedao/cli/internal/watch"
	"github.com/voilab/acedao/query"
	"github.com/voilab/acedao/query/compiler"
)

var compileCmd = &cobra.Command{
	Use:   "compile <query-file>",
	Short: "Compile a query file to SQL",
	Long: `Compile a YAML query configuration against the schema and print the
SQL together with its named parameters. Nothing is sent to the database.

With --watch the query is recompiled whenever the query or schema file
changes.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

var (
	compileDelete bool
	compileWatch  bool
)

func init() {
	compileCmd.Flags().BoolVar(&compileDelete, "delete", false, "compile a DELETE instead of a SELECT")
	compileCmd.Flags().BoolVarP(&compileWatch, "watch", "w", false, "recompile when the query or schema changes")

	rootCmd.AddCommand(compileCmd)
}

func runCompile(cmd *cobra.Command, args []string) error {
	if compileWatch {
		return runCompileWatch(cmd, args[0])
	}
	return compileFile(cmd, args[0])
}

func compileFile(cmd *cobra.Command, path string) error {
	comp, err := newCompiler()
	if err != nil {
		return err
	}
	q, err := readQuery(path)
	if err != nil {
		return err
	}

	// compiling never touches the database port
	run := query.New(comp, nil)
	var stmt *compiler.Statement
	if compileDelete {
		stmt, err = run.CompileDelete(q)
	} else {
		stmt, err = run.Compile(q)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, stmt.SQL)
	if len(stmt.Params) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	return ui.PrintTable(out, []string{"Parameter", "Value"}, paramRows(stmt.Params))
}

func paramRows(params map[string]any) [][]string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, fmt.Sprintf("%v", params[name])})
	}
	return rows
}

func runCompileWatch(cmd *cobra.Command, path string) error {
	ui.PrintHeader("acedao", "Watch Mode")

	if err := compileFile(cmd, path); err != nil {
		ui.PrintError("%v", err)
	}

	watcher, err := watch.NewWatcher([]string{path, cfg.SchemaPath}, func(file string) error {
		ui.PrintInfo("%s changed, recompiling...", file)
		return compileFile(cmd, path)
	}, watch.WithErrorHandler(func(err error) {
		ui.PrintError("%v", err)
	}))
	if err != nil {
		return err
	}
	defer watcher.Stop()
	watcher.Start()

	ui.PrintSuccess("Watching %s and %s for changes... (Press Ctrl+C to stop)", path, cfg.SchemaPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	ui.PrintInfo("Stopping watch mode...")
	return nil
}
