package commands

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/voilab/acedao/cli/internal/config"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/compiler"
	"github.com/voilab/acedao/runtime/client"
	"github.com/voilab/acedao/schema"
)

// loadRegistry reads the configured schema file.
func loadRegistry() (*schema.Registry, error) {
	var opts []schema.RegistryOption
	if cfg.User != "" {
		user := cfg.User
		opts = append(opts, schema.WithJournalUser(func() any { return user }))
	}
	reg := schema.NewRegistry(opts...)
	if err := reg.LoadFile(config.AppFs, cfg.SchemaPath); err != nil {
		return nil, err
	}
	return reg, nil
}

// newCompiler compiles against the configured schema without a database.
func newCompiler() (*compiler.Compiler, error) {
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	return compiler.New(reg, cfg.Options())
}

// openClient connects to the configured database.
func openClient() (*client.Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("no database configured: set dsn in %s, ACEDAO_DSN, DATABASE_URL or --dsn", config.FileName)
	}
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}

	options := []client.Option{
		client.WithRegistry(reg),
		client.WithMode(cfg.Options().Mode),
		client.WithSeparator(cfg.Separator),
	}
	if cfg.Debug {
		options = append(options,
			client.WithMiddleware(client.LoggingMiddleware()),
			client.WithExtension(client.LoggingExtension()),
		)
	}
	return client.Open(cfg.Driver, cfg.DSN, options...)
}

// readQuery decodes a query configuration file.
func readQuery(path string) (*ast.Config, error) {
	f, err := config.AppFs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open query %s: %w", path, err)
	}
	defer f.Close()

	q, err := ast.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

// readData decodes a YAML (or JSON) mapping of column to value.
func readData(path string) (map[string]any, error) {
	f, err := config.AppFs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data %s: %w", path, err)
	}
	defer f.Close()

	var data map[string]any
	if err := yaml.NewDecoder(f).Decode(&data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: no column to save", path)
	}
	return data, nil
}
