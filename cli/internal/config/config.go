// Package config loads the acedao CLI configuration from .acedao.yaml,
// ACEDAO_* environment variables and .env files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/voilab/acedao"
)

// AppFs is the filesystem every CLI file access goes through.
var AppFs = afero.NewOsFs()

// FileName is the name of the config file searched for.
const FileName = ".acedao.yaml"

// Config holds the application configuration
type Config struct {
	SchemaPath string
	Driver     string
	DSN        string
	Mode       string
	Separator  string
	// User is recorded in the journal fields of auditing tables.
	User  string
	Debug bool
	// Version is a constraint on the CLI version, e.g. ">= 0.2, < 1.0".
	Version string
}

// Options returns the compiler options described by the config.
func (c *Config) Options() acedao.Options {
	return acedao.Options{
		Mode:      acedao.Mode(c.Mode),
		Separator: c.Separator,
		Dialect:   c.Driver,
	}
}

// LoadConfig loads configuration from various sources. An explicit path
// must exist; otherwise .acedao.yaml is looked up in the current
// directory, the home directory and ~/.config/acedao.
func LoadConfig(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetFs(AppFs)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(".acedao")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(home)
		v.AddConfigPath(filepath.Join(home, ".config", "acedao"))
	}

	v.SetEnvPrefix("ACEDAO")
	v.AutomaticEnv()

	v.SetDefault("schema", "schema.yaml")
	v.SetDefault("driver", acedao.MySQL)
	v.SetDefault("mode", string(acedao.Strict))
	v.SetDefault("separator", acedao.DefaultSeparator)
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{
		SchemaPath: v.GetString("schema"),
		Driver:     v.GetString("driver"),
		DSN:        v.GetString("dsn"),
		Mode:       v.GetString("mode"),
		Separator:  v.GetString("separator"),
		User:       v.GetString("user"),
		Debug:      v.GetBool("debug"),
		Version:    v.GetString("version"),
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	return cfg, nil
}

// loadEnvFiles exports .env and then .env.local. Variables already set in
// the environment win over .env; .env.local overrides both.
func loadEnvFiles() {
	for _, file := range []struct {
		name     string
		override bool
	}{
		{name: ".env"},
		{name: ".env.local", override: true},
	} {
		data, err := afero.ReadFile(AppFs, file.name)
		if err != nil {
			continue
		}
		vars, err := godotenv.Parse(bytes.NewReader(data))
		if err != nil {
			continue
		}
		for k, val := range vars {
			if _, set := os.LookupEnv(k); set && !file.override {
				continue
			}
			os.Setenv(k, val)
		}
	}
}

// SaveConfig writes cfg to path.
func SaveConfig(cfg *Config, path string) error {
	v := viper.New()
	v.SetFs(AppFs)

	v.Set("schema", cfg.SchemaPath)
	v.Set("driver", cfg.Driver)
	if cfg.DSN != "" {
		v.Set("dsn", cfg.DSN)
	}
	v.Set("mode", cfg.Mode)
	if cfg.Separator != "" && cfg.Separator != acedao.DefaultSeparator {
		v.Set("separator", cfg.Separator)
	}
	if cfg.User != "" {
		v.Set("user", cfg.User)
	}
	if cfg.Version != "" {
		v.Set("version", cfg.Version)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := AppFs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return v.WriteConfigAs(path)
}
