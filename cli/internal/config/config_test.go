package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voilab/acedao"
)

func useMemFs(t *testing.T) afero.Fs {
	t.Helper()

	prev := AppFs
	AppFs = afero.NewMemMapFs()
	t.Cleanup(func() { AppFs = prev })
	return AppFs
}

func TestLoadConfigFile(t *testing.T) {
	fs := useMemFs(t)
	require.NoError(t, afero.WriteFile(fs, "/project/.acedao.yaml", []byte(`
schema: db/schema.yaml
driver: postgres
dsn: postgres://localhost/app
mode: lenient
user: alice
version: ">= 0.1"
`), 0644))

	cfg, err := LoadConfig("/project/.acedao.yaml")
	require.NoError(t, err)

	assert.Equal(t, &Config{
		SchemaPath: "db/schema.yaml",
		Driver:     "postgres",
		DSN:        "postgres://localhost/app",
		Mode:       "lenient",
		Separator:  acedao.DefaultSeparator,
		User:       "alice",
		Version:    ">= 0.1",
	}, cfg)
	assert.Equal(t, acedao.Options{Mode: acedao.Lenient, Separator: "__", Dialect: "postgres"}, cfg.Options())
}

func TestLoadConfigDefaults(t *testing.T) {
	useMemFs(t)
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "schema.yaml", cfg.SchemaPath)
	assert.Equal(t, acedao.MySQL, cfg.Driver)
	assert.Equal(t, string(acedao.Strict), cfg.Mode)
	assert.Empty(t, cfg.DSN)
	assert.False(t, cfg.Debug)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	useMemFs(t)

	_, err := LoadConfig("/nope/.acedao.yaml")
	assert.Error(t, err)
}

func TestLoadConfigEnvironment(t *testing.T) {
	fs := useMemFs(t)
	t.Setenv("ACEDAO_DRIVER", "sqlite")
	t.Setenv("ACEDAO_DEBUG", "true")
	t.Setenv("DATABASE_URL", "from-env")
	t.Setenv("ACEDAO_USER", "")

	require.NoError(t, afero.WriteFile(fs, ".env", []byte("DATABASE_URL=from-dotenv\nACEDAO_USER=carl\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, ".env.local", []byte("ACEDAO_USER=bob\n"), 0644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Driver)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "bob", cfg.User)
	// variables already set win over .env
	assert.Equal(t, "from-env", cfg.DSN)
}

func TestSaveConfig(t *testing.T) {
	fs := useMemFs(t)

	in := &Config{
		SchemaPath: "schema.yaml",
		Driver:     "sqlite",
		DSN:        "file:app.db",
		Mode:       "strict",
		Separator:  acedao.DefaultSeparator,
	}
	require.NoError(t, SaveConfig(in, "/home/me/.config/acedao/.acedao.yaml"))

	exists, err := afero.Exists(fs, "/home/me/.config/acedao/.acedao.yaml")
	require.NoError(t, err)
	require.True(t, exists)

	out, err := LoadConfig("/home/me/.config/acedao/.acedao.yaml")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
