package commands

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/cli/internal/config"
)

const testSchema = `tables:
  users:
    default_fields: [name]
    allowed_fields: [name]
    where:
      id: "[users].id = :id"
      search: ["[users].name LIKE :q", "[users].name LIKE :q"]
    orderby:
      name: "[users].name :dir"
    join:
      posts:
        type: many
        on: "[posts].user_id = [parent].id"
  posts:
    default_fields: [title]
    allowed_fields: [title, user_id]
`

func setupFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	prev := config.AppFs
	fs := afero.NewMemMapFs()
	config.AppFs = fs
	t.Cleanup(func() { config.AppFs = prev })

	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0644))
	}
	return fs
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetFlags(rootCmd)
	t.Setenv("DATABASE_URL", "")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"-q"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func sqliteDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	for _, stmt := range []string{
		"CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)",
		"CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, user_id INTEGER, title TEXT)",
		"INSERT INTO users (name) VALUES ('ann'), ('bob')",
		"INSERT INTO posts (user_id, title) VALUES (1, 'hello')",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return path
}

func TestCompileCommand(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		args    []string
		want    []string
		wantErr error
	}{
		{
			name:  "select",
			query: "from: users u\nwhere: {id: 7}\n",
			want:  []string{"SELECT u.id AS u__id, u.name AS u__name FROM users u WHERE u.id = :id", ":id", "7"},
		},
		{
			name:  "postgres limit",
			query: "from: users\norderby: {name: desc}\nlimit: [5, 10]\n",
			args:  []string{"--driver", "postgres"},
			want:  []string{"ORDER BY users.name DESC LIMIT 10 OFFSET 5"},
		},
		{
			name:  "delete",
			query: "from: users u\nwhere: {id: 3}\n",
			args:  []string{"--delete"},
			want:  []string{"DELETE FROM users WHERE users.id = :id"},
		},
		{
			name:    "unknown filter",
			query:   "from: users\nwhere: {nope: 1}\n",
			wantErr: acedao.ErrUnknownFilter,
		},
		{
			name:  "lenient mode skips unknown sorts",
			query: "from: users\norderby: {nope: asc}\n",
			args:  []string{"--mode", "lenient"},
			want:  []string{"SELECT users.id AS users__id, users.name AS users__name FROM users\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupFs(t, map[string]string{"schema.yaml": testSchema, "q.yaml": tt.query})

			out, err := execute(t, append([]string{"compile", "q.yaml"}, tt.args...)...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestCompileMissingSchema(t *testing.T) {
	setupFs(t, map[string]string{"q.yaml": "from: users\n"})

	_, err := execute(t, "compile", "q.yaml", "--schema", "missing.yaml")
	assert.Error(t, err)
}

func TestSelectCommand(t *testing.T) {
	setupFs(t, map[string]string{
		"schema.yaml": testSchema,
		"q.yaml":      "from: users u\njoin: {posts p: ~}\norderby: {name: asc}\n",
	})
	db := sqliteDB(t)

	out, err := execute(t, "select", "q.yaml", "--driver", "sqlite", "--dsn", db)
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	assert.Equal(t, []map[string]any{
		{"id": float64(1), "name": "ann", "posts": []any{map[string]any{"id": float64(1), "title": "hello"}}},
		{"id": float64(2), "name": "bob"},
	}, records)

	out, err = execute(t, "select", "q.yaml", "--driver", "sqlite", "--dsn", db, "--format", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "ann")
	assert.Contains(t, out, "[1]")

	_, err = execute(t, "select", "q.yaml", "--driver", "sqlite")
	assert.Error(t, err)
}

func TestSaveAndDeleteCommands(t *testing.T) {
	setupFs(t, map[string]string{
		"schema.yaml": testSchema,
		"new.yaml":    "name: cid\n",
		"rename.yaml": "id: 3\nname: cyd\n",
		"bad.yaml":    "password: x\n",
		"q.yaml":      "from: users u\nwhere: {search: cy%}\n",
	})
	db := sqliteDB(t)
	conn := []string{"--driver", "sqlite", "--dsn", db}

	out, err := execute(t, append([]string{"save", "users", "new.yaml"}, conn...)...)
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)

	out, err = execute(t, append([]string{"save", "users", "rename.yaml"}, conn...)...)
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	_, err = execute(t, append([]string{"save", "users", "bad.yaml"}, conn...)...)
	assert.ErrorIs(t, err, acedao.ErrConfiguration)

	out, err = execute(t, append([]string{"delete", "q.yaml", "--yes"}, conn...)...)
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = execute(t, append([]string{"delete", "--table", "users", "--id", "2", "--yes"}, conn...)...)
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	_, err = execute(t, append([]string{"delete", "q.yaml", "--table", "users", "--id", "1", "--yes"}, conn...)...)
	assert.Error(t, err)
	_, err = execute(t, append([]string{"delete", "--table", "users", "--yes"}, conn...)...)
	assert.Error(t, err)
}

func TestTablesCommands(t *testing.T) {
	setupFs(t, map[string]string{"schema.yaml": testSchema})

	out, err := execute(t, "tables")
	require.NoError(t, err)
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "posts")

	out, err = execute(t, "tables", "describe", "users", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "# users\n")
	assert.Contains(t, out, "| search | `[users].name LIKE :q`, `[users].name LIKE :q` |")
	assert.Contains(t, out, "| posts | many | `[posts].user_id = [parent].id` | - |")

	_, err = execute(t, "tables", "describe", "nope")
	assert.ErrorIs(t, err, acedao.ErrUnknownDependency)
}

func TestValidateCommand(t *testing.T) {
	setupFs(t, map[string]string{"schema.yaml": testSchema})
	_, err := execute(t, "validate")
	assert.NoError(t, err)

	setupFs(t, map[string]string{"schema.yaml": `tables:
  users:
    where:
      team: "[teams].id = :id"
    join:
      groups: {}
`})
	_, err = execute(t, "validate")
	assert.EqualError(t, err, "schema has 2 problem(s)")
}

func TestInitCommand(t *testing.T) {
	fs := setupFs(t, nil)

	_, err := execute(t, "init", "--yes", "--driver", "sqlite", "--dsn", "app.db", "--schema", "db/schema.yaml")
	require.NoError(t, err)

	schema, err := afero.ReadFile(fs, "db/schema.yaml")
	require.NoError(t, err)
	assert.Equal(t, sampleSchema, string(schema))

	cfg, err := config.LoadConfig(config.FileName)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, "app.db", cfg.DSN)
	assert.Equal(t, "db/schema.yaml", cfg.SchemaPath)
}

func TestVersionCommand(t *testing.T) {
	setupFs(t, map[string]string{".acedao.yaml": "version: \">= 0.0.1\"\n"})

	out, err := execute(t, "version", "--config", ".acedao.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "acedao version")
	assert.Contains(t, out, `Satisfies ">= 0.0.1"`)

	setupFs(t, map[string]string{".acedao.yaml": "version: \">= 99.0\"\n"})
	_, err = execute(t, "version", "--config", ".acedao.yaml")
	assert.Error(t, err)
}
