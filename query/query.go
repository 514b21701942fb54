// Package query runs declarative query configurations: it compiles them,
// sends the SQL through a database port and hydrates the rows into nested
// records.
package query

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/internal/debug"
	"github.com/voilab/acedao/query/ast"
	"github.com/voilab/acedao/query/compiler"
	"github.com/voilab/acedao/query/executor"
	"github.com/voilab/acedao/query/mapper"
)

// Query is a per-call orchestrator. It is cheap to create and must not be
// shared between goroutines; the compiler and database it wraps can be.
type Query struct {
	compiler *compiler.Compiler
	db       executor.Database
	trace    string
	log      *slog.Logger
}

// New creates a query bound to a compiler and a database port.
func New(c *compiler.Compiler, db executor.Database) *Query {
	trace := uuid.NewString()
	return &Query{
		compiler: c,
		db:       db,
		trace:    trace,
		log:      debug.With("trace", trace),
	}
}

// Trace returns the identifier attached to this query's log lines.
func (q *Query) Trace() string {
	return q.trace
}

// Compile compiles a SELECT without running it.
func (q *Query) Compile(cfg *ast.Config) (*compiler.Statement, error) {
	stmt, err := q.compiler.Select(cfg)
	if err != nil {
		return nil, err
	}
	q.log.Debug("compiled select", "sql", stmt.SQL, "params", stmt.Params)
	return stmt, nil
}

// CompileDelete compiles a DELETE without running it.
func (q *Query) CompileDelete(cfg *ast.Config) (*compiler.Statement, error) {
	stmt, err := q.compiler.Delete(cfg)
	if err != nil {
		return nil, err
	}
	q.log.Debug("compiled delete", "sql", stmt.SQL, "params", stmt.Params)
	return stmt, nil
}

// Select compiles cfg, runs it and hydrates the rows.
func (q *Query) Select(ctx context.Context, cfg *ast.Config) (*mapper.Result, error) {
	stmt, err := q.Compile(cfg)
	if err != nil {
		return nil, err
	}

	rows, err := q.db.All(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, acedao.NewDatabaseError("select", stmt.SQL, err)
	}
	q.log.Debug("fetched rows", "count", len(rows))

	return mapper.Hydrate(rows, stmt.Aliases, stmt.Separator)
}

// One runs Select and returns the first record, or nil when nothing matched.
func (q *Query) One(ctx context.Context, cfg *ast.Config) (mapper.Record, error) {
	res, err := q.Select(ctx, cfg)
	if err != nil || res.Len() == 0 {
		return nil, err
	}
	return res.Records()[0], nil
}

// Delete compiles and runs a DELETE. It returns the number of deleted rows.
func (q *Query) Delete(ctx context.Context, cfg *ast.Config) (int64, error) {
	stmt, err := q.CompileDelete(cfg)
	if err != nil {
		return 0, err
	}
	return q.execute(ctx, "delete", stmt)
}

// DeleteByID deletes one row of table by primary key.
func (q *Query) DeleteByID(ctx context.Context, table string, id any) (int64, error) {
	stmt, err := q.compiler.DeleteByID(table, id)
	if err != nil {
		return 0, err
	}
	return q.execute(ctx, "delete", stmt)
}

// Save inserts data into table when it carries no id and updates the row
// otherwise. It returns the new id for inserts and the number of updated
// rows for updates.
func (q *Query) Save(ctx context.Context, table string, data map[string]any) (int64, error) {
	stmt, insert, err := q.compiler.Save(table, data)
	if err != nil {
		return 0, err
	}
	op := "update"
	if insert {
		op = "insert"
	}
	return q.execute(ctx, op, stmt)
}

func (q *Query) execute(ctx context.Context, op string, stmt *compiler.Statement) (int64, error) {
	q.log.Debug("executing", "op", op, "sql", stmt.SQL, "params", stmt.Params)
	n, err := q.db.Execute(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return 0, acedao.NewDatabaseError(op, stmt.SQL, err)
	}
	return n, nil
}
