// Package executor runs compiled statements against a database through
// sqlx: named ":param" placeholders are bound from a map and rebound to the
// driver's bindvar style.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/voilab/acedao"
	"github.com/voilab/acedao/query/sqlgen"
)

// Row is one flat result row keyed by column alias.
type Row = map[string]any

// Database is the port the query layer runs statements through. Params are
// keyed by ":name" exactly as the placeholders appear in SQL.
type Database interface {
	// Execute runs a statement and returns the new id for inserts, the
	// number of affected rows otherwise.
	Execute(ctx context.Context, query string, params map[string]any) (int64, error)
	// All returns every row.
	All(ctx context.Context, query string, params map[string]any) ([]Row, error)
	// One returns the first row, or nil when there is none.
	One(ctx context.Context, query string, params map[string]any) (Row, error)
}

// Tx is a Database bound to a transaction.
type Tx interface {
	Database
	Commit() error
	Rollback() error
}

// Transactor is a Database able to open transactions.
type Transactor interface {
	Database
	Begin(ctx context.Context) (Tx, error)
}

// Executor is the sqlx implementation of Transactor. It caches prepared
// statements per SQL text.
type Executor struct {
	db        *sqlx.DB
	dialect   string
	stmtCache map[string]*sqlx.Stmt
	cacheMu   sync.RWMutex
}

var _ Transactor = (*Executor)(nil)

// New wraps an open database handle. driverName selects the bindvar style
// and the dialect.
func New(db *sql.DB, driverName string) (*Executor, error) {
	dialect, err := acedao.ParseDialect(driverName)
	if err != nil {
		return nil, err
	}
	return &Executor{
		db:        sqlx.NewDb(db, driverName),
		dialect:   dialect,
		stmtCache: make(map[string]*sqlx.Stmt),
	}, nil
}

// Open opens a database with the named driver.
func Open(driverName, dsn string) (*Executor, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driverName, err)
	}
	return New(db, driverName)
}

// DB returns the underlying handle.
func (e *Executor) DB() *sqlx.DB {
	return e.db
}

// Dialect returns the SQL dialect of the driver.
func (e *Executor) Dialect() string {
	return e.dialect
}

// Ping verifies the connection.
func (e *Executor) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// Close releases cached statements and the database handle.
func (e *Executor) Close() error {
	e.ClearStmtCache()
	return e.db.Close()
}

// Execute implements Database.
func (e *Executor) Execute(ctx context.Context, query string, params map[string]any) (int64, error) {
	return e.runner().execute(ctx, query, params)
}

// All implements Database.
func (e *Executor) All(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	return e.runner().all(ctx, query, params)
}

// One implements Database.
func (e *Executor) One(ctx context.Context, query string, params map[string]any) (Row, error) {
	return e.runner().one(ctx, query, params)
}

func (e *Executor) runner() *runner {
	return &runner{
		binder:  e.db,
		dialect: e.dialect,
		prepare: func(ctx context.Context, query string) (*sqlx.Stmt, func(), error) {
			stmt, err := e.getCachedStmt(ctx, query)
			return stmt, func() {}, err
		},
	}
}

// getCachedStmt gets a cached prepared statement or creates a new one.
func (e *Executor) getCachedStmt(ctx context.Context, query string) (*sqlx.Stmt, error) {
	e.cacheMu.RLock()
	stmt, ok := e.stmtCache[query]
	e.cacheMu.RUnlock()

	if ok && stmt != nil {
		return stmt, nil
	}

	stmt, err := e.db.PreparexContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	e.cacheMu.Lock()
	if cached, ok := e.stmtCache[query]; ok {
		e.cacheMu.Unlock()
		stmt.Close()
		return cached, nil
	}
	e.stmtCache[query] = stmt
	e.cacheMu.Unlock()

	return stmt, nil
}

// ClearStmtCache closes and forgets every prepared statement.
func (e *Executor) ClearStmtCache() {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	for _, stmt := range e.stmtCache {
		stmt.Close()
	}
	e.stmtCache = make(map[string]*sqlx.Stmt)
}

// runner executes statements on a database or a transaction.
type runner struct {
	binder  interface{ Rebind(string) string }
	dialect string
	prepare func(ctx context.Context, query string) (*sqlx.Stmt, func(), error)
}

func (r *runner) execute(ctx context.Context, query string, params map[string]any) (int64, error) {
	q, args, err := r.bind(query, params)
	if err != nil {
		return 0, acedao.NewDatabaseError("execute", query, err)
	}

	insert := isInsert(q)
	if insert && r.dialect == acedao.Postgres {
		q += " RETURNING id"
	}

	stmt, done, err := r.prepare(ctx, q)
	if err != nil {
		return 0, acedao.NewDatabaseError("execute", query, err)
	}
	defer done()

	if insert && r.dialect == acedao.Postgres {
		var id int64
		if err := stmt.QueryRowxContext(ctx, args...).Scan(&id); err != nil {
			return 0, acedao.NewDatabaseError("execute", query, err)
		}
		return id, nil
	}

	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, acedao.NewDatabaseError("execute", query, err)
	}

	var n int64
	if insert {
		n, err = res.LastInsertId()
	} else {
		n, err = res.RowsAffected()
	}
	if err != nil {
		return 0, acedao.NewDatabaseError("execute", query, err)
	}
	return n, nil
}

func (r *runner) all(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	q, args, err := r.bind(query, params)
	if err != nil {
		return nil, acedao.NewDatabaseError("all", query, err)
	}
	stmt, done, err := r.prepare(ctx, q)
	if err != nil {
		return nil, acedao.NewDatabaseError("all", query, err)
	}
	defer done()

	rows, err := stmt.QueryxContext(ctx, args...)
	if err != nil {
		return nil, acedao.NewDatabaseError("all", query, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		row := make(Row)
		if err := rows.MapScan(row); err != nil {
			return nil, acedao.NewDatabaseError("all", query, err)
		}
		out = append(out, normalize(row))
	}
	if err := rows.Err(); err != nil {
		return nil, acedao.NewDatabaseError("all", query, err)
	}
	return out, nil
}

func (r *runner) one(ctx context.Context, query string, params map[string]any) (Row, error) {
	rows, err := r.all(ctx, query, params)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// bind turns ":name" placeholders into the driver's bindvars.
func (r *runner) bind(query string, params map[string]any) (string, []any, error) {
	frag, err := sqlgen.ParseFragment(query)
	if err != nil {
		return "", nil, err
	}
	if len(frag.Params()) == 0 {
		return r.binder.Rebind(query), nil, nil
	}

	arg := make(map[string]any, len(params))
	for k, v := range params {
		arg[strings.TrimPrefix(k, ":")] = v
	}
	q, args, err := sqlx.Named(frag.EscapeColons(), arg)
	if err != nil {
		return "", nil, err
	}
	return r.binder.Rebind(q), args, nil
}

func isInsert(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT")
}

// normalize converts driver byte slices to strings.
func normalize(row Row) Row {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row
}
