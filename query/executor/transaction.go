package executor

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Transaction is a Tx backed by *sqlx.Tx. Statements are prepared on the
// transaction itself so they never wait for a second connection.
type Transaction struct {
	tx      *sqlx.Tx
	dialect string
}

var _ Tx = (*Transaction)(nil)

// Begin starts a transaction with the driver's default options.
func (e *Executor) Begin(ctx context.Context) (Tx, error) {
	return e.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with explicit isolation and read-only options.
func (e *Executor) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := e.db.BeginTxx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx, dialect: e.dialect}, nil
}

// Execute implements Database.
func (t *Transaction) Execute(ctx context.Context, query string, params map[string]any) (int64, error) {
	return t.runner().execute(ctx, query, params)
}

// All implements Database.
func (t *Transaction) All(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	return t.runner().all(ctx, query, params)
}

// One implements Database.
func (t *Transaction) One(ctx context.Context, query string, params map[string]any) (Row, error) {
	return t.runner().one(ctx, query, params)
}

// Commit commits the transaction.
func (t *Transaction) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction.
func (t *Transaction) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (t *Transaction) runner() *runner {
	return &runner{
		binder:  t.tx,
		dialect: t.dialect,
		prepare: func(ctx context.Context, query string) (*sqlx.Stmt, func(), error) {
			stmt, err := t.tx.PreparexContext(ctx, query)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to prepare statement: %w", err)
			}
			return stmt, func() { stmt.Close() }, nil
		},
	}
}
