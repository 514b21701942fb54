// Package acedao compiles declarative query configurations into parameterized
// SQL and hydrates the flat result rows back into nested records.
package acedao

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by compilation, execution and hydration.
var (
	// ErrConfiguration is returned for a malformed query configuration
	// (missing from, bad limit, duplicate alias, unknown column).
	ErrConfiguration = errors.New("invalid query configuration")

	// ErrUnknownDependency is returned when a table name has no descriptor.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrUnknownFilter is returned when a where, orderby or join filter is
	// not registered on the table.
	ErrUnknownFilter = errors.New("filter not found")

	// ErrAmbiguousAlias is returned when a table is joined more than once and
	// an order by fragment does not say which alias to use.
	ErrAmbiguousAlias = errors.New("ambiguous alias")

	// ErrParameterMismatch is returned when supplied values do not cover the
	// placeholders of a fragment.
	ErrParameterMismatch = errors.New("parameter mismatch")

	// ErrUnresolvableAlias is returned when a result column carries an alias
	// prefix the alias tree does not know.
	ErrUnresolvableAlias = errors.New("unresolvable alias")

	// ErrDatabase matches every *DatabaseError.
	ErrDatabase = errors.New("database error")
)

// DatabaseError wraps a failure of the database port together with the
// statement that caused it.
type DatabaseError struct {
	Op  string
	SQL string
	Err error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: query error: %v - %s", e.Op, e.Err, e.SQL)
	}
	return fmt.Sprintf("query error: %v - %s", e.Err, e.SQL)
}

// Unwrap returns the driver error.
func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrDatabase.
func (e *DatabaseError) Is(target error) bool {
	return target == ErrDatabase
}

// NewDatabaseError wraps err with the offending SQL. A nil err stays nil.
func NewDatabaseError(op, sql string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}
	return &DatabaseError{Op: op, SQL: sql, Err: err}
}
