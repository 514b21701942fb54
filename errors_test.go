package acedao

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabaseError(t *testing.T) {
	driverErr := errors.New("no such table: users")

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, NewDatabaseError("all", "SELECT 1", nil))
	})

	t.Run("wraps driver error", func(t *testing.T) {
		err := NewDatabaseError("all", "SELECT * FROM users", driverErr)

		assert.True(t, errors.Is(err, ErrDatabase))
		assert.True(t, errors.Is(err, driverErr))
		assert.Equal(t, "all: query error: no such table: users - SELECT * FROM users", err.Error())

		var dbErr *DatabaseError
		require.True(t, errors.As(err, &dbErr))
		assert.Equal(t, "SELECT * FROM users", dbErr.SQL)
	})

	t.Run("does not wrap twice", func(t *testing.T) {
		inner := NewDatabaseError("execute", "DELETE FROM users", driverErr)
		outer := NewDatabaseError("delete", "DELETE FROM users", fmt.Errorf("context: %w", inner))

		var dbErr *DatabaseError
		require.True(t, errors.As(outer, &dbErr))
		assert.Equal(t, "execute", dbErr.Op)
	})

	t.Run("message without op", func(t *testing.T) {
		err := &DatabaseError{SQL: "SELECT 1", Err: driverErr}
		assert.Equal(t, "query error: no such table: users - SELECT 1", err.Error())
	})
}
