package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDuplicate(t *testing.T) {
	assert.False(t, IsDuplicate(nil))
	assert.False(t, IsDuplicate(errors.New("boom")))
	assert.True(t, IsDuplicate(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}))
	assert.True(t, IsDuplicate(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, IsDuplicate(&mysql.MySQLError{Number: 1452}))
}

func TestIsDuplicate_SQLite(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, EnsureSchema(ctx, db, SQLite))

	_, err = db.ExecContext(ctx, `INSERT INTO customers (name, email) VALUES ('a', 'a@example.com')`)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, `INSERT INTO customers (name, email) VALUES ('b', 'a@example.com')`)
	require.Error(t, err)
	assert.True(t, IsDuplicate(err))

	// foreign keys are enforced
	_, err = db.ExecContext(ctx, `INSERT INTO reservations (customer_id, time_slot, table_number, guests) VALUES (999, '2024-01-01 18:00:00', 1, 2)`)
	require.Error(t, err)
	assert.False(t, IsDuplicate(err))
}

func TestDialect_RandomFunc(t *testing.T) {
	assert.Equal(t, "RAND()", MySQL.RandomFunc())
	assert.Equal(t, "RANDOM()", SQLite.RandomFunc())
}

func TestIsContention(t *testing.T) {
	assert.False(t, IsContention(nil))
	assert.False(t, IsContention(errors.New("boom")))
	assert.True(t, IsContention(&mysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"}))
	assert.True(t, IsContention(fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1205})))
	assert.False(t, IsContention(&mysql.MySQLError{Number: 1062}))
	assert.True(t, IsContention(sqlite3.Error{Code: sqlite3.ErrBusy}))
	assert.False(t, IsContention(sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}))
}
