package repository

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/timeslot"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.EnsureSchema(context.Background(), db, database.SQLite))
	// idempotent
	require.NoError(t, database.EnsureSchema(context.Background(), db, database.SQLite))
	return db
}

func withTx(t *testing.T, db *sql.DB, fn func(tx *sql.Tx)) {
	t.Helper()
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)
	fn(tx)
	require.NoError(t, tx.Commit())
}

func slotOf(t *testing.T, raw string) timeslot.Slot {
	t.Helper()
	s, err := timeslot.Parse(raw)
	require.NoError(t, err)
	return s
}

func TestCustomerRepo_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewCustomerRepo(db)

	withTx(t, db, func(tx *sql.Tx) {
		c, err := repo.CreateTx(ctx, tx, " Ada ", " ADA@example.com ", "", false)
		require.NoError(t, err)
		assert.NotZero(t, c.ID)
		assert.Equal(t, "Ada", c.Name)
		assert.Equal(t, "ada@example.com", c.Email)
		assert.Nil(t, c.Phone)
		assert.False(t, c.NewsletterOptIn)

		found, err := repo.FindByEmailTx(ctx, tx, "Ada@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, c.ID, found.ID)

		_, err = repo.FindByEmailTx(ctx, tx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = repo.CreateTx(ctx, tx, "Other", "ada@example.com", "", false)
		assert.ErrorIs(t, err, ErrEmailExists)
	})

	_, err := repo.GetByID(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCustomerRepo_UpdateContactNonBlankWins(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	repo := NewCustomerRepo(db)

	var id uint64
	withTx(t, db, func(tx *sql.Tx) {
		c, err := repo.CreateTx(ctx, tx, "Ada", "ada@example.com", "555-0100", false)
		require.NoError(t, err)
		id = c.ID

		require.NoError(t, repo.UpdateContactTx(ctx, tx, c, "", "  "))
		assert.Equal(t, "Ada", c.Name)

		require.NoError(t, repo.UpdateContactTx(ctx, tx, c, "Ada L", ""))
		assert.Equal(t, "Ada L", c.Name)
		require.NotNil(t, c.Phone)
		assert.Equal(t, "555-0100", *c.Phone)

		require.NoError(t, repo.SetNewsletterOptInTx(ctx, tx, c.ID))
	})

	c, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Ada L", c.Name)
	assert.Equal(t, "555-0100", *c.Phone)
	assert.True(t, c.NewsletterOptIn)
}

func TestReservationRepo_UniqueSlotTable(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	customers := NewCustomerRepo(db)
	repo := NewReservationRepo(db, database.SQLite)
	slot := slotOf(t, "2024-01-01T18:00:00Z")

	withTx(t, db, func(tx *sql.Tx) {
		c, err := customers.CreateTx(ctx, tx, "Ada", "ada@example.com", "", false)
		require.NoError(t, err)

		res := &model.Reservation{CustomerID: c.ID, Slot: slot, TableNumber: 3, Guests: 2}
		require.NoError(t, repo.CreateTx(ctx, tx, res))
		assert.NotZero(t, res.ID)
		assert.False(t, res.CreatedAt.IsZero())

		dup := &model.Reservation{CustomerID: c.ID, Slot: slot, TableNumber: 3, Guests: 4}
		assert.ErrorIs(t, repo.CreateTx(ctx, tx, dup), ErrTableTaken)

		other := &model.Reservation{CustomerID: c.ID, Slot: slotOf(t, "2024-01-01T18:30:00Z"), TableNumber: 3, Guests: 4}
		assert.NoError(t, repo.CreateTx(ctx, tx, other))

		booked, err := repo.BookedTablesTx(ctx, tx, slot)
		require.NoError(t, err)
		assert.Equal(t, []int{3}, booked)
	})

	n, err := repo.CountBySlot(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReservationRepo_PickFreeTable(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	customers := NewCustomerRepo(db)
	repo := NewReservationRepo(db, database.SQLite)
	slot := slotOf(t, "2024-01-01T18:00:00Z")

	withTx(t, db, func(tx *sql.Tx) {
		c, err := customers.CreateTx(ctx, tx, "Ada", "ada@example.com", "", false)
		require.NoError(t, err)
		for _, table := range []int{1, 2, 4} {
			require.NoError(t, repo.CreateTx(ctx, tx, &model.Reservation{CustomerID: c.ID, Slot: slot, TableNumber: table, Guests: 2}))
		}

		for i := 0; i < 20; i++ {
			n, err := repo.PickFreeTableTx(ctx, tx, slot, 4)
			require.NoError(t, err)
			assert.Equal(t, 3, n)
		}

		_, err = repo.PickFreeTableTx(ctx, tx, slot, 2)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestReservationRepo_ListByDay(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	customers := NewCustomerRepo(db)
	repo := NewReservationRepo(db, database.SQLite)

	withTx(t, db, func(tx *sql.Tx) {
		c, err := customers.CreateTx(ctx, tx, "Ada", "ada@example.com", "555-0100", false)
		require.NoError(t, err)
		for _, r := range []struct {
			raw   string
			table int
		}{
			{"2024-01-01T19:00:00Z", 1},
			{"2024-01-01T18:00:00Z", 2},
			{"2024-01-01T18:00:00Z", 1},
			{"2023-12-31T23:30:00Z", 1},
			{"2024-01-02T00:00:00Z", 1},
		} {
			require.NoError(t, repo.CreateTx(ctx, tx, &model.Reservation{CustomerID: c.ID, Slot: slotOf(t, r.raw), TableNumber: r.table, Guests: 2}))
		}
	})

	rows, total, err := repo.ListByDay(ctx, "2024-01-01", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01-01T18:00:00Z", rows[0].Slot.String())
	assert.Equal(t, 1, rows[0].TableNumber)
	assert.Equal(t, 2, rows[1].TableNumber)
	assert.Equal(t, "2024-01-01T19:00:00Z", rows[2].Slot.String())
	assert.Equal(t, "Ada", rows[0].Customer.Name)
	require.NotNil(t, rows[0].Customer.Phone)

	rows, total, err = repo.ListByDay(ctx, "2024-01-01", 10, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Empty(t, rows)

	_, _, err = repo.ListByDay(ctx, "garbage", 10, 0)
	assert.Error(t, err)
}
