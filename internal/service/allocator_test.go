package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/timeslot"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.EnsureSchema(context.Background(), db, database.SQLite))
	return db
}

func mustSlot(t *testing.T, raw string) timeslot.Slot {
	t.Helper()
	s, err := timeslot.Normalize(raw, 30)
	require.NoError(t, err)
	return s
}

// fakeStore lets tests script the store's answers.
type fakeStore struct {
	booked    []int
	pick      int
	pickErr   error
	createErr error
	created   []model.Reservation
}

func (f *fakeStore) BookedTablesTx(context.Context, *sql.Tx, timeslot.Slot) ([]int, error) {
	return f.booked, nil
}

func (f *fakeStore) PickFreeTableTx(context.Context, *sql.Tx, timeslot.Slot, int) (int, error) {
	return f.pick, f.pickErr
}

func (f *fakeStore) CreateTx(_ context.Context, _ *sql.Tx, res *model.Reservation) error {
	if f.createErr != nil {
		return f.createErr
	}
	res.ID = uint64(len(f.created) + 1)
	f.created = append(f.created, *res)
	return nil
}

func TestFreeTables(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, FreeTables(nil, 3))
	assert.Equal(t, []int{2}, FreeTables([]int{1, 3}, 3))
	assert.Equal(t, []int{1}, FreeTables([]int{2, 7, -1}, 2))
	assert.Empty(t, FreeTables([]int{1, 2}, 2))
	assert.Empty(t, FreeTables(nil, 0))
}

func TestParseStrategy(t *testing.T) {
	assert.Equal(t, SetDifference, ParseStrategy("set_difference"))
	assert.Equal(t, SingleStatement, ParseStrategy("single_statement"))
	assert.Equal(t, SingleStatement, ParseStrategy(""))
	assert.Equal(t, SingleStatement, ParseStrategy("bogus"))
}

func TestAllocateTx_InsertCollisionIsRaceLost(t *testing.T) {
	for _, strategy := range []Strategy{SingleStatement, SetDifference} {
		t.Run(string(strategy), func(t *testing.T) {
			store := &fakeStore{pick: 1, createErr: repository.ErrTableTaken}
			a := NewTableAllocator(store, strategy)

			_, err := a.AllocateTx(context.Background(), nil, mustSlot(t, "2024-01-01T18:00:00Z"), 2, 1, 2)
			assert.ErrorIs(t, err, ErrRaceLost)
		})
	}
}

func TestAllocateTx_NoFreeTableIsFullyBooked(t *testing.T) {
	slot := mustSlot(t, "2024-01-01T18:00:00Z")

	single := NewTableAllocator(&fakeStore{pickErr: repository.ErrNotFound}, SingleStatement)
	_, err := single.AllocateTx(context.Background(), nil, slot, 2, 1, 2)
	assert.ErrorIs(t, err, ErrFullyBooked)

	diff := NewTableAllocator(&fakeStore{booked: []int{1, 2}}, SetDifference)
	_, err = diff.AllocateTx(context.Background(), nil, slot, 2, 1, 2)
	assert.ErrorIs(t, err, ErrFullyBooked)

	_, err = diff.AllocateTx(context.Background(), nil, slot, 0, 1, 2)
	assert.ErrorIs(t, err, ErrFullyBooked)
}

func TestAllocateTx_StoreErrorIsNotContention(t *testing.T) {
	boom := errors.New("connection reset")
	a := NewTableAllocator(&fakeStore{pick: 1, createErr: boom}, SingleStatement)

	_, err := a.AllocateTx(context.Background(), nil, mustSlot(t, "2024-01-01T18:00:00Z"), 2, 1, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrRaceLost)
	assert.NotErrorIs(t, err, ErrFullyBooked)
}

func TestAllocateTx_SetDifferencePicksFromComplement(t *testing.T) {
	store := &fakeStore{booked: []int{1, 3, 4}}
	a := NewTableAllocator(store, SetDifference)
	a.pick = func(n int) int { return n - 1 }

	res, err := a.AllocateTx(context.Background(), nil, mustSlot(t, "2024-01-01T18:10:00Z"), 5, 9, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, res.TableNumber)
	assert.Equal(t, uint64(9), res.CustomerID)
	assert.Equal(t, 4, res.Guests)
	assert.Equal(t, "2024-01-01T18:00:00Z", res.Slot.String())
}

// fillSlot books every table for slot through the real store and checks the
// capacity bound: exactly total reservations, each table once.
func fillSlot(t *testing.T, strategy Strategy, total int) {
	t.Helper()
	ctx := context.Background()
	db := openTestDB(t)
	customers := repository.NewCustomerRepo(db)
	reservations := repository.NewReservationRepo(db, database.SQLite)
	a := NewTableAllocator(reservations, strategy)
	slot := mustSlot(t, "2024-03-02T19:00:00Z")

	seen := map[int]bool{}
	for i := 0; i < total+1; i++ {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		cust, err := customers.CreateTx(ctx, tx, "Guest", fmt.Sprintf("g%d@example.com", i), "", false)
		require.NoError(t, err)

		res, err := a.AllocateTx(ctx, tx, slot, total, cust.ID, 2)
		if i == total {
			assert.ErrorIs(t, err, ErrFullyBooked)
			require.NoError(t, tx.Rollback())
			break
		}
		require.NoError(t, err)
		require.NoError(t, tx.Commit())
		assert.GreaterOrEqual(t, res.TableNumber, 1)
		assert.LessOrEqual(t, res.TableNumber, total)
		assert.False(t, seen[res.TableNumber], "table %d allocated twice", res.TableNumber)
		seen[res.TableNumber] = true
	}

	n, err := reservations.CountBySlot(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, total, n)
}

func TestAllocateTx_CapacityBound(t *testing.T) {
	for _, strategy := range []Strategy{SingleStatement, SetDifference} {
		t.Run(string(strategy), func(t *testing.T) { fillSlot(t, strategy, 5) })
	}
}

func TestAllocateTx_SlotsAreIndependent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	customers := repository.NewCustomerRepo(db)
	a := NewTableAllocator(repository.NewReservationRepo(db, database.SQLite), SingleStatement)

	for _, raw := range []string{"2024-03-02T19:00:00Z", "2024-03-02T19:30:00Z"} {
		tx, err := db.BeginTx(ctx, nil)
		require.NoError(t, err)
		cust, err := customers.CreateTx(ctx, tx, "Guest", "slot-"+raw+"@example.com", "", false)
		require.NoError(t, err)
		res, err := a.AllocateTx(ctx, tx, mustSlot(t, raw), 1, cust.ID, 2)
		require.NoError(t, err)
		assert.Equal(t, 1, res.TableNumber)
		require.NoError(t, tx.Commit())
	}
}
