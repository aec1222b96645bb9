package service

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"

	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/timeslot"
)

// Strategy selects how the allocator finds a free table.
type Strategy string

const (
	// SingleStatement asks the store for one random free table in a single
	// query, shrinking the read/write race window to one statement.
	SingleStatement Strategy = "single_statement"
	// SetDifference reads the booked set, computes the complement in
	// process and picks one at random.
	SetDifference Strategy = "set_difference"
)

// ParseStrategy maps a config value to a Strategy, defaulting to
// SingleStatement.
func ParseStrategy(s string) Strategy {
	if Strategy(s) == SetDifference {
		return SetDifference
	}
	return SingleStatement
}

// TableStore is the slice of the reservation store the allocator needs.
type TableStore interface {
	BookedTablesTx(ctx context.Context, tx *sql.Tx, slot timeslot.Slot) ([]int, error)
	PickFreeTableTx(ctx context.Context, tx *sql.Tx, slot timeslot.Slot, total int) (int, error)
	CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error
}

// TableAllocator claims one free table for a slot.  It holds no lock:
// the store's (time_slot, table_number) unique key is the only arbiter, so
// allocation stays correct across independent server processes.  Reading
// the free set first only makes a collision unlikely; a collision at insert
// time is still expected and reported as ErrRaceLost.
type TableAllocator struct {
	store    TableStore
	strategy Strategy
	pick     func(n int) int
}

// NewTableAllocator builds an allocator over store using strategy.
func NewTableAllocator(store TableStore, strategy Strategy) *TableAllocator {
	return &TableAllocator{store: store, strategy: strategy, pick: rand.Intn}
}

// Strategy reports the configured strategy.
func (a *TableAllocator) Strategy() Strategy { return a.strategy }

// AllocateTx picks a free table for slot among [1, totalTables] and inserts
// the reservation inside tx.  The reservation is confirmed only once the
// caller commits tx.  It never retries: ErrFullyBooked and ErrRaceLost are
// both returned to the caller, who owns any retry policy.
func (a *TableAllocator) AllocateTx(ctx context.Context, tx *sql.Tx, slot timeslot.Slot, totalTables int, customerID uint64, guests int) (*model.Reservation, error) {
	if totalTables < 1 {
		return nil, ErrFullyBooked
	}

	var (
		table int
		err   error
	)
	switch a.strategy {
	case SetDifference:
		table, err = a.pickFromComplement(ctx, tx, slot, totalTables)
	default:
		table, err = a.store.PickFreeTableTx(ctx, tx, slot, totalTables)
		if errors.Is(err, repository.ErrNotFound) {
			err = ErrFullyBooked
		}
	}
	if err != nil {
		return nil, err
	}

	res := &model.Reservation{
		CustomerID:  customerID,
		Slot:        slot,
		TableNumber: table,
		Guests:      guests,
	}
	if err := a.store.CreateTx(ctx, tx, res); err != nil {
		if errors.Is(err, repository.ErrTableTaken) {
			return nil, ErrRaceLost
		}
		return nil, err
	}
	return res, nil
}

func (a *TableAllocator) pickFromComplement(ctx context.Context, tx *sql.Tx, slot timeslot.Slot, total int) (int, error) {
	booked, err := a.store.BookedTablesTx(ctx, tx, slot)
	if err != nil {
		return 0, err
	}
	free := FreeTables(booked, total)
	if len(free) == 0 {
		return 0, ErrFullyBooked
	}
	return free[a.pick(len(free))], nil
}

// FreeTables returns [1, total] minus booked, in ascending order.  Booked
// values outside the range are ignored.
func FreeTables(booked []int, total int) []int {
	taken := make(map[int]struct{}, len(booked))
	for _, t := range booked {
		taken[t] = struct{}{}
	}
	free := make([]int, 0, total)
	for t := 1; t <= total; t++ {
		if _, ok := taken[t]; !ok {
			free = append(free, t)
		}
	}
	return free
}
