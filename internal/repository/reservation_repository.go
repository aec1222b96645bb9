package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/timeslot"
)

// ReservationRepo provides access to the reservations table.  Slots are
// always bound in their zone-less UTC storage form so that equality on
// time_slot is exact in every dialect.
type ReservationRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB, dialect database.Dialect) *ReservationRepo {
	return &ReservationRepo{db: db, dialect: dialect}
}

// BookedTablesTx returns the table numbers already reserved for slot.
func (r *ReservationRepo) BookedTablesTx(ctx context.Context, tx *sql.Tx, slot timeslot.Slot) ([]int, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT table_number FROM reservations WHERE time_slot = ?`, slot.Storage())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tables []int
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		tables = append(tables, n)
	}
	return tables, rows.Err()
}

// PickFreeTableTx asks the store, in one statement, for a random table in
// [1, total] with no reservation for slot.  It returns ErrNotFound when
// every table is taken.
func (r *ReservationRepo) PickFreeTableTx(ctx context.Context, tx *sql.Tx, slot timeslot.Slot, total int) (int, error) {
	q := fmt.Sprintf(`WITH RECURSIVE candidate_tables (n) AS (
                          SELECT 1
                          UNION ALL
                          SELECT n + 1 FROM candidate_tables WHERE n < ?
                      )
                      SELECT n FROM candidate_tables
                      WHERE NOT EXISTS (
                          SELECT 1 FROM reservations r
                          WHERE r.time_slot = ? AND r.table_number = candidate_tables.n
                      )
                      ORDER BY %s
                      LIMIT 1`, r.dialect.RandomFunc())
	var n int
	if err := tx.QueryRowContext(ctx, q, total, slot.Storage()).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return n, nil
}

// CreateTx inserts a reservation within the caller's transaction and
// populates its ID and CreatedAt.  A (time_slot, table_number) collision is
// reported as ErrTableTaken.  The caller must commit or roll back.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	const q = `INSERT INTO reservations (customer_id, time_slot, table_number, guests) VALUES (?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q, res.CustomerID, res.Slot.Storage(), res.TableNumber, res.Guests)
	if err != nil {
		// A deadlock on the contested unique key is the same lost race as
		// a duplicate entry.
		if database.IsDuplicate(err) || database.IsContention(err) {
			return ErrTableTaken
		}
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	// Query back created_at populated by the column default
	const sel = `SELECT created_at FROM reservations WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, res.ID).Scan(&res.CreatedAt)
}

// CountBySlot returns the number of reservations held for slot.
func (r *ReservationRepo) CountBySlot(ctx context.Context, slot timeslot.Slot) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE time_slot = ?`, slot.Storage()).Scan(&n)
	return n, err
}

// CustomerSummary is the customer information exposed with a listed
// reservation.
type CustomerSummary struct {
	ID    uint64  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// ReservationRow is a reservation joined with its customer, as returned by
// ListByDay.
type ReservationRow struct {
	ID          uint64          `json:"id"`
	Slot        timeslot.Slot   `json:"slot"`
	TableNumber int             `json:"tableNumber"`
	Guests      int             `json:"guests"`
	CreatedAt   time.Time       `json:"createdAt"`
	Customer    CustomerSummary `json:"customer"`
}

// ListByDay returns one page of the reservations whose slot falls on the
// given UTC day, ordered by slot then table number, together with the total
// number of reservations that day.
func (r *ReservationRepo) ListByDay(ctx context.Context, day string, limit, offset int) ([]ReservationRow, int, error) {
	from, to, err := timeslot.DayBounds(day)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE time_slot >= ? AND time_slot < ?`,
		from, to).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows := make([]ReservationRow, 0)
	if total == 0 || offset >= total {
		return rows, total, nil
	}

	const q = `SELECT r.id, r.time_slot, r.table_number, r.guests, r.created_at,
                      c.id, c.name, c.email, c.phone
               FROM reservations r
               JOIN customers c ON c.id = r.customer_id
               WHERE r.time_slot >= ? AND r.time_slot < ?
               ORDER BY r.time_slot ASC, r.table_number ASC
               LIMIT ? OFFSET ?`
	rs, err := r.db.QueryContext(ctx, q, from, to, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rs.Close()
	for rs.Next() {
		var (
			row   ReservationRow
			slot  time.Time
			phone sql.NullString
		)
		if err := rs.Scan(&row.ID, &slot, &row.TableNumber, &row.Guests, &row.CreatedAt,
			&row.Customer.ID, &row.Customer.Name, &row.Customer.Email, &phone); err != nil {
			return nil, 0, err
		}
		row.Slot = timeslot.FromStored(slot)
		if phone.Valid {
			p := phone.String
			row.Customer.Phone = &p
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
