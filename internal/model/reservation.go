package model

import (
	"time"

	"github.com/iliyamo/table-reservation/internal/timeslot"
)

// Reservation binds one table to one customer for one canonical slot.
// Reservations are created only by the table allocator, never updated,
// and removed only by an administrative purge.  The (Slot, TableNumber)
// pair is unique across the store.
//
// Fields:
//	ID          – primary key identifier.
//	CustomerID  – customer who holds the table.
//	Slot        – canonical UTC slot (stored zone-less).
//	TableNumber – table index in [1, total tables].
//	Guests      – party size.
//	CreatedAt   – creation timestamp.
type Reservation struct {
	ID          uint64        // reservations.id
	CustomerID  uint64        // reservations.customer_id
	Slot        timeslot.Slot // reservations.time_slot
	TableNumber int           // reservations.table_number
	Guests      int           // reservations.guests
	CreatedAt   time.Time     // reservations.created_at
}
