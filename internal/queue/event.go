// Package queue defines message payloads exchanged over the message broker
// and the consumer that drains them.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// ReservationConfirmedQueue is the durable queue carrying
// ReservationConfirmedEvent messages.
const ReservationConfirmedQueue = "reservation.confirmed"

// ReservationConfirmedEvent is published after a reservation commits.  It
// carries enough for downstream consumers to log or notify without querying
// the primary database.
type ReservationConfirmedEvent struct {
	EventID       string `json:"event_id"`
	ReservationID uint64 `json:"reservation_id"`
	CustomerID    uint64 `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	Slot          string `json:"slot"`
	TableNumber   int    `json:"table_number"`
	Guests        int    `json:"guests"`
	ConfirmedAt   string `json:"confirmed_at"`
}

// NewReservationConfirmedEvent stamps a fresh event id and confirmation time.
func NewReservationConfirmedEvent(reservationID, customerID uint64, email, slot string, table, guests int, at time.Time) ReservationConfirmedEvent {
	return ReservationConfirmedEvent{
		EventID:       uuid.NewString(),
		ReservationID: reservationID,
		CustomerID:    customerID,
		CustomerEmail: email,
		Slot:          slot,
		TableNumber:   table,
		Guests:        guests,
		ConfirmedAt:   at.UTC().Format(time.RFC3339),
	}
}
