// Package service holds the reservation use cases: admission, validation,
// customer upsert and table allocation, composed into one transaction per
// booking.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/iliyamo/table-reservation/internal/logger"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/queue"
	"github.com/iliyamo/table-reservation/internal/ratelimit"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/timeslot"
)

var validate = validator.New()

// TxBeginner opens transactions.  *sql.DB satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// CustomerDirectory is the customer store as seen by the services.
type CustomerDirectory interface {
	FindByEmailTx(ctx context.Context, tx *sql.Tx, email string) (*model.Customer, error)
	CreateTx(ctx context.Context, tx *sql.Tx, name, email, phone string, optIn bool) (*model.Customer, error)
	UpdateContactTx(ctx context.Context, tx *sql.Tx, c *model.Customer, name, phone string) error
	SetNewsletterOptInTx(ctx context.Context, tx *sql.Tx, id uint64) error
}

// ReservationQuery is the read side of the reservation store.
type ReservationQuery interface {
	CountBySlot(ctx context.Context, slot timeslot.Slot) (int, error)
	ListByDay(ctx context.Context, day string, limit, offset int) ([]repository.ReservationRow, int, error)
}

// BookingConfig carries the restaurant's fixed parameters.
type BookingConfig struct {
	SlotMinutes int
	TotalTables int
	MaxGuests   int

	// RequireFuture rejects requests whose time is not after now.
	RequireFuture bool
	// EnforceHours rejects slots outside opening hours.
	EnforceHours bool
}

// BookingRequest is the raw input of one booking attempt.  Guests is nil
// when the caller did not send it.
type BookingRequest struct {
	Client string
	Time   string
	Guests *int
	Name   string
	Email  string
	Phone  string

	// Malformed is set by the transport when the payload could not be
	// decoded.  Book returns it right after admission.
	Malformed error
}

// Booking is a confirmed reservation.
type Booking struct {
	ReservationID uint64
	CustomerID    uint64
	TableNumber   int
	Guests        int
	Slot          timeslot.Slot
}

// Availability is a point-in-time count for one slot.  It may be stale by
// the time the caller acts on it.
type Availability struct {
	Slot        timeslot.Slot
	TotalTables int
	Booked      int
	Available   int
}

// ReservationPage is one page of a day's reservations.
type ReservationPage struct {
	Page         int
	PageSize     int
	Total        int
	Reservations []repository.ReservationRow
}

// BookingOption customises a BookingService.
type BookingOption func(*BookingService)

// WithClock overrides the time source used by the booking policy.
func WithClock(now func() time.Time) BookingOption {
	return func(s *BookingService) { s.now = now }
}

// WithPublisher sets where reservation.confirmed events go.
func WithPublisher(p Publisher) BookingOption {
	return func(s *BookingService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithAllocatorGate caps the process-wide rate of allocation attempts,
// independent of the per-client limiter.
func WithAllocatorGate(l *rate.Limiter) BookingOption {
	return func(s *BookingService) { s.gate = l }
}

// BookingService orchestrates a booking: rate check, validation, customer
// upsert and table allocation.  The upsert and the table claim share one
// transaction, so a rejected booking leaves no customer behind.
type BookingService struct {
	db           TxBeginner
	customers    CustomerDirectory
	reservations ReservationQuery
	allocator    *TableAllocator
	limiter      ratelimit.Limiter
	publisher    Publisher
	gate         *rate.Limiter
	cfg          BookingConfig
	now          func() time.Time
}

func NewBookingService(db TxBeginner, customers CustomerDirectory, reservations ReservationQuery, allocator *TableAllocator, limiter ratelimit.Limiter, cfg BookingConfig, opts ...BookingOption) *BookingService {
	if limiter == nil {
		limiter = ratelimit.Disabled{}
	}
	if cfg.SlotMinutes < 1 {
		cfg.SlotMinutes = 30
	}
	s := &BookingService{
		db:           db,
		customers:    customers,
		reservations: reservations,
		allocator:    allocator,
		limiter:      limiter,
		publisher:    NopPublisher{},
		cfg:          cfg,
		now:          time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Config returns the restaurant parameters the service runs with.
func (s *BookingService) Config() BookingConfig { return s.cfg }

// Book runs one booking attempt end to end.  Checks happen in a fixed order
// (admission, payload, required fields, time, guests, policy) and the first failure
// is returned.  Nothing is written unless every check passes.  ErrRaceLost
// and ErrFullyBooked are returned as is; Book never retries.
func (s *BookingService) Book(ctx context.Context, req BookingRequest) (*Booking, error) {
	if d := s.limiter.Take(ctx, req.Client); !d.Allowed {
		logger.DebugContext(ctx, "booking rejected: rate limited", "retry_after", d.RetryAfter.String())
		return nil, &RateLimitedError{RetryAfter: d.RetryAfter}
	}
	if req.Malformed != nil {
		return nil, req.Malformed
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	var missing []string
	if strings.TrimSpace(req.Time) == "" {
		missing = append(missing, "time")
	}
	if req.Guests == nil {
		missing = append(missing, "guests")
	}
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return nil, &FieldsError{Fields: missing}
	}

	requested, err := timeslot.ParseTimestamp(req.Time)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	slot := timeslot.Floor(requested, s.cfg.SlotMinutes)

	guests := *req.Guests
	if guests < 1 || guests > s.cfg.MaxGuests {
		return nil, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidGuests, s.cfg.MaxGuests)
	}
	if err := validate.Var(email, "email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if err := s.checkPolicy(requested, slot); err != nil {
		return nil, err
	}
	if s.gate != nil && !s.gate.Allow() {
		logger.WarnContext(ctx, "booking rejected: allocator gate saturated")
		return nil, &RateLimitedError{RetryAfter: time.Second}
	}

	booking, err := s.bookTx(ctx, slot, guests, name, email, req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, ErrFullyBooked), errors.Is(err, ErrRaceLost):
			logger.InfoContext(ctx, "booking rejected", "slot", slot.String(), "reason", err.Error())
		default:
			logger.ErrorContext(ctx, "booking failed", "slot", slot.String(), "error", err)
		}
		return nil, err
	}
	logger.InfoContext(ctx, "reservation confirmed",
		"reservation_id", booking.ReservationID, "slot", slot.String(), "table", booking.TableNumber)

	ev := queue.NewReservationConfirmedEvent(booking.ReservationID, booking.CustomerID,
		repository.NormalizeEmail(email), slot.String(), booking.TableNumber, guests, s.now())
	if err := s.publisher.PublishReservationConfirmed(ctx, ev); err != nil {
		logger.WarnContext(ctx, "reservation.confirmed publish failed", "reservation_id", booking.ReservationID, "error", err)
	}
	return booking, nil
}

func (s *BookingService) bookTx(ctx context.Context, slot timeslot.Slot, guests int, name, email, phone string) (*Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cust, err := s.upsertCustomerTx(ctx, tx, name, email, phone, false)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrRaceLost
		}
		return nil, err
	}

	res, err := s.allocator.AllocateTx(ctx, tx, slot, s.cfg.TotalTables, cust.ID, guests)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	return &Booking{
		ReservationID: res.ID,
		CustomerID:    cust.ID,
		TableNumber:   res.TableNumber,
		Guests:        res.Guests,
		Slot:          res.Slot,
	}, nil
}

// upsertCustomerTx finds the customer by email or creates one.  An existing
// customer's name and phone are only overwritten by non-blank input.
func (s *BookingService) upsertCustomerTx(ctx context.Context, tx *sql.Tx, name, email, phone string, optIn bool) (*model.Customer, error) {
	return upsertCustomerTx(ctx, s.customers, tx, name, "", email, phone, optIn)
}

// upsertCustomerTx uses fallbackName for a new customer when name is blank.
func upsertCustomerTx(ctx context.Context, customers CustomerDirectory, tx *sql.Tx, name, fallbackName, email, phone string, optIn bool) (*model.Customer, error) {
	cust, err := customers.FindByEmailTx(ctx, tx, email)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		createName := name
		if strings.TrimSpace(createName) == "" {
			createName = fallbackName
		}
		return customers.CreateTx(ctx, tx, createName, email, phone, optIn)
	case err != nil:
		return nil, err
	}
	if err := customers.UpdateContactTx(ctx, tx, cust, name, phone); err != nil {
		return nil, err
	}
	if optIn && !cust.NewsletterOptIn {
		if err := customers.SetNewsletterOptInTx(ctx, tx, cust.ID); err != nil {
			return nil, err
		}
		cust.NewsletterOptIn = true
	}
	return cust, nil
}

// Opening hours in UTC, indexed by weekday: first and last bookable hour.
var openingHours = [7][2]int{
	time.Sunday:    {17, 20},
	time.Monday:    {17, 22},
	time.Tuesday:   {17, 22},
	time.Wednesday: {17, 22},
	time.Thursday:  {17, 22},
	time.Friday:    {17, 22},
	time.Saturday:  {17, 22},
}

// WithinOpeningHours reports whether slot starts during opening hours.
func WithinOpeningHours(slot timeslot.Slot) bool {
	t := slot.Time()
	h := openingHours[t.Weekday()]
	return t.Hour() >= h[0] && t.Hour() <= h[1]
}

func (s *BookingService) checkPolicy(requested time.Time, slot timeslot.Slot) error {
	if s.cfg.RequireFuture && !requested.After(s.now()) {
		return fmt.Errorf("%w: must be in the future", ErrInvalidTime)
	}
	if s.cfg.EnforceHours && !WithinOpeningHours(slot) {
		return fmt.Errorf("%w: outside opening hours", ErrInvalidTime)
	}
	return nil
}

// CheckAvailability reports how many tables remain free for the slot that
// raw falls in.  The count is not a reservation.
func (s *BookingService) CheckAvailability(ctx context.Context, raw string) (*Availability, error) {
	slot, err := timeslot.Normalize(raw, s.cfg.SlotMinutes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTime, err)
	}
	booked, err := s.reservations.CountBySlot(ctx, slot)
	if err != nil {
		return nil, err
	}
	available := s.cfg.TotalTables - booked
	if available < 0 {
		available = 0
	}
	return &Availability{Slot: slot, TotalTables: s.cfg.TotalTables, Booked: booked, Available: available}, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListReservations returns one page of the reservations on day (YYYY-MM-DD,
// UTC).  Page is clamped to >= 1 and pageSize to [1, 100], zero meaning the
// default of 20.
func (s *BookingService) ListReservations(ctx context.Context, day string, page, pageSize int) (*ReservationPage, error) {
	if _, err := time.Parse(timeslot.DayLayout, day); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, day)
	}
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize == 0:
		pageSize = defaultPageSize
	case pageSize < 1:
		pageSize = 1
	case pageSize > maxPageSize:
		pageSize = maxPageSize
	}
	rows, total, err := s.reservations.ListByDay(ctx, day, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	return &ReservationPage{Page: page, PageSize: pageSize, Total: total, Reservations: rows}, nil
}
