package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/table-reservation/internal/logger"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// DefaultSubscriberName is stored when a subscriber gives no name.
const DefaultSubscriberName = "Subscriber"

// NewsletterService opts customers into the newsletter, creating them when
// the email is unknown.
type NewsletterService struct {
	db        TxBeginner
	customers CustomerDirectory
}

func NewNewsletterService(db TxBeginner, customers CustomerDirectory) *NewsletterService {
	return &NewsletterService{db: db, customers: customers}
}

// Subscribe marks the customer owning email as opted in and returns its id.
// A new customer without a name is stored as DefaultSubscriberName; an
// existing one keeps its name unless a non-blank one is given.  Repeated
// calls are idempotent.  A concurrent create of the same email is
// resolved by retrying once against the row that won.
func (s *NewsletterService) Subscribe(ctx context.Context, name, email, phone string) (uint64, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0, &FieldsError{Fields: []string{"email"}}
	}
	if err := validate.Var(email, "email"); err != nil {
		return 0, ErrInvalidEmail
	}

	id, err := s.subscribeTx(ctx, name, email, phone)
	if errors.Is(err, repository.ErrEmailExists) {
		id, err = s.subscribeTx(ctx, name, email, phone)
	}
	if err != nil {
		logger.ErrorContext(ctx, "newsletter subscribe failed", "error", err)
		return 0, err
	}
	logger.InfoContext(ctx, "newsletter subscribed", "customer_id", id)
	return id, nil
}

func (s *NewsletterService) subscribeTx(ctx context.Context, name, email, phone string) (uint64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cust, err := upsertCustomerTx(ctx, s.customers, tx, name, DefaultSubscriberName, email, phone, true)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return cust.ID, nil
}
