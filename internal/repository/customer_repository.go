package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/model"
)

// CustomerRepo is the customer directory: lookup by email, creation and
// contact updates.  Writes run inside the caller's transaction so that a
// customer created for a booking is rolled back with the booking.
type CustomerRepo struct{ db *sql.DB }

func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullablePhone(phone string) sql.NullString {
	phone = strings.TrimSpace(phone)
	return sql.NullString{String: phone, Valid: phone != ""}
}

const customerColumns = "id,name,email,phone,newsletter_opt_in,created_at"

func scanCustomer(row *sql.Row) (*model.Customer, error) {
	var (
		c     model.Customer
		phone sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &phone, &c.NewsletterOptIn, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if phone.Valid {
		p := phone.String
		c.Phone = &p
	}
	return &c, nil
}

// FindByEmailTx fetches a customer by normalized email.
func (r *CustomerRepo) FindByEmailTx(ctx context.Context, tx *sql.Tx, email string) (*model.Customer, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE email=? LIMIT 1",
		NormalizeEmail(email))
	return scanCustomer(row)
}

// GetByID fetches a customer by id.
func (r *CustomerRepo) GetByID(ctx context.Context, id uint64) (*model.Customer, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id=? LIMIT 1", id)
	return scanCustomer(row)
}

// CreateTx inserts a customer and returns it with its generated ID.
func (r *CustomerRepo) CreateTx(ctx context.Context, tx *sql.Tx, name, email, phone string, optIn bool) (*model.Customer, error) {
	email = NormalizeEmail(email)
	res, err := tx.ExecContext(ctx,
		"INSERT INTO customers (name, email, phone, newsletter_opt_in) VALUES (?,?,?,?)",
		strings.TrimSpace(name), email, nullablePhone(phone), optIn)
	if err != nil {
		if database.IsDuplicate(err) {
			return nil, ErrEmailExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return scanCustomer(tx.QueryRowContext(ctx,
		"SELECT "+customerColumns+" FROM customers WHERE id=?", id))
}

// UpdateContactTx overwrites name and phone only with non-blank values.
// Blank inputs keep what is on file.
func (r *CustomerRepo) UpdateContactTx(ctx context.Context, tx *sql.Tx, c *model.Customer, name, phone string) error {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)

	sets := make([]string, 0, 2)
	args := make([]interface{}, 0, 3)
	if name != "" && name != c.Name {
		sets = append(sets, "name=?")
		args = append(args, name)
	}
	if phone != "" && (c.Phone == nil || *c.Phone != phone) {
		sets = append(sets, "phone=?")
		args = append(args, phone)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, c.ID)
	if _, err := tx.ExecContext(ctx, "UPDATE customers SET "+strings.Join(sets, ",")+" WHERE id=?", args...); err != nil {
		return err
	}
	if name != "" {
		c.Name = name
	}
	if phone != "" {
		c.Phone = &phone
	}
	return nil
}

// SetNewsletterOptInTx marks the customer as subscribed.
func (r *CustomerRepo) SetNewsletterOptInTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, "UPDATE customers SET newsletter_opt_in=1 WHERE id=?", id)
	return err
}
