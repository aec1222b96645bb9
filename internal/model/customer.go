package model

import "time"

// Customer represents a row in the `customers` table.  Customers are
// created on first booking or newsletter sign-up and are identified by
// their (lower-cased) email address.
//
// Fields:
//	ID              – primary key identifier.
//	Name            – display name.
//	Email           – unique, normalized email address.
//	Phone           – optional contact phone.
//	NewsletterOptIn – whether the customer subscribed to the mailing list.
//	CreatedAt       – timestamp of creation.
type Customer struct {
	ID              uint64    // customers.id
	Name            string    // customers.name
	Email           string    // customers.email
	Phone           *string   // customers.phone (nullable)
	NewsletterOptIn bool      // customers.newsletter_opt_in
	CreatedAt       time.Time // customers.created_at
}
