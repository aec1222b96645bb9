package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/repository"
)

func TestSubscribe_CreatesWithDefaultName(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	customers := repository.NewCustomerRepo(db)
	svc := NewNewsletterService(db, customers)

	id, err := svc.Subscribe(ctx, "", "News@Example.com", "")
	require.NoError(t, err)

	c, err := customers.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, DefaultSubscriberName, c.Name)
	assert.Equal(t, "news@example.com", c.Email)
	assert.True(t, c.NewsletterOptIn)
	assert.Nil(t, c.Phone)
}

func TestSubscribe_ExistingCustomerKeepsName(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	customers := repository.NewCustomerRepo(db)
	svc := NewNewsletterService(db, customers)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	existing, err := customers.CreateTx(ctx, tx, "Grace", "grace@example.com", "555-0101", false)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	id, err := svc.Subscribe(ctx, " ", "grace@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, id)

	id, err = svc.Subscribe(ctx, "", "grace@example.com", "")
	require.NoError(t, err, "subscribing twice is idempotent")
	assert.Equal(t, existing.ID, id)

	c, err := customers.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Grace", c.Name)
	require.NotNil(t, c.Phone)
	assert.Equal(t, "555-0101", *c.Phone)
	assert.True(t, c.NewsletterOptIn)
}

func TestSubscribe_RejectsBadEmail(t *testing.T) {
	db := openTestDB(t)
	svc := NewNewsletterService(db, repository.NewCustomerRepo(db))

	_, err := svc.Subscribe(context.Background(), "x", "nope", "")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Subscribe(context.Background(), "x", "", "")
	assert.ErrorIs(t, err, ErrMissingFields)
}
