package database

import (
	"context"
	"testing"

	"tabble/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	assert.Error(t, err)
}

func TestPaymentJournal(t *testing.T) {
	store, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.RecordPaymentAttempt(ctx, &models.PaymentAttempt{BatchID: "b1", OrderID: 1, TableNumber: 4, Succeeded: true}))
	require.NoError(t, store.RecordPaymentAttempt(ctx, &models.PaymentAttempt{BatchID: "b1", OrderID: 2, TableNumber: 4, Error: "Order is not completed"}))
	require.NoError(t, store.RecordPaymentAttempt(ctx, &models.PaymentAttempt{BatchID: "b2", OrderID: 9, TableNumber: 5, Succeeded: true}))

	attempts, err := store.PaymentAttempts(ctx, 4)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, 1, attempts[0].OrderID)
	assert.True(t, attempts[0].Succeeded)
	assert.Equal(t, "Order is not completed", attempts[1].Error)

	none, err := store.PaymentAttempts(ctx, 12)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCancelledContext(t *testing.T) {
	store, err := Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, store.RecordPaymentAttempt(ctx, &models.PaymentAttempt{BatchID: "b1", OrderID: 7, TableNumber: 3, Succeeded: true}))

	_, err = store.PaymentAttempts(ctx, 3)
	assert.ErrorIs(t, err, context.Canceled)

	attempts, err := store.PaymentAttempts(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, attempts, 1)
	assert.Equal(t, 7, attempts[0].OrderID)
}
