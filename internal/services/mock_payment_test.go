package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockPaymentProvider(t *testing.T) {
	provider := NewMockPaymentProvider("http://localhost:8080/payments/mock")
	ctx := context.Background()

	session, err := provider.InitializePayment(ctx, PaymentRequest{Reference: "ORD-1", Amount: 100, CallbackURL: "http://localhost:8080/o/a/e/b/orders/1?return=1"})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/payments/mock/ORD-1", session.AuthorizationURL)

	state, err := provider.PaymentStatus(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, PaymentPending, state)

	callback, err := provider.Complete("ORD-1", true)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/o/a/e/b/orders/1?return=1", callback)

	_, err = provider.Complete("ORD-1", false)
	require.NoError(t, err)
	state, _ = provider.PaymentStatus(ctx, "ORD-1")
	assert.Equal(t, PaymentSucceeded, state, "a settled payment does not change again")

	_, err = provider.PaymentStatus(ctx, "ORD-404")
	assert.Error(t, err)
	_, err = provider.InitializePayment(ctx, PaymentRequest{})
	assert.Error(t, err)
}
