package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-checkout-platform/internal/models"
)

func newTestOrder(eventID string, total int) *models.Order {
	return &models.Order{
		ID:             uuid.NewString(),
		EventID:        eventID,
		OrderNumber:    models.GenerateOrderNumber(time.Now()) + uuid.NewString()[:4],
		TotalAmount:    total,
		Currency:       "KES",
		Status:         models.OrderPending,
		BuyerEmail:     "buyer@example.com",
		BuyerName:      "Pat",
		IdempotencyKey: uuid.NewString(),
	}
}

func TestOrderRepository_CreateReservesStock(t *testing.T) {
	db := setupTestDB(t)
	seed := seedEvent(t, db)
	repo := NewOrderRepository(db)
	catalog := NewCatalogRepository(db)
	ctx := context.Background()

	order := newTestOrder(seed.event.ID, 10000)
	items := []models.OrderItem{{ProductID: seed.limited.ID, Quantity: 2, UnitPrice: 5000}}
	attendees := []models.OrderAttendee{
		{ProductID: seed.limited.ID, Position: 0, Answers: map[string]any{seed.nameFld.ID: "Ann"}},
		{ProductID: seed.limited.ID, Position: 1, Answers: map[string]any{seed.nameFld.ID: "Bob"}},
	}
	require.NoError(t, repo.Create(ctx, order, items, attendees))

	products, err := catalog.ListProducts(ctx, seed.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *products[0].Stock)

	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, stored.Status)
	assert.Equal(t, order.IdempotencyKey, stored.IdempotencyKey)

	byKey, err := repo.GetByIdempotencyKey(ctx, order.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byKey.ID)

	storedItems, err := repo.ListItems(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, storedItems[0].Quantity)
}

func TestOrderRepository_CreateInsufficientStock(t *testing.T) {
	db := setupTestDB(t)
	seed := seedEvent(t, db)
	repo := NewOrderRepository(db)

	order := newTestOrder(seed.event.ID, 20000)
	err := repo.Create(context.Background(), order, []models.OrderItem{{ProductID: seed.limited.ID, Quantity: 4, UnitPrice: 5000}}, nil)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	_, err = repo.GetByID(context.Background(), order.ID)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestOrderRepository_DuplicateIdempotencyKey(t *testing.T) {
	db := setupTestDB(t)
	seed := seedEvent(t, db)
	repo := NewOrderRepository(db)
	items := []models.OrderItem{{ProductID: seed.open.ID, Quantity: 1, UnitPrice: 500}}

	first := newTestOrder(seed.event.ID, 500)
	require.NoError(t, repo.Create(context.Background(), first, items, nil))

	second := newTestOrder(seed.event.ID, 500)
	second.IdempotencyKey = first.IdempotencyKey
	err := repo.Create(context.Background(), second, items, nil)
	assert.ErrorIs(t, err, models.ErrDuplicateEntry)
}

func TestOrderRepository_TransitionReleasesStock(t *testing.T) {
	db := setupTestDB(t)
	seed := seedEvent(t, db)
	repo := NewOrderRepository(db)
	catalog := NewCatalogRepository(db)
	ctx := context.Background()

	order := newTestOrder(seed.event.ID, 5000)
	require.NoError(t, repo.Create(ctx, order, []models.OrderItem{{ProductID: seed.limited.ID, Quantity: 1, UnitPrice: 5000}}, nil))

	changed, err := repo.Transition(ctx, order.ID, models.OrderExpired)
	require.NoError(t, err)
	assert.True(t, changed)

	products, err := catalog.ListProducts(ctx, seed.event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, *products[0].Stock)

	changed, err = repo.Transition(ctx, order.ID, models.OrderPaid)
	require.NoError(t, err)
	assert.False(t, changed, "settled orders do not move again")
}

func TestOrderRepository_SetPayment(t *testing.T) {
	db := setupTestDB(t)
	seed := seedEvent(t, db)
	repo := NewOrderRepository(db)
	ctx := context.Background()

	order := newTestOrder(seed.event.ID, 500)
	require.NoError(t, repo.Create(ctx, order, []models.OrderItem{{ProductID: seed.open.ID, Quantity: 1, UnitPrice: 500}}, nil))

	require.NoError(t, repo.SetPayment(ctx, order.ID, "ref-123", "https://checkout.paystack.com/abc"))
	stored, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ref-123", stored.PaymentReference)

	err = repo.SetPayment(ctx, uuid.NewString(), "ref", "https://x.example")
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}
