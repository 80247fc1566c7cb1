package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"event-checkout-platform/internal/models"
)

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetEvent(ctx context.Context, orgSlug, eventSlug string) (*models.Event, error) {
	args := m.Called(ctx, orgSlug, eventSlug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockCatalogRepository) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockCatalogRepository) ListProducts(ctx context.Context, eventID string) ([]models.Product, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockCatalogRepository) ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FormField), args.Error(1)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, order *models.Order, items []models.OrderItem, attendees []models.OrderAttendee) error {
	args := m.Called(ctx, order, items, attendees)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

func (m *MockOrderRepository) SetPayment(ctx context.Context, id, reference, checkoutURL string) error {
	args := m.Called(ctx, id, reference, checkoutURL)
	return args.Error(0)
}

func (m *MockOrderRepository) Transition(ctx context.Context, id string, status models.OrderStatus) (bool, error) {
	args := m.Called(ctx, id, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrderRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error) {
	args := m.Called(ctx, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Order), args.Error(1)
}

type MockPaymentProviderForOrders struct {
	mock.Mock
}

func (m *MockPaymentProviderForOrders) InitializePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PaymentSession), args.Error(1)
}

func (m *MockPaymentProviderForOrders) PaymentStatus(ctx context.Context, reference string) (PaymentState, error) {
	args := m.Called(ctx, reference)
	return args.Get(0).(PaymentState), args.Error(1)
}
