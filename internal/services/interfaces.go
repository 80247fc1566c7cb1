package services

import (
	"context"
	"time"

	"event-checkout-platform/internal/models"
)

// Backend is the ticketing backend the checkout talks to: the catalog it
// sells from and the orders it places.
type Backend interface {
	GetEvent(ctx context.Context, orgSlug, eventSlug string) (*models.Event, error)
	ListProducts(ctx context.Context, eventID string) ([]models.Product, error)
	ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error)
	CreateOrder(ctx context.Context, idempotencyKey string, payload *models.SubmissionPayload) (models.SubmissionResult, error)
	GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatusView, error)
}

// CatalogRepositoryInterface defines the catalog reads the local backend needs
type CatalogRepositoryInterface interface {
	GetEvent(ctx context.Context, orgSlug, eventSlug string) (*models.Event, error)
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	ListProducts(ctx context.Context, eventID string) ([]models.Product, error)
	ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error)
}

// OrderRepositoryInterface defines the order persistence the local backend needs
type OrderRepositoryInterface interface {
	Create(ctx context.Context, order *models.Order, items []models.OrderItem, attendees []models.OrderAttendee) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	SetPayment(ctx context.Context, id, reference, checkoutURL string) error
	Transition(ctx context.Context, id string, status models.OrderStatus) (bool, error)
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error)
}

// PaymentState is a payment provider's view of a transaction
type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentSucceeded PaymentState = "success"
	PaymentFailed    PaymentState = "failed"
)

// PaymentRequest starts a hosted payment for an order
type PaymentRequest struct {
	Reference   string
	Email       string
	Amount      int // minor currency units
	Currency    string
	CallbackURL string
	Metadata    map[string]string
}

// PaymentSession is where the buyer completes a payment
type PaymentSession struct {
	Reference        string
	AuthorizationURL string
}

// PaymentProvider hands buyers off to an external payment page
type PaymentProvider interface {
	InitializePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	PaymentStatus(ctx context.Context, reference string) (PaymentState, error)
}
