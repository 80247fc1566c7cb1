package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"event-checkout-platform/internal/checkout"
	"event-checkout-platform/internal/models"
)

// LocalBackend places orders directly in the database and hands priced
// orders to a payment provider.
type LocalBackend struct {
	catalog    CatalogRepositoryInterface
	orders     OrderRepositoryInterface
	payments   PaymentProvider
	publicURL  string
	paymentTTL time.Duration
	now        func() time.Time
	newID      func() string
}

// NewLocalBackend creates a local backend. publicURL is the absolute base
// URL buyers return to after paying.
func NewLocalBackend(catalog CatalogRepositoryInterface, orders OrderRepositoryInterface, payments PaymentProvider, publicURL string, paymentTTL time.Duration) *LocalBackend {
	return &LocalBackend{
		catalog:    catalog,
		orders:     orders,
		payments:   payments,
		publicURL:  strings.TrimRight(publicURL, "/"),
		paymentTTL: paymentTTL,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// GetEvent retrieves an event by organization and event slug
func (b *LocalBackend) GetEvent(ctx context.Context, orgSlug, eventSlug string) (*models.Event, error) {
	event, err := b.catalog.GetEvent(ctx, orgSlug, eventSlug)
	if err != nil {
		return nil, classifyRepositoryError(err)
	}
	return event, nil
}

// ListProducts returns an event's products
func (b *LocalBackend) ListProducts(ctx context.Context, eventID string) ([]models.Product, error) {
	products, err := b.catalog.ListProducts(ctx, eventID)
	if err != nil {
		return nil, classifyRepositoryError(err)
	}
	return products, nil
}

// ListFormFields returns an event's attendee form fields
func (b *LocalBackend) ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error) {
	fields, err := b.catalog.ListFormFields(ctx, eventID)
	if err != nil {
		return nil, classifyRepositoryError(err)
	}
	return fields, nil
}

// CreateOrder validates the payload against the catalog, reserves stock and
// creates the order. Free orders are paid immediately; priced orders wait
// for the payment provider. Replaying an idempotency key returns the result
// of the original order.
func (b *LocalBackend) CreateOrder(ctx context.Context, idempotencyKey string, payload *models.SubmissionPayload) (models.SubmissionResult, error) {
	if idempotencyKey != "" {
		existing, err := b.orders.GetByIdempotencyKey(ctx, idempotencyKey)
		if err == nil {
			return b.resultFor(existing)
		}
		if !errors.Is(err, models.ErrOrderNotFound) {
			return nil, classifyRepositoryError(err)
		}
	}

	event, err := b.catalog.GetEventByID(ctx, payload.EventID)
	if err != nil {
		return nil, classifyRepositoryError(err)
	}
	products, err := b.catalog.ListProducts(ctx, event.ID)
	if err != nil {
		return nil, classifyRepositoryError(err)
	}
	fields, err := b.catalog.ListFormFields(ctx, event.ID)
	if err != nil {
		return nil, classifyRepositoryError(err)
	}

	items, attendees, total, err := validatePayload(payload, products, fields)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:             b.newID(),
		EventID:        event.ID,
		OrderNumber:    models.GenerateOrderNumber(b.now()),
		TotalAmount:    total,
		Currency:       event.Currency,
		Status:         models.OrderPending,
		BuyerEmail:     payload.Buyer.Email,
		BuyerName:      payload.Buyer.Name,
		BuyerPhone:     payload.Buyer.Phone,
		IdempotencyKey: idempotencyKey,
	}
	if total == 0 {
		order.Status = models.OrderPaid
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	for i := range attendees {
		attendees[i].OrderID = order.ID
	}

	if err := b.orders.Create(ctx, order, items, attendees); err != nil {
		if errors.Is(err, models.ErrDuplicateEntry) && idempotencyKey != "" {
			if existing, lookupErr := b.orders.GetByIdempotencyKey(ctx, idempotencyKey); lookupErr == nil {
				return b.resultFor(existing)
			}
		}
		return nil, classifyRepositoryError(err)
	}

	if order.Status == models.OrderPaid {
		log.Printf("Order %s (%s) completed without payment", order.ID, order.OrderNumber)
		return models.PaidResult{OrderID: order.ID}, nil
	}

	session, err := b.payments.InitializePayment(ctx, paymentRequestFor(order, b.callbackURL(event, order.ID)))
	if err != nil {
		log.Printf("Payment initialization failed for order %s: %v", order.ID, err)
		if _, tErr := b.orders.Transition(context.WithoutCancel(ctx), order.ID, models.OrderFailed); tErr != nil {
			log.Printf("Failed to mark order %s as failed: %v", order.ID, tErr)
		}
		return nil, &models.BackendError{Kind: models.KindUnknown, Message: "We could not start the payment. Please try again.", Err: err}
	}
	if !models.IsExternalURL(session.AuthorizationURL) {
		return nil, &models.BackendError{Kind: models.KindUnknown, Message: models.GenericSubmissionError, Err: fmt.Errorf("invalid authorization url %q", session.AuthorizationURL)}
	}

	if err := b.orders.SetPayment(ctx, order.ID, session.Reference, session.AuthorizationURL); err != nil {
		return nil, classifyRepositoryError(err)
	}

	return models.AwaitingPaymentResult{OrderID: order.ID, CheckoutURL: session.AuthorizationURL}, nil
}

func paymentRequestFor(order *models.Order, callbackURL string) PaymentRequest {
	return PaymentRequest{
		Reference:   order.OrderNumber,
		Email:       order.BuyerEmail,
		Amount:      order.TotalAmount,
		Currency:    order.Currency,
		CallbackURL: callbackURL,
		Metadata:    map[string]string{"order_id": order.ID},
	}
}

// callbackURL is the order page with the return marker set
func (b *LocalBackend) callbackURL(event *models.Event, orderID string) string {
	return fmt.Sprintf("%s/o/%s/e/%s/orders/%s?return=1",
		b.publicURL, url.PathEscape(event.OrgSlug), url.PathEscape(event.Slug), url.PathEscape(orderID))
}

func (b *LocalBackend) resultFor(order *models.Order) (models.SubmissionResult, error) {
	switch {
	case order.Status == models.OrderPaid:
		return models.PaidResult{OrderID: order.ID}, nil
	case !order.Status.IsTerminal() && order.CheckoutURL != "":
		return models.AwaitingPaymentResult{OrderID: order.ID, CheckoutURL: order.CheckoutURL}, nil
	}
	return nil, models.NewBackendError(models.KindConflict, "This order can no longer be completed. Please start a new checkout.")
}

// GetOrderStatus returns the order's status, settling pending orders with
// the payment provider and expiring those past the payment window.
func (b *LocalBackend) GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatusView, error) {
	order, err := b.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, classifyRepositoryError(err)
	}

	if !order.Status.IsTerminal() {
		if err := b.settle(ctx, order); err != nil {
			log.Printf("Order %s status refresh failed: %v", order.ID, err)
		}
	}

	return order.StatusView(), nil
}

// SettleOrder re-checks a pending order with the payment provider. It is
// used by payment webhooks, which only signal that something changed.
func (b *LocalBackend) SettleOrder(ctx context.Context, orderID string) (*models.OrderStatusView, error) {
	order, err := b.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, classifyRepositoryError(err)
	}
	if !order.Status.IsTerminal() {
		if err := b.settle(ctx, order); err != nil {
			return nil, err
		}
	}
	return order.StatusView(), nil
}

// settle updates order in place when its status moves
func (b *LocalBackend) settle(ctx context.Context, order *models.Order) error {
	target := order.Status

	switch {
	case order.IsExpired(b.paymentTTL, b.now()):
		target = models.OrderExpired
	case order.PaymentReference != "":
		state, err := b.payments.PaymentStatus(ctx, order.PaymentReference)
		if err != nil {
			return err
		}
		switch state {
		case PaymentSucceeded:
			target = models.OrderPaid
		case PaymentFailed:
			target = models.OrderFailed
		}
	}

	if target == order.Status {
		return nil
	}

	changed, err := b.orders.Transition(ctx, order.ID, target)
	if err != nil {
		return err
	}
	if changed {
		log.Printf("Order %s moved from %s to %s", order.ID, order.Status, target)
		order.Status = target
		return nil
	}

	// Settled concurrently; report what is stored.
	current, err := b.orders.GetByID(ctx, order.ID)
	if err != nil {
		return err
	}
	order.Status = current.Status
	return nil
}

// ExpireStale expires unpaid orders older than the payment window and
// returns how many were expired.
func (b *LocalBackend) ExpireStale(ctx context.Context, batchSize int) (int, error) {
	stale, err := b.orders.ListStale(ctx, b.now().Add(-b.paymentTTL), batchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, order := range stale {
		changed, err := b.orders.Transition(ctx, order.ID, models.OrderExpired)
		if err != nil {
			return expired, fmt.Errorf("failed to expire order %s: %w", order.ID, err)
		}
		if changed {
			expired++
		}
	}
	return expired, nil
}

// validatePayload checks a submission against the catalog the same way the
// checkout builds it, and prices it.
func validatePayload(payload *models.SubmissionPayload, products []models.Product, fields []models.FormField) ([]models.OrderItem, []models.OrderAttendee, int, error) {
	if err := payload.Buyer.Validate(); err != nil {
		return nil, nil, 0, models.NewBackendError(models.KindValidation, err.Error())
	}
	if len(payload.Items) == 0 {
		return nil, nil, 0, models.NewBackendError(models.KindValidation, "No tickets were selected.")
	}

	quantities := make(map[string]int, len(payload.Items))
	items := make([]models.OrderItem, 0, len(payload.Items))
	total := 0
	for _, item := range payload.Items {
		product, ok := models.FindProduct(products, item.ProductID)
		if !ok {
			return nil, nil, 0, models.NewBackendError(models.KindValidation, "One of the selected tickets is not sold for this event.")
		}
		if item.Quantity <= 0 {
			return nil, nil, 0, models.NewBackendError(models.KindValidation, fmt.Sprintf("Invalid quantity for %s.", product.Name))
		}
		if _, dup := quantities[item.ProductID]; dup {
			return nil, nil, 0, models.NewBackendError(models.KindValidation, fmt.Sprintf("%s was selected twice.", product.Name))
		}
		quantities[item.ProductID] = item.Quantity
		items = append(items, models.OrderItem{ProductID: product.ID, Quantity: item.Quantity, UnitPrice: product.Price})
		total += product.Price * item.Quantity
	}

	slots := checkout.ExpandSlots(quantities, products)
	if len(slots) != len(payload.Attendees) {
		return nil, nil, 0, models.NewBackendError(models.KindValidation, "Attendee details do not match the selected tickets.")
	}

	keyByID := make(map[string]string, len(fields))
	for _, f := range fields {
		keyByID[f.ID] = f.Key
	}

	attendees := make([]models.OrderAttendee, len(slots))
	for i, productID := range slots {
		submitted := payload.Attendees[i]
		if submitted.ProductID != productID {
			return nil, nil, 0, models.NewBackendError(models.KindValidation, "Attendee details do not match the selected tickets.")
		}

		byKey := make(map[string]any, len(submitted.Answers))
		byID := make(map[string]any, len(submitted.Answers))
		for _, answer := range submitted.Answers {
			key, known := keyByID[answer.FieldID]
			if !known {
				continue
			}
			byKey[key] = answer.Value
			byID[answer.FieldID] = answer.Value
		}
		if missing := checkout.MissingKeys(byKey, fields); len(missing) > 0 {
			return nil, nil, 0, models.NewBackendError(models.KindValidation,
				fmt.Sprintf("Attendee %d is missing: %s.", i+1, strings.Join(missing, ", ")))
		}

		attendees[i] = models.OrderAttendee{ProductID: productID, Position: i, Answers: byID}
	}

	return items, attendees, total, nil
}

// classifyRepositoryError maps repository sentinels onto the taxonomy
func classifyRepositoryError(err error) error {
	var backendErr *models.BackendError
	switch {
	case errors.As(err, &backendErr):
		return err
	case errors.Is(err, models.ErrEventNotFound):
		return &models.BackendError{Kind: models.KindNotFound, Message: "Event not found.", Err: err}
	case errors.Is(err, models.ErrOrderNotFound):
		return &models.BackendError{Kind: models.KindNotFound, Message: "Order not found.", Err: err}
	case errors.Is(err, models.ErrInsufficientStock):
		return &models.BackendError{Kind: models.KindConflict, Message: conflictMessage(err), Err: err}
	case errors.Is(err, models.ErrProductNotFound), errors.Is(err, models.ErrInvalidInput):
		return &models.BackendError{Kind: models.KindValidation, Message: "Some of the submitted details are invalid.", Err: err}
	case errors.Is(err, models.ErrDuplicateEntry):
		return &models.BackendError{Kind: models.KindConflict, Message: "This order was already submitted.", Err: err}
	}
	return &models.BackendError{Kind: models.KindUnknown, Message: models.GenericSubmissionError, Err: err}
}

func conflictMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return "Sorry, " + msg[idx+2:] + "."
	}
	return "Some tickets are no longer available. Please review your selection."
}
