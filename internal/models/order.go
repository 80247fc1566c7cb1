package models

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderOpen     OrderStatus = "open"
	OrderPending  OrderStatus = "pending"
	OrderPaid     OrderStatus = "paid"
	OrderFailed   OrderStatus = "failed"
	OrderCanceled OrderStatus = "canceled"
	OrderExpired  OrderStatus = "expired"
)

// Valid reports whether the status is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderOpen, OrderPending, OrderPaid, OrderFailed, OrderCanceled, OrderExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can occur from the status
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderPaid, OrderFailed, OrderCanceled, OrderExpired:
		return true
	}
	return false
}

// DisplayName returns a human-readable status name
func (s OrderStatus) DisplayName() string {
	switch s {
	case OrderOpen:
		return "Open"
	case OrderPending:
		return "Pending Payment"
	case OrderPaid:
		return "Paid"
	case OrderFailed:
		return "Payment Failed"
	case OrderCanceled:
		return "Canceled"
	case OrderExpired:
		return "Expired"
	default:
		return string(s)
	}
}

// Order represents an order persisted by the local backend
type Order struct {
	ID               string      `json:"id" db:"id"`
	EventID          string      `json:"eventId" db:"event_id"`
	OrderNumber      string      `json:"orderNumber" db:"order_number"`
	TotalAmount      int         `json:"totalAmount" db:"total_amount"` // minor currency units
	Currency         string      `json:"currency" db:"currency"`
	Status           OrderStatus `json:"status" db:"status"`
	BuyerEmail       string      `json:"buyerEmail" db:"buyer_email"`
	BuyerName        string      `json:"buyerName" db:"buyer_name"`
	BuyerPhone       string      `json:"buyerPhone" db:"buyer_phone"`
	PaymentReference string      `json:"paymentReference" db:"payment_reference"`
	CheckoutURL      string      `json:"checkoutUrl" db:"checkout_url"`
	IdempotencyKey   string      `json:"-" db:"idempotency_key"`
	CreatedAt        time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time   `json:"updatedAt" db:"updated_at"`
}

// StatusView returns the read-only status projection of the order
func (o *Order) StatusView() *OrderStatusView {
	total := o.TotalAmount
	return &OrderStatusView{
		ID:          o.ID,
		Status:      o.Status,
		TotalAmount: &total,
		Currency:    o.Currency,
	}
}

// IsExpired returns true if a pending order has outlived its payment window
func (o *Order) IsExpired(ttl time.Duration, now time.Time) bool {
	if o.Status != OrderPending && o.Status != OrderOpen {
		return false
	}
	return now.Sub(o.CreatedAt) > ttl
}

// OrderStatusView is what the order-status query returns
type OrderStatusView struct {
	ID          string      `json:"id"`
	Status      OrderStatus `json:"status"`
	TotalAmount *int        `json:"totalAmount,omitempty"`
	Currency    string      `json:"currency,omitempty"`
}

// IsTerminal reports whether the viewed status is terminal
func (v *OrderStatusView) IsTerminal() bool {
	return v != nil && v.Status.IsTerminal()
}

// GenerateOrderNumber generates a human-friendly order number (ORD-YYYYMMDD-XXXXXX)
func GenerateOrderNumber(now time.Time) string {
	dateStr := now.Format("20060102")

	randomNum, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return fmt.Sprintf("ORD-%s-%06d", dateStr, now.UnixNano()%1000000)
	}

	return fmt.Sprintf("ORD-%s-%06d", dateStr, randomNum.Int64())
}

// OrderItem is one purchased product line of an order
type OrderItem struct {
	OrderID   string `json:"orderId" db:"order_id"`
	ProductID string `json:"productId" db:"product_id"`
	Quantity  int    `json:"quantity" db:"quantity"`
	UnitPrice int    `json:"unitPrice" db:"unit_price"`
}

// OrderAttendee stores one attendee's answers keyed by form field id
type OrderAttendee struct {
	OrderID   string         `json:"orderId" db:"order_id"`
	ProductID string         `json:"productId" db:"product_id"`
	Position  int            `json:"position" db:"position"`
	Answers   map[string]any `json:"answers" db:"answers"`
}
