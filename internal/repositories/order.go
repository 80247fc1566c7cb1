package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"event-checkout-platform/internal/models"
)

// uniqueViolation is the Postgres error code for a unique constraint failure
const uniqueViolation = "23505"

// OrderRepository handles order data operations
type OrderRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db, now: time.Now}
}

const orderColumns = `id, event_id, order_number, total_amount, currency, status, buyer_email, buyer_name,
	buyer_phone, payment_reference, checkout_url, COALESCE(idempotency_key, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.EventID,
		&order.OrderNumber,
		&order.TotalAmount,
		&order.Currency,
		&order.Status,
		&order.BuyerEmail,
		&order.BuyerName,
		&order.BuyerPhone,
		&order.PaymentReference,
		&order.CheckoutURL,
		&order.IdempotencyKey,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	return order, err
}

// Create stores an order with its items and attendees in one transaction.
// Stock of limited products is locked and decremented; a shortfall returns
// ErrInsufficientStock and a reused idempotency key returns ErrDuplicateEntry.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order, items []models.OrderItem, attendees []models.OrderAttendee) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		if err := reserveStock(ctx, tx, order.EventID, item); err != nil {
			return err
		}
	}

	now := r.now()
	order.CreatedAt = now
	order.UpdatedAt = now

	var idempotencyKey sql.NullString
	if order.IdempotencyKey != "" {
		idempotencyKey = sql.NullString{String: order.IdempotencyKey, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, event_id, order_number, total_amount, currency, status, buyer_email, buyer_name,
			buyer_phone, payment_reference, checkout_url, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		order.ID,
		order.EventID,
		order.OrderNumber,
		order.TotalAmount,
		order.Currency,
		order.Status,
		order.BuyerEmail,
		order.BuyerName,
		order.BuyerPhone,
		order.PaymentReference,
		order.CheckoutURL,
		idempotencyKey,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", models.ErrDuplicateEntry, pqErr.Constraint)
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)",
			order.ID, item.ProductID, item.Quantity, item.UnitPrice,
		); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	for _, attendee := range attendees {
		answers, err := json.Marshal(attendee.Answers)
		if err != nil {
			return fmt.Errorf("failed to encode attendee answers: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_attendees (order_id, product_id, position, answers) VALUES ($1, $2, $3, $4)",
			order.ID, attendee.ProductID, attendee.Position, answers,
		); err != nil {
			return fmt.Errorf("failed to create order attendee: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order creation: %w", err)
	}
	return nil
}

func reserveStock(ctx context.Context, tx *sql.Tx, eventID string, item models.OrderItem) error {
	var name string
	var stock sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT name, stock FROM products WHERE id = $1 AND event_id = $2 FOR UPDATE",
		item.ProductID, eventID,
	).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", models.ErrProductNotFound, item.ProductID)
		}
		return fmt.Errorf("failed to lock product: %w", err)
	}

	if !stock.Valid {
		return nil
	}
	if int(stock.Int64) < item.Quantity {
		return fmt.Errorf("%w: only %d left for %s", models.ErrInsufficientStock, stock.Int64, name)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE products SET stock = stock - $2 WHERE id = $1", item.ProductID, item.Quantity); err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	return nil
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// GetByIdempotencyKey retrieves the order created with the given key
func (r *OrderRepository) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE idempotency_key = $1", key)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order by idempotency key: %w", err)
	}
	return order, nil
}

// SetPayment records the provider reference and checkout URL of a pending order
func (r *OrderRepository) SetPayment(ctx context.Context, id, reference, checkoutURL string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET payment_reference = $2, checkout_url = $3, updated_at = $4
		WHERE id = $1`,
		id, reference, checkoutURL, r.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to set order payment: %w", err)
	}
	return expectOneRow(result, models.ErrOrderNotFound)
}

// Transition moves an open or pending order to status. Orders that already
// settled are left alone and reported with changed=false. Moving to failed,
// canceled or expired returns the reserved stock.
func (r *OrderRepository) Transition(ctx context.Context, id string, status models.OrderStatus) (changed bool, err error) {
	if !status.Valid() {
		return false, fmt.Errorf("%w: status %q", models.ErrInvalidInput, status)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status IN ('open', 'pending')`,
		id, status, r.now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if status.IsTerminal() && status != models.OrderPaid {
		if _, err := tx.ExecContext(ctx, `
			UPDATE products p
			SET stock = p.stock + oi.quantity
			FROM order_items oi
			WHERE oi.order_id = $1 AND oi.product_id = p.id AND p.stock IS NOT NULL`,
			id,
		); err != nil {
			return false, fmt.Errorf("failed to release stock: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit status change: %w", err)
	}
	return true, nil
}

// ListItems returns an order's line items
func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT order_id, product_id, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListStale returns open or pending orders created before the cutoff
func (r *OrderRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE status IN ('open', 'pending') AND created_at < $1 ORDER BY created_at LIMIT $2",
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale orders: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func expectOneRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
