package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"event-checkout-platform/internal/models"
)

// CatalogRepository reads events, products and form fields
type CatalogRepository struct {
	db *sql.DB
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// GetEvent retrieves an event by organization and event slug
func (r *CatalogRepository) GetEvent(ctx context.Context, orgSlug, eventSlug string) (*models.Event, error) {
	query := `
		SELECT id, org_slug, slug, name, currency
		FROM events
		WHERE org_slug = $1 AND slug = $2`

	event := &models.Event{}
	err := r.db.QueryRowContext(ctx, query, orgSlug, eventSlug).Scan(
		&event.ID,
		&event.OrgSlug,
		&event.Slug,
		&event.Name,
		&event.Currency,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}

	return event, nil
}

// GetEventByID retrieves an event by ID
func (r *CatalogRepository) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	event := &models.Event{}
	err := r.db.QueryRowContext(ctx, "SELECT id, org_slug, slug, name, currency FROM events WHERE id = $1", id).Scan(
		&event.ID,
		&event.OrgSlug,
		&event.Slug,
		&event.Name,
		&event.Currency,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event by id: %w", err)
	}

	return event, nil
}

// ListProducts returns an event's products in display order
func (r *CatalogRepository) ListProducts(ctx context.Context, eventID string) ([]models.Product, error) {
	query := `
		SELECT id, event_id, name, price, currency, stock, creates_attendees, attendees_per_unit, sort_order
		FROM products
		WHERE event_id = $1
		ORDER BY sort_order, id`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var p models.Product
		var stock sql.NullInt64
		if err := rows.Scan(
			&p.ID,
			&p.EventID,
			&p.Name,
			&p.Price,
			&p.Currency,
			&stock,
			&p.CreatesAttendees,
			&p.AttendeesPerUnit,
			&p.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if stock.Valid {
			s := int(stock.Int64)
			p.Stock = &s
		}
		products = append(products, p)
	}

	return products, rows.Err()
}

// ListFormFields returns an event's attendee form fields in display order
func (r *CatalogRepository) ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error) {
	query := `
		SELECT id, event_id, key, label, type, required, options, sort_order
		FROM form_fields
		WHERE event_id = $1
		ORDER BY sort_order, key`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list form fields: %w", err)
	}
	defer rows.Close()

	fields := []models.FormField{}
	for rows.Next() {
		var f models.FormField
		if err := rows.Scan(
			&f.ID,
			&f.EventID,
			&f.Key,
			&f.Label,
			&f.Type,
			&f.Required,
			pq.Array(&f.Options),
			&f.SortOrder,
		); err != nil {
			return nil, fmt.Errorf("failed to scan form field: %w", err)
		}
		fields = append(fields, f)
	}

	return fields, rows.Err()
}
