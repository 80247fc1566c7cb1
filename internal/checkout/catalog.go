package checkout

import (
	"context"

	"golang.org/x/sync/errgroup"

	"event-checkout-platform/internal/models"
)

// CatalogSource reads the event data a checkout needs
type CatalogSource interface {
	GetEvent(ctx context.Context, orgSlug, eventSlug string) (*models.Event, error)
	ListProducts(ctx context.Context, eventID string) ([]models.Product, error)
	ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error)
}

// LoadCatalog fetches an event with its products and form fields. Products
// and fields are read concurrently and returned in display order.
func LoadCatalog(ctx context.Context, source CatalogSource, orgSlug, eventSlug string) (*Catalog, error) {
	event, err := source.GetEvent(ctx, orgSlug, eventSlug)
	if err != nil {
		return nil, err
	}

	catalog := &Catalog{Event: *event}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, err := source.ListProducts(gctx, event.ID)
		catalog.Products = products
		return err
	})
	g.Go(func() error {
		fields, err := source.ListFormFields(gctx, event.ID)
		catalog.Fields = fields
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	catalog.Products = models.SortProducts(catalog.Products)
	catalog.Fields = models.SortFields(catalog.Fields)
	return catalog, nil
}
