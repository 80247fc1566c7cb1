package repositories

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"event-checkout-platform/internal/database"
	"event-checkout-platform/internal/models"
)

// setupTestDB connects to TEST_DATABASE_URL and applies migrations. Tests
// skip when no test database is configured.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Database tests require TEST_DATABASE_URL")
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, database.Config{URL: dsn})
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(ctx))
	t.Cleanup(func() { db.Close() })

	return db.DB
}

type seededEvent struct {
	event    models.Event
	limited  models.Product
	open     models.Product
	nameFld  models.FormField
	emailFld models.FormField
}

func seedEvent(t *testing.T, db *sql.DB) seededEvent {
	t.Helper()
	ctx := context.Background()

	s := seededEvent{
		event: models.Event{ID: uuid.NewString(), OrgSlug: "acme-" + uuid.NewString()[:8], Slug: "launch", Name: "Launch", Currency: "KES"},
	}
	stock := 3
	s.limited = models.Product{ID: uuid.NewString(), EventID: s.event.ID, Name: "VIP", Price: 5000, Currency: "KES", Stock: &stock, CreatesAttendees: true, AttendeesPerUnit: 1, SortOrder: 1}
	s.open = models.Product{ID: uuid.NewString(), EventID: s.event.ID, Name: "Parking", Price: 500, Currency: "KES", SortOrder: 2}
	s.nameFld = models.FormField{ID: uuid.NewString(), EventID: s.event.ID, Key: "name", Label: "Name", Type: models.FieldText, Required: true, SortOrder: 1}
	s.emailFld = models.FormField{ID: uuid.NewString(), EventID: s.event.ID, Key: "email", Label: "Email", Type: models.FieldEmail, Required: true, SortOrder: 2}

	_, err := db.ExecContext(ctx, "INSERT INTO events (id, org_slug, slug, name, currency) VALUES ($1, $2, $3, $4, $5)",
		s.event.ID, s.event.OrgSlug, s.event.Slug, s.event.Name, s.event.Currency)
	require.NoError(t, err)

	for _, p := range []models.Product{s.limited, s.open} {
		_, err := db.ExecContext(ctx, `INSERT INTO products (id, event_id, name, price, currency, stock, creates_attendees, attendees_per_unit, sort_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, p.EventID, p.Name, p.Price, p.Currency, p.Stock, p.CreatesAttendees, p.AttendeesPerUnit, p.SortOrder)
		require.NoError(t, err)
	}

	for _, f := range []models.FormField{s.emailFld, s.nameFld} {
		_, err := db.ExecContext(ctx, "INSERT INTO form_fields (id, event_id, key, label, type, required, sort_order) VALUES ($1, $2, $3, $4, $5, $6, $7)",
			f.ID, f.EventID, f.Key, f.Label, f.Type, f.Required, f.SortOrder)
		require.NoError(t, err)
	}

	return s
}
