package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-checkout-platform/internal/models"
)

func TestCatalogRepository_GetEvent(t *testing.T) {
	db := setupTestDB(t)
	seed := seedEvent(t, db)
	repo := NewCatalogRepository(db)

	event, err := repo.GetEvent(context.Background(), seed.event.OrgSlug, "launch")
	require.NoError(t, err)
	assert.Equal(t, seed.event, *event)

	_, err = repo.GetEvent(context.Background(), seed.event.OrgSlug, "missing")
	assert.ErrorIs(t, err, models.ErrEventNotFound)

	byID, err := repo.GetEventByID(context.Background(), seed.event.ID)
	require.NoError(t, err)
	assert.Equal(t, seed.event.Slug, byID.Slug)
}

func TestCatalogRepository_ListProductsAndFields(t *testing.T) {
	db := setupTestDB(t)
	seed := seedEvent(t, db)
	repo := NewCatalogRepository(db)

	products, err := repo.ListProducts(context.Background(), seed.event.ID)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, seed.limited.ID, products[0].ID)
	require.NotNil(t, products[0].Stock)
	assert.Equal(t, 3, *products[0].Stock)
	assert.Nil(t, products[1].Stock)

	fields, err := repo.ListFormFields(context.Background(), seed.event.ID)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].Key)
	assert.Equal(t, "email", fields[1].Key)
}
