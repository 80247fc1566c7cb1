package models

import "sort"

// Event represents a public event that sells products through checkout
type Event struct {
	ID       string `json:"id" db:"id"`
	OrgSlug  string `json:"orgSlug" db:"org_slug"`
	Slug     string `json:"slug" db:"slug"`
	Name     string `json:"name" db:"name"`
	Currency string `json:"currency" db:"currency"`
}

// Product represents a purchasable item (usually a ticket type) for an event
type Product struct {
	ID               string `json:"id" db:"id"`
	EventID          string `json:"eventId" db:"event_id"`
	Name             string `json:"name" db:"name"`
	Price            int    `json:"price" db:"price"` // minor currency units
	Currency         string `json:"currency" db:"currency"`
	Stock            *int   `json:"stock" db:"stock"` // nil means unlimited
	CreatesAttendees bool   `json:"createsAttendees" db:"creates_attendees"`
	AttendeesPerUnit int    `json:"attendeesPerUnit" db:"attendees_per_unit"`
	SortOrder        int    `json:"sortOrder" db:"sort_order"`
}

// SlotsPerUnit returns how many attendee forms a single unit of the product requires
func (p Product) SlotsPerUnit() int {
	if !p.CreatesAttendees || p.AttendeesPerUnit < 0 {
		return 0
	}
	return p.AttendeesPerUnit
}

// SortProducts returns a copy of products ordered by sort order, then id.
func SortProducts(products []Product) []Product {
	sorted := make([]Product, len(products))
	copy(sorted, products)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SortOrder != sorted[j].SortOrder {
			return sorted[i].SortOrder < sorted[j].SortOrder
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// FindProduct looks up a product by id
func FindProduct(products []Product, id string) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
