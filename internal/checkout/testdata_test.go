package checkout

import "event-checkout-platform/internal/models"

func intPtr(i int) *int { return &i }

func testProducts() []models.Product {
	return []models.Product{
		{ID: "prod-b", Name: "Workshop", Price: 2000, Currency: "KES", CreatesAttendees: true, AttendeesPerUnit: 1, SortOrder: 2},
		{ID: "prod-a", Name: "General Admission", Price: 1000, Currency: "KES", Stock: intPtr(10), CreatesAttendees: true, AttendeesPerUnit: 1, SortOrder: 1},
		{ID: "prod-x", Name: "Couples Pass", Price: 3000, Currency: "KES", Stock: intPtr(3), CreatesAttendees: true, AttendeesPerUnit: 2, SortOrder: 3},
		{ID: "prod-parking", Name: "Parking", Price: 500, Currency: "KES", SortOrder: 4},
	}
}

func testFields() []models.FormField {
	return []models.FormField{
		{ID: "field-email", Key: "email", Label: "Email", Type: models.FieldEmail, Required: true, SortOrder: 2},
		{ID: "field-name", Key: "name", Label: "Full name", Type: models.FieldText, Required: true, SortOrder: 1},
		{ID: "field-diet", Key: "diet", Label: "Dietary needs", Type: models.FieldSelect, Options: []string{"none", "vegan"}, SortOrder: 3},
	}
}

func testCatalog() *Catalog {
	return &Catalog{
		Event:    models.Event{ID: "event-1", OrgSlug: "acme", Slug: "launch", Name: "Launch Party", Currency: "KES"},
		Products: testProducts(),
		Fields:   testFields(),
	}
}

func completeAnswers(name string) map[string]any {
	return map[string]any{"name": name, "email": name + "@example.com"}
}
