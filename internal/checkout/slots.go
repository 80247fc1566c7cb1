package checkout

import "event-checkout-platform/internal/models"

// Slot is a positional attendee placeholder bound to the product that generated it
type Slot struct {
	Index     int    `json:"index"`
	ProductID string `json:"productId"`
}

// ExpandSlots returns the canonical product-id sequence of attendee slots for
// the given quantities, in product sort order.
func ExpandSlots(quantities map[string]int, products []models.Product) []string {
	slots := []string{}
	for _, p := range models.SortProducts(products) {
		count := quantities[p.ID] * p.SlotsPerUnit()
		for i := 0; i < count; i++ {
			slots = append(slots, p.ID)
		}
	}
	return slots
}

// Slots lists the draft's current slot bindings
func Slots(draft *models.CheckoutDraft) []Slot {
	slots := make([]Slot, len(draft.Attendees))
	for i, a := range draft.Attendees {
		slots[i] = Slot{Index: i, ProductID: a.ProductID}
	}
	return slots
}

// ReconcileAttendees rewrites the draft's attendee list to match the slot
// sequence. Answers at index i survive only when slot i is still bound to the
// same product. Returns false and leaves the draft untouched when the list
// already matches.
func ReconcileAttendees(draft *models.CheckoutDraft, products []models.Product) bool {
	expected := ExpandSlots(draft.Quantities, products)

	if len(expected) == len(draft.Attendees) {
		matches := true
		for i, productID := range expected {
			if draft.Attendees[i].ProductID != productID || draft.Attendees[i].Answers == nil {
				matches = false
				break
			}
		}
		if matches {
			return false
		}
	}

	attendees := make([]models.Attendee, len(expected))
	for i, productID := range expected {
		if i < len(draft.Attendees) && draft.Attendees[i].ProductID == productID && draft.Attendees[i].Answers != nil {
			attendees[i] = draft.Attendees[i]
			continue
		}
		attendees[i] = models.Attendee{ProductID: productID, Answers: map[string]any{}}
	}
	draft.Attendees = attendees
	return true
}
