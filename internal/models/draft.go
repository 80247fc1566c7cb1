package models

// CheckoutDraft is the session-held working state of an in-progress checkout.
// It is identified by (OrgSlug, EventSlug) and never mirrored server-side
// before submission.
//
// SubmissionKey is the idempotency key of the pending submission. It is
// minted on the first submit and reused by retries until the draft changes
// or is cleared.
type CheckoutDraft struct {
	OrgSlug       string         `json:"orgSlug"`
	EventSlug     string         `json:"eventSlug"`
	Quantities    map[string]int `json:"quantities"`
	Attendees     []Attendee     `json:"attendees"`
	AcceptedTerms bool           `json:"acceptedTerms"`
	SubmissionKey string         `json:"submissionKey,omitempty"`
}

// Attendee is one positional attendee slot: the product that generated it
// and the answers entered so far, keyed by form field key.
type Attendee struct {
	ProductID string         `json:"productId"`
	Answers   map[string]any `json:"answers"`
}

// NewCheckoutDraft returns an empty draft for the given event
func NewCheckoutDraft(orgSlug, eventSlug string) *CheckoutDraft {
	return &CheckoutDraft{
		OrgSlug:    orgSlug,
		EventSlug:  eventSlug,
		Quantities: map[string]int{},
		Attendees:  []Attendee{},
	}
}

// Clone returns a deep copy of the draft
func (d *CheckoutDraft) Clone() *CheckoutDraft {
	clone := *d
	clone.Quantities = make(map[string]int, len(d.Quantities))
	for id, q := range d.Quantities {
		clone.Quantities[id] = q
	}
	clone.Attendees = make([]Attendee, len(d.Attendees))
	for i, a := range d.Attendees {
		answers := make(map[string]any, len(a.Answers))
		for k, v := range a.Answers {
			answers[k] = v
		}
		clone.Attendees[i] = Attendee{ProductID: a.ProductID, Answers: answers}
	}
	return &clone
}

// TotalQuantity returns the number of selected units across all products
func (d *CheckoutDraft) TotalQuantity() int {
	total := 0
	for _, q := range d.Quantities {
		if q > 0 {
			total += q
		}
	}
	return total
}

// Total returns the draft total in minor currency units for the given products
func (d *CheckoutDraft) Total(products []Product) int {
	total := 0
	for _, p := range products {
		if q := d.Quantities[p.ID]; q > 0 {
			total += p.Price * q
		}
	}
	return total
}

// IsEmpty reports whether nothing has been selected
func (d *CheckoutDraft) IsEmpty() bool {
	return d.TotalQuantity() == 0
}
