package checkout

import (
	"fmt"

	"event-checkout-platform/internal/models"
)

// DefaultMaxQuantity caps quantities of products without a stock limit
const DefaultMaxQuantity = 99

// InvalidationPolicy decides what a quantity change does to entered answers
type InvalidationPolicy string

const (
	// InvalidateAll discards every attendee answer on any quantity change
	InvalidateAll InvalidationPolicy = "full"
	// InvalidatePositional keeps answers whose slot binding survives the change
	InvalidatePositional InvalidationPolicy = "positional"
)

// ParseInvalidationPolicy parses a configured policy name, defaulting to InvalidateAll
func ParseInvalidationPolicy(name string) InvalidationPolicy {
	if InvalidationPolicy(name) == InvalidatePositional {
		return InvalidatePositional
	}
	return InvalidateAll
}

// Reconciler applies quantity changes to a draft
type Reconciler struct {
	maxQuantity int
	policy      InvalidationPolicy
}

// NewReconciler creates a reconciler. A non-positive maxQuantity falls back to DefaultMaxQuantity.
func NewReconciler(maxQuantity int, policy InvalidationPolicy) *Reconciler {
	if maxQuantity <= 0 {
		maxQuantity = DefaultMaxQuantity
	}
	if policy != InvalidatePositional {
		policy = InvalidateAll
	}
	return &Reconciler{maxQuantity: maxQuantity, policy: policy}
}

// Policy returns the configured invalidation policy
func (r *Reconciler) Policy() InvalidationPolicy {
	return r.policy
}

// Clamp bounds a requested quantity to [0, stock], or [0, max] when stock is unlimited
func (r *Reconciler) Clamp(requested int, stock *int) int {
	ceiling := r.maxQuantity
	if stock != nil {
		ceiling = *stock
	}
	if ceiling < 0 {
		ceiling = 0
	}
	switch {
	case requested < 0:
		return 0
	case requested > ceiling:
		return ceiling
	}
	return requested
}

// SetQuantity stores the clamped quantity for a product and reports whether
// the draft changed. Any change resets the terms acceptance; under the full
// policy it also discards all attendee answers.
//
// The caller must run ReconcileAttendees afterwards to restore the slot count.
func (r *Reconciler) SetQuantity(draft *models.CheckoutDraft, products []models.Product, productID string, requested int) (bool, error) {
	product, ok := models.FindProduct(products, productID)
	if !ok {
		return false, fmt.Errorf("%w: %s", models.ErrUnknownProduct, productID)
	}

	if draft.Quantities == nil {
		draft.Quantities = map[string]int{}
	}

	quantity := r.Clamp(requested, product.Stock)
	if draft.Quantities[productID] == quantity {
		return false, nil
	}

	if quantity == 0 {
		delete(draft.Quantities, productID)
	} else {
		draft.Quantities[productID] = quantity
	}

	if r.policy == InvalidateAll {
		draft.Attendees = []models.Attendee{}
	}
	draft.AcceptedTerms = false
	return true, nil
}
