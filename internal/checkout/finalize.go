package checkout

import (
	"log"

	"event-checkout-platform/internal/models"
)

// Outcome is what the caller must do after a submission: ShowConfirmation,
// ExternalRedirect or ShowError. Use MatchOutcome to handle it.
type Outcome interface {
	isOutcome()
}

// ShowConfirmation navigates to the order confirmation view
type ShowConfirmation struct {
	OrderID string
}

// ExternalRedirect performs a full-page navigation to a payment provider
type ExternalRedirect struct {
	OrderID string
	URL     string
}

// ShowError keeps the buyer on the payment step with a message
type ShowError struct {
	Kind    models.ErrorKind
	Message string
}

func (ShowConfirmation) isOutcome() {}
func (ExternalRedirect) isOutcome() {}
func (ShowError) isOutcome()        {}

// MatchOutcome dispatches on the outcome variant. A nil outcome is handled as an unknown error.
func MatchOutcome[T any](
	outcome Outcome,
	confirm func(ShowConfirmation) T,
	redirect func(ExternalRedirect) T,
	failed func(ShowError) T,
) T {
	switch o := outcome.(type) {
	case ShowConfirmation:
		return confirm(o)
	case ExternalRedirect:
		return redirect(o)
	case ShowError:
		return failed(o)
	}
	return failed(ShowError{Kind: models.KindUnknown, Message: models.GenericSubmissionError})
}

// Finalizer turns a submission result into an outcome, clearing the draft on success
type Finalizer struct {
	store *DraftStore
}

// NewFinalizer creates a finalizer over the draft store
func NewFinalizer(store *DraftStore) *Finalizer {
	return &Finalizer{store: store}
}

// Finalize handles the result. Paid and AwaitingPayment clear the draft; an
// error leaves it intact so the buyer can retry.
func (f *Finalizer) Finalize(orgSlug, eventSlug string, result models.SubmissionResult) Outcome {
	return models.MatchResult(result,
		func(r models.PaidResult) Outcome {
			f.clear(orgSlug, eventSlug)
			return ShowConfirmation{OrderID: r.OrderID}
		},
		func(r models.AwaitingPaymentResult) Outcome {
			f.clear(orgSlug, eventSlug)
			return ExternalRedirect{OrderID: r.OrderID, URL: r.CheckoutURL}
		},
		func(r models.ErrorResult) Outcome {
			return ShowError{Kind: r.Kind, Message: r.Message}
		},
	)
}

// The order exists at this point, so a failed clear is logged rather than
// reported as a checkout failure.
func (f *Finalizer) clear(orgSlug, eventSlug string) {
	if err := f.store.Clear(orgSlug, eventSlug); err != nil {
		log.Printf("Failed to clear checkout draft %s: %v", DraftKey(orgSlug, eventSlug), err)
	}
}
