package checkout

import (
	"strings"

	"event-checkout-platform/internal/models"
)

// BuildPayload turns a finished draft into an order-creation payload. It
// refuses an empty selection and an attendee list that no longer matches the
// selected quantities; both are checked before anything leaves the process.
func BuildPayload(eventID string, draft *models.CheckoutDraft, products []models.Product, fields []models.FormField, buyer models.Buyer, antiAbuseToken string) (*models.SubmissionPayload, error) {
	var selected []models.Product
	quantities := make(map[string]int)
	items := []models.LineItem{}
	for _, p := range models.SortProducts(products) {
		q := draft.Quantities[p.ID]
		if q <= 0 {
			continue
		}
		selected = append(selected, p)
		quantities[p.ID] = q
		items = append(items, models.LineItem{ProductID: p.ID, Quantity: q})
	}
	if len(items) == 0 {
		return nil, models.ErrEmptyCart
	}

	slots := ExpandSlots(quantities, selected)
	if len(slots) != len(draft.Attendees) {
		return nil, models.ErrAttendeeMismatch
	}

	ordered := models.SortFields(fields)
	attendees := make([]models.AttendeeSubmission, len(slots))
	for i, productID := range slots {
		answers := []models.AnswerSubmission{}
		for _, field := range ordered {
			value, ok := draft.Attendees[i].Answers[field.Key]
			if !ok || value == nil {
				continue
			}
			answers = append(answers, models.AnswerSubmission{FieldID: field.ID, Value: value})
		}
		attendees[i] = models.AttendeeSubmission{ProductID: productID, Answers: answers}
	}

	return &models.SubmissionPayload{
		EventID:   eventID,
		Items:     items,
		Attendees: attendees,
		Buyer: models.Buyer{
			Email: strings.TrimSpace(buyer.Email),
			Name:  strings.TrimSpace(buyer.Name),
			Phone: strings.TrimSpace(buyer.Phone),
		},
		AntiAbuseToken: antiAbuseToken,
	}, nil
}
