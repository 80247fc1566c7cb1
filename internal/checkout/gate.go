package checkout

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"event-checkout-platform/internal/models"
)

// IsComplete reports whether answers satisfy a single field
func IsComplete(answers map[string]any, field models.FormField) bool {
	if !field.Required {
		return true
	}

	value, ok := answers[field.Key]
	if !ok || value == nil {
		return false
	}

	if field.Type == models.FieldCheckbox {
		checked, ok := value.(bool)
		return ok && checked
	}

	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		f := float64(v)
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case json.Number:
		f, err := v.Float64()
		return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return true
}

// MissingKeys returns the keys of required fields the answers do not satisfy, in field order
func MissingKeys(answers map[string]any, fields []models.FormField) []string {
	var missing []string
	for _, field := range models.SortFields(fields) {
		if !IsComplete(answers, field) {
			missing = append(missing, field.Key)
		}
	}
	return missing
}

// AllAttendeesValid reports whether every attendee satisfies every required
// field. Trivially true when there are no attendees.
func AllAttendeesValid(attendees []models.Attendee, fields []models.FormField) bool {
	for _, attendee := range attendees {
		for _, field := range fields {
			if !IsComplete(attendee.Answers, field) {
				return false
			}
		}
	}
	return true
}

// MissingFields maps slot index to the required field keys still unanswered
func MissingFields(attendees []models.Attendee, fields []models.FormField) map[int][]string {
	missing := make(map[int][]string)
	for i, attendee := range attendees {
		if keys := MissingKeys(attendee.Answers, fields); len(keys) > 0 {
			missing[i] = keys
		}
	}
	return missing
}

// SetAnswers merges answers into the attendee at index and resets the terms
// acceptance. A nil value removes the answer.
func SetAnswers(draft *models.CheckoutDraft, index int, answers map[string]any) error {
	if index < 0 || index >= len(draft.Attendees) {
		return fmt.Errorf("%w: %d", models.ErrSlotOutOfRange, index)
	}

	for k, v := range answers {
		if n, ok := v.(float64); ok && (math.IsNaN(n) || math.IsInf(n, 0)) {
			return fmt.Errorf("%w: %s must be a finite number", models.ErrInvalidInput, k)
		}
	}

	attendee := &draft.Attendees[index]
	merged := make(map[string]any, len(attendee.Answers)+len(answers))
	for k, v := range attendee.Answers {
		merged[k] = v
	}
	for k, v := range answers {
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	attendee.Answers = merged

	draft.AcceptedTerms = false
	return nil
}

// AcceptTerms records terms acceptance once the draft can proceed to payment
func AcceptTerms(draft *models.CheckoutDraft, fields []models.FormField) error {
	if draft.IsEmpty() {
		return models.ErrEmptyCart
	}
	if !AllAttendeesValid(draft.Attendees, fields) {
		return models.ErrAttendeesIncomplete
	}
	draft.AcceptedTerms = true
	return nil
}
