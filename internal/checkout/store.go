// Package checkout implements the buyer-side checkout state machine: the
// session-held draft, quantity and attendee reconciliation, the completeness
// gate, submission payload construction and result finalization.
package checkout

import (
	"encoding/json"
	"fmt"

	"event-checkout-platform/internal/models"
)

// DraftKey returns the persistence key of the draft for an event
func DraftKey(orgSlug, eventSlug string) string {
	return fmt.Sprintf("checkout:%s:%s", orgSlug, eventSlug)
}

// DraftStore persists checkout drafts through an injected Backing
type DraftStore struct {
	backing Backing
}

// NewDraftStore creates a draft store over the given backing
func NewDraftStore(backing Backing) *DraftStore {
	return &DraftStore{backing: backing}
}

// Load returns the stored draft for the event. Missing or malformed values
// are replaced by their defaults; corrupt data is treated as absent.
func (s *DraftStore) Load(orgSlug, eventSlug string) *models.CheckoutDraft {
	draft := models.NewCheckoutDraft(orgSlug, eventSlug)

	data, ok := s.backing.Get(DraftKey(orgSlug, eventSlug))
	if !ok || data == "" {
		return draft
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return draft
	}

	if value, ok := raw["quantities"]; ok {
		var quantities map[string]int
		if err := json.Unmarshal(value, &quantities); err == nil {
			for productID, q := range quantities {
				if productID != "" && q > 0 {
					draft.Quantities[productID] = q
				}
			}
		}
	}

	if value, ok := raw["attendees"]; ok {
		var entries []json.RawMessage
		if err := json.Unmarshal(value, &entries); err == nil {
			for _, entry := range entries {
				draft.Attendees = append(draft.Attendees, decodeAttendee(entry))
			}
		}
	}

	if value, ok := raw["acceptedTerms"]; ok {
		var accepted bool
		if err := json.Unmarshal(value, &accepted); err == nil {
			draft.AcceptedTerms = accepted
		}
	}

	if value, ok := raw["submissionKey"]; ok {
		var key string
		if err := json.Unmarshal(value, &key); err == nil {
			draft.SubmissionKey = key
		}
	}

	return draft
}

// decodeAttendee keeps the slot position even when the entry is unreadable;
// an unbound slot is rebuilt by the next reconciliation.
func decodeAttendee(entry json.RawMessage) models.Attendee {
	var attendee models.Attendee
	if err := json.Unmarshal(entry, &attendee); err != nil {
		return models.Attendee{Answers: map[string]any{}}
	}
	if attendee.Answers == nil {
		attendee.Answers = map[string]any{}
	}
	return attendee
}

// Save overwrites the stored draft
func (s *DraftStore) Save(draft *models.CheckoutDraft) error {
	stored := *draft
	if stored.Quantities == nil {
		stored.Quantities = map[string]int{}
	}
	if stored.Attendees == nil {
		stored.Attendees = []models.Attendee{}
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode checkout draft: %w", err)
	}

	if err := s.backing.Set(DraftKey(draft.OrgSlug, draft.EventSlug), string(data)); err != nil {
		return fmt.Errorf("failed to save checkout draft: %w", err)
	}
	return nil
}

// Clear removes the stored draft
func (s *DraftStore) Clear(orgSlug, eventSlug string) error {
	if err := s.backing.Delete(DraftKey(orgSlug, eventSlug)); err != nil {
		return fmt.Errorf("failed to clear checkout draft: %w", err)
	}
	return nil
}
