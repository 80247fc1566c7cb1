package models

import (
	"errors"
	"regexp"
	"strings"
)

var buyerEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// SubmissionPayload is the body of the remote order-creation call
type SubmissionPayload struct {
	EventID        string               `json:"eventId"`
	Items          []LineItem           `json:"items"`
	Attendees      []AttendeeSubmission `json:"attendees"`
	Buyer          Buyer                `json:"buyer"`
	AntiAbuseToken string               `json:"antiAbuseToken"`
}

// LineItem is one selected product and its quantity
type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AttendeeSubmission carries one attendee slot's resolved answers
type AttendeeSubmission struct {
	ProductID string             `json:"productId"`
	Answers   []AnswerSubmission `json:"answers"`
}

// AnswerSubmission is a single answer addressed by field id
type AnswerSubmission struct {
	FieldID string `json:"fieldId"`
	Value   any    `json:"value"`
}

// Buyer holds the purchaser's contact details
type Buyer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Validate validates buyer contact information
func (b Buyer) Validate() error {
	email := strings.TrimSpace(b.Email)
	if email == "" {
		return errors.New("buyer email is required")
	}
	if len(email) > 255 {
		return errors.New("buyer email must be less than 255 characters")
	}
	if !buyerEmailRegex.MatchString(email) {
		return errors.New("buyer email format is invalid")
	}
	if len(b.Name) > 255 {
		return errors.New("buyer name must be less than 255 characters")
	}
	return nil
}

// Quantity returns the total number of units in the payload
func (p *SubmissionPayload) Quantity() int {
	total := 0
	for _, item := range p.Items {
		total += item.Quantity
	}
	return total
}
