package models

import "sort"

// FieldType represents the input type of a dynamic attendee form field
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldEmail    FieldType = "email"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldDate     FieldType = "date"
	FieldCountry  FieldType = "country"
	FieldPhone    FieldType = "phone"
)

// Valid reports whether the field type is one of the supported types
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldEmail, FieldNumber, FieldSelect,
		FieldCheckbox, FieldDate, FieldCountry, FieldPhone:
		return true
	}
	return false
}

// FormField represents an event-specific attendee question
type FormField struct {
	ID        string    `json:"id" db:"id"`
	EventID   string    `json:"eventId" db:"event_id"`
	Key       string    `json:"key" db:"key"`
	Label     string    `json:"label" db:"label"`
	Type      FieldType `json:"type" db:"type"`
	Required  bool      `json:"required" db:"required"`
	Options   []string  `json:"options,omitempty" db:"options"`
	SortOrder int       `json:"sortOrder" db:"sort_order"`
}

// SortFields returns a copy of fields ordered by sort order, then key.
func SortFields(fields []FormField) []FormField {
	sorted := make([]FormField, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SortOrder != sorted[j].SortOrder {
			return sorted[i].SortOrder < sorted[j].SortOrder
		}
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}

// FieldIndex maps field keys to field ids
func FieldIndex(fields []FormField) map[string]string {
	index := make(map[string]string, len(fields))
	for _, f := range fields {
		index[f.Key] = f.ID
	}
	return index
}
