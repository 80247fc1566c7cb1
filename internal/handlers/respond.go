package handlers

import (
	"encoding/json"
	"errors"
	"html"
	"log"
	"net/http"
	"strings"

	"event-checkout-platform/internal/middleware"
	"event-checkout-platform/internal/models"
	"event-checkout-platform/internal/services"
)

// maxBodyBytes bounds request bodies the handlers decode
const maxBodyBytes = 1 << 20

type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    models.ErrorKind `json:"code"`
	Message string           `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to write response: %v", err)
	}
}

// writeError answers with a classified error: an alert fragment for HTMX,
// the JSON error envelope otherwise.
func writeError(w http.ResponseWriter, r *http.Request, kind models.ErrorKind, message string) {
	status := services.StatusForKind(kind)
	if middleware.IsHTMXRequest(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(`<div class="alert alert-error" role="alert" data-kind="` + string(kind) + `"><p>` + html.EscapeString(message) + `</p></div>`))
		return
	}
	writeJSON(w, status, errorEnvelope{Error: errorDetail{Code: kind, Message: message}})
}

// handleRedirect handles redirects appropriately for HTMX, JSON and regular requests
func handleRedirect(w http.ResponseWriter, r *http.Request, url string) {
	switch {
	case middleware.IsHTMXRequest(r):
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
	case wantsJSON(r):
		writeJSON(w, http.StatusOK, map[string]string{"redirect": url})
	default:
		http.Redirect(w, r, url, http.StatusSeeOther)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// classify maps checkout and backend errors onto the error taxonomy with a
// message fit for the buyer.
func classify(err error) (models.ErrorKind, string) {
	var backendErr *models.BackendError
	switch {
	case errors.As(err, &backendErr):
		result := models.ClassifyError(backendErr)
		return result.Kind, result.Message
	case errors.Is(err, models.ErrUnknownProduct):
		return models.KindValidation, "That ticket is not sold for this event."
	case errors.Is(err, models.ErrEmptyCart):
		return models.KindValidation, "Please select at least one ticket."
	case errors.Is(err, models.ErrSlotOutOfRange):
		return models.KindNotFound, "That attendee does not exist."
	case errors.Is(err, models.ErrAttendeesIncomplete):
		return models.KindValidation, "Please complete the details for every attendee."
	case errors.Is(err, models.ErrAttendeeMismatch):
		return models.KindConflict, "Your ticket selection changed. Please review the attendee details."
	case errors.Is(err, models.ErrTermsNotAccepted):
		return models.KindValidation, "Please accept the terms to continue."
	case errors.Is(err, models.ErrSubmissionInFlight):
		return models.KindConflict, "Your order is already being placed."
	case errors.Is(err, models.ErrInvalidInput):
		return models.KindValidation, strings.TrimPrefix(err.Error(), models.ErrInvalidInput.Error()+": ")
	}
	result := models.ClassifyError(err)
	return result.Kind, result.Message
}

func writeClassified(w http.ResponseWriter, r *http.Request, err error) {
	kind, message := classify(err)
	if kind == models.KindUnknown || kind == models.KindNetwork {
		log.Printf("%s %s failed: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, r, kind, message)
}
