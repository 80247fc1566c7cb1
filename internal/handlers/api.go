package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"event-checkout-platform/internal/models"
	"event-checkout-platform/internal/services"
)

// BackendAPIHandler exposes a Backend over the JSON API RemoteBackend consumes
type BackendAPIHandler struct {
	backend services.Backend
	apiKey  string
}

// NewBackendAPIHandler creates the API handler. An empty apiKey disables
// authentication.
func NewBackendAPIHandler(backend services.Backend, apiKey string) *BackendAPIHandler {
	return &BackendAPIHandler{backend: backend, apiKey: apiKey}
}

// Routes registers the API routes; mount under /v1
func (h *BackendAPIHandler) Routes(r chi.Router) {
	r.Use(h.requireAPIKey)
	r.Get("/events/{ref}/products", h.ListProducts)
	r.Get("/events/{ref}/form-fields", h.ListFormFields)
	r.Get("/events/{ref}/{event}", h.GetEvent)
	r.Post("/orders", h.CreateOrder)
	r.Get("/orders/{id}", h.GetOrder)
}

func (h *BackendAPIHandler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey != "" {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey)) != 1 {
				writeAPIError(w, models.NewBackendError(models.KindUnauthenticated, "Invalid API key."))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// GetEvent returns an event by organization and event slug
func (h *BackendAPIHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.backend.GetEvent(r.Context(), chi.URLParam(r, "ref"), chi.URLParam(r, "event"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ListProducts returns an event's products
func (h *BackendAPIHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.backend.ListProducts(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// ListFormFields returns an event's attendee form fields
func (h *BackendAPIHandler) ListFormFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.backend.ListFormFields(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if fields == nil {
		fields = []models.FormField{}
	}
	writeJSON(w, http.StatusOK, fields)
}

// CreateOrder places an order. Success variants are 201; an error result is
// written with the status of its kind.
func (h *BackendAPIHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var payload models.SubmissionPayload
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&payload); err != nil {
		writeAPIError(w, models.NewBackendError(models.KindValidation, "Request body is not a valid order."))
		return
	}

	result, err := h.backend.CreateOrder(r.Context(), r.Header.Get("Idempotency-Key"), &payload)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	body, err := models.EncodeSubmissionResult(result)
	if err != nil {
		writeAPIError(w, err)
		return
	}

	status := models.MatchResult(result,
		func(models.PaidResult) int { return http.StatusCreated },
		func(models.AwaitingPaymentResult) int { return http.StatusCreated },
		func(e models.ErrorResult) int { return services.StatusForKind(e.Kind) },
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// GetOrder returns an order's status
func (h *BackendAPIHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	view, err := h.backend.GetOrderStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func writeAPIError(w http.ResponseWriter, err error) {
	result := models.ClassifyError(err)
	if result.Kind == models.KindUnknown {
		log.Printf("API request failed: %v", err)
	}
	writeJSON(w, services.StatusForKind(result.Kind), errorEnvelope{Error: errorDetail{Code: result.Kind, Message: result.Message}})
}
