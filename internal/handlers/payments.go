package handlers

import (
	"context"
	"encoding/json"
	"html/template"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"event-checkout-platform/internal/models"
	"event-checkout-platform/internal/services"
)

// OrderSettler re-checks an order with its payment provider
type OrderSettler interface {
	SettleOrder(ctx context.Context, orderID string) (*models.OrderStatusView, error)
}

// WebhookVerifier checks that a webhook body was signed by the provider
type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) bool
}

// PaymentHandler serves payment provider callbacks and the mock payment page
type PaymentHandler struct {
	settler  OrderSettler
	verifier WebhookVerifier
	mock     *services.MockPaymentProvider
}

// NewPaymentHandler creates a payment handler. verifier and mock may be nil
// when the corresponding provider is not in use.
func NewPaymentHandler(settler OrderSettler, verifier WebhookVerifier, mock *services.MockPaymentProvider) *PaymentHandler {
	return &PaymentHandler{settler: settler, verifier: verifier, mock: mock}
}

// Routes registers the payment routes under /payments
func (h *PaymentHandler) Routes(r chi.Router) {
	if h.verifier != nil {
		r.Post("/paystack/webhook", h.PaystackWebhook)
	}
	if h.mock != nil {
		r.Get("/mock/{reference}", h.MockPaymentPage)
		r.Post("/mock/{reference}", h.CompleteMockPayment)
	}
}

// PaystackWebhook settles the order a signed charge event refers to. The
// event body is not trusted for the outcome: the order is re-verified with
// Paystack.
func (h *PaymentHandler) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	if !h.verifier.VerifyWebhookSignature(body, r.Header.Get("X-Paystack-Signature")) {
		log.Printf("Rejected Paystack webhook with invalid signature")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var event services.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	orderID := event.Data.MetadataValue("order_id")
	if orderID == "" {
		log.Printf("Paystack webhook %s for %s has no order id", event.Event, event.Data.Reference)
		w.WriteHeader(http.StatusOK)
		return
	}

	view, err := h.settler.SettleOrder(r.Context(), orderID)
	if err != nil {
		// A non-2xx response makes Paystack retry later.
		log.Printf("Paystack webhook %s: failed to settle order %s: %v", event.Event, orderID, err)
		http.Error(w, "Settlement failed", http.StatusInternalServerError)
		return
	}

	log.Printf("Paystack webhook %s: order %s is %s", event.Event, orderID, view.Status)
	w.WriteHeader(http.StatusOK)
}

var mockPageTemplate = template.Must(template.New("mock").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Test payment</title></head>
<body>
<h1>Test payment</h1>
<p>{{.Reference}}: {{.Amount}} {{.Currency}} for {{.Email}}</p>
{{if .Pending}}
<form method="post" action="?outcome=success"><button type="submit">Pay</button></form>
<form method="post" action="?outcome=failure"><button type="submit">Decline</button></form>
{{else}}
<p>This payment is already {{.State}}.</p>
{{end}}
</body>
</html>`))

// MockPaymentPage renders the stand-in hosted payment page
func (h *PaymentHandler) MockPaymentPage(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	req, state, ok := h.mock.Lookup(reference)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := mockPageTemplate.Execute(w, map[string]any{
		"Reference": reference,
		"Amount":    req.Amount,
		"Currency":  req.Currency,
		"Email":     req.Email,
		"Pending":   state == services.PaymentPending,
		"State":     state,
	})
	if err != nil {
		log.Printf("Failed to render mock payment page: %v", err)
	}
}

// CompleteMockPayment settles a mock payment and sends the buyer back to the
// callback URL, as a hosted payment page would.
func (h *PaymentHandler) CompleteMockPayment(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "reference")
	succeeded := r.URL.Query().Get("outcome") == "success"

	callbackURL, err := h.mock.Complete(reference, succeeded)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	log.Printf("Mock payment %s completed (success=%t)", reference, succeeded)
	http.Redirect(w, r, callbackURL, http.StatusSeeOther)
}
