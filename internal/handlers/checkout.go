package handlers

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"event-checkout-platform/internal/checkout"
	"event-checkout-platform/internal/middleware"
	"event-checkout-platform/internal/models"
	"event-checkout-platform/internal/services"
)

// checkoutIDKey holds the per-browser checkout id in the session
const checkoutIDKey = "checkout_id"

// CheckoutHandler serves the multi-step checkout of one event
type CheckoutHandler struct {
	backend    services.Backend
	checkout   *checkout.Service
	store      sessions.Store
	tokenField string
}

// NewCheckoutHandler creates a new checkout handler. tokenField names the
// form field carrying the anti-abuse token.
func NewCheckoutHandler(backend services.Backend, svc *checkout.Service, store sessions.Store, tokenField string) *CheckoutHandler {
	return &CheckoutHandler{
		backend:    backend,
		checkout:   svc,
		store:      store,
		tokenField: tokenField,
	}
}

// Routes registers the checkout steps. The router is expected to be
// mounted under /o/{org}/e/{event}. submitMiddleware wraps only the
// submission route.
func (h *CheckoutHandler) Routes(r chi.Router, submitMiddleware ...func(http.Handler) http.Handler) {
	r.Get("/checkout", h.ShowCheckout)
	r.Post("/checkout/quantities", h.UpdateQuantity)
	r.Get("/checkout/attendees", h.ShowAttendees)
	r.Post("/checkout/attendees/{index}", h.UpdateAttendee)
	r.Get("/checkout/payment", h.ShowPayment)
	r.Post("/checkout/terms", h.AcceptTerms)
	r.With(submitMiddleware...).Post("/checkout/submit", h.Submit)
	r.Post("/checkout/cancel", h.Cancel)
}

// checkoutView is the state of a checkout as rendered to the buyer
type checkoutView struct {
	Event               models.Event       `json:"event"`
	Products            []models.Product   `json:"products"`
	Fields              []models.FormField `json:"fields"`
	Quantities          map[string]int     `json:"quantities"`
	Attendees           []attendeeView     `json:"attendees"`
	AcceptedTerms       bool               `json:"acceptedTerms"`
	CanProceedToPayment bool               `json:"canProceedToPayment"`
	Total               int                `json:"total"`
	CSRFToken           string             `json:"csrfToken,omitempty"`
}

type attendeeView struct {
	Index       int            `json:"index"`
	ProductID   string         `json:"productId"`
	ProductName string         `json:"productName"`
	Answers     map[string]any `json:"answers"`
	Missing     []string       `json:"missing,omitempty"`
}

// ShowCheckout renders the ticket selection step
func (h *CheckoutHandler) ShowCheckout(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}
	h.render(w, r, session)
}

// UpdateQuantity sets the quantity of one product
func (h *CheckoutHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, models.KindValidation, "Invalid form data")
		return
	}

	productID := r.FormValue("product_id")
	quantity, err := strconv.Atoi(strings.TrimSpace(r.FormValue("quantity")))
	if productID == "" || err != nil {
		writeError(w, r, models.KindValidation, "Invalid quantity")
		return
	}

	session, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := session.SetQuantity(productID, quantity); err != nil {
		writeClassified(w, r, err)
		return
	}
	h.afterUpdate(w, r, session, "")
}

// ShowAttendees renders the attendee details step
func (h *CheckoutHandler) ShowAttendees(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}
	if session.Draft().IsEmpty() {
		handleRedirect(w, r, stepURL(r, ""))
		return
	}
	h.render(w, r, session)
}

// UpdateAttendee merges submitted answers into one attendee slot. Only the
// event's form fields are read from the form; checkbox fields absent from
// the form are unchecked.
func (h *CheckoutHandler) UpdateAttendee(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, r, models.KindNotFound, "That attendee does not exist.")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, r, models.KindValidation, "Invalid form data")
		return
	}

	session, ok := h.open(w, r)
	if !ok {
		return
	}

	answers, err := answersFromForm(r.PostForm, session.Catalog().Fields)
	if err != nil {
		writeError(w, r, models.KindValidation, err.Error())
		return
	}
	if err := session.SetAnswers(index, answers); err != nil {
		writeClassified(w, r, err)
		return
	}
	h.afterUpdate(w, r, session, "attendees")
}

// ShowPayment renders the payment step. Buyers whose attendee details are
// incomplete are sent back to the attendee step.
func (h *CheckoutHandler) ShowPayment(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}
	if session.Draft().IsEmpty() {
		handleRedirect(w, r, stepURL(r, ""))
		return
	}
	if !session.CanProceedToPayment() {
		handleRedirect(w, r, stepURL(r, "attendees"))
		return
	}
	h.render(w, r, session)
}

// AcceptTerms records the buyer's acceptance of the terms
func (h *CheckoutHandler) AcceptTerms(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, models.KindValidation, "Invalid form data")
		return
	}
	if !isChecked(r.PostForm, "accept_terms") {
		writeError(w, r, models.KindValidation, "Please accept the terms to continue.")
		return
	}

	session, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := session.AcceptTerms(); err != nil {
		writeClassified(w, r, err)
		return
	}
	h.afterUpdate(w, r, session, "payment")
}

// Submit places the order and routes the buyer by its outcome
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, models.KindValidation, "Invalid form data")
		return
	}

	session, ok := h.open(w, r)
	if !ok {
		return
	}

	buyer := models.Buyer{
		Email: r.PostFormValue("email"),
		Name:  r.PostFormValue("name"),
		Phone: r.PostFormValue("phone"),
	}

	outcome, err := session.Submit(r.Context(), buyer, r.PostFormValue(h.tokenField))
	switch {
	case errors.Is(err, models.ErrSubmissionAbandoned):
		// The buyer left; nobody is listening for the response.
		return
	case errors.Is(err, models.ErrAttendeeMismatch), errors.Is(err, models.ErrAttendeesIncomplete):
		handleRedirect(w, r, stepURL(r, "attendees"))
		return
	case err != nil:
		writeClassified(w, r, err)
		return
	}

	checkout.MatchOutcome(outcome,
		func(o checkout.ShowConfirmation) struct{} {
			handleRedirect(w, r, orderURL(r, o.OrderID))
			return struct{}{}
		},
		func(o checkout.ExternalRedirect) struct{} {
			log.Printf("Order %s awaiting payment, redirecting buyer", o.OrderID)
			handleRedirect(w, r, o.URL)
			return struct{}{}
		},
		func(o checkout.ShowError) struct{} {
			writeError(w, r, o.Kind, o.Message)
			return struct{}{}
		},
	)
}

// Cancel discards the checkout draft
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := session.Cancel(); err != nil {
		writeClassified(w, r, err)
		return
	}
	h.afterUpdate(w, r, session, "")
}

// open loads the catalog and the buyer's draft. On failure the error
// response has been written.
func (h *CheckoutHandler) open(w http.ResponseWriter, r *http.Request) (*checkout.Session, bool) {
	orgSlug, eventSlug := chi.URLParam(r, "org"), chi.URLParam(r, "event")

	catalog, err := checkout.LoadCatalog(r.Context(), h.backend, orgSlug, eventSlug)
	if err != nil {
		writeClassified(w, r, err)
		return nil, false
	}

	backing := checkout.NewSessionBacking(h.store, w, r)
	checkoutID, err := ensureCheckoutID(backing)
	if err != nil {
		writeClassified(w, r, err)
		return nil, false
	}

	guardKey := checkoutID + ":" + checkout.DraftKey(orgSlug, eventSlug)
	session, err := h.checkout.Open(checkout.NewDraftStore(backing), catalog, guardKey)
	if err != nil {
		writeClassified(w, r, err)
		return nil, false
	}
	return session, true
}

func ensureCheckoutID(backing checkout.Backing) (string, error) {
	if id, ok := backing.Get(checkoutIDKey); ok && id != "" {
		return id, nil
	}
	id := uuid.NewString()
	if err := backing.Set(checkoutIDKey, id); err != nil {
		return "", fmt.Errorf("failed to start checkout session: %w", err)
	}
	return id, nil
}

// afterUpdate answers a successful state change: JSON and HTMX clients get
// the new state, plain form posts are redirected to the step.
func (h *CheckoutHandler) afterUpdate(w http.ResponseWriter, r *http.Request, session *checkout.Session, step string) {
	if wantsJSON(r) || middleware.IsHTMXRequest(r) {
		h.render(w, r, session)
		return
	}
	http.Redirect(w, r, stepURL(r, step), http.StatusSeeOther)
}

func (h *CheckoutHandler) render(w http.ResponseWriter, r *http.Request, session *checkout.Session) {
	catalog := session.Catalog()
	draft := session.Draft()
	missing := session.MissingFields()

	attendees := make([]attendeeView, 0, len(draft.Attendees))
	for _, slot := range session.Slots() {
		product, _ := models.FindProduct(catalog.Products, slot.ProductID)
		attendees = append(attendees, attendeeView{
			Index:       slot.Index,
			ProductID:   slot.ProductID,
			ProductName: product.Name,
			Answers:     draft.Attendees[slot.Index].Answers,
			Missing:     missing[slot.Index],
		})
	}

	writeJSON(w, http.StatusOK, checkoutView{
		Event:               catalog.Event,
		Products:            catalog.Products,
		Fields:              catalog.Fields,
		Quantities:          draft.Quantities,
		Attendees:           attendees,
		AcceptedTerms:       draft.AcceptedTerms,
		CanProceedToPayment: session.CanProceedToPayment(),
		Total:               draft.Total(catalog.Products),
		CSRFToken:           middleware.CSRFToken(r.Context()),
	})
}

// answersFromForm converts posted values into typed answers for the given fields
func answersFromForm(form url.Values, fields []models.FormField) (map[string]any, error) {
	answers := make(map[string]any)
	for _, field := range fields {
		if field.Type == models.FieldCheckbox {
			answers[field.Key] = isChecked(form, field.Key)
			continue
		}

		values, present := form[field.Key]
		if !present || len(values) == 0 {
			continue
		}
		value := strings.TrimSpace(values[0])

		switch {
		case value == "":
			answers[field.Key] = nil
		case field.Type == models.FieldNumber:
			n, err := strconv.ParseFloat(value, 64)
			if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
				return nil, fmt.Errorf("%s must be a number", field.Label)
			}
			answers[field.Key] = n
		default:
			answers[field.Key] = value
		}
	}
	return answers, nil
}

func isChecked(form url.Values, key string) bool {
	switch strings.ToLower(form.Get(key)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// stepURL is the checkout page for a step of the current event
func stepURL(r *http.Request, step string) string {
	base := fmt.Sprintf("/o/%s/e/%s/checkout", url.PathEscape(chi.URLParam(r, "org")), url.PathEscape(chi.URLParam(r, "event")))
	if step == "" {
		return base
	}
	return base + "/" + step
}

// orderURL is the order page of the current event
func orderURL(r *http.Request, orderID string) string {
	return fmt.Sprintf("/o/%s/e/%s/orders/%s", url.PathEscape(chi.URLParam(r, "org")), url.PathEscape(chi.URLParam(r, "event")), url.PathEscape(orderID))
}
