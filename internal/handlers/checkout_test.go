package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-checkout-platform/internal/checkout"
	"event-checkout-platform/internal/models"
)

const base = "/o/acme/e/launch/checkout"

func decodeView(t *testing.T, resp *http.Response) checkoutView {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view checkoutView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func decodeError(t *testing.T, resp *http.Response) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func completeAttendee(c *checkoutClient, index, name string) checkoutView {
	resp := c.do("POST", base+"/attendees/"+index, url.Values{"name": {name}, "waiver": {"on"}, "age": {"30"}}, jsonHeaders)
	return decodeView(c.t, resp)
}

func TestCheckoutFlow_FreeOrder(t *testing.T) {
	backend := newFakeBackend()
	c := newCheckoutServer(t, backend, checkout.InvalidateAll)

	view := decodeView(t, c.do("GET", base, nil, jsonHeaders))
	assert.Equal(t, "event-1", view.Event.ID)
	assert.Len(t, view.Products, 2)
	assert.Empty(t, view.Attendees)

	view = decodeView(t, c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"2"}}, jsonHeaders))
	assert.Equal(t, 2, view.Quantities["prod-a"])
	require.Len(t, view.Attendees, 2)
	assert.Equal(t, []string{"name", "waiver"}, view.Attendees[0].Missing)
	assert.False(t, view.CanProceedToPayment)
	assert.Equal(t, 2000, view.Total)

	completeAttendee(c, "0", "Ada")
	view = completeAttendee(c, "1", "Grace")
	assert.True(t, view.CanProceedToPayment)
	assert.Equal(t, 30.0, view.Attendees[1].Answers["age"])
	assert.Equal(t, true, view.Attendees[1].Answers["waiver"])

	decodeView(t, c.do("GET", base+"/payment", nil, jsonHeaders))

	view = decodeView(t, c.do("POST", base+"/terms", url.Values{"accept_terms": {"on"}}, jsonHeaders))
	assert.True(t, view.AcceptedTerms)

	resp := c.do("POST", base+"/submit", url.Values{"email": {"buyer@example.com"}, "name": {"Buyer"}, "anti_abuse_token": {"tok"}}, jsonHeaders)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var redirect map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&redirect))
	assert.Equal(t, "/o/acme/e/launch/orders/order-1", redirect["redirect"])

	require.Len(t, backend.payloads, 1)
	payload := backend.payloads[0]
	assert.Equal(t, "event-1", payload.EventID)
	assert.Equal(t, "tok", payload.AntiAbuseToken)
	assert.Equal(t, []models.LineItem{{ProductID: "prod-a", Quantity: 2}}, payload.Items)
	require.Len(t, payload.Attendees, 2)
	assert.Equal(t, "Ada", payload.Attendees[0].Answers[0].Value)
	assert.NotEmpty(t, backend.keys[0])

	view = decodeView(t, c.do("GET", base, nil, jsonHeaders))
	assert.Empty(t, view.Quantities, "draft is cleared after a successful order")
	assert.Empty(t, view.Attendees)
}

func TestCheckout_QuantityChangeResetsAttendeesAndTerms(t *testing.T) {
	c := newCheckoutServer(t, newFakeBackend(), checkout.InvalidateAll)

	c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"1"}}, jsonHeaders)
	completeAttendee(c, "0", "Ada")
	view := decodeView(t, c.do("POST", base+"/terms", url.Values{"accept_terms": {"on"}}, jsonHeaders))
	require.True(t, view.AcceptedTerms)

	view = decodeView(t, c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"2"}}, jsonHeaders))
	require.Len(t, view.Attendees, 2)
	assert.Empty(t, view.Attendees[0].Answers, "answers are cleared on quantity change")
	assert.False(t, view.AcceptedTerms)
}

func TestCheckout_NonFiniteNumberIsRejected(t *testing.T) {
	for _, value := range []string{"NaN", "Inf", "-infinity"} {
		t.Run(value, func(t *testing.T) {
			c := newCheckoutServer(t, newFakeBackend(), checkout.InvalidateAll)
			c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"1"}}, jsonHeaders)

			resp := c.do("POST", base+"/attendees/0", url.Values{"name": {"Ada"}, "age": {value}}, jsonHeaders)
			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			env := decodeError(t, resp)
			assert.Equal(t, models.KindValidation, env.Error.Code)
			assert.Equal(t, "Age must be a number", env.Error.Message)

			view := decodeView(t, c.do("GET", base, nil, jsonHeaders))
			require.Len(t, view.Attendees, 1)
			assert.NotContains(t, view.Attendees[0].Answers, "age")
		})
	}
}

func TestCheckout_QuantityIsClampedToStock(t *testing.T) {
	c := newCheckoutServer(t, newFakeBackend(), checkout.InvalidateAll)

	view := decodeView(t, c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"50"}}, jsonHeaders))
	assert.Equal(t, 10, view.Quantities["prod-a"])

	view = decodeView(t, c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"-3"}}, jsonHeaders))
	assert.NotContains(t, view.Quantities, "prod-a")
}

func TestCheckout_InvalidRequests(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		form       url.Values
		wantStatus int
		wantCode   models.ErrorKind
	}{
		{"unknown event", "GET", "/o/acme/e/missing/checkout", nil, http.StatusNotFound, models.KindNotFound},
		{"non-numeric quantity", "POST", base + "/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"two"}}, http.StatusUnprocessableEntity, models.KindValidation},
		{"unknown product", "POST", base + "/quantities", url.Values{"product_id": {"prod-zzz"}, "quantity": {"1"}}, http.StatusUnprocessableEntity, models.KindValidation},
		{"attendee out of range", "POST", base + "/attendees/5", url.Values{"name": {"Ada"}}, http.StatusNotFound, models.KindNotFound},
		{"terms not ticked", "POST", base + "/terms", url.Values{}, http.StatusUnprocessableEntity, models.KindValidation},
		{"terms with empty cart", "POST", base + "/terms", url.Values{"accept_terms": {"on"}}, http.StatusUnprocessableEntity, models.KindValidation},
		{"submit empty cart", "POST", base + "/submit", url.Values{"email": {"a@b.co"}}, http.StatusUnprocessableEntity, models.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCheckoutServer(t, newFakeBackend(), checkout.InvalidateAll)
			resp := c.do(tt.method, tt.path, tt.form, jsonHeaders)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			env := decodeError(t, resp)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.NotEmpty(t, env.Error.Message)
		})
	}
}

func TestCheckout_StepRedirects(t *testing.T) {
	c := newCheckoutServer(t, newFakeBackend(), checkout.InvalidateAll)

	resp := c.do("GET", base+"/attendees", nil, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, base, resp.Header.Get("Location"))

	resp = c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"1"}}, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "plain form posts redirect back to the step")

	resp = c.do("GET", base+"/payment", nil, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, base+"/attendees", resp.Header.Get("Location"))

	resp = c.do("GET", base+"/payment", nil, map[string]string{"HX-Request": "true"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, base+"/attendees", resp.Header.Get("HX-Redirect"))
}

func TestCheckout_SubmitOutcomes(t *testing.T) {
	tests := []struct {
		name         string
		result       models.SubmissionResult
		err          error
		wantStatus   int
		wantRedirect string
		wantCode     models.ErrorKind
		draftKept    bool
	}{
		{
			name:         "awaiting payment redirects to provider",
			result:       models.AwaitingPaymentResult{OrderID: "order-2", CheckoutURL: "https://pay.example.com/abc"},
			wantStatus:   http.StatusOK,
			wantRedirect: "https://pay.example.com/abc",
		},
		{
			name:       "error result keeps the buyer on the page",
			result:     models.ErrorResult{Kind: models.KindConflict, Message: "Sorry, only 1 left for General Admission."},
			wantStatus: http.StatusConflict,
			wantCode:   models.KindConflict,
			draftKept:  true,
		},
		{
			name:       "transport failure",
			err:        models.NewBackendError(models.KindNetwork, models.NetworkErrorMessage),
			wantStatus: http.StatusBadGateway,
			wantCode:   models.KindNetwork,
			draftKept:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.createResult = tt.result
			backend.createErr = tt.err
			c := newCheckoutServer(t, backend, checkout.InvalidateAll)

			c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"1"}}, jsonHeaders)
			completeAttendee(c, "0", "Ada")
			c.do("POST", base+"/terms", url.Values{"accept_terms": {"on"}}, jsonHeaders)

			resp := c.do("POST", base+"/submit", url.Values{"email": {"buyer@example.com"}}, map[string]string{"HX-Request": "true"})
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantRedirect != "" {
				assert.Equal(t, tt.wantRedirect, resp.Header.Get("HX-Redirect"))
			}
			if tt.wantCode != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), `data-kind="`+string(tt.wantCode)+`"`)
			}

			view := decodeView(t, c.do("GET", base, nil, jsonHeaders))
			if tt.draftKept {
				assert.Equal(t, 1, view.Quantities["prod-a"])
				assert.True(t, view.AcceptedTerms)
			} else {
				assert.Empty(t, view.Quantities)
			}
		})
	}
}

func TestCheckout_SubmitWithoutTermsOrBuyer(t *testing.T) {
	backend := newFakeBackend()
	c := newCheckoutServer(t, backend, checkout.InvalidateAll)

	c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-a"}, "quantity": {"1"}}, jsonHeaders)

	resp := c.do("POST", base+"/submit", url.Values{"email": {"buyer@example.com"}}, nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "incomplete attendees go back to the attendee step")
	assert.Equal(t, base+"/attendees", resp.Header.Get("Location"))

	completeAttendee(c, "0", "Ada")
	resp = c.do("POST", base+"/submit", url.Values{"email": {"buyer@example.com"}}, jsonHeaders)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Please accept the terms to continue.", decodeError(t, resp).Error.Message)

	c.do("POST", base+"/terms", url.Values{"accept_terms": {"on"}}, jsonHeaders)
	resp = c.do("POST", base+"/submit", url.Values{"email": {"not-an-email"}}, jsonHeaders)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "buyer email format is invalid", decodeError(t, resp).Error.Message)

	assert.Empty(t, backend.payloads, "no order is placed when local checks fail")
}

func TestCheckout_Cancel(t *testing.T) {
	c := newCheckoutServer(t, newFakeBackend(), checkout.InvalidateAll)

	c.do("POST", base+"/quantities", url.Values{"product_id": {"prod-parking"}, "quantity": {"1"}}, jsonHeaders)
	view := decodeView(t, c.do("POST", base+"/cancel", url.Values{}, jsonHeaders))
	assert.Empty(t, view.Quantities)
}

func TestAnswersFromForm(t *testing.T) {
	fields := newFakeBackend().fields

	answers, err := answersFromForm(url.Values{"name": {"  Ada "}, "age": {"41.5"}, "unrelated": {"x"}}, fields)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": "Ada", "age": 41.5, "waiver": false}, answers)

	answers, err = answersFromForm(url.Values{"name": {""}, "waiver": {"true"}}, fields)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"name": nil, "waiver": true}, answers)

	_, err = answersFromForm(url.Values{"age": {"old"}}, fields)
	assert.EqualError(t, err, "Age must be a number")
}
