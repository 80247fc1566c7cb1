package handlers

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"

	"event-checkout-platform/internal/checkout"
	"event-checkout-platform/internal/models"
)

func intPtr(i int) *int { return &i }

// fakeBackend is an in-memory services.Backend
type fakeBackend struct {
	mu       sync.Mutex
	event    models.Event
	products []models.Product
	fields   []models.FormField

	createResult models.SubmissionResult
	createErr    error
	payloads     []*models.SubmissionPayload
	keys         []string

	statuses  []*models.OrderStatusView
	statusErr error
	calls     int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		event: models.Event{ID: "event-1", OrgSlug: "acme", Slug: "launch", Name: "Launch Party", Currency: "KES"},
		products: []models.Product{
			{ID: "prod-a", Name: "General Admission", Price: 1000, Currency: "KES", Stock: intPtr(10), CreatesAttendees: true, AttendeesPerUnit: 1, SortOrder: 1},
			{ID: "prod-parking", Name: "Parking", Price: 500, Currency: "KES", SortOrder: 2},
		},
		fields: []models.FormField{
			{ID: "field-name", Key: "name", Label: "Full name", Type: models.FieldText, Required: true, SortOrder: 1},
			{ID: "field-waiver", Key: "waiver", Label: "Waiver", Type: models.FieldCheckbox, Required: true, SortOrder: 2},
			{ID: "field-age", Key: "age", Label: "Age", Type: models.FieldNumber, SortOrder: 3},
		},
		createResult: models.PaidResult{OrderID: "order-1"},
	}
}

func (b *fakeBackend) GetEvent(_ context.Context, orgSlug, eventSlug string) (*models.Event, error) {
	if orgSlug != b.event.OrgSlug || eventSlug != b.event.Slug {
		return nil, models.NewBackendError(models.KindNotFound, "Event not found.")
	}
	event := b.event
	return &event, nil
}

func (b *fakeBackend) ListProducts(_ context.Context, eventID string) ([]models.Product, error) {
	return b.products, nil
}

func (b *fakeBackend) ListFormFields(_ context.Context, eventID string) ([]models.FormField, error) {
	return b.fields, nil
}

func (b *fakeBackend) CreateOrder(_ context.Context, key string, payload *models.SubmissionPayload) (models.SubmissionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payloads = append(b.payloads, payload)
	b.keys = append(b.keys, key)
	return b.createResult, b.createErr
}

// GetOrderStatus returns the scripted statuses in turn, repeating the last
func (b *fakeBackend) GetOrderStatus(_ context.Context, orderID string) (*models.OrderStatusView, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.statusErr != nil {
		return nil, b.statusErr
	}
	i := b.calls - 1
	if i >= len(b.statuses) {
		i = len(b.statuses) - 1
	}
	status := *b.statuses[i]
	return &status, nil
}

func (b *fakeBackend) fetches() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func statusOf(id string, status models.OrderStatus) *models.OrderStatusView {
	return &models.OrderStatusView{ID: id, Status: status}
}

// checkoutClient drives a checkout server with a cookie jar and without
// following redirects.
type checkoutClient struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
}

func newCheckoutServer(t *testing.T, backend *fakeBackend, policy checkout.InvalidationPolicy) *checkoutClient {
	t.Helper()

	store := sessions.NewCookieStore([]byte("test-session-secret"))
	svc := checkout.NewService(checkout.NewReconciler(checkout.DefaultMaxQuantity, policy), backend)
	handler := NewCheckoutHandler(backend, svc, store, "anti_abuse_token")

	r := chi.NewRouter()
	r.Route("/o/{org}/e/{event}", func(r chi.Router) { handler.Routes(r) })
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &checkoutClient{
		t:      t,
		server: server,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *checkoutClient) do(method, path string, form url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(method, c.server.URL+path, body)
	require.NoError(c.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	c.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

var jsonHeaders = map[string]string{"Accept": "application/json"}
