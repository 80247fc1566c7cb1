package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"event-checkout-platform/internal/models"
)

const maxResponseBytes = 1 << 20

// RemoteBackend talks to the ticketing backend's JSON API
type RemoteBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewRemoteBackend creates a client for the API at baseURL
func NewRemoteBackend(baseURL, apiKey string, timeout time.Duration) *RemoteBackend {
	return &RemoteBackend{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetEvent retrieves an event by organization and event slug
func (b *RemoteBackend) GetEvent(ctx context.Context, orgSlug, eventSlug string) (*models.Event, error) {
	var event models.Event
	path := fmt.Sprintf("/v1/events/%s/%s", url.PathEscape(orgSlug), url.PathEscape(eventSlug))
	if err := b.getJSON(ctx, path, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// ListProducts returns an event's products
func (b *RemoteBackend) ListProducts(ctx context.Context, eventID string) ([]models.Product, error) {
	var products []models.Product
	if err := b.getJSON(ctx, "/v1/events/"+url.PathEscape(eventID)+"/products", &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListFormFields returns an event's attendee form fields
func (b *RemoteBackend) ListFormFields(ctx context.Context, eventID string) ([]models.FormField, error) {
	var fields []models.FormField
	if err := b.getJSON(ctx, "/v1/events/"+url.PathEscape(eventID)+"/form-fields", &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// CreateOrder submits the payload. A 2xx body is decoded strictly: anything
// other than a well-formed result variant becomes an ErrorResult.
func (b *RemoteBackend) CreateOrder(ctx context.Context, idempotencyKey string, payload *models.SubmissionPayload) (models.SubmissionResult, error) {
	body, err := b.do(ctx, http.MethodPost, "/v1/orders", idempotencyKey, payload)
	if err != nil {
		return nil, err
	}
	return models.DecodeSubmissionResult(body), nil
}

// GetOrderStatus reads an order's current status
func (b *RemoteBackend) GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatusView, error) {
	var view models.OrderStatusView
	if err := b.getJSON(ctx, "/v1/orders/"+url.PathEscape(orderID), &view); err != nil {
		return nil, err
	}
	if view.ID == "" || !view.Status.Valid() {
		return nil, models.NewBackendError(models.KindUnknown, "unexpected order status response")
	}
	return &view, nil
}

func (b *RemoteBackend) getJSON(ctx context.Context, path string, out any) error {
	body, err := b.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &models.BackendError{Kind: models.KindUnknown, Message: "unexpected response from ticketing service", Err: err}
	}
	return nil
}

func (b *RemoteBackend) do(ctx context.Context, method, path, idempotencyKey string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &models.BackendError{Kind: models.KindNetwork, Message: models.NetworkErrorMessage, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &models.BackendError{Kind: models.KindNetwork, Message: models.NetworkErrorMessage, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, ClassifyHTTPError(resp.StatusCode, body)
	}
	return body, nil
}
