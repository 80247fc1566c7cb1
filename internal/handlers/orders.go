package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"event-checkout-platform/internal/models"
	"event-checkout-platform/internal/poller"
)

// OrderHandler serves the order page buyers land on after checkout
type OrderHandler struct {
	fetcher poller.StatusFetcher
	config  poller.Config
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(fetcher poller.StatusFetcher, config poller.Config) *OrderHandler {
	return &OrderHandler{fetcher: fetcher, config: config}
}

// Routes registers the order routes under /o/{org}/e/{event}
func (h *OrderHandler) Routes(r chi.Router) {
	r.Get("/orders/{id}", h.ShowOrder)
	r.Get("/orders/{id}/events", h.OrderEvents)
}

type orderView struct {
	poller.Snapshot
	Message string `json:"message"`
}

// ShowOrder reports an order's status. A buyer returning from the payment
// provider (return=1) is held until the order settles or polling times out;
// any other visit gets the status after a single read.
func (h *OrderHandler) ShowOrder(w http.ResponseWriter, r *http.Request) {
	fetcher := &errorTrackingFetcher{StatusFetcher: h.fetcher}
	p := poller.New(fetcher, chi.URLParam(r, "id"), returnMarker(r), h.config)

	snap := p.Start(r.Context())
	if !snap.Done() {
		snap = p.Wait(r.Context())
	}
	if r.Context().Err() != nil {
		return
	}

	if snap.Status == nil {
		if err := fetcher.lastError(); err != nil {
			writeClassified(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, orderView{Snapshot: snap, Message: statusMessage(snap)})
}

// OrderEvents streams poller snapshots as server-sent events. Polling stops
// when the client disconnects.
func (h *OrderHandler) OrderEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, models.KindUnknown, "Streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	p := poller.New(h.fetcher, chi.URLParam(r, "id"), returnMarker(r), h.config)
	defer p.Stop()

	updates := p.Updates()
	go p.Start(r.Context())

	for {
		select {
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(orderView{Snapshot: snap, Message: statusMessage(snap)})
			if err != nil {
				return
			}
			fmt.Fprintf(w, "event: status\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func returnMarker(r *http.Request) bool {
	switch r.URL.Query().Get("return") {
	case "1", "true":
		return true
	}
	return false
}

// statusMessage is the buyer-facing summary of a snapshot
func statusMessage(snap poller.Snapshot) string {
	if snap.Status != nil {
		switch snap.Status.Status {
		case models.OrderPaid:
			return "Your order is confirmed. Your tickets are on their way."
		case models.OrderFailed:
			return "Your payment did not go through. No charge was made."
		case models.OrderCanceled:
			return "This order was canceled."
		case models.OrderExpired:
			return "This order expired before payment was completed."
		}
	}
	switch {
	case snap.Reason == poller.ReasonTimeout:
		return "We are still confirming your payment. This can take a few minutes, refresh this page to check again."
	case snap.Done():
		return "Your order is awaiting payment."
	}
	return "Confirming your payment..."
}

// errorTrackingFetcher remembers the last fetch error so a failed lookup can
// be reported with its classification.
type errorTrackingFetcher struct {
	poller.StatusFetcher

	mu  sync.Mutex
	err error
}

func (f *errorTrackingFetcher) GetOrderStatus(ctx context.Context, orderID string) (*models.OrderStatusView, error) {
	status, err := f.StatusFetcher.GetOrderStatus(ctx, orderID)
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
	return status, err
}

func (f *errorTrackingFetcher) lastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
