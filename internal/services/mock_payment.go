package services

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
)

// MockPaymentProvider stands in for Paystack when no credentials are
// configured. Its hosted page is served by this application and settles the
// payment with whatever outcome the buyer picks.
type MockPaymentProvider struct {
	pageURL string

	mu       sync.RWMutex
	payments map[string]*mockPayment
}

type mockPayment struct {
	request PaymentRequest
	state   PaymentState
}

// NewMockPaymentProvider creates a mock provider whose payment page lives under pageURL
func NewMockPaymentProvider(pageURL string) *MockPaymentProvider {
	log.Println("Payment provider: Using mock (no Paystack credentials provided)")
	return &MockPaymentProvider{
		pageURL:  pageURL,
		payments: make(map[string]*mockPayment),
	}
}

// InitializePayment implements PaymentProvider
func (p *MockPaymentProvider) InitializePayment(_ context.Context, req PaymentRequest) (*PaymentSession, error) {
	if req.Reference == "" {
		return nil, fmt.Errorf("payment reference is required")
	}

	p.mu.Lock()
	p.payments[req.Reference] = &mockPayment{request: req, state: PaymentPending}
	p.mu.Unlock()

	log.Printf("Mock Payment: %s for %d %s (%s)", req.Reference, req.Amount, req.Currency, req.Email)

	return &PaymentSession{
		Reference:        req.Reference,
		AuthorizationURL: p.pageURL + "/" + url.PathEscape(req.Reference),
	}, nil
}

// PaymentStatus implements PaymentProvider
func (p *MockPaymentProvider) PaymentStatus(_ context.Context, reference string) (PaymentState, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	payment, ok := p.payments[reference]
	if !ok {
		return PaymentPending, fmt.Errorf("unknown payment reference %s", reference)
	}
	return payment.state, nil
}

// Complete settles a pending mock payment and returns the callback URL the
// buyer goes back to.
func (p *MockPaymentProvider) Complete(reference string, succeeded bool) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	payment, ok := p.payments[reference]
	if !ok {
		return "", fmt.Errorf("unknown payment reference %s", reference)
	}
	if payment.state == PaymentPending {
		payment.state = PaymentFailed
		if succeeded {
			payment.state = PaymentSucceeded
		}
	}
	return payment.request.CallbackURL, nil
}

// Lookup returns the request a pending payment was created with
func (p *MockPaymentProvider) Lookup(reference string) (PaymentRequest, PaymentState, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	payment, ok := p.payments[reference]
	if !ok {
		return PaymentRequest{}, "", false
	}
	return payment.request, payment.state, true
}
