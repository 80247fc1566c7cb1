package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"event-checkout-platform/internal/models"
)

// PaystackConfig represents Paystack payment service configuration
type PaystackConfig struct {
	SecretKey   string
	Environment string // "test" or "live"
	BaseURL     string
}

// PaystackService handles payments via Paystack API
type PaystackService struct {
	config  PaystackConfig
	client  *http.Client
	baseURL string
}

// NewPaystackService creates a new Paystack payment service
func NewPaystackService(config PaystackConfig) *PaystackService {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}

	return &PaystackService{
		config:  config,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
	}
}

// TransactionRequest represents a payment initialization request
type TransactionRequest struct {
	Email       string            `json:"email"`
	Amount      int               `json:"amount"` // minor currency units
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TransactionResponse represents the response from transaction initialization
type TransactionResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    TransactionData `json:"data"`
}

// TransactionData contains the transaction initialization data
type TransactionData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// TransactionVerification represents transaction verification response
type TransactionVerification struct {
	Status  bool               `json:"status"`
	Message string             `json:"message"`
	Data    TransactionDetails `json:"data"`
}

// TransactionDetails contains the verified transaction fields we use
type TransactionDetails struct {
	ID        int             `json:"id"`
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    int             `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    string          `json:"paid_at"`
	Channel   string          `json:"channel"`
	Metadata  json.RawMessage `json:"metadata"`
}

// MetadataValue returns a string metadata entry. Paystack sends metadata as
// an object, or as an empty string when none was set.
func (d TransactionDetails) MetadataValue(key string) string {
	var values map[string]any
	if err := json.Unmarshal(d.Metadata, &values); err != nil {
		return ""
	}
	value, _ := values[key].(string)
	return value
}

// PaystackError represents an error response from Paystack
type PaystackError struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (e *PaystackError) Error() string {
	return fmt.Sprintf("Paystack Error: %s", e.Message)
}

// WebhookEvent is the body of a Paystack webhook call
type WebhookEvent struct {
	Event string             `json:"event"`
	Data  TransactionDetails `json:"data"`
}

// InitializeTransaction initializes a payment transaction with Paystack
func (s *PaystackService) InitializeTransaction(ctx context.Context, req *TransactionRequest) (*TransactionResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transaction/initialize", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.config.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	bodyBytes, err := s.send(httpReq)
	if err != nil {
		return nil, err
	}

	var transactionResp TransactionResponse
	if err := json.Unmarshal(bodyBytes, &transactionResp); err != nil {
		return nil, fmt.Errorf("failed to decode transaction response: %w", err)
	}
	if !transactionResp.Status {
		return nil, fmt.Errorf("transaction initialization failed: %s", transactionResp.Message)
	}

	log.Printf("Paystack transaction %s initialized (%s, %d %s)", req.Reference, s.config.Environment, req.Amount, req.Currency)
	return &transactionResp, nil
}

// VerifyTransaction verifies a transaction with Paystack
func (s *PaystackService) VerifyTransaction(ctx context.Context, reference string) (*TransactionVerification, error) {
	verifyURL := fmt.Sprintf("%s/transaction/verify/%s", s.baseURL, url.PathEscape(reference))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, verifyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create verification request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+s.config.SecretKey)
	httpReq.Header.Set("Accept", "application/json")

	bodyBytes, err := s.send(httpReq)
	if err != nil {
		return nil, err
	}

	var verification TransactionVerification
	if err := json.Unmarshal(bodyBytes, &verification); err != nil {
		return nil, fmt.Errorf("failed to decode verification response: %w", err)
	}
	if !verification.Status {
		return nil, fmt.Errorf("transaction verification failed: %s", verification.Message)
	}

	return &verification, nil
}

func (s *PaystackService) send(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &models.BackendError{Kind: models.KindNetwork, Message: "payment provider unreachable", Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleAPIError(resp.StatusCode, bodyBytes)
	}
	return bodyBytes, nil
}

// InitializePayment implements PaymentProvider
func (s *PaystackService) InitializePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	resp, err := s.InitializeTransaction(ctx, &TransactionRequest{
		Email:       req.Email,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Paystack transaction: %w", err)
	}

	reference := resp.Data.Reference
	if reference == "" {
		reference = req.Reference
	}
	return &PaymentSession{Reference: reference, AuthorizationURL: resp.Data.AuthorizationURL}, nil
}

// PaymentStatus implements PaymentProvider
func (s *PaystackService) PaymentStatus(ctx context.Context, reference string) (PaymentState, error) {
	verification, err := s.VerifyTransaction(ctx, reference)
	if err != nil {
		return PaymentPending, fmt.Errorf("failed to verify transaction: %w", err)
	}
	return paystackState(verification.Data.Status), nil
}

// paystackState maps Paystack transaction statuses onto ours
func paystackState(status string) PaymentState {
	switch status {
	case "success":
		return PaymentSucceeded
	case "failed", "abandoned", "reversed":
		return PaymentFailed
	default:
		return PaymentPending
	}
}

// handleAPIError handles Paystack API errors
func (s *PaystackService) handleAPIError(statusCode int, body []byte) error {
	var paystackErr PaystackError
	if err := json.Unmarshal(body, &paystackErr); err != nil {
		return fmt.Errorf("API error (status %d): %s", statusCode, string(body))
	}

	switch statusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("bad request: %s", paystackErr.Message)
	case http.StatusUnauthorized:
		return fmt.Errorf("unauthorized: check API keys - %s", paystackErr.Message)
	case http.StatusNotFound:
		return fmt.Errorf("not found: %s", paystackErr.Message)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("validation error: %s", paystackErr.Message)
	default:
		return &paystackErr
	}
}

// VerifyWebhookSignature verifies Paystack webhook signature
func (s *PaystackService) VerifyWebhookSignature(payload []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(s.config.SecretKey))
	mac.Write(payload)
	expectedSignature := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expectedSignature))
}
