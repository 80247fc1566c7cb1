package models

import (
	"encoding/json"
	"net/url"
	"strings"
)

// GenericSubmissionError is shown when the backend response cannot be trusted
const GenericSubmissionError = "We could not confirm your order. Please try again."

// Wire discriminators of the order-creation response
const (
	ResultStatusPaid            = "paid"
	ResultStatusAwaitingPayment = "awaiting_payment"
	ResultStatusError           = "error"
)

// SubmissionResult is the closed set of order-creation outcomes: PaidResult,
// AwaitingPaymentResult and ErrorResult. Use MatchResult to handle it.
type SubmissionResult interface {
	isSubmissionResult()
}

// PaidResult means the order is complete and no payment step is needed
type PaidResult struct {
	OrderID string
}

// AwaitingPaymentResult hands control to an external payment provider
type AwaitingPaymentResult struct {
	OrderID     string
	CheckoutURL string
}

// ErrorResult carries a classified, user-presentable failure
type ErrorResult struct {
	Kind    ErrorKind
	Message string
}

func (PaidResult) isSubmissionResult()            {}
func (AwaitingPaymentResult) isSubmissionResult() {}
func (ErrorResult) isSubmissionResult()           {}

// MatchResult dispatches on the result variant. Every variant needs a handler,
// so adding a variant is a compile error at each call site. A nil result is
// handled as an unknown error.
func MatchResult[T any](
	result SubmissionResult,
	paid func(PaidResult) T,
	awaiting func(AwaitingPaymentResult) T,
	failed func(ErrorResult) T,
) T {
	switch r := result.(type) {
	case PaidResult:
		return paid(r)
	case AwaitingPaymentResult:
		return awaiting(r)
	case ErrorResult:
		return failed(r)
	}
	return failed(ErrorResult{Kind: KindUnknown, Message: GenericSubmissionError})
}

type resultEnvelope struct {
	Status      string `json:"status"`
	OrderID     string `json:"orderId,omitempty"`
	CheckoutURL string `json:"checkoutUrl,omitempty"`
	Message     string `json:"message,omitempty"`
	Code        string `json:"code,omitempty"`
}

// DecodeSubmissionResult parses an order-creation response. Anything that is
// not a well-formed, recognized variant becomes an ErrorResult; it is never
// read as success.
func DecodeSubmissionResult(data []byte) SubmissionResult {
	var env resultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ErrorResult{Kind: KindUnknown, Message: GenericSubmissionError}
	}

	switch env.Status {
	case ResultStatusPaid:
		if strings.TrimSpace(env.OrderID) == "" {
			break
		}
		return PaidResult{OrderID: env.OrderID}
	case ResultStatusAwaitingPayment:
		if strings.TrimSpace(env.OrderID) == "" || !IsExternalURL(env.CheckoutURL) {
			break
		}
		return AwaitingPaymentResult{OrderID: env.OrderID, CheckoutURL: env.CheckoutURL}
	case ResultStatusError:
		message := strings.TrimSpace(env.Message)
		if message == "" {
			message = GenericSubmissionError
		}
		kind := KindUnknown
		if env.Code != "" {
			kind = ParseErrorKind(env.Code)
		}
		return ErrorResult{Kind: kind, Message: message}
	}

	return ErrorResult{Kind: KindUnknown, Message: GenericSubmissionError}
}

// EncodeSubmissionResult renders a result in the wire format DecodeSubmissionResult reads
func EncodeSubmissionResult(result SubmissionResult) ([]byte, error) {
	env := MatchResult(result,
		func(r PaidResult) resultEnvelope {
			return resultEnvelope{Status: ResultStatusPaid, OrderID: r.OrderID}
		},
		func(r AwaitingPaymentResult) resultEnvelope {
			return resultEnvelope{Status: ResultStatusAwaitingPayment, OrderID: r.OrderID, CheckoutURL: r.CheckoutURL}
		},
		func(r ErrorResult) resultEnvelope {
			return resultEnvelope{Status: ResultStatusError, Message: r.Message, Code: string(r.Kind)}
		},
	)
	return json.Marshal(env)
}

// IsExternalURL reports whether raw is an absolute http(s) URL with a host
func IsExternalURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}
