package services

import (
	"encoding/json"
	"net/http"
	"strings"

	"event-checkout-platform/internal/models"
)

// KindForStatus maps an HTTP status code onto the error taxonomy
func KindForStatus(statusCode int) models.ErrorKind {
	switch statusCode {
	case http.StatusUnauthorized:
		return models.KindUnauthenticated
	case http.StatusForbidden:
		return models.KindForbidden
	case http.StatusNotFound:
		return models.KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return models.KindValidation
	case http.StatusConflict:
		return models.KindConflict
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return models.KindNetwork
	}
	return models.KindUnknown
}

// StatusForKind is the inverse of KindForStatus for responses we write
func StatusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindUnauthenticated:
		return http.StatusUnauthorized
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindValidation:
		return http.StatusUnprocessableEntity
	case models.KindConflict:
		return http.StatusConflict
	case models.KindNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// errorBody accepts both the {"error":{...}} envelope and a flat
// {"status":"error",...} submission result.
type errorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ClassifyHTTPError builds a classified error from a non-2xx response. A
// recognized code in the body wins over the status code.
func ClassifyHTTPError(statusCode int, body []byte) *models.BackendError {
	kind := KindForStatus(statusCode)
	message := ""

	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		code, msg := parsed.Code, parsed.Message
		if parsed.Error != nil {
			code, msg = parsed.Error.Code, parsed.Error.Message
		}
		if code != "" {
			if k := models.ParseErrorKind(code); k != models.KindUnknown || code == string(models.KindUnknown) {
				kind = k
			}
		}
		message = strings.TrimSpace(msg)
	}

	if message == "" {
		message = defaultMessage(kind)
	}

	return &models.BackendError{Kind: kind, Message: message, StatusCode: statusCode}
}

func defaultMessage(kind models.ErrorKind) string {
	switch kind {
	case models.KindUnauthenticated:
		return "The ticketing service rejected our credentials."
	case models.KindForbidden:
		return "This checkout is not available."
	case models.KindNotFound:
		return "The requested item could not be found."
	case models.KindValidation:
		return "Some of the submitted details are invalid."
	case models.KindConflict:
		return "Some tickets are no longer available. Please review your selection."
	case models.KindNetwork:
		return models.NetworkErrorMessage
	}
	return models.GenericSubmissionError
}
