package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for the failure classes the client distinguishes.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrServer        = errors.New("server error")
	ErrUnavailable   = errors.New("service unavailable")
	ErrConfiguration = errors.New("configuration error")
	ErrPaymentFailed = errors.New("payment failed")
)

// fallbackMessage is shown when neither the server nor the underlying error
// provides anything human-readable.
const fallbackMessage = "something went wrong, please try again"

// APIError represents a failed API call, carrying the server-provided code and
// message alongside the HTTP status so callers can branch on the failure class
// without string matching.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// FromStatus builds an APIError for the given HTTP status, classifying it under
// the matching sentinel. An empty message falls back to the status text.
func FromStatus(status int, code, message string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}

	var sentinel error
	switch {
	case status == http.StatusUnauthorized:
		sentinel = ErrUnauthorized
	case status == http.StatusForbidden:
		sentinel = ErrForbidden
	case status == http.StatusNotFound:
		sentinel = ErrNotFound
	case status == http.StatusConflict:
		sentinel = ErrAlreadyExists
	case status == http.StatusUnprocessableEntity:
		sentinel = ErrPaymentFailed
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway:
		sentinel = ErrUnavailable
	case status >= 500:
		sentinel = ErrServer
	default:
		sentinel = ErrInvalidInput
	}

	return &APIError{Code: code, Message: message, Status: status, Err: sentinel}
}

// Configuration builds an error for a missing or invalid client-side setting,
// detected before any network call is made.
func Configuration(message string) *APIError {
	return &APIError{Code: "CONFIGURATION_ERROR", Message: message, Err: ErrConfiguration}
}

// InvalidInput builds an error for input rejected client-side before submission.
func InvalidInput(message string) *APIError {
	return &APIError{Code: "INVALID_INPUT", Message: message, Status: http.StatusBadRequest, Err: ErrInvalidInput}
}

// Status returns the HTTP status carried by err, or 0 when err did not come
// from an HTTP response.
func Status(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsClientError reports whether err maps to a 4xx status. Client errors are
// surfaced immediately and never retried.
func IsClientError(err error) bool {
	s := Status(err)
	return s >= 400 && s < 500
}

// Normalize returns the message to show a user for err: the server-provided
// message when present, then the error's own text, then a fixed fallback.
func Normalize(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallbackMessage
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}
