package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy shared by services and HTTP handlers.

// ErrInvalidAmount is returned when a donation amount is missing, non-numeric or not positive.
var ErrInvalidAmount = errors.New("invalid amount")

// ErrProviderUnavailable is returned when a payment provider has no credentials configured.
var ErrProviderUnavailable = errors.New("payment gateway not configured")

// ErrAuthentication is returned when a webhook signature cannot be verified.
var ErrAuthentication = errors.New("webhook signature verification failed")

// ErrNoAffiliateTarget is returned when a product has no affiliate URL to redirect to.
var ErrNoAffiliateTarget = errors.New("no affiliate URL")

// ErrNotFound is returned when a product or ledger record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidParameter is returned for malformed query parameters.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrInvalidPayload is returned when a webhook body cannot be decoded at all.
var ErrInvalidPayload = errors.New("invalid payload")

// ProviderError carries an upstream failure from Stripe or PayPal.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps err with the provider name and a caller-visible message.
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Message: message, Err: err}
}

// DetailError attaches a caller-visible message to one of the sentinel errors.
type DetailError struct {
	Err    error
	Detail string
}

func (e *DetailError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *DetailError) Unwrap() error { return e.Err }

// WithDetail wraps a sentinel so that errors.Is still matches it.
func WithDetail(err error, detail string) error {
	return &DetailError{Err: err, Detail: detail}
}

// HTTPStatus maps an error from the service layer to a response code.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrProviderUnavailable),
		errors.Is(err, ErrAuthentication),
		errors.Is(err, ErrNoAffiliateTarget),
		errors.Is(err, ErrInvalidParameter),
		errors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Detail returns the message placed in the {"detail": ...} response body.
func Detail(err error) string {
	var de *DetailError
	if errors.As(err, &de) && de.Detail != "" {
		return de.Detail
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Message
	}
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "Invalid amount"
	case errors.Is(err, ErrProviderUnavailable):
		return "Payment gateway not configured"
	case errors.Is(err, ErrAuthentication):
		return "Webhook signature verification failed"
	case errors.Is(err, ErrNoAffiliateTarget):
		return "No affiliate URL"
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrInvalidParameter):
		return "Invalid parameter"
	case errors.Is(err, ErrInvalidPayload):
		return "Invalid payload"
	}
	return "Internal server error"
}

// Is and As re-export the standard helpers so callers importing this package
// under its own name do not also need the standard library errors package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
