package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid amount", ErrInvalidAmount, http.StatusBadRequest},
		{"wrapped invalid amount", WithDetail(ErrInvalidAmount, "Amount must be greater than zero"), http.StatusBadRequest},
		{"provider unavailable", ErrProviderUnavailable, http.StatusBadRequest},
		{"authentication", ErrAuthentication, http.StatusBadRequest},
		{"no affiliate target", ErrNoAffiliateTarget, http.StatusBadRequest},
		{"invalid parameter", fmt.Errorf("days: %w", ErrInvalidParameter), http.StatusBadRequest},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"provider error", NewProviderError("stripe", "card declined", nil), http.StatusInternalServerError},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDetail(t *testing.T) {
	if got := Detail(WithDetail(ErrInvalidAmount, "Amount must be greater than zero")); got != "Amount must be greater than zero" {
		t.Errorf("unexpected detail %q", got)
	}
	if got := Detail(ErrInvalidAmount); got != "Invalid amount" {
		t.Errorf("unexpected detail %q", got)
	}
	if got := Detail(ErrProviderUnavailable); got != "Payment gateway not configured" {
		t.Errorf("unexpected detail %q", got)
	}
	pe := NewProviderError("paypal", "Could not create PayPal order: 500", fmt.Errorf("upstream"))
	if got := Detail(fmt.Errorf("create order: %w", pe)); got != "Could not create PayPal order: 500" {
		t.Errorf("unexpected detail %q", got)
	}
}
