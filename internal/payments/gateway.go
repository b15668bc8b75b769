// Package payments wraps the Stripe and PayPal APIs behind small interfaces so
// that services never talk to a provider SDK directly.
package payments

import (
	"context"
	"net/http"
)

// Provider names used in logs and ProviderError values.
const (
	ProviderStripe = "stripe"
	ProviderPayPal = "paypal"
)

// CheckoutRequest describes a one-item Stripe checkout. Either PriceID or
// AmountMinorUnits is used: a price id refers to an existing Stripe price.
type CheckoutRequest struct {
	AmountMinorUnits int64
	Currency         string
	ProductName      string
	Description      string
	PriceID          string
	SubmitType       string
	SuccessURL       string
	CancelURL        string
	Metadata         map[string]string
}

// CheckoutSession is the part of a created Stripe session the caller needs.
type CheckoutSession struct {
	ID  string
	URL string
}

// StripeGateway creates checkout sessions and catalog objects, and turns a
// webhook delivery into an authenticated event.
type StripeGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreateProduct(ctx context.Context, name, description string) (string, error)
	CreatePrice(ctx context.Context, productID string, amountMinorUnits int64, currency string) (string, error)
	ParseWebhook(payload []byte, signature string) (*StripeEvent, error)
}

// OrderRequest describes a PayPal order with a single purchase unit.
type OrderRequest struct {
	AmountMinorUnits int64
	Currency         string
	ReturnURL        string
	CancelURL        string
}

// Order is a created PayPal order. ApproveURL is empty when PayPal returned no approval link.
type Order struct {
	ID         string
	Status     string
	ApproveURL string
}

// PayPalGateway creates orders and verifies webhook deliveries.
type PayPalGateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	VerifyWebhook(ctx context.Context, headers http.Header, body []byte) error
}
