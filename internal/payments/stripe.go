package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	"github.com/stripe/stripe-go/v82/webhook"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
)

// Stripe checkout event types handled by reconciliation.
const (
	EventCheckoutCompleted             = "checkout.session.completed"
	EventCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed    = "checkout.session.async_payment_failed"
	EventCheckoutExpired               = "checkout.session.expired"
)

// StripeOptions configures a StripeClient. APIBase is only set by tests.
type StripeOptions struct {
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
	APIBase       string
}

// StripeClient implements StripeGateway with its own backend and key, so
// several clients can coexist without touching stripe.Key.
type StripeClient struct {
	backend       stripe.Backend
	key           string
	webhookSecret string
}

// NewStripeClient builds a client whose HTTP calls are bounded by opts.Timeout.
func NewStripeClient(opts StripeOptions) *StripeClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	cfg := &stripe.BackendConfig{
		HTTPClient: &http.Client{Timeout: opts.Timeout},
	}
	if opts.APIBase != "" {
		cfg.URL = stripe.String(opts.APIBase)
	}
	return &StripeClient{
		backend:       stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		key:           opts.SecretKey,
		webhookSecret: opts.WebhookSecret,
	}
}

// VerifiesSignatures reports whether webhook deliveries are authenticated.
func (c *StripeClient) VerifiesSignatures() bool {
	return c.webhookSecret != ""
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	lineItem := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if req.PriceID != "" {
		lineItem.Price = stripe.String(req.PriceID)
	} else {
		productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(req.ProductName),
		}
		if req.Description != "" {
			productData.Description = stripe.String(req.Description)
		}
		lineItem.PriceData = &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:    stripe.String(req.Currency),
			UnitAmount:  stripe.Int64(req.AmountMinorUnits),
			ProductData: productData,
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems:  []*stripe.CheckoutSessionLineItemParams{lineItem},
	}
	if req.SubmitType != "" {
		params.SubmitType = stripe.String(req.SubmitType)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := session.Client{B: c.backend, Key: c.key}.New(params)
	if err != nil {
		return nil, stripeError("create checkout session", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

func (c *StripeClient) CreateProduct(ctx context.Context, name, description string) (string, error) {
	params := &stripe.ProductParams{Name: stripe.String(name)}
	if description != "" {
		params.Description = stripe.String(description)
	}
	params.Context = ctx

	p, err := product.Client{B: c.backend, Key: c.key}.New(params)
	if err != nil {
		return "", stripeError("create product", err)
	}
	return p.ID, nil
}

func (c *StripeClient) CreatePrice(ctx context.Context, productID string, amountMinorUnits int64, currency string) (string, error) {
	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(amountMinorUnits),
		Currency:   stripe.String(currency),
	}
	params.Context = ctx

	p, err := price.Client{B: c.backend, Key: c.key}.New(params)
	if err != nil {
		return "", stripeError("create price", err)
	}
	return p.ID, nil
}

// ParseWebhook authenticates payload against the Stripe-Signature header. With
// no webhook secret configured the payload is decoded unverified.
func (c *StripeClient) ParseWebhook(payload []byte, signature string) (*StripeEvent, error) {
	var event stripe.Event
	if c.webhookSecret != "" {
		var err error
		event, err = webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", customerrors.ErrAuthentication, err)
		}
	} else if err := json.Unmarshal(payload, &event); err != nil {
		return nil, customerrors.WithDetail(customerrors.ErrInvalidPayload, err.Error())
	}

	ev := &StripeEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data != nil {
		ev.Object = event.Data.Raw
	}
	return ev, nil
}

// StripeEvent is an authenticated webhook event. Object holds the raw
// data.object so that each handler decodes only the shape it expects.
type StripeEvent struct {
	ID     string
	Type   string
	Object json.RawMessage
}

// CheckoutSessionPayload is the subset of a checkout session object used for
// reconciliation.
type CheckoutSessionPayload struct {
	ID              string            `json:"id"`
	AmountTotal     int64             `json:"amount_total"`
	AmountSubtotal  int64             `json:"amount_subtotal"`
	Currency        string            `json:"currency"`
	CustomerEmail   string            `json:"customer_email"`
	PaymentStatus   string            `json:"payment_status"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

// DecodeCheckoutSession parses the event object as a checkout session.
func DecodeCheckoutSession(ev *StripeEvent) (*CheckoutSessionPayload, error) {
	if len(ev.Object) == 0 {
		return nil, fmt.Errorf("event %s has no data object", ev.ID)
	}
	var s CheckoutSessionPayload
	if err := json.Unmarshal(ev.Object, &s); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session in event %s: %w", ev.ID, err)
	}
	return &s, nil
}

// Amount prefers amount_total and falls back to amount_subtotal.
func (s *CheckoutSessionPayload) Amount() int64 {
	if s.AmountTotal > 0 {
		return s.AmountTotal
	}
	return s.AmountSubtotal
}

// Paid reports whether the funds are available. A completed session paid with
// a delayed method stays "unpaid" until an async_payment event settles it.
func (s *CheckoutSessionPayload) Paid() bool {
	return s.PaymentStatus == "paid" || s.PaymentStatus == "no_payment_required"
}

// Email prefers the address collected during checkout.
func (s *CheckoutSessionPayload) Email() string {
	if s.CustomerDetails != nil && s.CustomerDetails.Email != "" {
		return s.CustomerDetails.Email
	}
	return s.CustomerEmail
}

func stripeError(action string, err error) error {
	msg := err.Error()
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		msg = se.Msg
	}
	return customerrors.NewProviderError(ProviderStripe, msg, fmt.Errorf("%s: %w", action, err))
}
