package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
)

const (
	paypalSandboxBase = "https://api-m.sandbox.paypal.com"
	paypalLiveBase    = "https://api-m.paypal.com"

	maxPayPalResponse = 1 << 20
)

// PayPalOptions configures a PayPalClient. BaseURL overrides the host derived from Mode.
type PayPalOptions struct {
	ClientID     string
	ClientSecret string
	Mode         string
	WebhookID    string
	BaseURL      string
	Timeout      time.Duration
}

// PayPalClient implements PayPalGateway over the REST API. Access tokens are
// fetched with the client-credentials grant and cached until they expire.
type PayPalClient struct {
	baseURL   string
	webhookID string
	http      *http.Client
}

// NewPayPalClient returns a client for the sandbox or live API.
func NewPayPalClient(opts PayPalOptions) *PayPalClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	base := opts.BaseURL
	if base == "" {
		base = paypalSandboxBase
		if opts.Mode == "live" {
			base = paypalLiveBase
		}
	}
	base = strings.TrimRight(base, "/")

	cc := clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     base + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: opts.Timeout})
	client := cc.Client(tokenCtx)
	client.Timeout = opts.Timeout

	return &PayPalClient{baseURL: base, webhookID: opts.WebhookID, http: client}
}

// VerifiesSignatures reports whether VerifyWebhook calls PayPal.
func (c *PayPalClient) VerifiesSignatures() bool {
	return c.webhookID != ""
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	Amount paypalAmount `json:"amount"`
}

type paypalApplicationContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

type paypalOrderRequest struct {
	Intent             string                    `json:"intent"`
	PurchaseUnits      []paypalPurchaseUnit      `json:"purchase_units"`
	ApplicationContext *paypalApplicationContext `json:"application_context,omitempty"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (c *PayPalClient) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			Amount: paypalAmount{
				CurrencyCode: strings.ToUpper(req.Currency),
				Value:        FormatMinorUnits(req.AmountMinorUnits, req.Currency),
			},
		}},
	}
	if req.ReturnURL != "" || req.CancelURL != "" {
		body.ApplicationContext = &paypalApplicationContext{ReturnURL: req.ReturnURL, CancelURL: req.CancelURL}
	}

	var resp paypalOrderResponse
	if err := c.postJSON(ctx, "/v2/checkout/orders", body, &resp); err != nil {
		return nil, paypalError("Could not create PayPal order", err)
	}
	if resp.ID == "" {
		return nil, customerrors.NewProviderError(ProviderPayPal, "Could not create PayPal order: response has no order id", nil)
	}

	order := &Order{ID: resp.ID, Status: resp.Status}
	for _, link := range resp.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			order.ApproveURL = link.Href
			break
		}
	}
	return order, nil
}

type paypalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

// VerifyWebhook asks PayPal to check the transmission signature of a delivery.
// It is a no-op when no webhook id is configured.
func (c *PayPalClient) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if c.webhookID == "" {
		return nil
	}
	req := paypalVerifyRequest{
		AuthAlgo:         headers.Get("Paypal-Auth-Algo"),
		CertURL:          headers.Get("Paypal-Cert-Url"),
		TransmissionID:   headers.Get("Paypal-Transmission-Id"),
		TransmissionSig:  headers.Get("Paypal-Transmission-Sig"),
		TransmissionTime: headers.Get("Paypal-Transmission-Time"),
		WebhookID:        c.webhookID,
		WebhookEvent:     json.RawMessage(body),
	}
	if req.TransmissionID == "" || req.TransmissionSig == "" || req.CertURL == "" {
		return fmt.Errorf("%w: missing PayPal transmission headers", customerrors.ErrAuthentication)
	}

	var resp struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.postJSON(ctx, "/v1/notifications/verify-webhook-signature", req, &resp); err != nil {
		return fmt.Errorf("%w: %v", customerrors.ErrAuthentication, err)
	}
	if resp.VerificationStatus != "SUCCESS" {
		return fmt.Errorf("%w: verification status %q", customerrors.ErrAuthentication, resp.VerificationStatus)
	}
	return nil
}

// paypalAPIError is a non-2xx response from the REST API.
type paypalAPIError struct {
	StatusCode int
	Name       string `json:"name"`
	Message    string `json:"message"`
	DebugID    string `json:"debug_id"`
}

func (e *paypalAPIError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%d %s: %s (debug_id %s)", e.StatusCode, e.Name, e.Message, e.DebugID)
}

func (c *PayPalClient) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayPalResponse))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		apiErr := &paypalAPIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// paypalError tells token failures apart from API failures in the caller-visible message.
func paypalError(prefix string, err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		prefix = "Could not get PayPal token"
	}
	return customerrors.NewProviderError(ProviderPayPal, prefix+": "+err.Error(), err)
}
