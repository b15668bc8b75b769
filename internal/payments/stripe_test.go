package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stripe/stripe-go/v82/webhook"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
)

const completedEvent = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "amount_total": 700,
      "amount_subtotal": 700,
      "currency": "usd",
      "payment_status": "paid",
      "customer_details": {"email": "donor@example.com"}
    }
  }
}`

func TestParseWebhookVerifiesSignature(t *testing.T) {
	client := NewStripeClient(StripeOptions{SecretKey: "sk_test_123", WebhookSecret: "whsec_test"})

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(completedEvent),
		Secret:  "whsec_test",
	})
	ev, err := client.ParseWebhook(signed.Payload, signed.Header)
	if err != nil {
		t.Fatalf("ParseWebhook() error = %v", err)
	}
	if ev.Type != EventCheckoutCompleted || ev.ID != "evt_1" {
		t.Errorf("unexpected event %+v", ev)
	}

	sess, err := DecodeCheckoutSession(ev)
	if err != nil {
		t.Fatalf("DecodeCheckoutSession() error = %v", err)
	}
	if sess.ID != "cs_test_1" || sess.Amount() != 700 || sess.Email() != "donor@example.com" || !sess.Paid() {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestParseWebhookRejectsBadSignature(t *testing.T) {
	client := NewStripeClient(StripeOptions{SecretKey: "sk_test_123", WebhookSecret: "whsec_test"})

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(completedEvent),
		Secret:  "whsec_other",
	})
	_, err := client.ParseWebhook(signed.Payload, signed.Header)
	if !errors.Is(err, customerrors.ErrAuthentication) {
		t.Fatalf("ParseWebhook() error = %v, want ErrAuthentication", err)
	}

	_, err = client.ParseWebhook([]byte(completedEvent), "")
	if !errors.Is(err, customerrors.ErrAuthentication) {
		t.Fatalf("ParseWebhook(no header) error = %v, want ErrAuthentication", err)
	}
}

func TestParseWebhookWithoutSecret(t *testing.T) {
	client := NewStripeClient(StripeOptions{SecretKey: "sk_test_123"})
	if client.VerifiesSignatures() {
		t.Fatal("client without webhook secret should not verify signatures")
	}

	ev, err := client.ParseWebhook([]byte(completedEvent), "")
	if err != nil {
		t.Fatalf("ParseWebhook() error = %v", err)
	}
	if ev.Type != EventCheckoutCompleted {
		t.Errorf("Type = %q", ev.Type)
	}

	_, err = client.ParseWebhook([]byte("not json"), "")
	if !errors.Is(err, customerrors.ErrInvalidPayload) {
		t.Fatalf("ParseWebhook(garbage) error = %v, want ErrInvalidPayload", err)
	}
}

func TestCheckoutSessionPayloadFallbacks(t *testing.T) {
	s := CheckoutSessionPayload{AmountSubtotal: 300, CustomerEmail: "x@example.com"}
	if s.Amount() != 300 {
		t.Errorf("Amount() = %d, want subtotal fallback", s.Amount())
	}
	if s.Email() != "x@example.com" {
		t.Errorf("Email() = %q, want customer_email fallback", s.Email())
	}
	if _, err := DecodeCheckoutSession(&StripeEvent{ID: "evt_empty"}); err == nil {
		t.Error("expected an error for an event without object")
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	var gotAmount, gotMode string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error = %v", err)
		}
		gotAmount = r.PostForm.Get("line_items[0][price_data][unit_amount]")
		gotMode = r.PostForm.Get("mode")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	}))
	defer srv.Close()

	client := NewStripeClient(StripeOptions{SecretKey: "sk_test_123", APIBase: srv.URL})
	sess, err := client.CreateCheckoutSession(context.Background(), CheckoutRequest{
		AmountMinorUnits: 500,
		Currency:         "usd",
		ProductName:      "Donation",
		SuccessURL:       "http://localhost/?donation=success",
		CancelURL:        "http://localhost/?donation=cancel",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession() error = %v", err)
	}
	if sess.ID != "cs_test_1" || sess.URL == "" {
		t.Errorf("unexpected session %+v", sess)
	}
	if gotAmount != "500" || gotMode != "payment" {
		t.Errorf("request had unit_amount=%q mode=%q", gotAmount, gotMode)
	}
}

func TestCreateCheckoutSessionProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Amount must be at least 50 cents"}}`))
	}))
	defer srv.Close()

	client := NewStripeClient(StripeOptions{SecretKey: "sk_test_123", APIBase: srv.URL})
	_, err := client.CreateCheckoutSession(context.Background(), CheckoutRequest{AmountMinorUnits: 1, Currency: "usd", ProductName: "Donation"})

	var pe *customerrors.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if pe.Provider != ProviderStripe || pe.Message != "Amount must be at least 50 cents" {
		t.Errorf("unexpected provider error %+v", pe)
	}
}

func TestCheckoutSessionPayloadPaid(t *testing.T) {
	for status, want := range map[string]bool{
		"paid":                true,
		"no_payment_required": true,
		"unpaid":              false,
		"":                    false,
	} {
		s := CheckoutSessionPayload{PaymentStatus: status}
		if got := s.Paid(); got != want {
			t.Errorf("Paid() with payment_status %q = %v, want %v", status, got, want)
		}
	}
}
