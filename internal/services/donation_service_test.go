package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stripe/stripe-go/v82/webhook"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/logging"
	"github.com/axellelanca/portfolio-payments/internal/models"
	"github.com/axellelanca/portfolio-payments/internal/payments"
	"github.com/axellelanca/portfolio-payments/internal/repository"
)

const testWebhookSecret = "whsec_test"

func newStripeFake(t *testing.T) *fakeStripe {
	t.Helper()
	verifier := payments.NewStripeClient(payments.StripeOptions{SecretKey: "sk_test", WebhookSecret: testWebhookSecret})
	return &fakeStripe{
		CreateCheckoutSessionFunc: func(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
			return &payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
		},
		ParseWebhookFunc: verifier.ParseWebhook,
	}
}

func newDonationService(t *testing.T, stripe payments.StripeGateway, paypal payments.PayPalGateway) (*DonationService, testRepos) {
	t.Helper()
	repos := newTestRepos(t)
	svc := NewDonationService(repos.donations, stripe, paypal, DonationSettings{
		Currency:        "usd",
		SuccessURL:      "http://localhost/?donation=success",
		CancelURL:       "http://localhost/?donation=cancel",
		AlertOnFallback: true,
	}, logging.Discard())
	return svc, repos
}

func signedStripeEvent(t *testing.T, eventType, sessionID string, amount int64, email string) ([]byte, string) {
	t.Helper()
	return signedStripeSession(t, eventType, sessionID, "paid", amount, email)
}

func signedStripeSession(t *testing.T, eventType, sessionID, paymentStatus string, amount int64, email string) ([]byte, string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":   "evt_" + eventType + "_" + sessionID,
		"type": eventType,
		"data": map[string]any{
			"object": map[string]any{
				"id":               sessionID,
				"object":           "checkout.session",
				"amount_total":     amount,
				"currency":         "usd",
				"payment_status":   paymentStatus,
				"customer_details": map[string]any{"email": email},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: payload, Secret: testWebhookSecret})
	return signed.Payload, signed.Header
}

func TestCreateStripeSession(t *testing.T) {
	stripe := newStripeFake(t)
	var sent payments.CheckoutRequest
	stripe.CreateCheckoutSessionFunc = func(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
		sent = req
		return &payments.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
	}
	svc, repos := newDonationService(t, stripe, nil)
	ctx := context.Background()

	res, err := svc.CreateStripeSession(ctx, DonationRequest{
		Amount:   json.RawMessage(`500`),
		Metadata: map[string]any{"source": "footer"},
	})
	if err != nil {
		t.Fatalf("CreateStripeSession() error = %v", err)
	}
	if res.ProviderSessionID != "cs_test_1" || res.CheckoutURL == "" {
		t.Errorf("unexpected result %+v", res)
	}
	if sent.AmountMinorUnits != 500 || sent.Currency != "usd" || sent.SubmitType != "donate" {
		t.Errorf("unexpected checkout request %+v", sent)
	}

	d, err := repos.donations.FindByProviderRef(ctx, repository.StripeSession("cs_test_1"))
	if err != nil {
		t.Fatalf("pending donation not recorded: %v", err)
	}
	if d.Status != models.StatusPending || d.AmountMinorUnits != 500 || d.Currency != "usd" {
		t.Errorf("unexpected donation %+v", d)
	}
	if d.Metadata["source"] != "footer" {
		t.Errorf("metadata not stored: %+v", d.Metadata)
	}
}

func TestCreateStripeSessionValidation(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		svc, _ := newDonationService(t, nil, nil)
		_, err := svc.CreateStripeSession(context.Background(), DonationRequest{Amount: json.RawMessage(`abc`)})
		if !errors.Is(err, customerrors.ErrProviderUnavailable) {
			t.Fatalf("error = %v, want ErrProviderUnavailable before amount validation", err)
		}
	})

	for _, raw := range []string{`0`, `-5`, `"abc"`} {
		t.Run(raw, func(t *testing.T) {
			stripe := newStripeFake(t)
			called := false
			stripe.CreateCheckoutSessionFunc = func(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
				called = true
				return nil, errors.New("unexpected call")
			}
			svc, repos := newDonationService(t, stripe, nil)

			_, err := svc.CreateStripeSession(context.Background(), DonationRequest{Amount: json.RawMessage(raw)})
			if !errors.Is(err, customerrors.ErrInvalidAmount) {
				t.Fatalf("error = %v, want ErrInvalidAmount", err)
			}
			if called {
				t.Error("provider must not be called for an invalid amount")
			}
			var count int64
			repos.db.Model(&models.Donation{}).Count(&count)
			if count != 0 {
				t.Errorf("%d donations recorded, want 0", count)
			}
		})
	}
}

func TestCreateStripeSessionProviderError(t *testing.T) {
	stripe := newStripeFake(t)
	stripe.CreateCheckoutSessionFunc = func(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
		return nil, customerrors.NewProviderError(payments.ProviderStripe, "Your card was declined", nil)
	}
	svc, _ := newDonationService(t, stripe, nil)

	_, err := svc.CreateStripeSession(context.Background(), DonationRequest{Amount: json.RawMessage(`500`)})
	var pe *customerrors.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want ProviderError", err)
	}
	if customerrors.HTTPStatus(err) != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", customerrors.HTTPStatus(err))
	}
}

func TestCreatePayPalOrder(t *testing.T) {
	paypal := &fakePayPal{
		CreateOrderFunc: func(ctx context.Context, req payments.OrderRequest) (*payments.Order, error) {
			if req.AmountMinorUnits != 1000 {
				t.Errorf("AmountMinorUnits = %d, want 1000", req.AmountMinorUnits)
			}
			return &payments.Order{ID: "ORDER-1", ApproveURL: "https://paypal.example/approve"}, nil
		},
	}
	svc, repos := newDonationService(t, nil, paypal)
	ctx := context.Background()

	res, err := svc.CreatePayPalOrder(ctx, DonationRequest{Amount: json.RawMessage(`"1000"`)})
	if err != nil {
		t.Fatalf("CreatePayPalOrder() error = %v", err)
	}
	if res.OrderID != "ORDER-1" || res.ApproveURL == nil || *res.ApproveURL != "https://paypal.example/approve" {
		t.Errorf("unexpected result %+v", res)
	}
	d, err := repos.donations.FindByProviderRef(ctx, repository.PayPalOrder("ORDER-1"))
	if err != nil {
		t.Fatalf("pending donation not recorded: %v", err)
	}
	if d.Status != models.StatusPending || d.AmountMinorUnits != 1000 {
		t.Errorf("unexpected donation %+v", d)
	}

	paypal.CreateOrderFunc = func(ctx context.Context, req payments.OrderRequest) (*payments.Order, error) {
		return &payments.Order{ID: "ORDER-2"}, nil
	}
	res, err = svc.CreatePayPalOrder(ctx, DonationRequest{Amount: json.RawMessage(`100`)})
	if err != nil {
		t.Fatal(err)
	}
	if res.ApproveURL != nil {
		t.Errorf("ApproveURL = %q, want nil", *res.ApproveURL)
	}
}

func TestCreatePayPalOrderNotConfigured(t *testing.T) {
	svc, _ := newDonationService(t, nil, nil)
	_, err := svc.CreatePayPalOrder(context.Background(), DonationRequest{Amount: json.RawMessage(`100`)})
	if !errors.Is(err, customerrors.ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestHandleStripeWebhookCompletesPending(t *testing.T) {
	svc, repos := newDonationService(t, newStripeFake(t), nil)
	ctx := context.Background()

	if _, err := svc.CreateStripeSession(ctx, DonationRequest{Amount: json.RawMessage(`500`)}); err != nil {
		t.Fatal(err)
	}

	payload, sig := signedStripeEvent(t, payments.EventCheckoutCompleted, "cs_test_1", 500, "donor@example.com")
	for i := 0; i < 2; i++ {
		if err := svc.HandleStripeWebhook(ctx, payload, sig); err != nil {
			t.Fatalf("delivery %d: HandleStripeWebhook() error = %v", i, err)
		}
	}

	d, err := repos.donations.FindByProviderRef(ctx, repository.StripeSession("cs_test_1"))
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != models.StatusSucceeded || d.AmountMinorUnits != 500 || d.Email == nil || *d.Email != "donor@example.com" {
		t.Errorf("unexpected donation %+v", d)
	}
	var count int64
	repos.db.Model(&models.Donation{}).Count(&count)
	if count != 1 {
		t.Errorf("ledger has %d rows, want 1", count)
	}
}

func TestHandleStripeWebhookDelayedPayment(t *testing.T) {
	svc, repos := newDonationService(t, newStripeFake(t), nil)
	ctx := context.Background()

	if _, err := svc.CreateStripeSession(ctx, DonationRequest{Amount: json.RawMessage(`500`)}); err != nil {
		t.Fatal(err)
	}

	status := func() string {
		t.Helper()
		d, err := repos.donations.FindByProviderRef(ctx, repository.StripeSession("cs_test_1"))
		if err != nil {
			t.Fatal(err)
		}
		return d.Status
	}

	payload, sig := signedStripeSession(t, payments.EventCheckoutCompleted, "cs_test_1", "unpaid", 500, "donor@example.com")
	if err := svc.HandleStripeWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("HandleStripeWebhook() error = %v", err)
	}
	if got := status(); got != models.StatusPending {
		t.Fatalf("after unpaid completion status = %q, want %q", got, models.StatusPending)
	}

	payload, sig = signedStripeSession(t, payments.EventCheckoutAsyncPaymentFailed, "cs_test_1", "unpaid", 500, "")
	if err := svc.HandleStripeWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("HandleStripeWebhook() error = %v", err)
	}
	if got := status(); got != models.StatusFailed {
		t.Fatalf("after async failure status = %q, want %q", got, models.StatusFailed)
	}
}

func TestHandleStripeWebhookDelayedPaymentSucceeds(t *testing.T) {
	svc, repos := newDonationService(t, newStripeFake(t), nil)
	ctx := context.Background()

	payload, sig := signedStripeSession(t, payments.EventCheckoutCompleted, "cs_async", "unpaid", 900, "")
	if err := svc.HandleStripeWebhook(ctx, payload, sig); err != nil {
		t.Fatal(err)
	}
	if _, err := repos.donations.FindByProviderRef(ctx, repository.StripeSession("cs_async")); !errors.Is(err, customerrors.ErrNotFound) {
		t.Fatalf("unpaid completion must not create a record, err = %v", err)
	}

	payload, sig = signedStripeSession(t, payments.EventCheckoutAsyncPaymentSucceeded, "cs_async", "paid", 900, "late@example.com")
	if err := svc.HandleStripeWebhook(ctx, payload, sig); err != nil {
		t.Fatal(err)
	}
	d, err := repos.donations.FindByProviderRef(ctx, repository.StripeSession("cs_async"))
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != models.StatusSucceeded || d.AmountMinorUnits != 900 {
		t.Errorf("unexpected donation %+v", d)
	}
}

func TestHandleStripeWebhookBadSignature(t *testing.T) {
	svc, repos := newDonationService(t, newStripeFake(t), nil)
	payload, _ := signedStripeEvent(t, payments.EventCheckoutCompleted, "cs_x", 500, "")

	err := svc.HandleStripeWebhook(context.Background(), payload, "t=1,v1=deadbeef")
	if !errors.Is(err, customerrors.ErrAuthentication) {
		t.Fatalf("error = %v, want ErrAuthentication", err)
	}
	var count int64
	repos.db.Model(&models.Donation{}).Count(&count)
	if count != 0 {
		t.Error("ledger must not be touched when the signature is invalid")
	}
}

func TestHandleStripeWebhookFallbackAndFailure(t *testing.T) {
	svc, repos := newDonationService(t, newStripeFake(t), nil)
	ctx := context.Background()

	payload, sig := signedStripeEvent(t, payments.EventCheckoutCompleted, "cs_unknown", 700, "late@example.com")
	if err := svc.HandleStripeWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("HandleStripeWebhook() error = %v", err)
	}
	d, err := repos.donations.FindByProviderRef(ctx, repository.StripeSession("cs_unknown"))
	if err != nil {
		t.Fatalf("fallback record missing: %v", err)
	}
	if d.Status != models.StatusSucceeded || d.AmountMinorUnits != 700 {
		t.Errorf("unexpected fallback record %+v", d)
	}

	payload, sig = signedStripeEvent(t, payments.EventCheckoutExpired, "cs_never_seen", 0, "")
	if err := svc.HandleStripeWebhook(ctx, payload, sig); err != nil {
		t.Fatalf("HandleStripeWebhook() error = %v", err)
	}
	if _, err := repos.donations.FindByProviderRef(ctx, repository.StripeSession("cs_never_seen")); !errors.Is(err, customerrors.ErrNotFound) {
		t.Errorf("failure for an unknown session must not create a record, err = %v", err)
	}
}

func TestHandleStripeWebhookIgnoresOtherEvents(t *testing.T) {
	svc, repos := newDonationService(t, newStripeFake(t), nil)
	payload, sig := signedStripeEvent(t, "payment_intent.created", "pi_1", 500, "")
	if err := svc.HandleStripeWebhook(context.Background(), payload, sig); err != nil {
		t.Fatalf("HandleStripeWebhook() error = %v", err)
	}
	var count int64
	repos.db.Model(&models.Donation{}).Count(&count)
	if count != 0 {
		t.Errorf("ignored event created %d rows", count)
	}
}

func TestHandleStripeWebhookAcknowledgesBadObject(t *testing.T) {
	stripe := newStripeFake(t)
	stripe.ParseWebhookFunc = func(payload []byte, signature string) (*payments.StripeEvent, error) {
		return &payments.StripeEvent{ID: "evt_bad", Type: payments.EventCheckoutCompleted, Object: json.RawMessage(`"not an object"`)}, nil
	}
	svc, _ := newDonationService(t, stripe, nil)
	if err := svc.HandleStripeWebhook(context.Background(), nil, ""); err != nil {
		t.Fatalf("processing errors must be acknowledged, got %v", err)
	}
}

func TestHandleStripeWebhookNotConfigured(t *testing.T) {
	svc, _ := newDonationService(t, nil, nil)
	err := svc.HandleStripeWebhook(context.Background(), []byte(`{}`), "")
	if !errors.Is(err, customerrors.ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestHandlePayPalWebhook(t *testing.T) {
	paypal := &fakePayPal{}
	svc, repos := newDonationService(t, nil, paypal)
	ctx := context.Background()

	pending := &models.Donation{AmountMinorUnits: 500, Currency: "usd", ProviderOrderID: strPtr("ORDER123"), Status: models.StatusPending}
	if err := repos.donations.Create(ctx, pending); err != nil {
		t.Fatal(err)
	}

	body := []byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{
		"id":"CAPTURE-1",
		"amount":{"currency_code":"USD","value":"5.00"},
		"payer":{"email_address":"payer@example.com"},
		"supplementary_data":{"related_ids":{"order_id":"ORDER123"}}}}`)
	if err := svc.HandlePayPalWebhook(ctx, http.Header{}, body); err != nil {
		t.Fatalf("HandlePayPalWebhook() error = %v", err)
	}

	d, err := repos.donations.FindByProviderRef(ctx, repository.PayPalOrder("ORDER123"))
	if err != nil {
		t.Fatal(err)
	}
	if d.Status != models.StatusSucceeded || d.AmountMinorUnits != 500 || d.Email == nil || *d.Email != "payer@example.com" {
		t.Errorf("unexpected donation %+v", d)
	}

	denied := []byte(`{"event_type":"PAYMENT.CAPTURE.DENIED","resource":{"supplementary_data":{"related_ids":{"order_id":"ORDER123"}}}}`)
	if err := svc.HandlePayPalWebhook(ctx, http.Header{}, denied); err != nil {
		t.Fatal(err)
	}
	d, _ = repos.donations.FindByProviderRef(ctx, repository.PayPalOrder("ORDER123"))
	if d.Status != models.StatusSucceeded {
		t.Errorf("denied capture must not downgrade a succeeded donation, got %q", d.Status)
	}
}

func TestHandlePayPalWebhookErrors(t *testing.T) {
	paypal := &fakePayPal{
		VerifyWebhookFunc: func(ctx context.Context, headers http.Header, body []byte) error {
			return customerrors.ErrAuthentication
		},
	}
	svc, repos := newDonationService(t, nil, paypal)
	ctx := context.Background()

	if err := svc.HandlePayPalWebhook(ctx, http.Header{}, []byte(`not json`)); !errors.Is(err, customerrors.ErrInvalidPayload) {
		t.Errorf("malformed body: error = %v, want ErrInvalidPayload", err)
	}

	body := []byte(`{"event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-9"}}`)
	if err := svc.HandlePayPalWebhook(ctx, http.Header{}, body); !errors.Is(err, customerrors.ErrAuthentication) {
		t.Errorf("failed verification: error = %v, want ErrAuthentication", err)
	}
	if _, err := repos.donations.FindByProviderRef(ctx, repository.PayPalOrder("ORDER-9")); !errors.Is(err, customerrors.ErrNotFound) {
		t.Error("ledger must not change when verification fails")
	}

	paypal.VerifyWebhookFunc = nil
	if err := svc.HandlePayPalWebhook(ctx, http.Header{}, []byte(`{"event_type":"BILLING.SUBSCRIPTION.CREATED"}`)); err != nil {
		t.Errorf("unknown event: error = %v, want nil", err)
	}
	if err := svc.HandlePayPalWebhook(ctx, http.Header{}, []byte(`{"event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"amount":"bad"}}`)); err != nil {
		t.Errorf("unexpected resource shape must be acknowledged, got %v", err)
	}
}
