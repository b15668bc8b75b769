// Package services contains the donation, click tracking, reporting and product logic.
package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"gorm.io/datatypes"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/models"
	"github.com/axellelanca/portfolio-payments/internal/payments"
	"github.com/axellelanca/portfolio-payments/internal/repository"
)

// DonationSettings holds the redirect targets and currency used for new checkouts.
type DonationSettings struct {
	Currency        string
	SuccessURL      string
	CancelURL       string
	PayPalReturnURL string
	PayPalCancelURL string
	AlertOnFallback bool
}

// DonationRequest is a donation as submitted by a visitor. Amount is kept raw
// so that numbers and numeric strings are both accepted.
type DonationRequest struct {
	Amount   json.RawMessage
	Metadata map[string]any
}

type StripeSessionResult struct {
	CheckoutURL       string `json:"checkout_url"`
	ProviderSessionID string `json:"provider_session_id"`
}

type PayPalOrderResult struct {
	ApproveURL *string `json:"approve_url"`
	OrderID    string  `json:"order_id"`
}

// DonationService starts checkouts and reconciles provider webhooks with the ledger.
// A nil gateway means the provider is not configured.
type DonationService struct {
	donations repository.DonationRepository
	stripe    payments.StripeGateway
	paypal    payments.PayPalGateway
	settings  DonationSettings
	logger    *slog.Logger
}

func NewDonationService(
	donations repository.DonationRepository,
	stripe payments.StripeGateway,
	paypal payments.PayPalGateway,
	settings DonationSettings,
	logger *slog.Logger,
) *DonationService {
	if settings.Currency == "" {
		settings.Currency = models.DefaultCurrency
	}
	return &DonationService{
		donations: donations,
		stripe:    stripe,
		paypal:    paypal,
		settings:  settings,
		logger:    logger.With("component", "donations"),
	}
}

// CreateStripeSession validates the amount, opens a Stripe checkout and
// records a pending donation keyed by the session id.
func (s *DonationService) CreateStripeSession(ctx context.Context, req DonationRequest) (*StripeSessionResult, error) {
	if s.stripe == nil {
		return nil, customerrors.ErrProviderUnavailable
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	sess, err := s.stripe.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		AmountMinorUnits: amount,
		Currency:         s.settings.Currency,
		ProductName:      "Donation",
		Description:      "Support the site and content",
		SubmitType:       "donate",
		SuccessURL:       s.settings.SuccessURL,
		CancelURL:        s.settings.CancelURL,
	})
	if err != nil {
		s.logger.Error("stripe checkout failed", "amount_minor_units", amount, "error", err)
		return nil, err
	}

	id := sess.ID
	s.recordPending(ctx, &models.Donation{
		AmountMinorUnits:  amount,
		Currency:          s.settings.Currency,
		ProviderSessionID: &id,
		Status:            models.StatusPending,
		Metadata:          datatypes.JSONMap(req.Metadata),
	})
	return &StripeSessionResult{CheckoutURL: sess.URL, ProviderSessionID: sess.ID}, nil
}

// CreatePayPalOrder is the PayPal counterpart of CreateStripeSession.
func (s *DonationService) CreatePayPalOrder(ctx context.Context, req DonationRequest) (*PayPalOrderResult, error) {
	if s.paypal == nil {
		return nil, customerrors.ErrProviderUnavailable
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	order, err := s.paypal.CreateOrder(ctx, payments.OrderRequest{
		AmountMinorUnits: amount,
		Currency:         s.settings.Currency,
		ReturnURL:        s.settings.PayPalReturnURL,
		CancelURL:        s.settings.PayPalCancelURL,
	})
	if err != nil {
		s.logger.Error("paypal order failed", "amount_minor_units", amount, "error", err)
		return nil, err
	}

	id := order.ID
	s.recordPending(ctx, &models.Donation{
		AmountMinorUnits: amount,
		Currency:         s.settings.Currency,
		ProviderOrderID:  &id,
		Status:           models.StatusPending,
		Metadata:         datatypes.JSONMap(req.Metadata),
	})

	result := &PayPalOrderResult{OrderID: order.ID}
	if order.ApproveURL != "" {
		approve := order.ApproveURL
		result.ApproveURL = &approve
	}
	return result, nil
}

// recordPending stores the pending ledger entry. The checkout already exists
// at the provider, so a failed insert is logged and the webhook fallback
// creates the record later.
func (s *DonationService) recordPending(ctx context.Context, d *models.Donation) {
	if err := s.donations.Create(ctx, d); err != nil {
		s.logger.Error("failed to record pending donation",
			"provider_session_id", deref(d.ProviderSessionID),
			"provider_order_id", deref(d.ProviderOrderID),
			"error", err)
	}
}

// HandleStripeWebhook authenticates a Stripe delivery and applies checkout
// outcomes to the ledger. Only configuration and authentication problems are
// returned; everything after that is acknowledged.
func (s *DonationService) HandleStripeWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.stripe == nil {
		return customerrors.ErrProviderUnavailable
	}
	ev, err := s.stripe.ParseWebhook(payload, signature)
	if err != nil {
		s.logger.Warn("rejected stripe webhook", "error", err)
		return err
	}

	log := s.logger.With("provider", payments.ProviderStripe, "event_id", ev.ID, "event_type", ev.Type)

	var status string
	switch ev.Type {
	case payments.EventCheckoutCompleted, payments.EventCheckoutAsyncPaymentSucceeded:
		status = models.StatusSucceeded
	case payments.EventCheckoutAsyncPaymentFailed, payments.EventCheckoutExpired:
		status = models.StatusFailed
	default:
		log.Debug("ignoring stripe event")
		return nil
	}

	sess, err := payments.DecodeCheckoutSession(ev)
	if err != nil {
		return s.acknowledgeDespiteError(log, "decode checkout session", err)
	}
	if sess.ID == "" {
		log.Warn("checkout session without id, nothing to reconcile")
		return nil
	}

	if ev.Type == payments.EventCheckoutCompleted && !sess.Paid() {
		log.Info("checkout completed awaiting payment", "provider_session_id", sess.ID, "payment_status", sess.PaymentStatus)
		return nil
	}

	out := repository.Outcome{Status: status}
	if status == models.StatusSucceeded {
		out.AmountMinorUnits = sess.Amount()
		out.Email = sess.Email()
		out.Currency = s.payloadCurrency(log, sess.Currency)
	}
	return s.reconcile(ctx, log, repository.StripeSession(sess.ID), out)
}

// HandlePayPalWebhook parses a PayPal delivery, verifies it when a webhook id
// is configured, and applies order and capture outcomes to the ledger.
func (s *DonationService) HandlePayPalWebhook(ctx context.Context, headers http.Header, body []byte) error {
	ev, err := payments.ParsePayPalEvent(body)
	if err != nil {
		return err
	}
	if s.paypal != nil {
		if err := s.paypal.VerifyWebhook(ctx, headers, body); err != nil {
			s.logger.Warn("rejected paypal webhook", "event_id", ev.ID, "error", err)
			return err
		}
	}

	log := s.logger.With("provider", payments.ProviderPayPal, "event_id", ev.ID, "event_type", ev.EventType)

	var status string
	switch ev.EventType {
	case payments.EventOrderApproved, payments.EventCaptureCompleted:
		status = models.StatusSucceeded
	case payments.EventCaptureDenied:
		status = models.StatusFailed
	default:
		log.Debug("ignoring paypal event")
		return nil
	}

	res, err := ev.DecodeResource()
	if err != nil {
		return s.acknowledgeDespiteError(log, "decode resource", err)
	}
	orderID := res.OrderID(ev.EventType)
	if orderID == "" {
		log.Warn("paypal event without order id, nothing to reconcile")
		return nil
	}

	out := repository.Outcome{Status: status}
	if status == models.StatusSucceeded {
		amount, cur, err := res.AmountMinorUnits()
		if err != nil {
			log.Warn("ignoring unreadable paypal amount", "error", err)
		} else {
			out.AmountMinorUnits = amount
			out.Currency = s.payloadCurrency(log, cur)
		}
		out.Email = res.Email()
	}
	return s.reconcile(ctx, log.With("order_id", orderID), repository.PayPalOrder(orderID), out)
}

func (s *DonationService) reconcile(ctx context.Context, log *slog.Logger, ref repository.ProviderRef, out repository.Outcome) error {
	res, err := s.donations.ApplyOutcome(ctx, ref, out)
	if err != nil {
		return s.acknowledgeDespiteError(log, "apply outcome", err)
	}

	switch {
	case res.Created:
		log.Info("donation created from webhook", "donation_id", res.Donation.ID, "status", res.Donation.Status)
		if s.settings.AlertOnFallback {
			log.Warn("reconciliation_fallback",
				"ref", ref.String(),
				"amount_minor_units", res.Donation.AmountMinorUnits,
				"detail", "no pending donation matched this payment")
		}
	case res.Donation == nil:
		log.Info("no donation matches failure event, ignoring", "ref", ref.String())
	case res.Skipped:
		log.Info("failure event ignored for terminal donation", "donation_id", res.Donation.ID, "status", res.Donation.Status)
	default:
		if res.PreviousStatus == models.StatusFailed && res.Donation.Status == models.StatusSucceeded {
			log.Warn("success event overrides failed donation", "donation_id", res.Donation.ID)
		}
		log.Info("donation reconciled", "donation_id", res.Donation.ID, "status", res.Donation.Status)
	}
	return nil
}

// acknowledgeDespiteError is the single place where webhook processing errors
// are dropped: the provider gets a success response so it stops retrying, and
// the CSV export is the recovery path.
func (s *DonationService) acknowledgeDespiteError(log *slog.Logger, op string, err error) error {
	log.Error("webhook processing failed, acknowledging anyway", "op", op, "error", err)
	return nil
}

func (s *DonationService) payloadCurrency(log *slog.Logger, code string) string {
	if code == "" {
		return ""
	}
	cur, err := payments.NormalizeCurrency(code)
	if err != nil {
		log.Warn("ignoring unknown currency in webhook", "currency", code)
		return ""
	}
	return cur
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
