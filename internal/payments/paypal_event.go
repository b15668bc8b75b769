package payments

import (
	"encoding/json"
	"fmt"
	"strings"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
)

// PayPal webhook event types handled by reconciliation.
const (
	EventOrderApproved    = "CHECKOUT.ORDER.APPROVED"
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
)

// PayPalEvent is the webhook envelope. The resource is kept raw and decoded
// on demand, so an unexpected resource shape does not reject the delivery.
type PayPalEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

// PayPalResource covers the order and capture resource fields used for reconciliation.
type PayPalResource struct {
	ID            string        `json:"id"`
	InvoiceID     string        `json:"invoice_id"`
	ParentPayment string        `json:"parent_payment"`
	Amount        *paypalAmount `json:"amount"`
	PurchaseUnits []struct {
		Amount *paypalAmount `json:"amount"`
	} `json:"purchase_units"`
	Payer *struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
	PayerInfo *struct {
		Email string `json:"email"`
	} `json:"payer_info"`
	SupplementaryData *struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// ParsePayPalEvent decodes the envelope; malformed JSON is ErrInvalidPayload.
func ParsePayPalEvent(body []byte) (*PayPalEvent, error) {
	var ev PayPalEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, customerrors.WithDetail(customerrors.ErrInvalidPayload, "Invalid payload")
	}
	return &ev, nil
}

// DecodeResource parses the event resource. A missing resource yields an empty value.
func (e *PayPalEvent) DecodeResource() (*PayPalResource, error) {
	var r PayPalResource
	if len(e.Resource) == 0 || string(e.Resource) == "null" {
		return &r, nil
	}
	if err := json.Unmarshal(e.Resource, &r); err != nil {
		return nil, fmt.Errorf("failed to decode %s resource: %w", e.EventType, err)
	}
	return &r, nil
}

// OrderID returns the PayPal order id the event refers to. Capture resources
// carry their own capture id, so the related order id is preferred for them.
func (r *PayPalResource) OrderID(eventType string) string {
	related := ""
	if r.SupplementaryData != nil {
		related = r.SupplementaryData.RelatedIDs.OrderID
	}
	if strings.HasPrefix(eventType, "PAYMENT.CAPTURE.") && related != "" {
		return related
	}
	for _, id := range []string{r.ID, related, r.InvoiceID, r.ParentPayment} {
		if id != "" {
			return id
		}
	}
	return ""
}

// AmountMinorUnits returns the amount in minor units and its currency, or
// zero and an empty currency when the resource carries no amount.
func (r *PayPalResource) AmountMinorUnits() (int64, string, error) {
	amt := r.Amount
	if amt == nil && len(r.PurchaseUnits) > 0 {
		amt = r.PurchaseUnits[0].Amount
	}
	if amt == nil || amt.Value == "" {
		return 0, "", nil
	}
	minor, err := ParseMajorUnits(amt.Value, amt.CurrencyCode)
	if err != nil {
		return 0, "", err
	}
	return minor, strings.ToLower(amt.CurrencyCode), nil
}

// Email returns the payer address, if any.
func (r *PayPalResource) Email() string {
	if r.Payer != nil && r.Payer.EmailAddress != "" {
		return r.Payer.EmailAddress
	}
	if r.PayerInfo != nil {
		return r.PayerInfo.Email
	}
	return ""
}
