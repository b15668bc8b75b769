package models

import (
	"time"

	"gorm.io/datatypes"
)

// Donation status values. A record starts pending and is moved to a terminal
// state only by webhook reconciliation.
const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// DefaultCurrency is used when neither the request nor the provider names one.
const DefaultCurrency = "usd"

// Donation is the ledger record of one donation attempt, independent of the
// payment provider that handled it.
type Donation struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// AmountMinorUnits is the amount in the currency's smallest unit (cents for usd).
	AmountMinorUnits int64  `gorm:"not null;check:chk_donations_amount,amount_minor_units >= 0" json:"amount_minor_units"`
	Currency         string `gorm:"size:3;not null;default:usd" json:"currency"`

	// ProviderSessionID is the Stripe checkout session id, ProviderOrderID the PayPal order id.
	// Webhooks look records up by these columns only.
	ProviderSessionID *string `gorm:"size:255;uniqueIndex" json:"provider_session_id"`
	ProviderOrderID   *string `gorm:"size:255;uniqueIndex" json:"provider_order_id"`

	Status   string            `gorm:"size:20;not null;default:pending;index" json:"status"`
	Email    *string           `gorm:"size:254" json:"email"`
	Metadata datatypes.JSONMap `json:"metadata"`

	CreatedAt time.Time `gorm:"autoCreateTime;index;<-:create" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the record has left the pending state.
func (d *Donation) IsTerminal() bool {
	return d.Status == StatusSucceeded || d.Status == StatusFailed
}
