package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/models"
)

// ProviderRef identifies a ledger record by the payment provider's key. It is
// the only way webhooks can address a record.
type ProviderRef struct {
	Column string
	Value  string
}

// StripeSession references a record by its Stripe checkout session id.
func StripeSession(id string) ProviderRef {
	return ProviderRef{Column: "provider_session_id", Value: id}
}

// PayPalOrder references a record by its PayPal order id.
func PayPalOrder(id string) ProviderRef {
	return ProviderRef{Column: "provider_order_id", Value: id}
}

func (r ProviderRef) String() string {
	return r.Column + "=" + r.Value
}

// Outcome is the final state reported by a provider webhook. Zero values mean
// "not present in the payload" and leave the stored column untouched.
type Outcome struct {
	Status           string
	AmountMinorUnits int64
	Currency         string
	Email            string
}

// ApplyResult describes what ApplyOutcome did to the ledger.
type ApplyResult struct {
	Donation       *models.Donation
	PreviousStatus string // empty when the record was created
	Created        bool   // no record matched, a new one was inserted from the payload
	Skipped        bool   // nothing to change (failure for an unknown or already terminal record)
}

// DonationRepository est une interface qui définit les méthodes d'accès au registre des dons.
type DonationRepository interface {
	Create(ctx context.Context, d *models.Donation) error
	FindByProviderRef(ctx context.Context, ref ProviderRef) (*models.Donation, error)
	ApplyOutcome(ctx context.Context, ref ProviderRef, out Outcome) (*ApplyResult, error)
	ListCreatedSince(ctx context.Context, since time.Time) ([]models.Donation, error)
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Donation, error)
}

// GormDonationRepository est l'implémentation de DonationRepository utilisant GORM.
type GormDonationRepository struct {
	db *gorm.DB
}

// NewDonationRepository crée et retourne une nouvelle instance de GormDonationRepository.
func NewDonationRepository(db *gorm.DB) *GormDonationRepository {
	return &GormDonationRepository{db: db}
}

// Create insère un nouveau don dans le registre.
func (r *GormDonationRepository) Create(ctx context.Context, d *models.Donation) error {
	if d.AmountMinorUnits < 0 {
		return fmt.Errorf("negative amount %d: %w", d.AmountMinorUnits, customerrors.ErrInvalidAmount)
	}
	if err := r.db.WithContext(ctx).Create(d).Error; err != nil {
		return fmt.Errorf("failed to create donation: %w", err)
	}
	return nil
}

// FindByProviderRef récupère un don par l'identifiant du fournisseur de paiement.
func (r *GormDonationRepository) FindByProviderRef(ctx context.Context, ref ProviderRef) (*models.Donation, error) {
	var d models.Donation
	err := r.db.WithContext(ctx).Where(ref.Column+" = ?", ref.Value).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("donation %s: %w", ref, customerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find donation %s: %w", ref, err)
	}
	return &d, nil
}

// ApplyOutcome reconciles the record matching ref with a webhook outcome.
//
// Success overwrites status, and amount, currency and email when present,
// whatever the current state: duplicate deliveries carry the same values, so
// the result does not depend on delivery order. Failure only moves a pending
// record to failed. When nothing matches, a success inserts a new succeeded
// record; the insert is an upsert on the provider column so that two racing
// deliveries end with one row.
func (r *GormDonationRepository) ApplyOutcome(ctx context.Context, ref ProviderRef, out Outcome) (*ApplyResult, error) {
	if out.Status != models.StatusSucceeded && out.Status != models.StatusFailed {
		return nil, fmt.Errorf("unsupported outcome status %q", out.Status)
	}
	if out.AmountMinorUnits < 0 {
		return nil, fmt.Errorf("negative amount %d: %w", out.AmountMinorUnits, customerrors.ErrInvalidAmount)
	}

	result := &ApplyResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Donation
		err := tx.Where(ref.Column+" = ?", ref.Value).First(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if out.Status != models.StatusSucceeded {
				result.Skipped = true
				return nil
			}
			d = newDonationFromOutcome(ref, out)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: ref.Column}},
				DoUpdates: clause.Assignments(out.assignments()),
			}).Create(&d).Error; err != nil {
				return fmt.Errorf("failed to insert reconciled donation: %w", err)
			}
			result.Created = true
			result.Donation = &d
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to find donation %s: %w", ref, err)
		}

		result.PreviousStatus = d.Status
		q := tx.Model(&models.Donation{}).Where("id = ?", d.ID)
		if out.Status == models.StatusFailed {
			q = q.Where("status = ?", models.StatusPending)
		}
		res := q.Updates(out.assignments())
		if res.Error != nil {
			return fmt.Errorf("failed to update donation %d: %w", d.ID, res.Error)
		}
		result.Skipped = res.RowsAffected == 0

		if err := tx.First(&d, d.ID).Error; err != nil {
			return fmt.Errorf("failed to reload donation %d: %w", d.ID, err)
		}
		result.Donation = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListCreatedSince returns donations created at or after since, newest first.
func (r *GormDonationRepository) ListCreatedSince(ctx context.Context, since time.Time) ([]models.Donation, error) {
	var donations []models.Donation
	if err := r.db.WithContext(ctx).
		Where("created_at >= ?", since.UTC()).
		Order("created_at DESC").Order("id DESC").
		Find(&donations).Error; err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, nil
}

// ListPendingOlderThan returns donations still pending that were created before cutoff.
func (r *GormDonationRepository) ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]models.Donation, error) {
	var donations []models.Donation
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.StatusPending, cutoff.UTC()).
		Order("created_at ASC").
		Find(&donations).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending donations: %w", err)
	}
	return donations, nil
}

func (o Outcome) assignments() map[string]any {
	m := map[string]any{
		"status":     o.Status,
		"updated_at": time.Now().UTC(),
	}
	if o.AmountMinorUnits > 0 {
		m["amount_minor_units"] = o.AmountMinorUnits
	}
	if o.Currency != "" {
		m["currency"] = o.Currency
	}
	if o.Email != "" {
		m["email"] = o.Email
	}
	return m
}

func newDonationFromOutcome(ref ProviderRef, out Outcome) models.Donation {
	d := models.Donation{
		AmountMinorUnits: out.AmountMinorUnits,
		Currency:         out.Currency,
		Status:           out.Status,
	}
	if d.Currency == "" {
		d.Currency = models.DefaultCurrency
	}
	if out.Email != "" {
		email := out.Email
		d.Email = &email
	}
	id := ref.Value
	switch ref.Column {
	case "provider_order_id":
		d.ProviderOrderID = &id
	default:
		d.ProviderSessionID = &id
	}
	return d
}
