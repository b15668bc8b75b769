package models

import "time"

// Product is a digital product or affiliate listing. Its CRUD lives outside
// this service; only pricing sync and the affiliate click counter are managed here.
type Product struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"size:200;not null" json:"title"`
	Slug        string `gorm:"size:220;uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`

	PriceMinorUnits int64   `gorm:"not null;default:0" json:"price_minor_units"`
	Currency        string  `gorm:"size:3;not null;default:usd" json:"currency"`
	StripeProductID *string `gorm:"size:200" json:"stripe_product_id"`
	StripePriceID   *string `gorm:"size:200" json:"stripe_price_id"`

	AffiliateURL *string `gorm:"size:1000" json:"affiliate_url"`
	DownloadURL  *string `gorm:"size:1000" json:"download_url"`

	// AffiliateClicks is a denormalized counter, only ever incremented server-side.
	AffiliateClicks int64 `gorm:"not null;default:0" json:"affiliate_clicks"`

	IsPublished bool      `gorm:"not null" json:"is_published"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasAffiliateURL reports whether the product redirects to an external vendor.
func (p *Product) HasAffiliateURL() bool {
	return p.AffiliateURL != nil && *p.AffiliateURL != ""
}

// AllModels lists every model migrated at startup.
func AllModels() []any {
	return []any{&Product{}, &Donation{}, &AffiliateClick{}}
}
