package models

import "time"

// AffiliateClick is one recorded outbound click on a product's affiliate link.
// Rows are written once at redirect time and never updated.
type AffiliateClick struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProductID uint      `gorm:"index;not null" json:"product_id"`
	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
	ClientIP  *string   `gorm:"size:64" json:"client_ip"`
	UserAgent *string   `gorm:"type:text" json:"user_agent"`
	Referer   *string   `gorm:"size:2000" json:"referer"`
}

// ClickEvent is the request-side view of a click, handed from the redirect
// handler to a click recorder.
type ClickEvent struct {
	ProductID uint
	Timestamp time.Time
	UserAgent string
	IPAddress string
	Referer   string
}

// ToAffiliateClick converts the event into its persisted form. Empty strings
// are stored as NULL.
func (e ClickEvent) ToAffiliateClick() *AffiliateClick {
	return &AffiliateClick{
		ProductID: e.ProductID,
		CreatedAt: e.Timestamp,
		ClientIP:  nullable(e.IPAddress),
		UserAgent: nullable(e.UserAgent),
		Referer:   nullable(e.Referer),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
