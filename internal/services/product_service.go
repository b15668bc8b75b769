package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/gosimple/slug"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/models"
	"github.com/axellelanca/portfolio-payments/internal/payments"
	"github.com/axellelanca/portfolio-payments/internal/repository"
)

const maxSlugAttempts = 1000

// ProductInput is the data accepted when creating a product.
type ProductInput struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	Currency        string `json:"currency"`
	AffiliateURL    string `json:"affiliate_url" binding:"omitempty,url"`
	DownloadURL     string `json:"download_url" binding:"omitempty,url"`
	IsPublished     *bool  `json:"is_published"`
}

// PurchaseResult tells the frontend where to send the buyer.
type PurchaseResult struct {
	Type        string `json:"type"`
	URL         string `json:"url,omitempty"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// ProductService handles slugs, Stripe catalog sync and purchases.
type ProductService struct {
	products   repository.ProductRepository
	stripe     payments.StripeGateway
	baseURL    string
	successURL string
	cancelURL  string
	logger     *slog.Logger
}

func NewProductService(products repository.ProductRepository, stripe payments.StripeGateway, baseURL string, logger *slog.Logger) *ProductService {
	baseURL = strings.TrimRight(baseURL, "/")
	return &ProductService{
		products:   products,
		stripe:     stripe,
		baseURL:    baseURL,
		successURL: baseURL + "/?checkout=success",
		cancelURL:  baseURL + "/?checkout=cancel",
		logger:     logger.With("component", "products"),
	}
}

// CreateProduct stores a product under a unique slug derived from its title,
// then creates the Stripe product and price for priced items. Stripe errors
// are logged and leave the product without a price id.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, customerrors.WithDetail(customerrors.ErrInvalidParameter, "title is required")
	}
	if in.PriceMinorUnits < 0 {
		return nil, customerrors.WithDetail(customerrors.ErrInvalidAmount, "Price cannot be negative")
	}
	cur, err := payments.NormalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if err := checkWebURL("affiliate_url", in.AffiliateURL); err != nil {
		return nil, err
	}
	if err := checkWebURL("download_url", in.DownloadURL); err != nil {
		return nil, err
	}
	productSlug, err := s.uniqueSlug(ctx, title)
	if err != nil {
		return nil, err
	}

	p := &models.Product{
		Title:           title,
		Slug:            productSlug,
		Description:     in.Description,
		PriceMinorUnits: in.PriceMinorUnits,
		Currency:        cur,
		AffiliateURL:    optional(in.AffiliateURL),
		DownloadURL:     optional(in.DownloadURL),
		IsPublished:     in.IsPublished == nil || *in.IsPublished,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	s.syncStripePrice(ctx, p, true)
	return p, nil
}

// Product returns a product by id.
func (s *ProductService) Product(ctx context.Context, id uint) (*models.Product, error) {
	return s.products.GetByID(ctx, id)
}

// UpdatePrice changes a product's price. Stripe prices are immutable, so a
// new one is created only when the amount changed or none is cached.
func (s *ProductService) UpdatePrice(ctx context.Context, id uint, amount int64) (*models.Product, error) {
	if amount < 0 {
		return nil, customerrors.WithDetail(customerrors.ErrInvalidAmount, "Price cannot be negative")
	}
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := p.PriceMinorUnits != amount
	if changed {
		p.PriceMinorUnits = amount
		if err := s.products.UpdateColumns(ctx, p, "price_minor_units"); err != nil {
			return nil, err
		}
	}
	s.syncStripePrice(ctx, p, changed)
	return p, nil
}

func (s *ProductService) syncStripePrice(ctx context.Context, p *models.Product, priceChanged bool) {
	if s.stripe == nil || p.PriceMinorUnits <= 0 {
		return
	}
	if !priceChanged && p.StripePriceID != nil && *p.StripePriceID != "" {
		return
	}

	var columns []string
	if p.StripeProductID == nil || *p.StripeProductID == "" {
		prodID, err := s.stripe.CreateProduct(ctx, p.Title, p.Description)
		if err != nil {
			s.logger.Error("stripe product sync failed", "product_id", p.ID, "error", err)
			return
		}
		p.StripeProductID = &prodID
		columns = append(columns, "stripe_product_id")
	}

	priceID, err := s.stripe.CreatePrice(ctx, *p.StripeProductID, p.PriceMinorUnits, p.Currency)
	if err != nil {
		s.logger.Error("stripe price sync failed", "product_id", p.ID, "error", err)
	} else {
		p.StripePriceID = &priceID
		columns = append(columns, "stripe_price_id")
	}

	if len(columns) > 0 {
		if err := s.products.UpdateColumns(ctx, p, columns...); err != nil {
			s.logger.Error("failed to save stripe ids", "product_id", p.ID, "error", err)
		}
	}
}

// Purchase decides how a product is bought: through the tracked affiliate
// redirect, a direct download for free products, or a Stripe checkout.
func (s *ProductService) Purchase(ctx context.Context, id uint) (*PurchaseResult, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if p.HasAffiliateURL() {
		return &PurchaseResult{Type: "external", URL: fmt.Sprintf("%s/products/%d/go/", s.baseURL, p.ID)}, nil
	}
	if p.PriceMinorUnits == 0 && p.DownloadURL != nil && *p.DownloadURL != "" {
		return &PurchaseResult{Type: "download", URL: *p.DownloadURL}, nil
	}
	if s.stripe != nil && p.StripePriceID != nil && *p.StripePriceID != "" {
		sess, err := s.stripe.CreateCheckoutSession(ctx, payments.CheckoutRequest{
			PriceID:    *p.StripePriceID,
			SuccessURL: s.successURL,
			CancelURL:  s.cancelURL,
			Metadata:   map[string]string{"product_id": fmt.Sprint(p.ID)},
		})
		if err != nil {
			return nil, err
		}
		return &PurchaseResult{Type: "stripe", CheckoutURL: sess.URL}, nil
	}

	return nil, customerrors.WithDetail(customerrors.ErrProviderUnavailable,
		"Payment gateway not configured or product not available for purchase")
}

func (s *ProductService) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slug.Make(title)
	if len(base) > 200 {
		base = strings.Trim(base[:200], "-")
	}
	if base == "" {
		base = "product"
	}
	candidate := base
	for i := 1; i <= maxSlugAttempts; i++ {
		exists, err := s.products.SlugExists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", fmt.Errorf("no free slug for %q after %d attempts", base, maxSlugAttempts)
}

// checkWebURL accepts an empty value or an absolute http(s) URL. Stored URLs
// end up in redirects, so other schemes such as javascript: are refused.
func checkWebURL(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return customerrors.WithDetail(customerrors.ErrInvalidParameter, field+" must be an http(s) URL")
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
