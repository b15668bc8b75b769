package services

import (
	"context"
	"net/http"
	"testing"

	"gorm.io/gorm"

	"github.com/axellelanca/portfolio-payments/internal/database/databasetest"
	"github.com/axellelanca/portfolio-payments/internal/payments"
	"github.com/axellelanca/portfolio-payments/internal/repository"
)

type fakeStripe struct {
	CreateCheckoutSessionFunc func(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error)
	CreateProductFunc         func(ctx context.Context, name, description string) (string, error)
	CreatePriceFunc           func(ctx context.Context, productID string, amount int64, currency string) (string, error)
	ParseWebhookFunc          func(payload []byte, signature string) (*payments.StripeEvent, error)
}

func (f *fakeStripe) CreateCheckoutSession(ctx context.Context, req payments.CheckoutRequest) (*payments.CheckoutSession, error) {
	return f.CreateCheckoutSessionFunc(ctx, req)
}

func (f *fakeStripe) CreateProduct(ctx context.Context, name, description string) (string, error) {
	return f.CreateProductFunc(ctx, name, description)
}

func (f *fakeStripe) CreatePrice(ctx context.Context, productID string, amount int64, currency string) (string, error) {
	return f.CreatePriceFunc(ctx, productID, amount, currency)
}

func (f *fakeStripe) ParseWebhook(payload []byte, signature string) (*payments.StripeEvent, error) {
	return f.ParseWebhookFunc(payload, signature)
}

type fakePayPal struct {
	CreateOrderFunc   func(ctx context.Context, req payments.OrderRequest) (*payments.Order, error)
	VerifyWebhookFunc func(ctx context.Context, headers http.Header, body []byte) error
}

func (f *fakePayPal) CreateOrder(ctx context.Context, req payments.OrderRequest) (*payments.Order, error) {
	return f.CreateOrderFunc(ctx, req)
}

func (f *fakePayPal) VerifyWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if f.VerifyWebhookFunc == nil {
		return nil
	}
	return f.VerifyWebhookFunc(ctx, headers, body)
}

type testRepos struct {
	db        *gorm.DB
	donations *repository.GormDonationRepository
	products  *repository.GormProductRepository
	clicks    *repository.GormClickRepository
}

func newTestRepos(t *testing.T) testRepos {
	t.Helper()
	db := databasetest.Open(t)
	return testRepos{
		db:        db,
		donations: repository.NewDonationRepository(db),
		products:  repository.NewProductRepository(db),
		clicks:    repository.NewClickRepository(db),
	}
}

func strPtr(s string) *string { return &s }
