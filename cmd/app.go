package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/axellelanca/portfolio-payments/internal/api"
	"github.com/axellelanca/portfolio-payments/internal/config"
	"github.com/axellelanca/portfolio-payments/internal/database"
	"github.com/axellelanca/portfolio-payments/internal/logging"
	"github.com/axellelanca/portfolio-payments/internal/payments"
	"github.com/axellelanca/portfolio-payments/internal/repository"
	"github.com/axellelanca/portfolio-payments/internal/services"
)

// App regroupe les dépendances partagées par le serveur et les commandes CLI.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *gorm.DB
	Location *time.Location
	Currency string

	Donations *repository.GormDonationRepository
	Products  *repository.GormProductRepository
	Clicks    *repository.GormClickRepository

	// Nil quand le fournisseur n'est pas configuré.
	Stripe payments.StripeGateway
	PayPal payments.PayPalGateway
}

// NewApp charge la configuration, ouvre et migre la base, puis construit les
// passerelles de paiement configurées.
func NewApp() (*App, error) {
	cfg, err := RequireConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)

	currency, err := payments.NormalizeCurrency(cfg.Payments.Currency)
	if err != nil {
		return nil, fmt.Errorf("payments.currency: %w", err)
	}

	db, err := database.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}

	app := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Location:  cfg.Location(),
		Currency:  currency,
		Donations: repository.NewDonationRepository(db),
		Products:  repository.NewProductRepository(db),
		Clicks:    repository.NewClickRepository(db),
	}

	if cfg.StripeConfigured() {
		client := payments.NewStripeClient(payments.StripeOptions{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			Timeout:       cfg.ProviderTimeout(),
		})
		if !client.VerifiesSignatures() {
			logger.Warn("stripe webhook secret not set, webhook signatures are NOT verified")
		}
		app.Stripe = client
	} else {
		logger.Info("stripe not configured")
	}

	if cfg.PayPalConfigured() {
		client := payments.NewPayPalClient(payments.PayPalOptions{
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			Mode:         cfg.PayPal.Mode,
			WebhookID:    cfg.PayPal.WebhookID,
			BaseURL:      cfg.PayPal.BaseURL,
			Timeout:      cfg.ProviderTimeout(),
		})
		if !client.VerifiesSignatures() {
			logger.Warn("paypal webhook id not set, webhook signatures are NOT verified")
		}
		app.PayPal = client
	} else {
		logger.Info("paypal not configured")
	}

	return app, nil
}

// Close libère la connexion à la base.
func (a *App) Close() {
	if err := database.Close(a.DB); err != nil {
		a.Logger.Error("failed to close database", "error", err)
	}
}

func (a *App) baseURL() string {
	return strings.TrimRight(a.Config.Server.BaseURL, "/")
}

// DonationSettings complète les URLs de retour absentes à partir de server.base_url.
func (a *App) DonationSettings() services.DonationSettings {
	success := a.Config.Stripe.SuccessURL
	if success == "" {
		success = a.baseURL() + "/?donation=success"
	}
	cancel := a.Config.Stripe.CancelURL
	if cancel == "" {
		cancel = a.baseURL() + "/?donation=cancel"
	}
	return services.DonationSettings{
		Currency:        a.Currency,
		SuccessURL:      success,
		CancelURL:       cancel,
		PayPalReturnURL: success,
		PayPalCancelURL: cancel,
		AlertOnFallback: a.Config.Payments.AlertOnFallback,
	}
}

// Services construit les services métiers. recorder nil enregistre les clics
// dans la requête de redirection.
func (a *App) Services(recorder services.ClickRecorder) api.Services {
	if recorder == nil {
		recorder = services.NewSyncRecorder(a.Clicks)
	}
	return api.Services{
		Donations: services.NewDonationService(a.Donations, a.Stripe, a.PayPal, a.DonationSettings(), a.Logger),
		Clicks:    services.NewClickService(a.Products, a.Clicks, recorder, a.Config.Analytics.BotSignatures, a.Location, a.Logger),
		Reports:   services.NewReportService(a.Donations, a.Clicks, a.Location),
		Products:  services.NewProductService(a.Products, a.Stripe, a.baseURL(), a.Logger),
	}
}
