package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultBotSignatures are lower-case user-agent fragments that identify
// automated clients. Matching requests are redirected but not recorded.
var DefaultBotSignatures = []string{
	"bot", "spider", "crawl", "curl", "wget", "python-requests",
	"monitoring", "uptime", "slurp", "bingpreview", "facebookexternalhit", "headless",
}

// Config represents the main structure mapping the entire application configuration.
// This struct uses mapstructure tags to map YAML keys and environment variables to Go struct fields.
type Config struct {
	// Server configuration section containing HTTP server settings
	Server struct {
		Port       int    `mapstructure:"port"`        // HTTP server port (default: 8080)
		BaseURL    string `mapstructure:"base_url"`    // Public URL used for redirects and provider return URLs
		AdminToken string `mapstructure:"admin_token"` // Bearer token for report and product endpoints
		Timezone   string `mapstructure:"timezone"`    // Calendar used for daily buckets and report windows
	} `mapstructure:"server"`

	// Database configuration section
	Database struct {
		Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
		Name   string `mapstructure:"name"`   // SQLite database file name
		DSN    string `mapstructure:"dsn"`    // PostgreSQL connection string
	} `mapstructure:"database"`

	Stripe struct {
		SecretKey     string `mapstructure:"secret_key"`
		WebhookSecret string `mapstructure:"webhook_secret"`
		SuccessURL    string `mapstructure:"success_url"`
		CancelURL     string `mapstructure:"cancel_url"`
	} `mapstructure:"stripe"`

	PayPal struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		Mode         string `mapstructure:"mode"`       // "sandbox" or "live"
		WebhookID    string `mapstructure:"webhook_id"` // enables signature verification when set
		BaseURL      string `mapstructure:"base_url"`   // overrides the mode-derived API host
	} `mapstructure:"paypal"`

	Payments struct {
		Currency               string `mapstructure:"currency"`
		AlertOnFallback        bool   `mapstructure:"alert_on_fallback"`
		ProviderTimeoutSeconds int    `mapstructure:"provider_timeout_seconds"`
	} `mapstructure:"payments"`

	// Analytics configuration for affiliate click tracking
	Analytics struct {
		Async         bool     `mapstructure:"async"`          // Record clicks through the worker pool
		BufferSize    int      `mapstructure:"buffer_size"`    // Size of the click event channel buffer
		WorkerCount   int      `mapstructure:"worker_count"`   // Number of worker goroutines for processing clicks
		BotSignatures []string `mapstructure:"bot_signatures"` // Lower-case user-agent fragments
	} `mapstructure:"analytics"`

	// Monitor configuration for affiliate URL health checking
	Monitor struct {
		Enabled         bool `mapstructure:"enabled"`
		IntervalMinutes int  `mapstructure:"interval_minutes"`
	} `mapstructure:"monitor"`

	Log struct {
		Level  string `mapstructure:"level"`  // debug, info, warn, error
		Format string `mapstructure:"format"` // text or json
	} `mapstructure:"log"`
}

// StripeConfigured reports whether Stripe checkout can be used.
func (c *Config) StripeConfigured() bool {
	return c.Stripe.SecretKey != ""
}

// PayPalConfigured reports whether PayPal orders can be created.
func (c *Config) PayPalConfigured() bool {
	return c.PayPal.ClientID != "" && c.PayPal.ClientSecret != ""
}

// ProviderTimeout bounds every outbound call to Stripe and PayPal.
func (c *Config) ProviderTimeout() time.Duration {
	if c.Payments.ProviderTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Payments.ProviderTimeoutSeconds) * time.Second
}

// Location returns the configured time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c.Server.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Server.Timezone)
	if err != nil {
		slog.Warn("unknown timezone, using UTC", "timezone", c.Server.Timezone, "error", err)
		return time.UTC
	}
	return loc
}

// SetDefaults registers the default value of every configuration key.
// Defaults are also what makes viper bind the matching environment variables on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.admin_token", "")
	v.SetDefault("server.timezone", "UTC")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.name", "portfolio.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.webhook_secret", "")
	v.SetDefault("stripe.success_url", "")
	v.SetDefault("stripe.cancel_url", "")

	v.SetDefault("paypal.client_id", "")
	v.SetDefault("paypal.client_secret", "")
	v.SetDefault("paypal.mode", "sandbox")
	v.SetDefault("paypal.webhook_id", "")
	v.SetDefault("paypal.base_url", "")

	v.SetDefault("payments.currency", "usd")
	v.SetDefault("payments.alert_on_fallback", true)
	v.SetDefault("payments.provider_timeout_seconds", 10)

	v.SetDefault("analytics.async", false)
	v.SetDefault("analytics.buffer_size", 1000)
	v.SetDefault("analytics.worker_count", 5)
	v.SetDefault("analytics.bot_signatures", DefaultBotSignatures)

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.interval_minutes", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig loads the application configuration using Viper.
// A .env file in the working directory is applied to the environment first, then
// ./configs/config.yaml is read and environment variables override both
// (e.g. "stripe.secret_key" becomes STRIPE_SECRET_KEY).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, reading environment variables directly")
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envReplacer())
	v.AddConfigPath("./configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		slog.Debug("config file not found, using defaults and environment")
	}

	return fromViper(v)
}

// envReplacer maps nested keys to environment names: server.port -> SERVER_PORT.
func envReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects combinations that cannot work at runtime.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Name == "" {
			return errors.New("database.name is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.PayPal.Mode {
	case "sandbox", "live":
	default:
		return fmt.Errorf("unsupported paypal mode %q", c.PayPal.Mode)
	}
	if c.Analytics.Async && (c.Analytics.WorkerCount < 1 || c.Analytics.BufferSize < 1) {
		return errors.New("analytics.worker_count and analytics.buffer_size must be positive when analytics.async is enabled")
	}
	return nil
}
