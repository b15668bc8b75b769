package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestDefaults(t *testing.T) {
	cfg, err := fromViper(newTestViper())
	if err != nil {
		t.Fatalf("fromViper() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Payments.Currency != "usd" {
		t.Errorf("Payments.Currency = %q, want usd", cfg.Payments.Currency)
	}
	if len(cfg.Analytics.BotSignatures) != len(DefaultBotSignatures) {
		t.Errorf("BotSignatures has %d entries, want %d", len(cfg.Analytics.BotSignatures), len(DefaultBotSignatures))
	}
	if cfg.StripeConfigured() || cfg.PayPalConfigured() {
		t.Error("providers should not be configured by default")
	}
	if cfg.ProviderTimeout() != 10*time.Second {
		t.Errorf("ProviderTimeout() = %v, want 10s", cfg.ProviderTimeout())
	}
	if cfg.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Location())
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("PAYPAL_CLIENT_ID", "client")
	t.Setenv("PAYPAL_CLIENT_SECRET", "secret")
	t.Setenv("SERVER_PORT", "9090")

	v := newTestViper()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envReplacer())

	cfg, err := fromViper(v)
	if err != nil {
		t.Fatalf("fromViper() error = %v", err)
	}
	if !cfg.StripeConfigured() {
		t.Error("expected Stripe to be configured from STRIPE_SECRET_KEY")
	}
	if !cfg.PayPalConfigured() {
		t.Error("expected PayPal to be configured")
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   any
		wantErr bool
	}{
		{"postgres without dsn", "database.driver", "postgres", true},
		{"unknown driver", "database.driver", "oracle", true},
		{"unknown paypal mode", "paypal.mode", "production", true},
		{"live paypal mode", "paypal.mode", "live", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestViper()
			v.Set(tt.key, tt.value)
			_, err := fromViper(v)
			if (err != nil) != tt.wantErr {
				t.Errorf("fromViper() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocationFallback(t *testing.T) {
	var cfg Config
	cfg.Server.Timezone = "Not/AZone"
	if cfg.Location() != time.UTC {
		t.Errorf("expected UTC fallback for unknown zone")
	}
	cfg.Server.Timezone = "Europe/Paris"
	if cfg.Location().String() != "Europe/Paris" {
		t.Errorf("Location() = %v, want Europe/Paris", cfg.Location())
	}
}
