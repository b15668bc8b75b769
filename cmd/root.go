package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/axellelanca/portfolio-payments/internal/config"
)

// Cfg contient la configuration chargée avant l'exécution de chaque commande.
var Cfg *config.Config

// cfgErr conserve l'erreur de chargement pour que les commandes puissent la signaler.
var cfgErr error

// RootCmd est la commande de base. Les sous-commandes (run-server, migrate,
// stats, report, pending, product) s'enregistrent dans leur propre init().
var RootCmd = &cobra.Command{
	Use:   "portfolio-payments",
	Short: "Donations, affiliate click tracking and reporting for the portfolio site",
	Long: `Backend of the portfolio site: Stripe and PayPal donation checkouts,
webhook reconciliation of the donation ledger, affiliate redirects with click
statistics, and CSV exports.`,
	SilenceUsage: true,
}

// Execute est appelé depuis main.go.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	Cfg, cfgErr = config.LoadConfig()
	if cfgErr != nil {
		slog.Error("failed to load configuration", "error", cfgErr)
	}
}

// RequireConfig retourne la configuration ou l'erreur rencontrée lors de son chargement.
func RequireConfig() (*config.Config, error) {
	if Cfg == nil {
		if cfgErr == nil {
			cfgErr = errors.New("configuration not loaded")
		}
		return nil, fmt.Errorf("invalid configuration: %w", cfgErr)
	}
	return Cfg, nil
}
