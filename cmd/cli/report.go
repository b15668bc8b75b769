package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/axellelanca/portfolio-payments/cmd"
	"github.com/axellelanca/portfolio-payments/internal/services"
)

var (
	reportDays   int
	reportOutput string
)

// ReportCmd regroupe les exports CSV.
var ReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Exporte les dons ou les clics d'affiliation au format CSV",
}

var reportDonationsCmd = &cobra.Command{
	Use:   "donations",
	Short: "Exporte les dons des N derniers jours",
	Args:  cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		app, err := cmd.NewApp()
		if err != nil {
			return err
		}
		defer app.Close()

		export, err := app.Services(nil).Reports.DonationsCSV(context.Background(), reportDays)
		if err != nil {
			return err
		}
		return writeExport(c, export)
	},
}

var reportClicksCmd = &cobra.Command{
	Use:   "clicks [product-id]",
	Short: "Exporte les clics d'affiliation d'un produit",
	Long:  `Exporte tout l'historique des clics d'un produit, ou les N derniers jours avec --days.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(c *cobra.Command, args []string) error {
		id, err := parseProductID(args[0])
		if err != nil {
			return err
		}
		app, err := cmd.NewApp()
		if err != nil {
			return err
		}
		defer app.Close()

		var days *int
		if c.Flags().Changed("days") {
			days = &reportDays
		}
		export, err := app.Services(nil).Reports.AffiliateClicksCSV(context.Background(), id, days)
		if err != nil {
			return err
		}
		return writeExport(c, export)
	},
}

func init() {
	ReportCmd.PersistentFlags().IntVar(&reportDays, "days", services.DefaultReportDays, "Number of days to export, ending today")
	ReportCmd.PersistentFlags().StringVarP(&reportOutput, "output", "o", "", "Write to this file instead of stdout ('-' for stdout, empty for the default file name)")
	ReportCmd.AddCommand(reportDonationsCmd, reportClicksCmd)
	cmd.RootCmd.AddCommand(ReportCmd)
}

// writeExport écrit sur stdout avec -o -, sinon dans un fichier (nom par défaut de l'export).
func writeExport(c *cobra.Command, export *services.CSVExport) error {
	if reportOutput == "-" {
		return export.Write(c.OutOrStdout())
	}
	path := reportOutput
	if path == "" {
		path = export.Filename
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(c.OutOrStdout(), "%d rows written to %s\n", len(export.Rows), path)
	return nil
}
