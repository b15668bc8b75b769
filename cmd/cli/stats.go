package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/axellelanca/portfolio-payments/cmd"
	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/services"
)

var statsDays int

// StatsCmd représente la commande 'stats'
var StatsCmd = &cobra.Command{
	Use:   "stats [product-id]",
	Short: "Affiche les clics d'affiliation quotidiens d'un produit",
	Long:  `Affiche le nombre de clics d'affiliation par jour, du plus ancien au plus récent.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	StatsCmd.Flags().IntVar(&statsDays, "days", services.DefaultReportDays, "Number of days to report, ending today")
	cmd.RootCmd.AddCommand(StatsCmd)
}

func runStats(c *cobra.Command, args []string) error {
	id, err := parseProductID(args[0])
	if err != nil {
		return err
	}

	app, err := cmd.NewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	svc := app.Services(nil)
	series, err := svc.Clicks.DailyStats(context.Background(), id, statsDays)
	if err != nil {
		if customerrors.Is(err, customerrors.ErrNotFound) {
			return fmt.Errorf("product %d not found", id)
		}
		return err
	}

	out := c.OutOrStdout()
	var total int64
	fmt.Fprintf(out, "Statistiques pour le produit %d (%d jours)\n", id, statsDays)
	for _, day := range series {
		fmt.Fprintf(out, "%s  %d\n", day.Date, day.Count)
		total += day.Count
	}
	fmt.Fprintf(out, "Total de clics: %d\n", total)
	return nil
}

func parseProductID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid product id %q", raw)
	}
	return uint(id), nil
}
