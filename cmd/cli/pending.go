package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/axellelanca/portfolio-payments/cmd"
)

var pendingOlderThan time.Duration

// PendingCmd liste les dons restés en attente, faute de webhook reçu.
var PendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Liste les dons en attente depuis plus d'une durée donnée",
	Long: `Liste les dons toujours 'pending' créés avant --older-than.
Ces dons sont à rapprocher manuellement avec le tableau de bord du fournisseur.`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		app, err := cmd.NewApp()
		if err != nil {
			return err
		}
		defer app.Close()

		donations, err := app.Services(nil).Reports.PendingOlderThan(context.Background(), pendingOlderThan)
		if err != nil {
			return err
		}

		out := c.OutOrStdout()
		if len(donations) == 0 {
			fmt.Fprintln(out, "Aucun don en attente.")
			return nil
		}
		for _, d := range donations {
			ref := "stripe:" + deref(d.ProviderSessionID)
			if d.ProviderOrderID != nil {
				ref = "paypal:" + *d.ProviderOrderID
			}
			fmt.Fprintf(out, "#%d  %s  %d %s  %s\n", d.ID, d.CreatedAt.UTC().Format(time.RFC3339), d.AmountMinorUnits, d.Currency, ref)
		}
		fmt.Fprintf(out, "%d don(s) en attente.\n", len(donations))
		return nil
	},
}

func init() {
	PendingCmd.Flags().DurationVar(&pendingOlderThan, "older-than", 24*time.Hour, "Minimum age of the pending donations")
	cmd.RootCmd.AddCommand(PendingCmd)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
