package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/axellelanca/portfolio-payments/cmd"
	"github.com/axellelanca/portfolio-payments/internal/models"
	"github.com/axellelanca/portfolio-payments/internal/payments"
	"github.com/axellelanca/portfolio-payments/internal/services"
)

var (
	productTitle        string
	productDescription  string
	productPrice        string
	productCurrency     string
	productAffiliateURL string
	productDownloadURL  string
)

// ProductCmd gère les produits et leur synchronisation avec Stripe.
var ProductCmd = &cobra.Command{
	Use:   "product",
	Short: "Crée des produits et modifie leur prix",
}

var productCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Crée un produit (slug unique, prix Stripe si le produit est payant)",
	Long: `Crée un produit. Le prix est donné en unités principales (ex. 49.00).

Exemple:
  portfolio-payments product create --title="Mechanical keyboard" --affiliate-url="https://vendor.example/kb"`,
	Args: cobra.NoArgs,
	RunE: func(c *cobra.Command, args []string) error {
		app, err := cmd.NewApp()
		if err != nil {
			return err
		}
		defer app.Close()

		currency := productCurrency
		if currency == "" {
			currency = app.Currency
		}
		price, err := parsePrice(productPrice, currency)
		if err != nil {
			return err
		}
		p, err := app.Services(nil).Products.CreateProduct(context.Background(), services.ProductInput{
			Title:           productTitle,
			Description:     productDescription,
			PriceMinorUnits: price,
			Currency:        currency,
			AffiliateURL:    productAffiliateURL,
			DownloadURL:     productDownloadURL,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(c.OutOrStdout(), "Produit créé avec succès:")
		printProduct(c.OutOrStdout(), p)
		return nil
	},
}

var productSetPriceCmd = &cobra.Command{
	Use:   "set-price [product-id] [amount]",
	Short: "Modifie le prix d'un produit (ex. 59.00)",
	Args:  cobra.ExactArgs(2),
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

		products := app.Services(nil).Products
		current, err := products.Product(context.Background(), id)
		if err != nil {
			return err
		}
		price, err := parsePrice(args[1], current.Currency)
		if err != nil {
			return err
		}
		p, err := products.UpdatePrice(context.Background(), id, price)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.OutOrStdout(), "Prix mis à jour:")
		printProduct(c.OutOrStdout(), p)
		return nil
	},
}

func init() {
	f := productCreateCmd.Flags()
	f.StringVar(&productTitle, "title", "", "Product title")
	f.StringVar(&productDescription, "description", "", "Product description")
	f.StringVar(&productPrice, "price", "0", "Price in major units, e.g. 49.00")
	f.StringVar(&productCurrency, "currency", "", "ISO 4217 currency code (default payments.currency)")
	f.StringVar(&productAffiliateURL, "affiliate-url", "", "External vendor URL for affiliate products")
	f.StringVar(&productDownloadURL, "download-url", "", "Download URL for free products")
	_ = productCreateCmd.MarkFlagRequired("title")

	ProductCmd.AddCommand(productCreateCmd, productSetPriceCmd)
	cmd.RootCmd.AddCommand(ProductCmd)
}

func parsePrice(raw, currency string) (int64, error) {
	price, err := payments.ParseMajorUnits(raw, currency)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", raw, err)
	}
	return price, nil
}

func printProduct(w io.Writer, p *models.Product) {
	fmt.Fprintf(w, "ID: %d\n", p.ID)
	fmt.Fprintf(w, "Slug: %s\n", p.Slug)
	fmt.Fprintf(w, "Prix: %s %s\n", payments.FormatMinorUnits(p.PriceMinorUnits, p.Currency), p.Currency)
	if p.StripePriceID != nil {
		fmt.Fprintf(w, "Prix Stripe: %s\n", *p.StripePriceID)
	}
	if p.HasAffiliateURL() {
		fmt.Fprintf(w, "URL d'affiliation: %s\n", *p.AffiliateURL)
	}
}
