package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/models"
	"github.com/axellelanca/portfolio-payments/internal/services"
)

// maxWebhookBody borne la taille des notifications lues en mémoire.
const maxWebhookBody = 1 << 20

// Services regroupe les dépendances injectées dans les handlers.
type Services struct {
	Donations *services.DonationService
	Clicks    *services.ClickService
	Reports   *services.ReportService
	Products  *services.ProductService
}

// SetupRoutes configure toutes les routes Gin de l'application.
// Les exports, statistiques et la gestion des produits passent par AdminAuth.
func SetupRoutes(router *gin.Engine, svc Services, adminToken string, logger *slog.Logger) {
	router.GET("/health", HealthCheckHandler)

	donate := router.Group("/donate")
	{
		donate.POST("/create-session/", CreateStripeSessionHandler(svc.Donations, logger))
		donate.POST("/webhook/", StripeWebhookHandler(svc.Donations, logger))
		donate.POST("/paypal-create/", CreatePayPalOrderHandler(svc.Donations, logger))
		donate.POST("/paypal-webhook/", PayPalWebhookHandler(svc.Donations, logger))
		donate.GET("/report/csv/", AdminAuth(adminToken), DonationsCSVHandler(svc.Reports, logger))
	}

	products := router.Group("/products")
	{
		products.GET("/:id/go/", AffiliateRedirectHandler(svc.Clicks, logger))
		products.POST("/:id/purchase/", PurchaseHandler(svc.Products, logger))
		products.POST("/", AdminAuth(adminToken), CreateProductHandler(svc.Products, logger))
		products.PATCH("/:id/price/", AdminAuth(adminToken), UpdatePriceHandler(svc.Products, logger))
	}

	affiliate := router.Group("/affiliate", AdminAuth(adminToken))
	{
		affiliate.GET("/:id/stats/", AffiliateStatsHandler(svc.Clicks, logger))
		affiliate.GET("/:id/csv/", AffiliateCSVHandler(svc.Reports, logger))
	}
}

func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError traduit une erreur du service en {"detail": ...}.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := customerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "path", c.Request.URL.Path, "request_id", c.GetString(requestIDKey), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"detail": customerrors.Detail(err)})
}

// DonationRequestBody accepte amount_minor_units, ou l'ancienne clé amount_cents.
// Le montant reste brut pour accepter nombres et chaînes numériques.
type DonationRequestBody struct {
	AmountMinorUnits json.RawMessage `json:"amount_minor_units"`
	AmountCents      json.RawMessage `json:"amount_cents"`
	Metadata         map[string]any  `json:"metadata"`
}

func (b DonationRequestBody) toRequest() services.DonationRequest {
	amount := b.AmountMinorUnits
	if len(amount) == 0 {
		amount = b.AmountCents
	}
	return services.DonationRequest{Amount: amount, Metadata: b.Metadata}
}

// bindDonation lit le corps JSON. Un corps vide équivaut à un montant absent.
func bindDonation(c *gin.Context) (services.DonationRequest, error) {
	var body DonationRequestBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		return services.DonationRequest{}, customerrors.WithDetail(customerrors.ErrInvalidPayload, "Invalid request body")
	}
	return body.toRequest(), nil
}

func CreateStripeSessionHandler(donations *services.DonationService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindDonation(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		res, err := donations.CreateStripeSession(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func CreatePayPalOrderHandler(donations *services.DonationService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := bindDonation(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		res, err := donations.CreatePayPalOrder(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func readWebhookBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		return nil, customerrors.WithDetail(customerrors.ErrInvalidPayload, "Could not read request body")
	}
	return body, nil
}

// StripeWebhookHandler répond {"ok": true} à toute notification authentifiée,
// y compris celles ignorées ou dont le traitement a échoué.
func StripeWebhookHandler(donations *services.DonationService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readWebhookBody(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if err := donations.HandleStripeWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature")); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func PayPalWebhookHandler(donations *services.DonationService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := readWebhookBody(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if err := donations.HandlePayPalWebhook(c.Request.Context(), c.Request.Header, body); err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func productID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		return 0, customerrors.ErrNotFound
	}
	return uint(id), nil
}

// AffiliateRedirectHandler redirige vers l'URL d'affiliation. L'enregistrement
// du clic ne bloque jamais la redirection.
func AffiliateRedirectHandler(clicks *services.ClickService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := productID(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		event := models.ClickEvent{
			Timestamp: time.Now(),
			UserAgent: c.GetHeader("User-Agent"),
			IPAddress: c.ClientIP(),
			Referer:   c.Request.Referer(),
		}
		target, _, err := clicks.ResolveRedirect(c.Request.Context(), id, event)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.Redirect(http.StatusFound, target)
	}
}

func AffiliateStatsHandler(clicks *services.ClickService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := productID(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		days, err := services.ParseDays(c.Query("days"), services.DefaultReportDays)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		series, err := clicks.DailyStats(c.Request.Context(), id, days)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, series)
	}
}

func DonationsCSVHandler(reports *services.ReportService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, err := services.ParseDays(c.Query("days"), services.DefaultReportDays)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		export, err := reports.DonationsCSV(c.Request.Context(), days)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		writeCSV(c, logger, export)
	}
}

// AffiliateCSVHandler exporte tout l'historique quand days est absent.
func AffiliateCSVHandler(reports *services.ReportService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := productID(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		var days *int
		if raw := c.Query("days"); raw != "" {
			d, err := services.ParseDays(raw, services.DefaultReportDays)
			if err != nil {
				respondError(c, logger, err)
				return
			}
			days = &d
		}
		export, err := reports.AffiliateClicksCSV(c.Request.Context(), id, days)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		writeCSV(c, logger, export)
	}
}

func writeCSV(c *gin.Context, logger *slog.Logger, export *services.CSVExport) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Status(http.StatusOK)
	if err := export.Write(c.Writer); err != nil {
		logger.Error("failed to stream csv", "filename", export.Filename, "error", err)
	}
}

func CreateProductHandler(products *services.ProductService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.ProductInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondError(c, logger, customerrors.WithDetail(customerrors.ErrInvalidPayload, "Invalid request body"))
			return
		}
		p, err := products.CreateProduct(c.Request.Context(), in)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// UpdatePriceRequest est le corps de PATCH /products/:id/price/.
type UpdatePriceRequest struct {
	PriceMinorUnits *int64 `json:"price_minor_units"`
}

func UpdatePriceHandler(products *services.ProductService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := productID(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		var req UpdatePriceRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.PriceMinorUnits == nil {
			respondError(c, logger, customerrors.WithDetail(customerrors.ErrInvalidAmount, "price_minor_units is required"))
			return
		}
		p, err := products.UpdatePrice(c.Request.Context(), id, *req.PriceMinorUnits)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func PurchaseHandler(products *services.ProductService, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := productID(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		res, err := products.Purchase(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
