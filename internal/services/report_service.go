package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/models"
	"github.com/axellelanca/portfolio-payments/internal/repository"
)

const (
	DefaultReportDays = 30
	MaxReportDays     = 3650
)

var (
	donationsCSVHeader = []string{"created_at", "amount_minor_units", "currency", "status", "provider_session_id", "provider_order_id", "email"}
	clicksCSVHeader    = []string{"created_at", "ip", "user_agent", "referer"}
)

// ParseDays reads a days query parameter. An empty value yields def.
func ParseDays(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return 0, customerrors.WithDetail(customerrors.ErrInvalidParameter, "days must be an integer")
	}
	if days < 1 || days > MaxReportDays {
		return 0, customerrors.WithDetail(customerrors.ErrInvalidParameter, fmt.Sprintf("days must be between 1 and %d", MaxReportDays))
	}
	return days, nil
}

// CSVExport is a fully loaded export, so that query errors surface before
// any response header is written.
type CSVExport struct {
	Filename string
	Header   []string
	Rows     [][]string
}

// Write emits the header row followed by every data row.
func (e *CSVExport) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(e.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(e.Rows); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// ReportService builds the donation and affiliate click exports.
type ReportService struct {
	donations repository.DonationRepository
	clicks    repository.ClickRepository
	loc       *time.Location
	now       func() time.Time
}

func NewReportService(donations repository.DonationRepository, clicks repository.ClickRepository, loc *time.Location) *ReportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportService{donations: donations, clicks: clicks, loc: loc, now: time.Now}
}

// DonationsCSV exports donations created from the start of the day days-1
// days ago until now, newest first.
func (s *ReportService) DonationsCSV(ctx context.Context, days int) (*CSVExport, error) {
	if days < 1 || days > MaxReportDays {
		return nil, fmt.Errorf("days=%d: %w", days, customerrors.ErrInvalidParameter)
	}
	end := s.now().In(s.loc)
	start := startOfDay(end).AddDate(0, 0, -(days - 1))

	donations, err := s.donations.ListCreatedSince(ctx, start)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(donations))
	for _, d := range donations {
		rows = append(rows, []string{
			formatTimestamp(d.CreatedAt),
			strconv.FormatInt(d.AmountMinorUnits, 10),
			d.Currency,
			d.Status,
			deref(d.ProviderSessionID),
			deref(d.ProviderOrderID),
			deref(d.Email),
		})
	}
	return &CSVExport{
		Filename: fmt.Sprintf("donations_%s_to_%s.csv", start.Format(dateLayout), end.Format(dateLayout)),
		Header:   donationsCSVHeader,
		Rows:     rows,
	}, nil
}

// AffiliateClicksCSV exports a product's clicks, newest first. A nil days
// exports the whole history.
func (s *ReportService) AffiliateClicksCSV(ctx context.Context, productID uint, days *int) (*CSVExport, error) {
	var since *time.Time
	if days != nil {
		if *days < 1 || *days > MaxReportDays {
			return nil, fmt.Errorf("days=%d: %w", *days, customerrors.ErrInvalidParameter)
		}
		start := startOfDay(s.now().In(s.loc)).AddDate(0, 0, -(*days - 1))
		since = &start
	}

	clicks, err := s.clicks.ListForProduct(ctx, productID, since)
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(clicks))
	for _, c := range clicks {
		rows = append(rows, []string{
			formatTimestamp(c.CreatedAt),
			deref(c.ClientIP),
			deref(c.UserAgent),
			deref(c.Referer),
		})
	}
	return &CSVExport{
		Filename: fmt.Sprintf("affiliate_clicks_product_%d.csv", productID),
		Header:   clicksCSVHeader,
		Rows:     rows,
	}, nil
}

// PendingOlderThan lists donations that never received a webhook.
func (s *ReportService) PendingOlderThan(ctx context.Context, age time.Duration) ([]models.Donation, error) {
	return s.donations.ListPendingOlderThan(ctx, s.now().Add(-age))
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
