package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	customerrors "github.com/axellelanca/portfolio-payments/internal/errors"
	"github.com/axellelanca/portfolio-payments/internal/models"
	"github.com/axellelanca/portfolio-payments/internal/repository"
)

// ClickRecorder persists a non-bot click. Implementations may do it inline
// or hand the event to background workers.
type ClickRecorder interface {
	Record(ctx context.Context, event models.ClickEvent) error
}

// SyncRecorder records clicks within the redirect request.
type SyncRecorder struct {
	clicks repository.ClickRepository
}

func NewSyncRecorder(clicks repository.ClickRepository) *SyncRecorder {
	return &SyncRecorder{clicks: clicks}
}

func (r *SyncRecorder) Record(ctx context.Context, event models.ClickEvent) error {
	return r.clicks.RecordClick(ctx, event.ToAffiliateClick())
}

// DailyCount is one day of the affiliate stats series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// ClickService resolves affiliate redirects and reports click statistics.
type ClickService struct {
	products      repository.ProductRepository
	clicks        repository.ClickRepository
	recorder      ClickRecorder
	botSignatures []string
	loc           *time.Location
	now           func() time.Time
	logger        *slog.Logger
}

func NewClickService(
	products repository.ProductRepository,
	clicks repository.ClickRepository,
	recorder ClickRecorder,
	botSignatures []string,
	loc *time.Location,
	logger *slog.Logger,
) *ClickService {
	sigs := make([]string, 0, len(botSignatures))
	for _, s := range botSignatures {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			sigs = append(sigs, s)
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &ClickService{
		products:      products,
		clicks:        clicks,
		recorder:      recorder,
		botSignatures: sigs,
		loc:           loc,
		now:           time.Now,
		logger:        logger.With("component", "clicks"),
	}
}

// IsBot reports whether the user agent contains one of the bot signatures.
// An empty user agent is not treated as a bot.
func (s *ClickService) IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, sig := range s.botSignatures {
		if strings.Contains(ua, sig) {
			return true
		}
	}
	return false
}

// ResolveRedirect returns the affiliate URL of a product and records the
// click unless it comes from a bot. A recording failure never prevents the
// redirect: it is logged and reported as recorded=false.
func (s *ClickService) ResolveRedirect(ctx context.Context, productID uint, event models.ClickEvent) (string, bool, error) {
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return "", false, err
	}
	if !product.HasAffiliateURL() {
		return "", false, customerrors.ErrNoAffiliateTarget
	}
	target := *product.AffiliateURL

	if s.IsBot(event.UserAgent) {
		s.logger.Debug("bot click not recorded", "product_id", productID, "user_agent", event.UserAgent)
		return target, false, nil
	}

	event.ProductID = product.ID
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.recorder.Record(context.WithoutCancel(ctx), event); err != nil {
		s.logger.Warn("click not recorded", "product_id", productID, "error", err)
		return target, false, nil
	}
	return target, true, nil
}

// DailyStats returns exactly days entries, oldest first, ending today in the
// service's time zone. Days without clicks have a zero count.
func (s *ClickService) DailyStats(ctx context.Context, productID uint, days int) ([]DailyCount, error) {
	if days < 1 || days > MaxReportDays {
		return nil, fmt.Errorf("days=%d: %w", days, customerrors.ErrInvalidParameter)
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	start := startOfDay(s.now().In(s.loc)).AddDate(0, 0, -(days - 1))
	clicks, err := s.clicks.ListSince(ctx, productID, start)
	if err != nil {
		return nil, err
	}

	byDay := make(map[string]int64, days)
	for _, c := range clicks {
		byDay[c.CreatedAt.In(s.loc).Format(dateLayout)]++
	}

	series := make([]DailyCount, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format(dateLayout)
		series = append(series, DailyCount{Date: day, Count: byDay[day]})
	}
	return series, nil
}

const dateLayout = "2006-01-02"

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
