package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/axellelanca/portfolio-payments/internal/repository"
)

// AffiliateLinkMonitor vérifie périodiquement que les URLs d'affiliation des
// produits répondent, et journalise chaque changement d'état.
type AffiliateLinkMonitor struct {
	products    repository.ProductRepository
	interval    time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
	knownStates map[uint]bool // product ID -> accessible
	mu          sync.Mutex
	scheduler   gocron.Scheduler
}

// NewAffiliateLinkMonitor crée un moniteur qui vérifie les liens toutes les interval.
func NewAffiliateLinkMonitor(products repository.ProductRepository, interval time.Duration, logger *slog.Logger) *AffiliateLinkMonitor {
	return &AffiliateLinkMonitor{
		products:    products,
		interval:    interval,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger.With("component", "monitor"),
		knownStates: make(map[uint]bool),
	}
}

// Start planifie la vérification avec gocron. Une première vérification est
// lancée immédiatement.
func (m *AffiliateLinkMonitor) Start() error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(m.interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), m.interval)
			defer cancel()
			m.Check(ctx)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule affiliate link check: %w", err)
	}

	m.logger.Info("starting affiliate link monitor", "interval", m.interval)
	sched.Start()
	m.scheduler = sched
	return nil
}

// Stop arrête le planificateur et attend la fin d'une vérification en cours.
func (m *AffiliateLinkMonitor) Stop() error {
	if m.scheduler == nil {
		return nil
	}
	return m.scheduler.Shutdown()
}

// Check teste chaque URL d'affiliation une fois.
func (m *AffiliateLinkMonitor) Check(ctx context.Context) {
	products, err := m.products.ListWithAffiliateURL(ctx)
	if err != nil {
		m.logger.Error("failed to list affiliate products", "error", err)
		return
	}

	for _, p := range products {
		url := *p.AffiliateURL
		current := m.isAccessible(ctx, url)

		m.mu.Lock()
		previous, seen := m.knownStates[p.ID]
		m.knownStates[p.ID] = current
		m.mu.Unlock()

		if !seen {
			m.logger.Debug("initial affiliate link state", "product_id", p.ID, "url", url, "state", formatState(current))
			continue
		}
		if current != previous {
			m.logger.Warn("affiliate link state changed",
				"product_id", p.ID, "url", url, "from", formatState(previous), "to", formatState(current))
		}
	}
}

// State retourne le dernier état connu d'un produit.
func (m *AffiliateLinkMonitor) State(productID uint) (accessible, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	accessible, known = m.knownStates[productID]
	return accessible, known
}

// 2xx et 3xx sont considérés accessibles.
func (m *AffiliateLinkMonitor) isAccessible(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		m.logger.Debug("invalid affiliate url", "url", url, "error", err)
		return false
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		m.logger.Debug("affiliate url unreachable", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

func formatState(accessible bool) string {
	if accessible {
		return "ACCESSIBLE"
	}
	return "INACCESSIBLE"
}
