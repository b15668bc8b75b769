package workers

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/axellelanca/portfolio-payments/internal/models"
	"github.com/axellelanca/portfolio-payments/internal/repository"
)

// ErrQueueFull is returned by Record when the event buffer has no room left.
var ErrQueueFull = errors.New("click queue is full")

// ErrClosed is returned by Record after Close.
var ErrClosed = errors.New("click dispatcher is closed")

// Dispatcher queues click events for a pool of worker goroutines.
// It implements services.ClickRecorder.
type Dispatcher struct {
	events chan models.ClickEvent
	clicks repository.ClickRepository
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// StartClickWorkers launches workerCount goroutines reading from a channel of
// bufferSize events. Call Close to drain the queue and stop them.
func StartClickWorkers(workerCount, bufferSize int, clicks repository.ClickRepository, logger *slog.Logger) *Dispatcher {
	if workerCount < 1 {
		workerCount = 1
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	d := &Dispatcher{
		events: make(chan models.ClickEvent, bufferSize),
		clicks: clicks,
		logger: logger.With("component", "click-workers"),
	}

	d.logger.Info("starting click workers", "workers", workerCount, "buffer", bufferSize)
	d.wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go d.work()
	}
	return d
}

// Record queues the event without blocking. The redirect must never wait on
// analytics, so a full buffer drops the event and returns ErrQueueFull.
func (d *Dispatcher) Record(ctx context.Context, event models.ClickEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.events <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events, lets the workers finish the queued ones and
// waits for them to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("click workers stopped")
}

// work exits when the channel is closed.
func (d *Dispatcher) work() {
	defer d.wg.Done()
	for event := range d.events {
		if err := d.clicks.RecordClick(context.Background(), event.ToAffiliateClick()); err != nil {
			d.logger.Error("failed to save click",
				"product_id", event.ProductID, "user_agent", event.UserAgent, "ip", event.IPAddress, "error", err)
			continue
		}
		d.logger.Debug("click recorded", "product_id", event.ProductID)
	}
}
