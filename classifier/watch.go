package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

// Watcher polls the service's camera on a fixed interval, the way a host
// would schedule classification calls.
type Watcher struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger

	scheduler *gocron.Scheduler

	mu      sync.Mutex
	running bool

	ticks   atomic.Int64
	changes atomic.Int64
}

func NewWatcher(service *Service, interval time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	scheduler := gocron.NewScheduler(time.UTC)
	scheduler.SingletonModeAll()
	return &Watcher{
		service:   service,
		interval:  interval,
		logger:    logger.With("component", "watcher", "service", service.Name()),
		scheduler: scheduler,
	}
}

// Tick captures and evaluates one frame from the configured camera.
func (w *Watcher) Tick(ctx context.Context) ([]Classification, error) {
	classifications, err := w.service.ClassificationsFromCamera(ctx, "", 0)
	w.ticks.Add(1)
	if err != nil {
		w.logger.Warn("tick failed", "error", err)
		return nil, err
	}
	if len(classifications) > 0 {
		w.changes.Add(1)
		w.logger.Info("frame changed", "camera", w.service.CameraName())
	}
	return classifications, nil
}

// Stats returns how many ticks ran and how many of them saw a change.
func (w *Watcher) Stats() (ticks, changes int64) {
	return w.ticks.Load(), w.changes.Load()
}

// Start schedules Tick every interval. Ticks never overlap.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	if w.interval <= 0 {
		return fmt.Errorf("%w: watch interval must be positive, got %s", ErrConfiguration, w.interval)
	}
	_, err := w.scheduler.Every(w.interval).Do(func() {
		w.Tick(context.Background())
	})
	if err != nil {
		return fmt.Errorf("while scheduling watcher: %w", err)
	}
	w.scheduler.StartAsync()
	w.running = true
	w.logger.Info("watcher started", "interval", w.interval.String())
	return nil
}

// Stop unschedules the watcher. It must not be called from a tick.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.running
	w.running = false
	w.mu.Unlock()
	if !running {
		return
	}
	w.scheduler.Stop()
	w.logger.Info("watcher stopped")
}
