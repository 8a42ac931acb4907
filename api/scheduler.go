/*
scheduler.go - Background maintenance scheduler

PURPOSE:
  Periodically removes data that is no longer useful:
  - push subscriptions not used for PushRetention (devices that went away
    without the push service ever answering 404/410)
  - sessions past their expiry

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Each pass is independent; a failed step is logged and retried next tick

CONFIGURATION:
  - CheckInterval: How often to run (ARTSIA_MAINTENANCE_INTERVAL, default 1h)
  - PushRetention: Idle age after which a subscription is pruned
  - Enabled:       Whether scheduler is active (default: true)

USAGE:
  scheduler := NewMaintenanceScheduler(store)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - store/sqlite/sqlite.go: DeleteStaleSubscriptions, DeleteExpiredSessions
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaintenanceStore is the persistence the scheduler prunes.
type MaintenanceStore interface {
	DeleteStaleSubscriptions(ctx context.Context, before time.Time) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// MaintenanceResult summarizes one pass.
type MaintenanceResult struct {
	SubscriptionsPruned int64
	SessionsPruned      int64
}

// MaintenanceScheduler handles periodic cleanup.
type MaintenanceScheduler struct {
	Store         MaintenanceStore
	CheckInterval time.Duration
	PushRetention time.Duration
	Enabled       bool
	Logger        zerolog.Logger
	Now           func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewMaintenanceScheduler creates a new scheduler with default settings.
func NewMaintenanceScheduler(store MaintenanceStore) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		Store:         store,
		CheckInterval: time.Hour,
		PushRetention: 60 * 24 * time.Hour,
		Enabled:       true,
		Logger:        log.With().Str("component", "scheduler").Logger(),
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the scheduler.
func (ms *MaintenanceScheduler) Start() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.Enabled {
		ms.Logger.Info().Msg("scheduler disabled, not starting")
		return
	}
	if ms.ticker != nil {
		return
	}
	if ms.CheckInterval <= 0 {
		ms.Logger.Warn().Dur("interval", ms.CheckInterval).Msg("non-positive interval, using 1h")
		ms.CheckInterval = time.Hour
	}

	ms.ticker = time.NewTicker(ms.CheckInterval)
	ms.stop = make(chan struct{})
	ms.wg.Add(1)

	go ms.run()

	ms.Logger.Info().Dur("interval", ms.CheckInterval).Msg("scheduler started")
}

// Stop stops the scheduler and waits for a running pass to finish.
func (ms *MaintenanceScheduler) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.ticker == nil {
		return
	}
	ms.ticker.Stop()
	close(ms.stop)
	ms.wg.Wait()
	ms.ticker = nil
	ms.Logger.Info().Msg("scheduler stopped")
}

func (ms *MaintenanceScheduler) run() {
	defer ms.wg.Done()

	// Run immediately on start
	ms.RunOnce(context.Background())

	for {
		select {
		case <-ms.ticker.C:
			ms.RunOnce(context.Background())
		case <-ms.stop:
			return
		}
	}
}

// RunOnce performs one maintenance pass.
func (ms *MaintenanceScheduler) RunOnce(ctx context.Context) MaintenanceResult {
	now := ms.Now()
	var res MaintenanceResult

	n, err := ms.Store.DeleteStaleSubscriptions(ctx, now.Add(-ms.PushRetention))
	if err != nil {
		ms.Logger.Error().Err(err).Msg("failed to prune push subscriptions")
	}
	res.SubscriptionsPruned = n

	n, err = ms.Store.DeleteExpiredSessions(ctx, now)
	if err != nil {
		ms.Logger.Error().Err(err).Msg("failed to prune sessions")
	}
	res.SessionsPruned = n

	if res.SubscriptionsPruned > 0 || res.SessionsPruned > 0 {
		ms.Logger.Info().
			Int64("subscriptions", res.SubscriptionsPruned).
			Int64("sessions", res.SessionsPruned).
			Msg("maintenance completed")
	}
	return res
}
