package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/authsvc/internal/auth/metrics"
	"github.com/aussiebroadwan/authsvc/internal/auth/store"
)

// DefaultRefreshRetention is how long expired refresh tokens are kept for
// reuse auditing before housekeeping prunes them.
const DefaultRefreshRetention = 30 * 24 * time.Hour

// HousekeepingService periodically prunes refresh tokens that expired longer
// ago than the retention window. Rows inside the window stay so a replayed
// token is still recognised as reuse.
type HousekeepingService struct {
	Store     store.Store
	Logger    *slog.Logger
	Interval  time.Duration
	Retention time.Duration
	Metrics   *metrics.Metrics

	// Now overrides the clock in tests.
	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service. A zero interval
// defaults to 1 hour and a zero retention to DefaultRefreshRetention.
func NewHousekeepingService(st store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = DefaultRefreshRetention
	}

	return &HousekeepingService{
		Store:     st,
		Logger:    logger,
		Interval:  interval,
		Retention: retention,
		Now:       time.Now,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval, "retention", s.Retention)
}

// Stop blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes refresh tokens whose expiry is before now minus the
// retention window and returns how many went.
func (s *HousekeepingService) Cleanup(ctx context.Context) int64 {
	cutoff := s.Now().UTC().Add(-s.Retention)

	n, err := s.Store.RefreshTokens().DeleteExpiredBefore(ctx, cutoff)
	if err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
		return 0
	}

	s.Metrics.RefreshTokensPruned(n)
	s.Logger.Info("housekeeping cleanup completed", "refresh_tokens_deleted", n, "cutoff", cutoff)
	return n
}
