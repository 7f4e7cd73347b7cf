package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/qnachat/authcore/internal/services"
)

// Sweeper periodically evicts expired sessions and stale attempt counters,
// and retries parked activity records. Correctness never depends on a sweep
// running; the registries expire entries lazily on access. The sweeps exist
// to bound memory and to drain the activity fallback buffer.
type Sweeper struct {
	sessions       *services.SessionRegistry
	accountTracker *services.AttemptTracker
	addressTracker *services.AttemptTracker
	activity       *services.ActivityLog
	logger         *slog.Logger
	interval       time.Duration
	stopCh         chan struct{}
}

func NewSweeper(
	sessions *services.SessionRegistry,
	accountTracker *services.AttemptTracker,
	addressTracker *services.AttemptTracker,
	activity *services.ActivityLog,
	logger *slog.Logger,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		sessions:       sessions,
		accountTracker: accountTracker,
		addressTracker: addressTracker,
		activity:       activity,
		logger:         logger,
		interval:       interval,
		stopCh:         make(chan struct{}),
	}
}

// Start begins the periodic sweep loop and blocks until Stop is called or
// the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopCh:
			s.logger.Info("sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("sweeper context cancelled")
			return
		}
	}
}

func (s *Sweeper) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sessions := s.sessions.SweepExpired()
	accounts := s.accountTracker.SweepStale()
	addresses := s.addressTracker.SweepStale()
	flushed := s.activity.Flush(sweepCtx)

	if sessions > 0 || accounts > 0 || addresses > 0 || flushed > 0 {
		s.logger.Info("sweep completed",
			slog.Int("sessions_evicted", sessions),
			slog.Int("account_counters_dropped", accounts),
			slog.Int("address_counters_dropped", addresses),
			slog.Int("activity_records_flushed", flushed),
		)
	}
}

// Stop signals the sweeper to stop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
