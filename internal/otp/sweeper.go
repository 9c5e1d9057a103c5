package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/account-service/internal/metrics"
	"github.com/robfig/cron/v3"
)

// Purger is implemented by ledgers that need expired entries removed explicitly.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Sweeper purges expired challenges on a cron schedule, so staged
// registration data does not outlive its challenge.
type Sweeper struct {
	purger Purger
	logger *slog.Logger
	cron   *cron.Cron
}

// NewSweeper validates spec (standard cron syntax or "@every 1m") and
// returns a sweeper that has not been started.
func NewSweeper(purger Purger, spec string, logger *slog.Logger) (*Sweeper, error) {
	s := &Sweeper{
		purger: purger,
		logger: logger.With("component", "otp_sweeper"),
		cron:   cron.New(cron.WithLocation(time.UTC)),
	}
	if _, err := s.cron.AddFunc(spec, func() { s.Sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid sweep spec %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info("otp sweeper started")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("otp sweeper shut down")
}

// Sweep runs one purge.
func (s *Sweeper) Sweep(ctx context.Context) {
	purged, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error("purge expired otps", "error", err)
		return
	}
	metrics.OTPPurgedTotal.Add(float64(purged))
	if purged > 0 {
		s.logger.Info("purged expired otps", "count", purged)
	}
}
