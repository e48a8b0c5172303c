package worker

import (
	"context"
	"time"

	"ferrybook/internal/service"

	"github.com/rs/zerolog"
)

// Sweeper is the part of the sweep service the runner drives.
type Sweeper interface {
	ExpireTickets(ctx context.Context) (service.SweepResult, error)
	SyncBookingStatus(ctx context.Context) (service.SweepResult, error)
}

// SweepRunner runs the expiry and status sweeps on a fixed interval.
type SweepRunner struct {
	sweeps   Sweeper
	interval time.Duration
	logger   *zerolog.Logger
}

func NewSweepRunner(sweeps Sweeper, interval time.Duration, logger *zerolog.Logger) *SweepRunner {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &SweepRunner{sweeps: sweeps, interval: interval, logger: logger}
}

// Start runs both sweeps immediately and then on every tick until ctx is cancelled.
func (r *SweepRunner) Start(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("Sweep runner started")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce expires tickets first so the status sync sees the fresh ticket state.
func (r *SweepRunner) RunOnce(ctx context.Context) {
	r.report(ctx, service.SweepExpireTickets, r.sweeps.ExpireTickets)
	if ctx.Err() != nil {
		return
	}
	r.report(ctx, service.SweepSyncBookingStatus, r.sweeps.SyncBookingStatus)
}

func (r *SweepRunner) report(ctx context.Context, name string, fn func(context.Context) (service.SweepResult, error)) {
	res, err := fn(ctx)
	switch {
	case service.IsSkipped(err):
		r.logger.Debug().Str("sweep", name).Msg("sweep skipped, another instance holds the lock")
	case err != nil:
		r.logger.Error().Err(err).Str("sweep", name).Msg("sweep failed")
	case !res.Success:
		r.logger.Warn().Str("sweep", name).Interface("counts", res.Counts).Msg(res.Message)
	default:
		r.logger.Info().Str("sweep", name).Interface("counts", res.Counts).Msg(res.Message)
	}
}
