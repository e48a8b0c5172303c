package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/metrics"
	"ferrybook/internal/models"

	"github.com/rs/zerolog"
)

const (
	SweepExpireTickets     = "expire-tickets"
	SweepSyncBookingStatus = "sync-booking-status"

	departedNote       = "departure date passed"
	ticketsExpiredNote = "all tickets expired"
)

// SweepResult is reported by the maintenance endpoints.
type SweepResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Counts  map[string]int `json:"counts"`
}

// SweepService runs the periodic booking maintenance. Each booking is handled
// in its own transaction, so one failure never undoes earlier progress.
type SweepService struct {
	repo     domain.Repository
	locker   domain.Locker
	eventBus domain.EventPublisher
	lockTTL  time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
	lc       *lifecycle
}

func NewSweepService(repo domain.Repository, locker domain.Locker, eventBus domain.EventPublisher, lockTTL time.Duration, logger *zerolog.Logger) *SweepService {
	if lockTTL <= 0 {
		lockTTL = models.DefaultSweepLockTTL
	}
	s := &SweepService{
		repo:     repo,
		locker:   locker,
		eventBus: eventBus,
		lockTTL:  lockTTL,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.lc = &lifecycle{logger: logger, now: func() time.Time { return s.now() }}
	return s
}

// run executes fn while holding the sweep lock. A held lock is reported as ErrLockHeld.
func (s *SweepService) run(ctx context.Context, name string, fn func(ctx context.Context) (SweepResult, error)) (SweepResult, error) {
	start := time.Now()
	key := "sweep:" + name

	token, ok, err := s.locker.Acquire(ctx, key, s.lockTTL)
	if err != nil {
		metrics.ObserveSweep(name, "error", time.Since(start))
		return SweepResult{}, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		metrics.ObserveSweep(name, "skipped", time.Since(start))
		return SweepResult{}, domain.ErrLockHeld
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx, key, token); err != nil {
			s.logger.Warn().Err(err).Str("sweep", name).Msg("failed to release sweep lock")
		}
	}()

	result, err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	} else if result.Counts["failed"] > 0 {
		outcome = "partial"
	}
	metrics.ObserveSweep(name, outcome, time.Since(start))

	s.logger.Info().
		Str("sweep", name).
		Str("outcome", outcome).
		Interface("counts", result.Counts).
		Dur("took", time.Since(start)).
		Msg("sweep finished")
	return result, err
}

// ExpireTickets expires the remaining tickets of CONFIRMED bookings whose
// departure date lies before today.
func (s *SweepService) ExpireTickets(ctx context.Context) (SweepResult, error) {
	return s.run(ctx, SweepExpireTickets, func(ctx context.Context) (SweepResult, error) {
		today := models.DateOnly(s.now())
		bookings, err := s.repo.ListDepartedBookings(ctx, models.BookingConfirmed, today)
		if err != nil {
			return SweepResult{}, err
		}

		counts := map[string]int{"bookings": 0, "tickets_expired": 0, "failed": 0}
		for _, b := range bookings {
			if err := ctx.Err(); err != nil {
				return s.result(counts, "tickets expired"), err
			}
			var n int64
			err := s.repo.WithTx(ctx, func(tx domain.Store) error {
				var err error
				n, err = tx.SetTicketsStatus(ctx, b.ID, models.TicketExpired)
				return err
			})
			if err != nil {
				counts["failed"]++
				s.logger.Error().Err(err).Int64("booking_id", b.ID).Msg("failed to expire tickets")
				continue
			}
			counts["bookings"]++
			counts["tickets_expired"] += int(n)
		}
		return s.result(counts, "tickets expired"), nil
	})
}

// SyncBookingStatus forces stale CONFIRMED bookings to EXPIRED.
func (s *SweepService) SyncBookingStatus(ctx context.Context) (SweepResult, error) {
	return s.run(ctx, SweepSyncBookingStatus, func(ctx context.Context) (SweepResult, error) {
		today := models.DateOnly(s.now())
		bookings, err := s.repo.ListStaleConfirmedBookings(ctx, today)
		if err != nil {
			return SweepResult{}, err
		}

		counts := map[string]int{"checked": len(bookings), "expired": 0, "skipped": 0, "failed": 0}
		var changes []statusChange
		for _, candidate := range bookings {
			if err := ctx.Err(); err != nil {
				announce(s.eventBus, s.logger, changes...)
				return s.result(counts, "booking statuses synchronized"), err
			}

			notes := ticketsExpiredNote
			if candidate.HasDeparted(today) {
				notes = departedNote
			}

			var change *statusChange
			err := s.repo.WithTx(ctx, func(tx domain.Store) error {
				b, err := tx.GetBooking(ctx, candidate.ID)
				if err != nil {
					return err
				}
				if b.Status != models.BookingConfirmed {
					return nil
				}
				c, err := s.lc.apply(ctx, tx, b, models.BookingExpired, models.SystemActor(), notes, "")
				if err != nil {
					return err
				}
				change = &c
				return nil
			})
			switch {
			case err != nil:
				counts["failed"]++
				s.logger.Error().Err(err).Int64("booking_id", candidate.ID).Msg("failed to expire booking")
			case change == nil:
				counts["skipped"]++
			default:
				counts["expired"]++
				changes = append(changes, *change)
			}
		}

		announce(s.eventBus, s.logger, changes...)
		return s.result(counts, "booking statuses synchronized"), nil
	})
}

func (s *SweepService) result(counts map[string]int, done string) SweepResult {
	res := SweepResult{Success: counts["failed"] == 0, Counts: counts}
	if res.Success {
		res.Message = done
	} else {
		res.Message = fmt.Sprintf("%s with %d failures", done, counts["failed"])
	}
	return res
}

// IsSkipped reports whether a sweep did not run because another runner holds its lock.
func IsSkipped(err error) bool {
	return errors.Is(err, domain.ErrLockHeld)
}
