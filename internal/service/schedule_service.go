package service

import (
	"context"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/events"
	"ferrybook/internal/models"

	"github.com/rs/zerolog"
)

type ScheduleService struct {
	repo     domain.Repository
	access   domain.RouteAccessPolicy
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewScheduleService(repo domain.Repository, access domain.RouteAccessPolicy, eventBus domain.EventPublisher, logger *zerolog.Logger) *ScheduleService {
	return &ScheduleService{
		repo:     repo,
		access:   access,
		eventBus: eventBus,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Availability reports reserved and remaining capacity of a schedule on date.
// Dates nobody booked yet report empty counters.
func (s *ScheduleService) Availability(ctx context.Context, scheduleID int64, date time.Time) (*models.Availability, error) {
	schedule, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	ferry, err := s.repo.GetFerry(ctx, schedule.FerryID)
	if err != nil {
		return nil, err
	}

	sd, err := s.repo.GetScheduleDate(ctx, scheduleID, date)
	switch {
	case domain.IsNotFound(err):
		sd = &models.ScheduleDate{ScheduleID: scheduleID, Date: date, Status: models.DateAvailable}
	case err != nil:
		return nil, err
	}

	status := sd.Status
	if status == models.DateAvailable && !schedule.OperatesOn(date) {
		status = models.DateUnavailable
	}

	capacity := ferry.Capacity()
	return &models.Availability{
		ScheduleID: scheduleID,
		Date:       date.Format(models.DateLayout),
		Status:     status,
		Reserved:   sd.Load(),
		Capacity:   capacity,
		Remaining:  capacity.Sub(sd.Load()),
	}, nil
}

// Upcoming lists the next n departure dates from the given day.
func (s *ScheduleService) Upcoming(ctx context.Context, scheduleID int64, from time.Time, n int) ([]string, error) {
	schedule, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	dates := schedule.UpcomingDates(from, n)
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.Format(models.DateLayout))
	}
	return out, nil
}

// SetDateStatus marks a schedule date, optionally until expiresAt. Operators
// may only change dates of their own routes.
func (s *ScheduleService) SetDateStatus(ctx context.Context, scheduleID int64, date time.Time, status models.ScheduleDateStatus, reason string, expiresAt *time.Time, actor models.Actor) (*models.ScheduleDate, error) {
	if actor.IsUser() {
		return nil, domain.ErrForbidden
	}
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return nil, domain.ValidationError{Field: "expires_at", Msg: "must be in the future"}
	}

	schedule, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if actor.IsOperator() {
		ok, err := s.access.CanAccess(ctx, actor, schedule.RouteID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.NotFoundError{Resource: "schedule", ID: scheduleID}
		}
	}

	var sd *models.ScheduleDate
	err = s.repo.WithTx(ctx, func(tx domain.Store) error {
		row, err := tx.EnsureScheduleDate(ctx, scheduleID, date)
		if err != nil {
			return err
		}
		if err := tx.SetScheduleDateStatus(ctx, row.ID, status, reason, expiresAt); err != nil {
			return err
		}
		sd, err = tx.GetScheduleDate(ctx, scheduleID, date)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("schedule_id", scheduleID).
		Str("date", date.Format(models.DateLayout)).
		Str("status", string(sd.Status)).
		Str("actor", actor.String()).
		Msg("schedule date status changed")

	if s.eventBus != nil {
		payload := events.ScheduleDatePayload{
			ScheduleID: scheduleID,
			Date:       date.Format(models.DateLayout),
			Status:     string(sd.Status),
			Reason:     sd.StatusReason,
			ChangedBy:  actor.String(),
		}
		if sd.StatusExpiresAt != nil {
			payload.ExpiresAt = sd.StatusExpiresAt.Format(time.RFC3339)
		}
		if err := s.eventBus.PublishJSON(events.EventScheduleDateState, payload); err != nil {
			s.logger.Error().Err(err).Msg("publish event error")
		}
	}
	return sd, nil
}
