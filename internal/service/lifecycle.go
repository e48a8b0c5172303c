package service

import (
	"context"
	"fmt"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/events"
	"ferrybook/internal/metrics"
	"ferrybook/internal/models"

	"github.com/rs/zerolog"
)

// statusChange is a committed booking transition waiting to be announced.
type statusChange struct {
	booking models.Booking
	from    models.BookingStatus
	actor   models.Actor
	notes   string
}

// lifecycle performs booking status changes inside a caller-owned transaction.
// It does not consult the manual transition table; callers that act on behalf
// of a user check CanTransitionTo first.
type lifecycle struct {
	logger *zerolog.Logger
	now    func() time.Time
}

func checkTransition(b *models.Booking, to models.BookingStatus) error {
	if !b.Status.CanTransitionTo(to) {
		return domain.IllegalTransitionError{From: string(b.Status), To: string(to)}
	}
	return nil
}

// holdsCapacity is true for statuses whose passengers and vehicles are counted
// on the schedule date.
func holdsCapacity(s models.BookingStatus) bool {
	return s == models.BookingPending || s == models.BookingConfirmed
}

// apply runs the side effects of entering to, bumps the booking version and
// appends the audit row. b is updated in place.
func (l *lifecycle) apply(ctx context.Context, tx domain.Store, b *models.Booking, to models.BookingStatus, actor models.Actor, notes, ip string) (statusChange, error) {
	from := b.Status
	now := l.now()

	var reason *string
	switch to {
	case models.BookingCancelled:
		if holdsCapacity(from) {
			if _, err := tx.SetTicketsStatus(ctx, b.ID, models.TicketCancelled); err != nil {
				return statusChange{}, err
			}
			vehicles, err := tx.ListVehicles(ctx, b.ID)
			if err != nil {
				return statusChange{}, err
			}
			if err := tx.ReleaseCapacity(ctx, b.ScheduleID, b.DepartureDate, models.LoadFor(b.PassengerCount, vehicles)); err != nil {
				return statusChange{}, fmt.Errorf("release capacity for booking %d: %w", b.ID, err)
			}
			if _, err := tx.SettlePendingPayments(ctx, b.ID, models.PaymentFailed, nil); err != nil {
				return statusChange{}, err
			}
		}
		reason = &notes
	case models.BookingConfirmed:
		if _, err := tx.SettlePendingPayments(ctx, b.ID, models.PaymentSuccess, &now); err != nil {
			return statusChange{}, err
		}
	case models.BookingCompleted:
		if _, err := tx.SetTicketsStatus(ctx, b.ID, models.TicketUsed); err != nil {
			return statusChange{}, err
		}
	}

	if err := tx.UpdateBookingStatus(ctx, b.ID, b.Version, to, reason); err != nil {
		return statusChange{}, err
	}
	if err := tx.InsertBookingLog(ctx, models.NewBookingLog(b.ID, from, to, actor, notes, ip)); err != nil {
		return statusChange{}, err
	}

	b.Status = to
	b.Version++
	b.UpdatedAt = now
	if reason != nil {
		b.CancellationReason = notes
	}

	return statusChange{booking: *b, from: from, actor: actor, notes: notes}, nil
}

// announce records metrics and publishes events for committed transitions.
func announce(bus domain.EventPublisher, logger *zerolog.Logger, changes ...statusChange) {
	for _, c := range changes {
		metrics.IncStatusTransition(string(c.from), string(c.booking.Status))
		logger.Info().
			Int64("booking_id", c.booking.ID).
			Str("booking_code", c.booking.BookingCode).
			Str("from", string(c.from)).
			Str("to", string(c.booking.Status)).
			Str("actor", c.actor.String()).
			Msg("booking status changed")

		publishBookingEvent(bus, logger, events.BookingEventType(string(c.booking.Status)), c.booking, c.from, c.actor, c.notes)
	}
}

func publishBookingEvent(bus domain.EventPublisher, logger *zerolog.Logger, eventType string, b models.Booking, from models.BookingStatus, actor models.Actor, notes string) {
	if bus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:      b.ID,
		BookingCode:    b.BookingCode,
		ScheduleID:     b.ScheduleID,
		DepartureDate:  b.DepartureDate.Format(models.DateLayout),
		PassengerCount: b.PassengerCount,
		Status:         string(b.Status),
		PreviousStatus: string(from),
		Notes:          notes,
		ChangedBy:      string(actor.Type),
		ChangedByID:    actor.ID,
	}

	if err := bus.PublishJSON(eventType, payload); err != nil {
		logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", b.ID).Msg("publish event error")
	}
}
