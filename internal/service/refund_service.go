package service

import (
	"context"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/events"
	"ferrybook/internal/metrics"
	"ferrybook/internal/models"
	"ferrybook/internal/refund"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const policyCacheKey = "refund_policies"

// RefundService runs the refund workflow on top of the refund calculator.
type RefundService struct {
	repo     domain.Repository
	access   domain.RouteAccessPolicy
	eventBus domain.EventPublisher
	policies *cache.Cache
	logger   *zerolog.Logger
	now      func() time.Time
	lc       *lifecycle
}

func NewRefundService(repo domain.Repository, access domain.RouteAccessPolicy, eventBus domain.EventPublisher, logger *zerolog.Logger) *RefundService {
	s := &RefundService{
		repo:     repo,
		access:   access,
		eventBus: eventBus,
		policies: cache.New(models.RefundPolicyCacheTTL, 2*models.RefundPolicyCacheTTL),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.lc = &lifecycle{logger: logger, now: func() time.Time { return s.now() }}
	return s
}

func (s *RefundService) activePolicies(ctx context.Context) ([]models.RefundPolicy, error) {
	if cached, ok := s.policies.Get(policyCacheKey); ok {
		return cached.([]models.RefundPolicy), nil
	}
	policies, err := s.repo.ListRefundPolicies(ctx, true)
	if err != nil {
		return nil, err
	}
	s.policies.SetDefault(policyCacheKey, policies)
	return policies, nil
}

// SyncPolicies replaces the stored policy table.
func (s *RefundService) SyncPolicies(ctx context.Context, policies []models.RefundPolicy) error {
	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		return tx.ReplaceRefundPolicies(ctx, policies)
	})
	if err != nil {
		return err
	}
	s.policies.Flush()
	s.logger.Info().Int("policies", len(policies)).Msg("refund policies synchronized")
	return nil
}

func successfulPayment(payments []*models.Payment) *models.Payment {
	for _, p := range payments {
		if p.Status == models.PaymentSuccess {
			return p
		}
	}
	return nil
}

func (s *RefundService) loadBooking(ctx context.Context, bookingID int64, actor models.Actor) (*models.Booking, error) {
	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.access, b, actor); err != nil {
		return nil, err
	}
	return b, nil
}

// Quote previews the refund a booking would get now.
func (s *RefundService) Quote(ctx context.Context, bookingID int64, actor models.Actor, force bool) (refund.Breakdown, error) {
	if force && !actor.Privileged() {
		return refund.Breakdown{}, domain.ErrForbidden
	}
	b, err := s.loadBooking(ctx, bookingID, actor)
	if err != nil {
		return refund.Breakdown{}, err
	}
	payments, err := s.repo.ListPayments(ctx, b.ID)
	if err != nil {
		return refund.Breakdown{}, err
	}
	paid := successfulPayment(payments)
	if paid == nil {
		return refund.Breakdown{}, domain.ErrRefundNotAllowed
	}
	policies, err := s.activePolicies(ctx)
	if err != nil {
		return refund.Breakdown{}, err
	}
	return refund.Calculate(paid.Amount, b.DaysBeforeDeparture(s.now()), force, policies)
}

// Request opens a refund. A CONFIRMED booking is cancelled first, releasing
// its capacity, then moved to REFUND_PENDING.
func (s *RefundService) Request(ctx context.Context, bookingID int64, actor models.Actor, reason string, force bool, ip string) (*models.Refund, error) {
	if force && !actor.Privileged() {
		return nil, domain.ErrForbidden
	}
	if _, err := s.loadBooking(ctx, bookingID, actor); err != nil {
		return nil, err
	}
	policies, err := s.activePolicies(ctx)
	if err != nil {
		return nil, err
	}

	var (
		created *models.Refund
		booking *models.Booking
		changes []statusChange
	)
	err = s.repo.WithTx(ctx, func(tx domain.Store) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != models.BookingConfirmed && b.Status != models.BookingCancelled {
			return domain.ErrRefundNotAllowed
		}
		now := s.now()
		if !force && b.HasDeparted(now) {
			return domain.ErrRefundNotAllowed
		}

		refunds, err := tx.ListRefunds(ctx, b.ID)
		if err != nil {
			return err
		}
		for _, r := range refunds {
			if r.Status.IsOpen() {
				return domain.ErrRefundNotAllowed
			}
		}
		payments, err := tx.ListPayments(ctx, b.ID)
		if err != nil {
			return err
		}
		paid := successfulPayment(payments)
		if paid == nil {
			return domain.ErrRefundNotAllowed
		}

		breakdown, err := refund.Calculate(paid.Amount, b.DaysBeforeDeparture(now), force, policies)
		if err != nil {
			return err
		}

		if b.Status == models.BookingConfirmed {
			c, err := s.lc.apply(ctx, tx, b, models.BookingCancelled, actor, reason, ip)
			if err != nil {
				return err
			}
			changes = append(changes, c)
		}
		c, err := s.lc.apply(ctx, tx, b, models.BookingRefundPending, actor, reason, ip)
		if err != nil {
			return err
		}
		changes = append(changes, c)

		r := &models.Refund{
			BookingID:       b.ID,
			PaymentID:       paid.ID,
			OriginalAmount:  breakdown.OriginalAmount,
			Fee:             breakdown.Fee,
			Percentage:      breakdown.Percentage,
			RefundAmount:    breakdown.RefundAmount,
			Status:          models.RefundPending,
			Reason:          reason,
			Description:     breakdown.Description,
			RequestedByType: actor.Type,
			RequestedByID:   actor.NullableID(),
		}
		if err := tx.CreateRefund(ctx, r); err != nil {
			return err
		}
		created = r
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	announce(s.eventBus, s.logger, changes...)
	metrics.IncRefund(string(created.Status))
	s.publishRefund(events.EventRefundRequested, created, booking, actor)
	s.logger.Info().
		Int64("refund_id", created.ID).
		Int64("booking_id", booking.ID).
		Int64("refund_amount", created.RefundAmount).
		Float64("percentage", created.Percentage).
		Str("actor", actor.String()).
		Msg("refund requested")
	return created, nil
}

func (s *RefundService) Approve(ctx context.Context, refundID int64, actor models.Actor, notes, ip string) (*models.Refund, error) {
	return s.move(ctx, refundID, models.RefundApproved, actor, notes, ip)
}

func (s *RefundService) Reject(ctx context.Context, refundID int64, actor models.Actor, notes, ip string) (*models.Refund, error) {
	return s.move(ctx, refundID, models.RefundRejected, actor, notes, ip)
}

func (s *RefundService) Process(ctx context.Context, refundID int64, actor models.Actor, notes, ip string) (*models.Refund, error) {
	return s.move(ctx, refundID, models.RefundProcessing, actor, notes, ip)
}

func (s *RefundService) Complete(ctx context.Context, refundID int64, actor models.Actor, notes, ip string) (*models.Refund, error) {
	return s.move(ctx, refundID, models.RefundCompleted, actor, notes, ip)
}

// Cancel withdraws a refund. Passengers may cancel their own requests.
func (s *RefundService) Cancel(ctx context.Context, refundID int64, actor models.Actor, notes, ip string) (*models.Refund, error) {
	return s.move(ctx, refundID, models.RefundCancelled, actor, notes, ip)
}

func (s *RefundService) authorizeMove(ctx context.Context, refundID int64, to models.RefundStatus, actor models.Actor) error {
	r, err := s.repo.GetRefund(ctx, refundID)
	if err != nil {
		return err
	}
	if actor.Privileged() {
		return nil
	}
	b, err := s.repo.GetBooking(ctx, r.BookingID)
	if err != nil {
		return err
	}
	if err := authorizeBooking(ctx, s.access, b, actor); err != nil {
		return domain.NotFoundError{Resource: "refund", ID: refundID, Err: err}
	}
	if actor.IsUser() && to == models.RefundCancelled {
		return nil
	}
	return domain.ErrForbidden
}

func (s *RefundService) move(ctx context.Context, refundID int64, to models.RefundStatus, actor models.Actor, notes, ip string) (*models.Refund, error) {
	if err := s.authorizeMove(ctx, refundID, to, actor); err != nil {
		return nil, err
	}

	var (
		updated *models.Refund
		booking *models.Booking
		changes []statusChange
	)
	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		r, err := tx.GetRefund(ctx, refundID)
		if err != nil {
			return err
		}
		if !r.Status.CanTransitionTo(to) {
			return domain.IllegalTransitionError{From: string(r.Status), To: string(to)}
		}

		now := s.now()
		var processedAt *time.Time
		if to == models.RefundCompleted || to == models.RefundRejected {
			processedAt = &now
		}
		ok, err := tx.UpdateRefundStatus(ctx, r.ID, r.Status, to, processedAt)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConcurrentModification
		}

		b, err := tx.GetBooking(ctx, r.BookingID)
		if err != nil {
			return err
		}

		switch to {
		case models.RefundCompleted:
			payment, err := tx.GetPayment(ctx, r.PaymentID)
			if err != nil {
				return err
			}
			status := models.PaymentPartialRefund
			if r.RefundAmount >= payment.Amount {
				status = models.PaymentRefunded
			}
			if err := tx.UpdatePaymentStatus(ctx, payment.ID, status, "", "", nil); err != nil {
				return err
			}
			if b.Status == models.BookingRefundPending {
				c, err := s.lc.apply(ctx, tx, b, models.BookingRefunded, actor, notes, ip)
				if err != nil {
					return err
				}
				changes = append(changes, c)
			}
		case models.RefundRejected, models.RefundCancelled:
			if b.Status == models.BookingRefundPending {
				c, err := s.lc.apply(ctx, tx, b, models.BookingCancelled, actor, notes, ip)
				if err != nil {
					return err
				}
				changes = append(changes, c)
			}
		}

		r.Status = to
		if processedAt != nil {
			r.ProcessedAt = processedAt
		}
		updated = r
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	announce(s.eventBus, s.logger, changes...)
	metrics.IncRefund(string(to))
	s.publishRefund(events.EventRefundUpdated, updated, booking, actor)
	s.logger.Info().
		Int64("refund_id", updated.ID).
		Str("status", string(to)).
		Str("actor", actor.String()).
		Msg("refund status changed")
	return updated, nil
}

func (s *RefundService) publishRefund(eventType string, r *models.Refund, b *models.Booking, actor models.Actor) {
	if s.eventBus == nil {
		return
	}
	payload := events.RefundEventPayload{
		RefundID:     r.ID,
		BookingID:    r.BookingID,
		BookingCode:  b.BookingCode,
		Status:       string(r.Status),
		RefundAmount: r.RefundAmount,
		Percentage:   r.Percentage,
		Reason:       r.Reason,
		ChangedBy:    actor.String(),
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("refund_id", r.ID).Msg("publish event error")
	}
}
