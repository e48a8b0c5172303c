package service

import (
	"context"
	"fmt"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"

	"github.com/rs/zerolog"
)

const paymentExpiredNote = "payment expired"

// gateway transaction statuses
const (
	txCapture    = "capture"
	txSettlement = "settlement"
	txPending    = "pending"
	txDeny       = "deny"
	txCancel     = "cancel"
	txExpire     = "expire"
	txFailure    = "failure"

	fraudAccept    = "accept"
	fraudChallenge = "challenge"
)

// PaymentService connects bookings with the payment gateway. Payment outcomes
// drive the booking through the lifecycle with the SYSTEM actor.
type PaymentService struct {
	repo     domain.Repository
	gateway  domain.PaymentGateway
	access   domain.RouteAccessPolicy
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
	lc       *lifecycle
}

func NewPaymentService(repo domain.Repository, gateway domain.PaymentGateway, access domain.RouteAccessPolicy, eventBus domain.EventPublisher, logger *zerolog.Logger) *PaymentService {
	s := &PaymentService{
		repo:     repo,
		gateway:  gateway,
		access:   access,
		eventBus: eventBus,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.lc = &lifecycle{logger: logger, now: func() time.Time { return s.now() }}
	return s
}

func pendingPayment(payments []*models.Payment) *models.Payment {
	for _, p := range payments {
		if p.Status == models.PaymentPending {
			return p
		}
	}
	return nil
}

// Checkout returns a gateway session for the booking's PENDING payment,
// reusing the stored token when one exists.
func (s *PaymentService) Checkout(ctx context.Context, bookingID int64, actor models.Actor) (*domain.PaymentSession, error) {
	if s.gateway == nil {
		return nil, domain.ErrPaymentUnavailable
	}

	b, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.access, b, actor); err != nil {
		return nil, err
	}
	if b.Status != models.BookingPending {
		return nil, fmt.Errorf("booking %s is %s: %w", b.BookingCode, b.Status, domain.ErrNotPayable)
	}

	payments, err := s.repo.ListPayments(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	payment := pendingPayment(payments)
	if payment == nil {
		return nil, domain.ErrNotPayable
	}
	if payment.IsExpired(s.now()) {
		if err := s.expire(ctx, payment); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("payment %s: %w", payment.OrderID, domain.ErrNotPayable)
	}
	if payment.SnapToken != "" {
		return &domain.PaymentSession{Token: payment.SnapToken}, nil
	}

	session, err := s.gateway.CreateTransaction(ctx, b, payment)
	if err != nil {
		return nil, fmt.Errorf("create gateway transaction: %w", err)
	}
	if err := s.repo.SetPaymentToken(ctx, payment.ID, session.Token); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("booking_id", b.ID).
		Str("order_id", payment.OrderID).
		Msg("payment checkout created")
	return session, nil
}

// HandleNotification applies a signed gateway notification. Repeated
// deliveries of the same outcome are no-ops.
func (s *PaymentService) HandleNotification(ctx context.Context, n *domain.GatewayStatus) error {
	if s.gateway == nil {
		return domain.ErrPaymentUnavailable
	}
	if !s.gateway.VerifyNotification(n) {
		s.logger.Warn().Str("order_id", n.OrderID).Msg("notification signature mismatch")
		return domain.ErrInvalidSignature
	}
	return s.applyGatewayStatus(ctx, n)
}

// RefreshStatus asks the gateway about a payment and applies the answer. A
// PENDING payment past its expiry fails and cancels the booking.
func (s *PaymentService) RefreshStatus(ctx context.Context, paymentID int64, actor models.Actor) (*models.Payment, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	b, err := s.repo.GetBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.access, b, actor); err != nil {
		return nil, domain.NotFoundError{Resource: "payment", ID: paymentID, Err: err}
	}

	if s.gateway != nil && payment.Status == models.PaymentPending {
		st, err := s.gateway.GetTransactionStatus(ctx, payment.OrderID)
		switch {
		case err != nil:
			s.logger.Warn().Err(err).Str("order_id", payment.OrderID).Msg("failed to query gateway status")
		default:
			if err := s.applyGatewayStatus(ctx, st); err != nil {
				return nil, err
			}
		}
		if payment, err = s.repo.GetPayment(ctx, paymentID); err != nil {
			return nil, err
		}
	}

	if payment.IsExpired(s.now()) {
		if err := s.expire(ctx, payment); err != nil {
			return nil, err
		}
		return s.repo.GetPayment(ctx, paymentID)
	}
	return payment, nil
}

type paymentOutcome int

const (
	outcomeNone paymentOutcome = iota
	outcomeSuccess
	outcomeFailed
)

func classify(st *domain.GatewayStatus) paymentOutcome {
	switch st.TransactionStatus {
	case txCapture:
		if st.FraudStatus == "" || st.FraudStatus == fraudAccept {
			return outcomeSuccess
		}
		if st.FraudStatus == fraudChallenge {
			return outcomeNone
		}
		return outcomeFailed
	case txSettlement:
		return outcomeSuccess
	case txDeny, txCancel, txExpire, txFailure:
		return outcomeFailed
	default:
		return outcomeNone
	}
}

func (s *PaymentService) applyGatewayStatus(ctx context.Context, st *domain.GatewayStatus) error {
	outcome := classify(st)
	if outcome == outcomeNone {
		s.logger.Debug().Str("order_id", st.OrderID).Str("transaction_status", st.TransactionStatus).Msg("gateway status needs no action")
		return nil
	}

	payment, err := s.repo.GetPaymentByOrderID(ctx, st.OrderID)
	if err != nil {
		return err
	}

	var changes []statusChange
	err = s.repo.WithTx(ctx, func(tx domain.Store) error {
		p, err := tx.GetPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentPending {
			if outcome == outcomeSuccess && p.Status != models.PaymentSuccess {
				s.logger.Warn().
					Int64("payment_id", p.ID).
					Str("payment_status", string(p.Status)).
					Str("order_id", p.OrderID).
					Str("transaction_status", st.TransactionStatus).
					Msg("gateway captured funds for a payment that is no longer pending")
			}
			return nil
		}
		b, err := tx.GetBooking(ctx, p.BookingID)
		if err != nil {
			return err
		}

		now := s.now()
		switch outcome {
		case outcomeSuccess:
			if err := tx.UpdatePaymentStatus(ctx, p.ID, models.PaymentSuccess, st.TransactionID, st.PaymentType, &now); err != nil {
				return err
			}
			if b.Status != models.BookingPending {
				s.logger.Warn().
					Int64("booking_id", b.ID).
					Str("booking_status", string(b.Status)).
					Str("order_id", p.OrderID).
					Msg("payment settled for a booking that is no longer pending")
				return nil
			}
			c, err := s.lc.apply(ctx, tx, b, models.BookingConfirmed, models.SystemActor(), "payment "+st.TransactionStatus, "")
			if err != nil {
				return err
			}
			changes = append(changes, c)
		case outcomeFailed:
			if err := tx.UpdatePaymentStatus(ctx, p.ID, models.PaymentFailed, st.TransactionID, st.PaymentType, nil); err != nil {
				return err
			}
			if b.Status != models.BookingPending {
				return nil
			}
			c, err := s.lc.apply(ctx, tx, b, models.BookingCancelled, models.SystemActor(), "payment "+st.TransactionStatus, "")
			if err != nil {
				return err
			}
			changes = append(changes, c)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("order_id", st.OrderID).
		Str("transaction_status", st.TransactionStatus).
		Msg("gateway status applied")
	announce(s.eventBus, s.logger, changes...)
	return nil
}

// expire fails an overdue payment and cancels its booking.
func (s *PaymentService) expire(ctx context.Context, payment *models.Payment) error {
	var changes []statusChange
	err := s.repo.WithTx(ctx, func(tx domain.Store) error {
		p, err := tx.GetPayment(ctx, payment.ID)
		if err != nil {
			return err
		}
		if !p.IsExpired(s.now()) {
			return nil
		}
		if err := tx.UpdatePaymentStatus(ctx, p.ID, models.PaymentFailed, "", "", nil); err != nil {
			return err
		}
		b, err := tx.GetBooking(ctx, p.BookingID)
		if err != nil {
			return err
		}
		if b.Status != models.BookingPending {
			return nil
		}
		c, err := s.lc.apply(ctx, tx, b, models.BookingCancelled, models.SystemActor(), paymentExpiredNote, "")
		if err != nil {
			return err
		}
		changes = append(changes, c)
		return nil
	})
	if err != nil {
		return err
	}
	announce(s.eventBus, s.logger, changes...)
	return nil
}
