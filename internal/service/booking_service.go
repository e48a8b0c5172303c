package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/events"
	"ferrybook/internal/metrics"
	"ferrybook/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type PassengerInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	IDNumber string `json:"id_number" validate:"max=32"`
}

type VehicleInput struct {
	CategoryID   int64  `json:"category_id" validate:"gt=0"`
	LicensePlate string `json:"license_plate" validate:"required,max=16"`
}

type CreateBookingInput struct {
	UserID        int64            `json:"user_id" validate:"gt=0"`
	ScheduleID    int64            `json:"schedule_id" validate:"gt=0"`
	DepartureDate string           `json:"departure_date" validate:"required,datetime=2006-01-02"`
	Channel       string           `json:"channel" validate:"omitempty,oneof=WEB MOBILE COUNTER"`
	Passengers    []PassengerInput `json:"passengers" validate:"min=1,max=20,dive"`
	Vehicles      []VehicleInput   `json:"vehicles" validate:"max=20,dive"`
}

type BookingService struct {
	repo           domain.Repository
	access         domain.RouteAccessPolicy
	eventBus       domain.EventPublisher
	validate       *validator.Validate
	maxBookingDays int
	paymentExpiry  time.Duration
	logger         *zerolog.Logger
	now            func() time.Time
	lc             *lifecycle
}

func NewBookingService(repo domain.Repository, access domain.RouteAccessPolicy, eventBus domain.EventPublisher, maxBookingDays int, paymentExpiry time.Duration, logger *zerolog.Logger) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	if paymentExpiry <= 0 {
		paymentExpiry = models.DefaultPaymentExpiry
	}
	s := &BookingService{
		repo:           repo,
		access:         access,
		eventBus:       eventBus,
		validate:       newValidator(),
		maxBookingDays: maxBookingDays,
		paymentExpiry:  paymentExpiry,
		logger:         logger,
		now:            func() time.Time { return time.Now().UTC() },
	}
	s.lc = &lifecycle{logger: logger, now: func() time.Time { return s.now() }}
	return s
}

func (s *BookingService) ValidateBookingDate(date time.Time) error {
	today := models.DateOnly(s.now())
	day := models.DateOnly(date)

	if day.Before(today) {
		return domain.ValidationError{Field: "departure_date", Msg: "must not be in the past"}
	}
	if day.After(today.AddDate(0, 0, s.maxBookingDays)) {
		return domain.ValidationError{Field: "departure_date", Msg: fmt.Sprintf("must be within %d days", s.maxBookingDays)}
	}
	return nil
}

// CreateBooking reserves capacity and stores a PENDING booking with its
// tickets, vehicles and a PENDING payment.
func (s *BookingService) CreateBooking(ctx context.Context, actor models.Actor, in CreateBookingInput, ip string) (*models.BookingDetails, error) {
	if actor.IsUser() {
		in.UserID = actor.ID
	}
	if in.Channel == "" {
		in.Channel = models.ChannelWeb
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if len(in.Vehicles) > len(in.Passengers) {
		return nil, domain.ValidationError{Field: "vehicles", Msg: "every vehicle needs a passenger"}
	}

	date, err := models.ParseDate(in.DepartureDate)
	if err != nil {
		return nil, domain.ValidationError{Field: "departure_date", Msg: "invalid date", Err: err}
	}
	if err := s.ValidateBookingDate(date); err != nil {
		return nil, err
	}

	schedule, err := s.repo.GetSchedule(ctx, in.ScheduleID)
	if err != nil {
		return nil, err
	}
	route, err := s.repo.GetRoute(ctx, schedule.RouteID)
	if err != nil {
		return nil, err
	}
	if !route.IsActive || !schedule.OperatesOn(date) {
		return nil, domain.ErrScheduleUnavailable
	}
	if actor.IsOperator() {
		ok, err := s.access.CanAccess(ctx, actor, route.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.NotFoundError{Resource: "schedule", ID: schedule.ID}
		}
	}
	ferry, err := s.repo.GetFerry(ctx, schedule.FerryID)
	if err != nil {
		return nil, err
	}

	vehicles := make([]*models.Vehicle, 0, len(in.Vehicles))
	total := int64(len(in.Passengers)) * route.BasePrice
	for i, v := range in.Vehicles {
		category, err := s.repo.GetVehicleCategory(ctx, v.CategoryID)
		if err != nil {
			return nil, err
		}
		if !category.IsActive {
			return nil, domain.ValidationError{Field: fmt.Sprintf("vehicles[%d].category_id", i), Msg: "category is not available"}
		}
		vehicles = append(vehicles, &models.Vehicle{
			CategoryID:   category.ID,
			Type:         category.VehicleType,
			LicensePlate: v.LicensePlate,
			Price:        category.Price,
		})
		total += category.Price
	}

	booking := &models.Booking{
		BookingCode:    newCode("FRY"),
		UserID:         in.UserID,
		ScheduleID:     schedule.ID,
		RouteID:        route.ID,
		DepartureDate:  date,
		PassengerCount: len(in.Passengers),
		VehicleCount:   len(vehicles),
		TotalAmount:    total,
		Status:         models.BookingPending,
		Channel:        in.Channel,
	}
	details := &models.BookingDetails{Booking: booking, Vehicles: vehicles}
	load := models.LoadFor(booking.PassengerCount, vehicles)

	err = s.repo.WithTx(ctx, func(tx domain.Store) error {
		sd, err := tx.EnsureScheduleDate(ctx, schedule.ID, date)
		if err != nil {
			return err
		}
		if err := tx.ReserveCapacity(ctx, sd, ferry.Capacity(), load); err != nil {
			return err
		}
		if err := tx.CreateBooking(ctx, booking); err != nil {
			return err
		}

		for _, v := range vehicles {
			v.BookingID = booking.ID
			if err := tx.CreateVehicle(ctx, v); err != nil {
				return err
			}
		}
		for i, p := range in.Passengers {
			ticket := &models.Ticket{
				BookingID:     booking.ID,
				TicketCode:    newCode("TKT"),
				PassengerName: p.Name,
				IDNumber:      p.IDNumber,
				Price:         route.BasePrice,
			}
			if i < len(vehicles) {
				id := vehicles[i].ID
				ticket.VehicleID = &id
			}
			if err := tx.CreateTicket(ctx, ticket); err != nil {
				return err
			}
			details.Tickets = append(details.Tickets, ticket)
		}

		expires := s.now().Add(s.paymentExpiry)
		payment := &models.Payment{
			BookingID: booking.ID,
			OrderID:   booking.BookingCode + "-" + uuid.NewString()[:8],
			Amount:    total,
			Channel:   in.Channel,
			Status:    models.PaymentPending,
			ExpiresAt: &expires,
		}
		if err := tx.CreatePayment(ctx, payment); err != nil {
			return err
		}
		details.Payments = []*models.Payment{payment}

		log := models.NewBookingLog(booking.ID, "", models.BookingPending, actor, "booking created", ip)
		if err := tx.InsertBookingLog(ctx, log); err != nil {
			return err
		}
		details.Logs = []*models.BookingLog{log}
		return nil
	})
	if err != nil {
		var ce domain.CapacityExceededError
		if errors.As(err, &ce) {
			metrics.IncCapacityRejection(string(ce.Class))
		}
		return nil, err
	}

	metrics.IncBookingCreated(booking.Channel)
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("booking_code", booking.BookingCode).
		Int64("schedule_id", booking.ScheduleID).
		Str("departure_date", in.DepartureDate).
		Int("passengers", booking.PassengerCount).
		Int("vehicles", booking.VehicleCount).
		Str("actor", actor.String()).
		Msg("booking created")
	publishBookingEvent(s.eventBus, s.logger, events.EventBookingCreated, *booking, "", actor, "")

	return details, nil
}

// GetBooking returns the booking with everything it owns.
func (s *BookingService) GetBooking(ctx context.Context, actor models.Actor, id int64) (*models.BookingDetails, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.access, booking, actor); err != nil {
		return nil, err
	}
	return s.details(ctx, booking)
}

func (s *BookingService) GetBookingByCode(ctx context.Context, actor models.Actor, code string) (*models.BookingDetails, error) {
	booking, err := s.repo.GetBookingByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.access, booking, actor); err != nil {
		return nil, err
	}
	return s.details(ctx, booking)
}

func (s *BookingService) ListUserBookings(ctx context.Context, actor models.Actor, limit int) ([]*models.Booking, error) {
	if !actor.IsUser() {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListUserBookings(ctx, actor.ID, limit)
}

func (s *BookingService) details(ctx context.Context, booking *models.Booking) (*models.BookingDetails, error) {
	d := &models.BookingDetails{Booking: booking}
	var err error
	if d.Tickets, err = s.repo.ListTickets(ctx, booking.ID); err != nil {
		return nil, err
	}
	if d.Vehicles, err = s.repo.ListVehicles(ctx, booking.ID); err != nil {
		return nil, err
	}
	if d.Payments, err = s.repo.ListPayments(ctx, booking.ID); err != nil {
		return nil, err
	}
	if d.Refunds, err = s.repo.ListRefunds(ctx, booking.ID); err != nil {
		return nil, err
	}
	if d.Logs, err = s.repo.ListBookingLogs(ctx, booking.ID); err != nil {
		return nil, err
	}
	return d, nil
}

// UpdateStatus performs a manual transition from the transition table.
// Passengers may only cancel their own bookings.
func (s *BookingService) UpdateStatus(ctx context.Context, bookingID int64, to models.BookingStatus, actor models.Actor, notes, ip string) (*models.Booking, error) {
	if !to.IsValid() {
		return nil, domain.ValidationError{Field: "status", Msg: fmt.Sprintf("unknown status %q", to)}
	}

	current, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.access, current, actor); err != nil {
		return nil, err
	}
	if actor.IsUser() && to != models.BookingCancelled {
		return nil, domain.ErrForbidden
	}

	var (
		booking *models.Booking
		change  statusChange
	)
	err = s.repo.WithTx(ctx, func(tx domain.Store) error {
		b, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		if err := checkTransition(b, to); err != nil {
			return err
		}
		change, err = s.lc.apply(ctx, tx, b, to, actor, notes, ip)
		booking = b
		return err
	})
	if err != nil {
		return nil, err
	}

	announce(s.eventBus, s.logger, change)
	return booking, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, bookingID int64, actor models.Actor, reason, ip string) (*models.Booking, error) {
	return s.UpdateStatus(ctx, bookingID, models.BookingCancelled, actor, reason, ip)
}

// CheckIn boards one passenger. When the last ticket of the booking is checked
// in the booking is completed in the same transaction.
func (s *BookingService) CheckIn(ctx context.Context, ticketID int64, actor models.Actor, ip string) (*models.Ticket, error) {
	if actor.IsUser() {
		return nil, domain.ErrForbidden
	}

	ticket, err := s.repo.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.GetBooking(ctx, ticket.BookingID)
	if err != nil {
		return nil, err
	}
	if err := authorizeBooking(ctx, s.access, current, actor); err != nil {
		return nil, domain.NotFoundError{Resource: "ticket", ID: ticketID, Err: err}
	}

	var changes []statusChange
	err = s.repo.WithTx(ctx, func(tx domain.Store) error {
		b, err := tx.GetBooking(ctx, ticket.BookingID)
		if err != nil {
			return err
		}
		if b.Status != models.BookingConfirmed {
			return fmt.Errorf("booking %s is %s: %w", b.BookingCode, b.Status, domain.ErrTicketNotActive)
		}

		t, err := tx.GetTicket(ctx, ticketID)
		if err != nil {
			return err
		}
		switch {
		case t.CheckedIn:
			return domain.ErrAlreadyCheckedIn
		case t.Status != models.TicketActive:
			return domain.ErrTicketNotActive
		}

		ok, err := tx.CheckInTicket(ctx, ticketID, s.now())
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyCheckedIn
		}

		remaining, err := tx.CountTicketsAwaitingCheckIn(ctx, b.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			change, err := s.lc.apply(ctx, tx, b, models.BookingCompleted, actor, models.CheckInCompletedNote, ip)
			if err != nil {
				return err
			}
			changes = append(changes, change)
		}

		ticket, err = tx.GetTicket(ctx, ticketID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("ticket_id", ticketID).
		Int64("booking_id", ticket.BookingID).
		Str("actor", actor.String()).
		Msg("ticket checked in")
	announce(s.eventBus, s.logger, changes...)
	return ticket, nil
}
