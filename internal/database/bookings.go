package database

import (
	"context"
	"fmt"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"
)

const bookingSelect = `SELECT b.id, b.booking_code, b.user_id, b.schedule_id, s.route_id, b.departure_date,
        b.passenger_count, b.vehicle_count, b.total_amount, b.status, b.cancellation_reason, b.channel,
        b.version, b.created_at, b.updated_at
    FROM bookings b JOIN schedules s ON s.id = b.schedule_id`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(&b.ID, &b.BookingCode, &b.UserID, &b.ScheduleID, &b.RouteID, &b.DepartureDate,
		&b.PassengerCount, &b.VehicleCount, &b.TotalAmount, &b.Status, &b.CancellationReason, &b.Channel,
		&b.Version, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) CreateBooking(ctx context.Context, booking *models.Booking) error {
	if booking.PassengerCount < 1 {
		return domain.ValidationError{Field: "passenger_count", Msg: "at least one passenger is required"}
	}
	if booking.Status == "" {
		booking.Status = models.BookingPending
	}
	if booking.Channel == "" {
		booking.Channel = models.ChannelWeb
	}

	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO bookings (
            booking_code, user_id, schedule_id, departure_date, passenger_count, vehicle_count,
            total_amount, status, cancellation_reason, channel, version, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.BookingCode,
		booking.UserID,
		booking.ScheduleID,
		booking.DepartureDate.Format(models.DateLayout),
		booking.PassengerCount,
		booking.VehicleCount,
		booking.TotalAmount,
		string(booking.Status),
		booking.CancellationReason,
		booking.Channel,
		1,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	b, err := scanBooking(s.q.QueryRowContext(ctx, bookingSelect+` WHERE b.id = ?`, id))
	if err != nil {
		return nil, notFound("booking", id, err)
	}
	return b, nil
}

func (s *Store) GetBookingByCode(ctx context.Context, code string) (*models.Booking, error) {
	b, err := scanBooking(s.q.QueryRowContext(ctx, bookingSelect+` WHERE b.booking_code = ?`, code))
	if err != nil {
		return nil, notFound("booking", code, err)
	}
	return b, nil
}

// UpdateBookingStatus writes a new status if the row still has the given version.
// A nil reason leaves cancellation_reason untouched.
func (s *Store) UpdateBookingStatus(ctx context.Context, id, version int64, status models.BookingStatus, reason *string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	args := []any{string(status), s.now(), id, version}
	if reason != nil {
		query = `UPDATE bookings SET status = ?, cancellation_reason = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
		args = []any{string(status), *reason, s.now(), id, version}
	}

	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrConcurrentModification
	}
	return nil
}

func (s *Store) listBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// ListDepartedBookings returns bookings in status whose departure date is strictly before day.
func (s *Store) ListDepartedBookings(ctx context.Context, status models.BookingStatus, day time.Time) ([]*models.Booking, error) {
	return s.listBookings(ctx,
		bookingSelect+` WHERE b.status = ? AND b.departure_date < ? ORDER BY b.departure_date, b.id`,
		string(status), day.Format(models.DateLayout))
}

// ListStaleConfirmedBookings returns CONFIRMED bookings that departed before day
// or whose tickets have all expired.
func (s *Store) ListStaleConfirmedBookings(ctx context.Context, day time.Time) ([]*models.Booking, error) {
	return s.listBookings(ctx,
		bookingSelect+` WHERE b.status = ? AND (
            b.departure_date < ?
            OR (
                EXISTS (SELECT 1 FROM tickets t WHERE t.booking_id = b.id)
                AND NOT EXISTS (SELECT 1 FROM tickets t WHERE t.booking_id = b.id AND t.status != ?)
            )
        ) ORDER BY b.departure_date, b.id`,
		string(models.BookingConfirmed), day.Format(models.DateLayout), string(models.TicketExpired))
}

func (s *Store) ListUserBookings(ctx context.Context, userID int64, limit int) ([]*models.Booking, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.listBookings(ctx,
		bookingSelect+` WHERE b.user_id = ? ORDER BY b.created_at DESC, b.id DESC LIMIT ?`, userID, limit)
}

// CountBookingsByStatus aggregates bookings of a schedule date per status.
func (s *Store) CountBookingsByStatus(ctx context.Context, scheduleID int64, date time.Time) (map[models.BookingStatus]int, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM bookings WHERE schedule_id = ? AND departure_date = ? GROUP BY status`,
		scheduleID, date.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to count bookings: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.BookingStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan booking count: %w", err)
		}
		counts[models.BookingStatus(status)] = n
	}
	return counts, rows.Err()
}
