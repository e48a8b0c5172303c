package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"ferrybook/internal/models"
)

const ticketColumns = `id, booking_id, ticket_code, passenger_name, id_number, price, status, boarding_status,
        checked_in, boarding_time, vehicle_id, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*models.Ticket, error) {
	var (
		t         models.Ticket
		boarding  sql.NullTime
		vehicleID sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.BookingID, &t.TicketCode, &t.PassengerName, &t.IDNumber, &t.Price, &t.Status,
		&t.BoardingStatus, &t.CheckedIn, &boarding, &vehicleID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.BoardingTime = timePtr(boarding)
	t.VehicleID = int64Ptr(vehicleID)
	return &t, nil
}

func (s *Store) CreateTicket(ctx context.Context, t *models.Ticket) error {
	if t.Status == "" {
		t.Status = models.TicketActive
	}
	if t.BoardingStatus == "" {
		t.BoardingStatus = models.NotBoarded
	}
	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO tickets (booking_id, ticket_code, passenger_name, id_number, price, status, boarding_status,
            checked_in, boarding_time, vehicle_id, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.BookingID, t.TicketCode, t.PassengerName, t.IDNumber, t.Price, string(t.Status), string(t.BoardingStatus),
		t.CheckedIn, nullTime(t.BoardingTime), nullInt64(t.VehicleID), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create ticket: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

func (s *Store) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	t, err := scanTicket(s.q.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if err != nil {
		return nil, notFound("ticket", id, err)
	}
	return t, nil
}

func (s *Store) ListTickets(ctx context.Context, bookingID int64) ([]*models.Ticket, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// SetTicketsStatus moves every ticket of a booking to status, skipping tickets
// already in one of the except statuses. It returns the number of tickets changed.
func (s *Store) SetTicketsStatus(ctx context.Context, bookingID int64, status models.TicketStatus, except ...models.TicketStatus) (int64, error) {
	query := `UPDATE tickets SET status = ?, updated_at = ? WHERE booking_id = ? AND status != ?`
	args := []any{string(status), s.now(), bookingID, string(status)}
	if len(except) > 0 {
		placeholders := make([]string, len(except))
		for i, st := range except {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		query += ` AND status NOT IN (` + strings.Join(placeholders, ", ") + `)`
	}

	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update ticket status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// CheckInTicket marks an ACTIVE ticket as checked in and boarded. It returns
// false when the ticket was not ACTIVE or already checked in.
func (s *Store) CheckInTicket(ctx context.Context, id int64, at time.Time) (bool, error) {
	result, err := s.q.ExecContext(ctx,
		`UPDATE tickets SET checked_in = 1, boarding_status = ?, boarding_time = ?, updated_at = ?
         WHERE id = ? AND status = ? AND checked_in = 0`,
		string(models.Boarded), at.UTC(), s.now(), id, string(models.TicketActive),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check in ticket: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// CountTicketsAwaitingCheckIn counts tickets of a booking that are not checked in yet.
func (s *Store) CountTicketsAwaitingCheckIn(ctx context.Context, bookingID int64) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets WHERE booking_id = ? AND checked_in = 0`, bookingID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return n, nil
}

func (s *Store) CreateVehicle(ctx context.Context, v *models.Vehicle) error {
	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO vehicles (booking_id, category_id, type, license_plate, price, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		v.BookingID, v.CategoryID, string(v.Type), v.LicensePlate, v.Price, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	v.ID = id
	v.CreatedAt = now
	return nil
}

func (s *Store) ListVehicles(ctx context.Context, bookingID int64) ([]*models.Vehicle, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, booking_id, category_id, type, license_plate, price, created_at FROM vehicles WHERE booking_id = ? ORDER BY id`,
		bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var vehicles []*models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		if err := rows.Scan(&v.ID, &v.BookingID, &v.CategoryID, &v.Type, &v.LicensePlate, &v.Price, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle: %w", err)
		}
		vehicles = append(vehicles, &v)
	}
	return vehicles, rows.Err()
}
