package database

import (
	"context"
	"database/sql"
	"fmt"

	"ferrybook/internal/models"
)

func (s *Store) InsertBookingLog(ctx context.Context, l *models.BookingLog) error {
	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO booking_logs (booking_id, previous_status, new_status, changed_by_type, changed_by_id, notes, ip_address, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.BookingID, string(l.PreviousStatus), string(l.NewStatus), string(l.ChangedByType),
		nullInt64(l.ChangedByID), l.Notes, l.IPAddress, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert booking log: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	l.ID = id
	l.CreatedAt = now
	return nil
}

func (s *Store) ListBookingLogs(ctx context.Context, bookingID int64) ([]*models.BookingLog, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, booking_id, previous_status, new_status, changed_by_type, changed_by_id, notes, ip_address, created_at
         FROM booking_logs WHERE booking_id = ? ORDER BY id`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.BookingLog
	for rows.Next() {
		var (
			l         models.BookingLog
			changedBy sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.BookingID, &l.PreviousStatus, &l.NewStatus, &l.ChangedByType,
			&changedBy, &l.Notes, &l.IPAddress, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan booking log: %w", err)
		}
		l.ChangedByID = int64Ptr(changedBy)
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
