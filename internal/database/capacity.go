package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"
)

const scheduleDateColumns = `id, schedule_id, date, passenger_count, motorcycle_count, car_count, bus_count, truck_count,
        status, status_reason, status_expires_at, updated_at`

func scanScheduleDate(row interface{ Scan(...any) error }) (*models.ScheduleDate, error) {
	var (
		sd      models.ScheduleDate
		expires sql.NullTime
	)
	err := row.Scan(&sd.ID, &sd.ScheduleID, &sd.Date, &sd.PassengerCount, &sd.MotorcycleCount, &sd.CarCount,
		&sd.BusCount, &sd.TruckCount, &sd.Status, &sd.StatusReason, &expires, &sd.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sd.StatusExpiresAt = timePtr(expires)
	return &sd, nil
}

// EnsureScheduleDate returns the capacity row for (schedule, date), creating it on first use.
func (s *Store) EnsureScheduleDate(ctx context.Context, scheduleID int64, date time.Time) (*models.ScheduleDate, error) {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO schedule_dates (schedule_id, date, status, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(schedule_id, date) DO NOTHING`,
		scheduleID, date.Format(models.DateLayout), string(models.DateAvailable), s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule date: %w", err)
	}
	return s.GetScheduleDate(ctx, scheduleID, date)
}

// GetScheduleDate loads the capacity row. A temporary status whose expiry has
// passed is reverted to AVAILABLE before the row is returned.
func (s *Store) GetScheduleDate(ctx context.Context, scheduleID int64, date time.Time) (*models.ScheduleDate, error) {
	day := date.Format(models.DateLayout)
	sd, err := scanScheduleDate(s.q.QueryRowContext(ctx,
		`SELECT `+scheduleDateColumns+` FROM schedule_dates WHERE schedule_id = ? AND date = ?`, scheduleID, day))
	if err != nil {
		return nil, notFound("schedule date", fmt.Sprintf("%d/%s", scheduleID, day), err)
	}

	now := s.now()
	if sd.StatusExpired(now) {
		_, err := s.q.ExecContext(ctx,
			`UPDATE schedule_dates SET status = ?, status_reason = '', status_expires_at = NULL, updated_at = ? WHERE id = ?`,
			string(models.DateAvailable), now, sd.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to revert schedule date status: %w", err)
		}
		s.logger.Info().Int64("schedule_date_id", sd.ID).Str("previous_status", string(sd.Status)).Msg("temporary schedule date status expired")
		sd.Status = models.DateAvailable
		sd.StatusReason = ""
		sd.StatusExpiresAt = nil
		sd.UpdatedAt = now
	}
	return sd, nil
}

// ReserveCapacity atomically adds load to the schedule date counters. Either
// every counter stays within the ferry capacity and the row is updated, or
// nothing changes and CapacityExceededError / ErrScheduleUnavailable is returned.
func (s *Store) ReserveCapacity(ctx context.Context, sd *models.ScheduleDate, capacity, load models.CapacityLoad) error {
	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`UPDATE schedule_dates SET
            passenger_count = passenger_count + ?,
            motorcycle_count = motorcycle_count + ?,
            car_count = car_count + ?,
            bus_count = bus_count + ?,
            truck_count = truck_count + ?,
            updated_at = ?
         WHERE id = ? AND status = ?
            AND (? = 0 OR passenger_count + ? <= ?)
            AND (? = 0 OR motorcycle_count + ? <= ?)
            AND (? = 0 OR car_count + ? <= ?)
            AND (? = 0 OR bus_count + ? <= ?)
            AND (? = 0 OR truck_count + ? <= ?)`,
		load.Passengers, load.Motorcycles, load.Cars, load.Buses, load.Trucks, now,
		sd.ID, string(models.DateAvailable),
		load.Passengers, load.Passengers, capacity.Passengers,
		load.Motorcycles, load.Motorcycles, capacity.Motorcycles,
		load.Cars, load.Cars, capacity.Cars,
		load.Buses, load.Buses, capacity.Buses,
		load.Trucks, load.Trucks, capacity.Trucks,
	)
	if err != nil {
		return fmt.Errorf("failed to reserve capacity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		applyLoad(sd, load)
		sd.UpdatedAt = now
		return nil
	}

	current, err := scanScheduleDate(s.q.QueryRowContext(ctx,
		`SELECT `+scheduleDateColumns+` FROM schedule_dates WHERE id = ?`, sd.ID))
	if err != nil {
		return notFound("schedule date", sd.ID, err)
	}
	if current.Status != models.DateAvailable {
		return domain.ErrScheduleUnavailable
	}
	if class, ok := current.Load().FirstExceeded(load, capacity); ok {
		return domain.CapacityExceededError{Class: class}
	}
	return errors.New("failed to reserve capacity: schedule date changed concurrently")
}

// ReleaseCapacity subtracts load from the schedule date counters, clamping at zero.
func (s *Store) ReleaseCapacity(ctx context.Context, scheduleID int64, date time.Time, load models.CapacityLoad) error {
	if load.IsZero() {
		return nil
	}
	day := date.Format(models.DateLayout)
	sd, err := scanScheduleDate(s.q.QueryRowContext(ctx,
		`SELECT `+scheduleDateColumns+` FROM schedule_dates WHERE schedule_id = ? AND date = ?`, scheduleID, day))
	if err != nil {
		return notFound("schedule date", fmt.Sprintf("%d/%s", scheduleID, day), err)
	}

	if short := load.Sub(sd.Load()); !short.IsZero() {
		s.logger.Warn().
			Int64("schedule_date_id", sd.ID).
			Interface("reserved", sd.Load()).
			Interface("release", load).
			Msg("capacity release below zero, clamping counters")
	}

	_, err = s.q.ExecContext(ctx,
		`UPDATE schedule_dates SET
            passenger_count = MAX(passenger_count - ?, 0),
            motorcycle_count = MAX(motorcycle_count - ?, 0),
            car_count = MAX(car_count - ?, 0),
            bus_count = MAX(bus_count - ?, 0),
            truck_count = MAX(truck_count - ?, 0),
            updated_at = ?
         WHERE id = ?`,
		load.Passengers, load.Motorcycles, load.Cars, load.Buses, load.Trucks, s.now(), sd.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to release capacity: %w", err)
	}
	return nil
}

// SetScheduleDateStatus changes the availability of a date. A nil expiresAt makes it permanent.
func (s *Store) SetScheduleDateStatus(ctx context.Context, sdID int64, status models.ScheduleDateStatus, reason string, expiresAt *time.Time) error {
	if status == models.DateAvailable {
		reason = ""
		expiresAt = nil
	}
	result, err := s.q.ExecContext(ctx,
		`UPDATE schedule_dates SET status = ?, status_reason = ?, status_expires_at = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, nullTime(expiresAt), s.now(), sdID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule date status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.NotFoundError{Resource: "schedule date", ID: sdID}
	}
	return nil
}

func applyLoad(sd *models.ScheduleDate, load models.CapacityLoad) {
	sd.PassengerCount += load.Passengers
	sd.MotorcycleCount += load.Motorcycles
	sd.CarCount += load.Cars
	sd.BusCount += load.Buses
	sd.TruckCount += load.Trucks
}
