package database

import (
	"context"
	"fmt"

	"ferrybook/internal/models"
)

func (s *Store) CreateRoute(ctx context.Context, route *models.Route) error {
	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO routes (origin, destination, base_price, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		route.Origin, route.Destination, route.BasePrice, route.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create route: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	route.ID = id
	route.CreatedAt = now
	return nil
}

func (s *Store) GetRoute(ctx context.Context, id int64) (*models.Route, error) {
	var r models.Route
	err := s.q.QueryRowContext(ctx,
		`SELECT id, origin, destination, base_price, is_active, created_at FROM routes WHERE id = ?`, id,
	).Scan(&r.ID, &r.Origin, &r.Destination, &r.BasePrice, &r.IsActive, &r.CreatedAt)
	if err != nil {
		return nil, notFound("route", id, err)
	}
	return &r, nil
}

func (s *Store) CreateFerry(ctx context.Context, f *models.Ferry) error {
	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO ferries (name, capacity_passenger, capacity_motorcycle, capacity_car, capacity_bus, capacity_truck, is_active, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.CapacityPassenger, f.CapacityMotorcycle, f.CapacityCar, f.CapacityBus, f.CapacityTruck, f.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create ferry: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	f.ID = id
	f.CreatedAt = now
	return nil
}

func (s *Store) GetFerry(ctx context.Context, id int64) (*models.Ferry, error) {
	var f models.Ferry
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, capacity_passenger, capacity_motorcycle, capacity_car, capacity_bus, capacity_truck, is_active, created_at
         FROM ferries WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.CapacityPassenger, &f.CapacityMotorcycle, &f.CapacityCar, &f.CapacityBus, &f.CapacityTruck, &f.IsActive, &f.CreatedAt)
	if err != nil {
		return nil, notFound("ferry", id, err)
	}
	return &f, nil
}

func (s *Store) CreateSchedule(ctx context.Context, sc *models.Schedule) error {
	now := s.now()
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO schedules (route_id, ferry_id, departure_time, arrival_time, days_of_week, is_active, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sc.RouteID, sc.FerryID, sc.DepartureTime, sc.ArrivalTime, sc.DaysString(), sc.IsActive, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	sc.ID = id
	sc.CreatedAt = now
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, id int64) (*models.Schedule, error) {
	var (
		sc   models.Schedule
		days string
	)
	err := s.q.QueryRowContext(ctx,
		`SELECT id, route_id, ferry_id, departure_time, arrival_time, days_of_week, is_active, created_at
         FROM schedules WHERE id = ?`, id,
	).Scan(&sc.ID, &sc.RouteID, &sc.FerryID, &sc.DepartureTime, &sc.ArrivalTime, &days, &sc.IsActive, &sc.CreatedAt)
	if err != nil {
		return nil, notFound("schedule", id, err)
	}
	if sc.Days, err = models.ParseDays(days); err != nil {
		return nil, fmt.Errorf("schedule %d: %w", id, err)
	}
	return &sc, nil
}

func (s *Store) CreateVehicleCategory(ctx context.Context, c *models.VehicleCategory) error {
	result, err := s.q.ExecContext(ctx,
		`INSERT INTO vehicle_categories (code, name, vehicle_type, price, is_active) VALUES (?, ?, ?, ?, ?)`,
		c.Code, c.Name, string(c.VehicleType), c.Price, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to create vehicle category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (s *Store) GetVehicleCategory(ctx context.Context, id int64) (*models.VehicleCategory, error) {
	var c models.VehicleCategory
	err := s.q.QueryRowContext(ctx,
		`SELECT id, code, name, vehicle_type, price, is_active FROM vehicle_categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Code, &c.Name, &c.VehicleType, &c.Price, &c.IsActive)
	if err != nil {
		return nil, notFound("vehicle category", id, err)
	}
	return &c, nil
}

func (s *Store) AssignOperatorRoute(ctx context.Context, operatorID, routeID int64) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO operator_routes (operator_id, route_id, created_at) VALUES (?, ?, ?)
         ON CONFLICT(operator_id, route_id) DO NOTHING`,
		operatorID, routeID, s.now(),
	)
	if err != nil {
		return fmt.Errorf("failed to assign operator route: %w", err)
	}
	return nil
}

func (s *Store) RevokeOperatorRoute(ctx context.Context, operatorID, routeID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM operator_routes WHERE operator_id = ? AND route_id = ?`, operatorID, routeID)
	if err != nil {
		return fmt.Errorf("failed to revoke operator route: %w", err)
	}
	return nil
}

func (s *Store) ListOperatorRoutes(ctx context.Context, operatorID int64) ([]int64, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT route_id FROM operator_routes WHERE operator_id = ? ORDER BY route_id`, operatorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list operator routes: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan operator route: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
