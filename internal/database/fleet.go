package database

import (
	"context"
	"fmt"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"
)

// SyncFleet upserts the reference data by id in one transaction. Rows missing
// from the fleet are left alone; deactivate them instead of deleting so
// existing bookings keep their references.
func (db *DB) SyncFleet(ctx context.Context, fleet *models.Fleet) error {
	if fleet == nil {
		return nil
	}
	err := db.WithTx(ctx, func(tx domain.Store) error {
		return tx.(*Store).upsertFleet(ctx, fleet)
	})
	if err != nil {
		return err
	}

	db.logger.Info().
		Int("routes", len(fleet.Routes)).
		Int("ferries", len(fleet.Ferries)).
		Int("schedules", len(fleet.Schedules)).
		Int("vehicle_categories", len(fleet.VehicleCategories)).
		Int("operator_routes", len(fleet.OperatorRoutes)).
		Msg("fleet synchronized")
	return nil
}

func (s *Store) upsertFleet(ctx context.Context, fleet *models.Fleet) error {
	now := s.now()

	for _, r := range fleet.Routes {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO routes (id, origin, destination, base_price, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET origin = excluded.origin, destination = excluded.destination,
                 base_price = excluded.base_price, is_active = excluded.is_active`,
			r.ID, r.Origin, r.Destination, r.BasePrice, r.IsActive, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert route %d: %w", r.ID, err)
		}
	}

	for _, f := range fleet.Ferries {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO ferries (id, name, capacity_passenger, capacity_motorcycle, capacity_car, capacity_bus, capacity_truck, is_active, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET name = excluded.name, capacity_passenger = excluded.capacity_passenger,
                 capacity_motorcycle = excluded.capacity_motorcycle, capacity_car = excluded.capacity_car,
                 capacity_bus = excluded.capacity_bus, capacity_truck = excluded.capacity_truck, is_active = excluded.is_active`,
			f.ID, f.Name, f.CapacityPassenger, f.CapacityMotorcycle, f.CapacityCar, f.CapacityBus, f.CapacityTruck, f.IsActive, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert ferry %d: %w", f.ID, err)
		}
	}

	for i := range fleet.Schedules {
		sc := &fleet.Schedules[i]
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO schedules (id, route_id, ferry_id, departure_time, arrival_time, days_of_week, is_active, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET route_id = excluded.route_id, ferry_id = excluded.ferry_id,
                 departure_time = excluded.departure_time, arrival_time = excluded.arrival_time,
                 days_of_week = excluded.days_of_week, is_active = excluded.is_active`,
			sc.ID, sc.RouteID, sc.FerryID, sc.DepartureTime, sc.ArrivalTime, sc.DaysString(), sc.IsActive, now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert schedule %d: %w", sc.ID, err)
		}
	}

	for _, c := range fleet.VehicleCategories {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO vehicle_categories (id, code, name, vehicle_type, price, is_active) VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET code = excluded.code, name = excluded.name,
                 vehicle_type = excluded.vehicle_type, price = excluded.price, is_active = excluded.is_active`,
			c.ID, c.Code, c.Name, string(c.VehicleType), c.Price, c.IsActive,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert vehicle category %d: %w", c.ID, err)
		}
	}

	for _, link := range fleet.OperatorRoutes {
		if err := s.AssignOperatorRoute(ctx, link.OperatorID, link.RouteID); err != nil {
			return err
		}
	}
	return nil
}
