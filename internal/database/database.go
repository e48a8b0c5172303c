package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ferrybook/internal/domain"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

var _ domain.Repository = (*DB)(nil)

// Querier is implemented by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB owns the connection pool. Its embedded Store runs outside transactions.
type DB struct {
	*sql.DB
	*Store
	logger *zerolog.Logger
}

// NewDB opens (or creates) the database at path and applies the schema.
// The pool is pinned to one connection: SQLite serializes writers anyway and
// ":memory:" databases only exist per connection.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return newDB(sqlDB, logger), nil
}

func newDB(sqlDB *sql.DB, logger *zerolog.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		Store:  newStore(sqlDB, logger),
		logger: logger,
	}
}

// WithTx runs fn inside a transaction. Any error or panic rolls everything back.
func (db *DB) WithTx(ctx context.Context, fn func(tx domain.Store) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				db.logger.Error().Err(rbErr).Msg("rollback failed")
			}
		}
	}()

	if err = fn(newStore(tx, db.logger)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

func createTables(db *sql.DB) error {
	queries := []string{
		`PRAGMA foreign_keys = ON`,
		`CREATE TABLE IF NOT EXISTS routes (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            origin TEXT NOT NULL,
            destination TEXT NOT NULL,
            base_price INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS ferries (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            capacity_passenger INTEGER NOT NULL DEFAULT 0,
            capacity_motorcycle INTEGER NOT NULL DEFAULT 0,
            capacity_car INTEGER NOT NULL DEFAULT 0,
            capacity_bus INTEGER NOT NULL DEFAULT 0,
            capacity_truck INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS schedules (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            route_id INTEGER NOT NULL REFERENCES routes(id),
            ferry_id INTEGER NOT NULL REFERENCES ferries(id),
            departure_time TEXT NOT NULL,
            arrival_time TEXT NOT NULL DEFAULT '',
            days_of_week TEXT NOT NULL DEFAULT '',
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS schedule_dates (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            schedule_id INTEGER NOT NULL REFERENCES schedules(id),
            date DATE NOT NULL,
            passenger_count INTEGER NOT NULL DEFAULT 0 CHECK (passenger_count >= 0),
            motorcycle_count INTEGER NOT NULL DEFAULT 0 CHECK (motorcycle_count >= 0),
            car_count INTEGER NOT NULL DEFAULT 0 CHECK (car_count >= 0),
            bus_count INTEGER NOT NULL DEFAULT 0 CHECK (bus_count >= 0),
            truck_count INTEGER NOT NULL DEFAULT 0 CHECK (truck_count >= 0),
            status TEXT NOT NULL DEFAULT 'AVAILABLE',
            status_reason TEXT NOT NULL DEFAULT '',
            status_expires_at DATETIME,
            updated_at DATETIME NOT NULL,
            UNIQUE (schedule_id, date)
        )`,
		`CREATE TABLE IF NOT EXISTS vehicle_categories (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT UNIQUE NOT NULL,
            name TEXT NOT NULL,
            vehicle_type TEXT NOT NULL,
            price INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS operator_routes (
            operator_id INTEGER NOT NULL,
            route_id INTEGER NOT NULL REFERENCES routes(id),
            created_at DATETIME NOT NULL,
            PRIMARY KEY (operator_id, route_id)
        )`,
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_code TEXT UNIQUE NOT NULL,
            user_id INTEGER NOT NULL,
            schedule_id INTEGER NOT NULL REFERENCES schedules(id),
            departure_date DATE NOT NULL,
            passenger_count INTEGER NOT NULL CHECK (passenger_count >= 1),
            vehicle_count INTEGER NOT NULL DEFAULT 0,
            total_amount INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'PENDING',
            cancellation_reason TEXT NOT NULL DEFAULT '',
            channel TEXT NOT NULL DEFAULT 'WEB',
            version INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS vehicles (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            category_id INTEGER NOT NULL REFERENCES vehicle_categories(id),
            type TEXT NOT NULL,
            license_plate TEXT NOT NULL,
            price INTEGER NOT NULL DEFAULT 0,
            created_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS tickets (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            ticket_code TEXT UNIQUE NOT NULL,
            passenger_name TEXT NOT NULL,
            id_number TEXT NOT NULL DEFAULT '',
            price INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'ACTIVE',
            boarding_status TEXT NOT NULL DEFAULT 'NOT_BOARDED',
            checked_in BOOLEAN NOT NULL DEFAULT 0,
            boarding_time DATETIME,
            vehicle_id INTEGER REFERENCES vehicles(id) ON DELETE SET NULL,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS payments (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            order_id TEXT UNIQUE NOT NULL,
            amount INTEGER NOT NULL,
            method TEXT NOT NULL DEFAULT '',
            channel TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'PENDING',
            external_transaction_id TEXT NOT NULL DEFAULT '',
            snap_token TEXT NOT NULL DEFAULT '',
            payment_date DATETIME,
            expires_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS refund_policies (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            days_before_departure INTEGER NOT NULL,
            refund_percentage INTEGER NOT NULL,
            min_fee INTEGER NOT NULL DEFAULT 0,
            max_fee INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS refunds (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            payment_id INTEGER NOT NULL REFERENCES payments(id) ON DELETE CASCADE,
            original_amount INTEGER NOT NULL,
            fee INTEGER NOT NULL,
            percentage REAL NOT NULL,
            refund_amount INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'PENDING',
            reason TEXT NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            requested_by_type TEXT NOT NULL,
            requested_by_id INTEGER,
            processed_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS booking_logs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL REFERENCES bookings(id) ON DELETE CASCADE,
            previous_status TEXT NOT NULL DEFAULT '',
            new_status TEXT NOT NULL,
            changed_by_type TEXT NOT NULL,
            changed_by_id INTEGER,
            notes TEXT NOT NULL DEFAULT '',
            ip_address TEXT NOT NULL DEFAULT '',
            created_at DATETIME NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_status_departure ON bookings(status, departure_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_booking_id ON tickets(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_vehicles_booking_id ON vehicles(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_refunds_booking_id ON refunds(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_logs_booking_id ON booking_logs(booking_id)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Store holds the queries. It runs either on the pool or on a transaction.
type Store struct {
	q      Querier
	logger *zerolog.Logger
	now    func() time.Time
}

func newStore(q Querier, logger *zerolog.Logger) *Store {
	return &Store{q: q, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func notFound(resource string, id any, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundError{Resource: resource, ID: id, Err: err}
	}
	return fmt.Errorf("failed to get %s: %w", resource, err)
}
