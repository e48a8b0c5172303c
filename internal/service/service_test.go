package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"ferrybook/internal/database"
	"ferrybook/internal/domain"
	"ferrybook/internal/models"
	"ferrybook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingBus struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBus) PublishJSON(eventType string, _ interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, eventType)
	return nil
}

func (b *recordingBus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

type testEnv struct {
	db        *database.DB
	bus       *recordingBus
	locker    *repository.MemoryLocker
	access    *RouteAccessService
	bookings  *BookingService
	sweeps    *SweepService
	refunds   *RefundService
	payments  *PaymentService
	schedules *ScheduleService

	route    *models.Route
	ferry    *models.Ferry
	schedule *models.Schedule
	car      *models.VehicleCategory
	date     time.Time
}

func newTestEnv(t *testing.T, gateway domain.PaymentGateway) *testEnv {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	env := &testEnv{
		db:     db,
		bus:    &recordingBus{},
		locker: repository.NewMemoryLocker(),
		date:   models.DateOnly(time.Now().UTC().AddDate(0, 0, 3)),
	}
	env.access = NewRouteAccessService(db, time.Minute, &logger)
	env.bookings = NewBookingService(db, env.access, env.bus, 30, time.Hour, &logger)
	env.sweeps = NewSweepService(db, env.locker, env.bus, time.Minute, &logger)
	env.refunds = NewRefundService(db, env.access, env.bus, &logger)
	env.payments = NewPaymentService(db, gateway, env.access, env.bus, &logger)
	env.schedules = NewScheduleService(db, env.access, env.bus, &logger)

	env.route = &models.Route{Origin: "Ketapang", Destination: "Gilimanuk", BasePrice: 60000, IsActive: true}
	require.NoError(t, db.CreateRoute(ctx, env.route))
	env.ferry = &models.Ferry{
		Name:               "KMP Dharma",
		CapacityPassenger:  10,
		CapacityMotorcycle: 1,
		CapacityCar:        2,
		CapacityBus:        1,
		CapacityTruck:      1,
		IsActive:           true,
	}
	require.NoError(t, db.CreateFerry(ctx, env.ferry))
	env.schedule = &models.Schedule{RouteID: env.route.ID, FerryID: env.ferry.ID, DepartureTime: "07:00", ArrivalTime: "08:00", IsActive: true}
	require.NoError(t, db.CreateSchedule(ctx, env.schedule))
	env.car = &models.VehicleCategory{Code: "GOL-IV", Name: "Passenger car", VehicleType: models.VehicleCar, Price: 150000, IsActive: true}
	require.NoError(t, db.CreateVehicleCategory(ctx, env.car))

	return env
}

func (e *testEnv) input(passengers int, vehicles ...VehicleInput) CreateBookingInput {
	in := CreateBookingInput{
		UserID:        42,
		ScheduleID:    e.schedule.ID,
		DepartureDate: e.date.Format(models.DateLayout),
		Vehicles:      vehicles,
	}
	for i := 0; i < passengers; i++ {
		in.Passengers = append(in.Passengers, PassengerInput{Name: "Passenger", IDNumber: "3510000000000001"})
	}
	return in
}

func (e *testEnv) book(t *testing.T, passengers int, vehicles ...VehicleInput) *models.BookingDetails {
	t.Helper()
	d, err := e.bookings.CreateBooking(context.Background(), models.UserActor(42), e.input(passengers, vehicles...), "10.0.0.1")
	require.NoError(t, err)
	return d
}

func (e *testEnv) confirm(t *testing.T, id int64) *models.Booking {
	t.Helper()
	b, err := e.bookings.UpdateStatus(context.Background(), id, models.BookingConfirmed, models.AdminActor(1), "paid at counter", "")
	require.NoError(t, err)
	return b
}

func (e *testEnv) reserved(t *testing.T) models.CapacityLoad {
	t.Helper()
	sd, err := e.db.GetScheduleDate(context.Background(), e.schedule.ID, e.date)
	require.NoError(t, err)
	return sd.Load()
}

func (e *testEnv) logs(t *testing.T, bookingID int64) []*models.BookingLog {
	t.Helper()
	logs, err := e.db.ListBookingLogs(context.Background(), bookingID)
	require.NoError(t, err)
	return logs
}
