package database

import (
	"context"
	"testing"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureScheduleDate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db, models.Ferry{CapacityPassenger: 500})

	first, err := db.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	second, err := db.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.DateAvailable, second.Status)
	assert.True(t, second.Load().IsZero())
	assert.Equal(t, f.date.Format(models.DateLayout), second.Date.Format(models.DateLayout))
}

func TestReserveCapacity_PassengerLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db, models.Ferry{CapacityPassenger: 500, CapacityCar: 10})
	capacity := f.ferry.Capacity()

	sd, err := db.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	require.NoError(t, db.ReserveCapacity(ctx, sd, capacity, models.CapacityLoad{Passengers: 498}))
	assert.Equal(t, 498, sd.PassengerCount)

	err = db.ReserveCapacity(ctx, sd, capacity, models.CapacityLoad{Passengers: 3})
	var exceeded domain.CapacityExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, models.ClassPassenger, exceeded.Class)

	stored, err := db.GetScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	assert.Equal(t, 498, stored.PassengerCount)

	require.NoError(t, db.ReserveCapacity(ctx, stored, capacity, models.CapacityLoad{Passengers: 2}))
	assert.Equal(t, 500, stored.PassengerCount)
}

func TestReserveCapacity_VehicleClass(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db, models.Ferry{CapacityPassenger: 100, CapacityCar: 1})
	capacity := f.ferry.Capacity()

	sd, err := db.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	require.NoError(t, db.ReserveCapacity(ctx, sd, capacity, models.CapacityLoad{Passengers: 2, Cars: 1}))

	err = db.ReserveCapacity(ctx, sd, capacity, models.CapacityLoad{Passengers: 1, Cars: 1})
	var exceeded domain.CapacityExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, models.ClassCar, exceeded.Class)

	// a full car deck does not block foot passengers
	require.NoError(t, db.ReserveCapacity(ctx, sd, capacity, models.CapacityLoad{Passengers: 1}))

	stored, err := db.GetScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	assert.Equal(t, models.CapacityLoad{Passengers: 3, Cars: 1}, stored.Load())
}

func TestReserveCapacity_UnavailableDate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db, models.Ferry{CapacityPassenger: 100})

	sd, err := db.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	require.NoError(t, db.SetScheduleDateStatus(ctx, sd.ID, models.DateCancelled, "dry dock", nil))

	err = db.ReserveCapacity(ctx, sd, f.ferry.Capacity(), models.CapacityLoad{Passengers: 1})
	assert.ErrorIs(t, err, domain.ErrScheduleUnavailable)
}

func TestReleaseCapacity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db, models.Ferry{CapacityPassenger: 100, CapacityMotorcycle: 20, CapacityTruck: 4})
	load := models.CapacityLoad{Passengers: 3, Motorcycles: 1, Trucks: 1}

	sd, err := db.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	require.NoError(t, db.ReserveCapacity(ctx, sd, f.ferry.Capacity(), load))
	require.NoError(t, db.ReleaseCapacity(ctx, f.schedule.ID, f.date, load))

	stored, err := db.GetScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	assert.True(t, stored.Load().IsZero())

	// releasing more than reserved clamps at zero
	require.NoError(t, db.ReleaseCapacity(ctx, f.schedule.ID, f.date, models.CapacityLoad{Passengers: 2}))
	stored, err = db.GetScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.PassengerCount)

	err = db.ReleaseCapacity(ctx, f.schedule.ID, f.date.AddDate(0, 0, 1), models.CapacityLoad{Passengers: 1})
	assert.True(t, domain.IsNotFound(err))
}

func TestTemporaryStatusExpires(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db, models.Ferry{CapacityPassenger: 100})

	sd, err := db.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)

	past := time.Now().Add(-time.Minute)
	require.NoError(t, db.SetScheduleDateStatus(ctx, sd.ID, models.DateWeatherIssue, "high waves", &past))

	stored, err := db.GetScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	assert.Equal(t, models.DateAvailable, stored.Status)
	assert.Empty(t, stored.StatusReason)
	assert.Nil(t, stored.StatusExpiresAt)

	future := time.Now().Add(time.Hour)
	require.NoError(t, db.SetScheduleDateStatus(ctx, sd.ID, models.DateWeatherIssue, "high waves", &future))
	stored, err = db.GetScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	assert.Equal(t, models.DateWeatherIssue, stored.Status)
	assert.Equal(t, "high waves", stored.StatusReason)
	require.NotNil(t, stored.StatusExpiresAt)

	err = db.SetScheduleDateStatus(ctx, 999, models.DateFull, "", nil)
	assert.True(t, domain.IsNotFound(err))
}
