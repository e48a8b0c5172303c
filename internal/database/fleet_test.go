package database

import (
	"context"
	"testing"
	"time"

	"ferrybook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFleet() *models.Fleet {
	return &models.Fleet{
		Routes: []models.Route{{ID: 10, Origin: "Merak", Destination: "Bakauheni", BasePrice: 60000, IsActive: true}},
		Ferries: []models.Ferry{{
			ID: 3, Name: "KMP Portlink", CapacityPassenger: 500, CapacityCar: 40, CapacityTruck: 10, IsActive: true,
		}},
		Schedules: []models.Schedule{{
			ID: 7, RouteID: 10, FerryID: 3, DepartureTime: "08:00", ArrivalTime: "10:30",
			Days: []time.Weekday{time.Monday, time.Friday}, IsActive: true,
		}},
		VehicleCategories: []models.VehicleCategory{{
			ID: 2, Code: "CAR-II", Name: "Sedan", VehicleType: models.VehicleCar, Price: 450000, IsActive: true,
		}},
		OperatorRoutes: []models.OperatorRoute{{OperatorID: 5, RouteID: 10}},
	}
}

func TestSyncFleet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SyncFleet(ctx, testFleet()))

	route, err := db.GetRoute(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Merak", route.Origin)
	assert.Equal(t, int64(60000), route.BasePrice)

	ferry, err := db.GetFerry(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 40, ferry.CapacityCar)

	schedule, err := db.GetSchedule(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, schedule.Days)
	assert.Equal(t, "10:30", schedule.ArrivalTime)

	category, err := db.GetVehicleCategory(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, models.VehicleCar, category.VehicleType)

	routes, err := db.ListOperatorRoutes(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, routes)
}

func TestSyncFleet_UpdatesInPlace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	fleet := testFleet()
	require.NoError(t, db.SyncFleet(ctx, fleet))

	fleet.Routes[0].BasePrice = 65000
	fleet.Ferries[0].CapacityPassenger = 450
	fleet.Schedules[0].IsActive = false
	require.NoError(t, db.SyncFleet(ctx, fleet))

	route, err := db.GetRoute(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(65000), route.BasePrice)

	ferry, err := db.GetFerry(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 450, ferry.CapacityPassenger)

	schedule, err := db.GetSchedule(ctx, 7)
	require.NoError(t, err)
	assert.False(t, schedule.IsActive)

	routes, err := db.ListOperatorRoutes(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, routes, 1)
}

func TestSyncFleet_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	fleet := testFleet()
	fleet.Schedules[0].FerryID = 99

	err := db.SyncFleet(ctx, fleet)
	require.Error(t, err)

	_, err = db.GetRoute(ctx, 10)
	assert.Error(t, err)
}

func TestSyncFleet_Nil(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, db.SyncFleet(context.Background(), nil))
}
