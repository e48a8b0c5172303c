package database

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcurrentReservations(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "concurrency.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	f := seedFixture(t, db, models.Ferry{CapacityPassenger: 1})

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- db.WithTx(ctx, func(tx domain.Store) error {
				sd, err := tx.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
				if err != nil {
					return err
				}
				if err := tx.ReserveCapacity(ctx, sd, f.ferry.Capacity(), models.CapacityLoad{Passengers: 1}); err != nil {
					return err
				}
				return tx.CreateBooking(ctx, &models.Booking{
					BookingCode:    "FRY-" + uuid.NewString()[:8],
					UserID:         1,
					ScheduleID:     f.schedule.ID,
					DepartureDate:  f.date,
					PassengerCount: 1,
				})
			})
		}()
	}

	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		var exceeded domain.CapacityExceededError
		assert.True(t, errors.As(err, &exceeded), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, successCount, "exactly one reservation should fit")

	sd, err := db.GetScheduleDate(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	assert.Equal(t, 1, sd.PassengerCount)

	counts, err := db.CountBookingsByStatus(ctx, f.schedule.ID, f.date)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[models.BookingPending])
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db, models.Ferry{CapacityPassenger: 10})

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx domain.Store) error {
		sd, err := tx.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
		if err != nil {
			return err
		}
		if err := tx.ReserveCapacity(ctx, sd, f.ferry.Capacity(), models.CapacityLoad{Passengers: 4}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = db.GetScheduleDate(ctx, f.schedule.ID, f.date)
	assert.True(t, domain.IsNotFound(err), "schedule date insert must be rolled back")
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	f := seedFixture(t, db, models.Ferry{CapacityPassenger: 10})

	assert.Panics(t, func() {
		_ = db.WithTx(ctx, func(tx domain.Store) error {
			if _, err := tx.EnsureScheduleDate(ctx, f.schedule.ID, f.date); err != nil {
				return err
			}
			panic("unexpected")
		})
	})

	_, err := db.GetScheduleDate(ctx, f.schedule.ID, f.date)
	assert.True(t, domain.IsNotFound(err))

	// pool is usable again after the panic
	_, err = db.EnsureScheduleDate(ctx, f.schedule.ID, f.date)
	assert.NoError(t, err)
}
