package database

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDB_ErrorPaths(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()
	day := time.Now()

	t.Run("CreateBooking", func(t *testing.T) {
		err := db.CreateBooking(ctx, &models.Booking{BookingCode: "X", PassengerCount: 1, DepartureDate: day})
		assert.Error(t, err)
	})

	t.Run("GetBooking", func(t *testing.T) {
		_, err := db.GetBooking(ctx, 1)
		assert.Error(t, err)
		assert.False(t, domain.IsNotFound(err))
	})

	t.Run("UpdateBookingStatus", func(t *testing.T) {
		err := db.UpdateBookingStatus(ctx, 1, 1, models.BookingCancelled, nil)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrConcurrentModification)
	})

	t.Run("EnsureScheduleDate", func(t *testing.T) {
		_, err := db.EnsureScheduleDate(ctx, 1, day)
		assert.Error(t, err)
	})

	t.Run("ListStaleConfirmedBookings", func(t *testing.T) {
		_, err := db.ListStaleConfirmedBookings(ctx, day)
		assert.Error(t, err)
	})

	t.Run("SetTicketsStatus", func(t *testing.T) {
		_, err := db.SetTicketsStatus(ctx, 1, models.TicketCancelled)
		assert.Error(t, err)
	})

	t.Run("ListRefundPolicies", func(t *testing.T) {
		_, err := db.ListRefundPolicies(ctx, true)
		assert.Error(t, err)
	})

	t.Run("WithTx", func(t *testing.T) {
		err := db.WithTx(ctx, func(domain.Store) error { return nil })
		assert.Error(t, err)
	})
}

func TestWithTx_Mock(t *testing.T) {
	logger := zerolog.New(io.Discard)
	ctx := context.Background()

	t.Run("rollback on error", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()
		db := newDB(sqlDB, &logger)

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET status").
			WithArgs(string(models.BookingConfirmed), sqlmock.AnyArg(), int64(5), int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err = db.WithTx(ctx, func(tx domain.Store) error {
			return tx.UpdateBookingStatus(ctx, 5, 2, models.BookingConfirmed, nil)
		})
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()
		db := newDB(sqlDB, &logger)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO booking_logs").WillReturnResult(sqlmock.NewResult(11, 1))
		mock.ExpectCommit()

		log := models.NewBookingLog(3, models.BookingPending, models.BookingConfirmed, models.SystemActor(), "", "")
		err = db.WithTx(ctx, func(tx domain.Store) error {
			return tx.InsertBookingLog(ctx, log)
		})
		require.NoError(t, err)
		assert.Equal(t, int64(11), log.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("commit failure", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()
		db := newDB(sqlDB, &logger)

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("disk full"))

		err = db.WithTx(ctx, func(domain.Store) error { return nil })
		assert.ErrorContains(t, err, "failed to commit transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
