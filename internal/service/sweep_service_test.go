package service

import (
	"context"
	"testing"
	"time"

	"ferrybook/internal/domain"
	"ferrybook/internal/events"
	"ferrybook/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedBooking stores a booking directly, bypassing the date checks of CreateBooking.
func seedBooking(t *testing.T, env *testEnv, date time.Time, status models.BookingStatus, tickets ...models.TicketStatus) *models.Booking {
	t.Helper()
	ctx := context.Background()
	b := &models.Booking{
		BookingCode:    "FRY-" + uuid.NewString()[:8],
		UserID:         42,
		ScheduleID:     env.schedule.ID,
		DepartureDate:  date,
		PassengerCount: len(tickets),
		TotalAmount:    int64(len(tickets)) * env.route.BasePrice,
		Status:         status,
	}
	require.NoError(t, env.db.CreateBooking(ctx, b))
	for _, st := range tickets {
		require.NoError(t, env.db.CreateTicket(ctx, &models.Ticket{
			BookingID:     b.ID,
			TicketCode:    "TKT-" + uuid.NewString()[:8],
			PassengerName: "Passenger",
			Price:         env.route.BasePrice,
			Status:        st,
		}))
	}
	return b
}

func TestSweepService_ExpireTickets(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	yesterday := models.DateOnly(time.Now().UTC().AddDate(0, 0, -1))

	departed := seedBooking(t, env, yesterday, models.BookingConfirmed, models.TicketActive, models.TicketActive, models.TicketExpired)
	pending := seedBooking(t, env, yesterday, models.BookingPending, models.TicketActive)
	future := seedBooking(t, env, env.date, models.BookingConfirmed, models.TicketActive)

	res, err := env.sweeps.ExpireTickets(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tickets expired", res.Message)
	assert.Equal(t, 1, res.Counts["bookings"])
	assert.Equal(t, 2, res.Counts["tickets_expired"])
	assert.Equal(t, 0, res.Counts["failed"])

	tickets, err := env.db.ListTickets(ctx, departed.ID)
	require.NoError(t, err)
	for _, tk := range tickets {
		assert.Equal(t, models.TicketExpired, tk.Status)
	}
	for _, id := range []int64{pending.ID, future.ID} {
		tickets, err := env.db.ListTickets(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.TicketActive, tickets[0].Status)
	}

	b, err := env.db.GetBooking(ctx, departed.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, b.Status, "expiring tickets leaves the booking status alone")

	res, err = env.sweeps.ExpireTickets(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Counts["tickets_expired"])
}

func TestSweepService_SyncBookingStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	yesterday := models.DateOnly(time.Now().UTC().AddDate(0, 0, -1))

	departed := seedBooking(t, env, yesterday, models.BookingConfirmed, models.TicketActive)
	allExpired := seedBooking(t, env, env.date, models.BookingConfirmed, models.TicketExpired, models.TicketExpired)
	upcoming := seedBooking(t, env, env.date, models.BookingConfirmed, models.TicketActive, models.TicketExpired)
	cancelled := seedBooking(t, env, yesterday, models.BookingCancelled, models.TicketCancelled)

	res, err := env.sweeps.SyncBookingStatus(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Counts["checked"])
	assert.Equal(t, 2, res.Counts["expired"])
	assert.Equal(t, 0, res.Counts["skipped"])

	expectations := map[int64]models.BookingStatus{
		departed.ID:   models.BookingExpired,
		allExpired.ID: models.BookingExpired,
		upcoming.ID:   models.BookingConfirmed,
		cancelled.ID:  models.BookingCancelled,
	}
	for id, want := range expectations {
		b, err := env.db.GetBooking(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, b.Status, "booking %d", id)
	}

	logs := env.logs(t, departed.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, models.BookingConfirmed, logs[0].PreviousStatus)
	assert.Equal(t, models.BookingExpired, logs[0].NewStatus)
	assert.Equal(t, models.ActorSystem, logs[0].ChangedByType)
	assert.Nil(t, logs[0].ChangedByID)
	assert.Equal(t, departedNote, logs[0].Notes)

	logs = env.logs(t, allExpired.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, ticketsExpiredNote, logs[0].Notes)

	assert.Equal(t, []string{events.EventBookingExpired, events.EventBookingExpired}, env.bus.Types())

	res, err = env.sweeps.SyncBookingStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Counts["checked"])
}

func TestSweepService_LockHeld(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	token, ok, err := env.locker.Acquire(ctx, "sweep:"+SweepExpireTickets, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.sweeps.ExpireTickets(ctx)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.True(t, IsSkipped(err))

	_, err = env.sweeps.SyncBookingStatus(ctx)
	assert.NoError(t, err, "sweeps lock independently")

	require.NoError(t, env.locker.Release(ctx, "sweep:"+SweepExpireTickets, token))
	_, err = env.sweeps.ExpireTickets(ctx)
	assert.NoError(t, err)

	token, ok, err = env.locker.Acquire(ctx, "sweep:"+SweepExpireTickets, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "lock is released after a run")
	require.NoError(t, env.locker.Release(ctx, "sweep:"+SweepExpireTickets, token))
}

func TestSweepService_Result(t *testing.T) {
	env := newTestEnv(t, nil)

	res := env.sweeps.result(map[string]int{"expired": 3, "failed": 1}, "booking statuses synchronized")
	assert.False(t, res.Success)
	assert.Equal(t, "booking statuses synchronized with 1 failures", res.Message)
}
