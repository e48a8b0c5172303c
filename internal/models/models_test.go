package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingStatus_CanTransitionTo(t *testing.T) {
	allowed := map[BookingStatus][]BookingStatus{
		BookingPending:   {BookingConfirmed, BookingCancelled},
		BookingConfirmed: {BookingCompleted, BookingCancelled},
	}

	for _, from := range AllBookingStatuses() {
		for _, to := range AllBookingStatuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestBookingStatus_IsTerminal(t *testing.T) {
	assert.True(t, BookingCancelled.IsTerminal())
	assert.True(t, BookingCompleted.IsTerminal())
	assert.True(t, BookingRefunded.IsTerminal())
	assert.True(t, BookingExpired.IsTerminal())
	assert.False(t, BookingPending.IsTerminal())
	assert.False(t, BookingConfirmed.IsTerminal())
}

func TestParseBookingStatus(t *testing.T) {
	st, err := ParseBookingStatus(" confirmed ")
	require.NoError(t, err)
	assert.Equal(t, BookingConfirmed, st)

	_, err = ParseBookingStatus("boarding")
	assert.Error(t, err)
}

func TestVehicleType_CapacityClass(t *testing.T) {
	tests := []struct {
		vt   VehicleType
		want CapacityClass
	}{
		{VehicleMotorcycle, ClassMotorcycle},
		{VehicleCar, ClassCar},
		{VehiclePickup, ClassCar},
		{VehicleBus, ClassBus},
		{VehicleTruck, ClassTruck},
		{VehicleTronton, ClassTruck},
	}
	for _, tt := range tests {
		t.Run(string(tt.vt), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.vt.CapacityClass())
		})
	}

	_, err := ParseVehicleType("boat")
	assert.Error(t, err)
}

func TestLoadFor(t *testing.T) {
	vehicles := []*Vehicle{
		{Type: VehicleMotorcycle},
		{Type: VehicleMotorcycle},
		{Type: VehiclePickup},
		{Type: VehicleTronton},
	}
	load := LoadFor(3, vehicles)
	assert.Equal(t, CapacityLoad{Passengers: 3, Motorcycles: 2, Cars: 1, Trucks: 1}, load)
	assert.Equal(t, 4, load.Vehicles())
}

func TestCapacityLoad_FirstExceeded(t *testing.T) {
	limit := CapacityLoad{Passengers: 500, Motorcycles: 10, Cars: 5}
	current := CapacityLoad{Passengers: 498, Motorcycles: 10}

	class, ok := current.FirstExceeded(CapacityLoad{Passengers: 3}, limit)
	assert.True(t, ok)
	assert.Equal(t, ClassPassenger, class)

	class, ok = current.FirstExceeded(CapacityLoad{Passengers: 2, Motorcycles: 1}, limit)
	assert.True(t, ok)
	assert.Equal(t, ClassMotorcycle, class)

	_, ok = current.FirstExceeded(CapacityLoad{Passengers: 2, Cars: 5}, limit)
	assert.False(t, ok)
}

func TestCapacityLoad_Sub(t *testing.T) {
	a := CapacityLoad{Passengers: 3, Cars: 1}
	b := CapacityLoad{Passengers: 5, Cars: 1, Buses: 2}
	assert.Equal(t, CapacityLoad{}, a.Sub(b))
	assert.Equal(t, CapacityLoad{Passengers: 2, Buses: 2}, b.Sub(a))
}

func TestSchedule_OperatesOn(t *testing.T) {
	s := &Schedule{IsActive: true, Days: []time.Weekday{time.Monday, time.Friday}}

	monday := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	assert.True(t, s.OperatesOn(monday))
	assert.False(t, s.OperatesOn(monday.AddDate(0, 0, 1)))
	assert.True(t, s.OperatesOn(monday.AddDate(0, 0, 4)))

	daily := &Schedule{IsActive: true}
	assert.True(t, daily.OperatesOn(monday.AddDate(0, 0, 2)))

	inactive := &Schedule{}
	assert.False(t, inactive.OperatesOn(monday))
}

func TestSchedule_UpcomingDates(t *testing.T) {
	s := &Schedule{IsActive: true, Days: []time.Weekday{time.Monday, time.Friday}}
	from := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	dates := s.UpcomingDates(from, 3)
	require.Len(t, dates, 3)
	assert.Equal(t, "2026-10-19", dates[0].Format(DateLayout))
	assert.Equal(t, "2026-10-23", dates[1].Format(DateLayout))
	assert.Equal(t, "2026-10-26", dates[2].Format(DateLayout))
}

func TestParseDays(t *testing.T) {
	s := &Schedule{Days: []time.Weekday{time.Sunday, time.Wednesday}}
	days, err := ParseDays(s.DaysString())
	require.NoError(t, err)
	assert.Equal(t, s.Days, days)

	_, err = ParseDays("1,9")
	assert.Error(t, err)
}

func TestActor(t *testing.T) {
	assert.Equal(t, "system", SystemActor().String())
	assert.Nil(t, SystemActor().NullableID())
	assert.Equal(t, "operator:7", OperatorActor(7).String())
	assert.Equal(t, int64(7), *OperatorActor(7).NullableID())
	assert.True(t, AdminActor(1).Privileged())
	assert.False(t, UserActor(1).Privileged())
	assert.Equal(t, "Passenger #3", UserActor(3).Label())
}

func TestBooking_DaysBeforeDeparture(t *testing.T) {
	now := time.Date(2026, 10, 19, 22, 30, 0, 0, time.UTC)
	b := &Booking{DepartureDate: time.Date(2026, 10, 29, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 10, b.DaysBeforeDeparture(now))
	assert.False(t, b.HasDeparted(now))

	b.DepartureDate = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, b.DaysBeforeDeparture(now))
	assert.True(t, b.HasDeparted(now))
}

func TestRefundStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, RefundPending.CanTransitionTo(RefundApproved))
	assert.True(t, RefundApproved.CanTransitionTo(RefundProcessing))
	assert.True(t, RefundProcessing.CanTransitionTo(RefundCompleted))
	assert.False(t, RefundRejected.CanTransitionTo(RefundApproved))
	assert.False(t, RefundPending.CanTransitionTo(RefundCompleted))
}

func TestPayment_IsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	p := &Payment{Status: PaymentPending, ExpiresAt: &past}
	assert.True(t, p.IsExpired(now))

	p.Status = PaymentSuccess
	assert.False(t, p.IsExpired(now))
}
