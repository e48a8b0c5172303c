package models

import (
	"fmt"
	"strings"
	"time"
)

type BookingStatus string

const (
	BookingPending       BookingStatus = "PENDING"
	BookingConfirmed     BookingStatus = "CONFIRMED"
	BookingCancelled     BookingStatus = "CANCELLED"
	BookingCompleted     BookingStatus = "COMPLETED"
	BookingExpired       BookingStatus = "EXPIRED"
	BookingRefundPending BookingStatus = "REFUND_PENDING"
	BookingRefunded      BookingStatus = "REFUNDED"
	BookingRescheduled   BookingStatus = "RESCHEDULED"
)

// bookingTransitions lists the manually requested transitions. Sweeps and the
// refund workflow move bookings outside of this table.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

var allBookingStatuses = []BookingStatus{
	BookingPending,
	BookingConfirmed,
	BookingCancelled,
	BookingCompleted,
	BookingExpired,
	BookingRefundPending,
	BookingRefunded,
	BookingRescheduled,
}

func (s BookingStatus) String() string {
	return string(s)
}

func (s BookingStatus) IsValid() bool {
	for _, st := range allBookingStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether a manual status change from s to next is allowed.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingCancelled, BookingCompleted, BookingRefunded, BookingExpired:
		return true
	default:
		return false
	}
}

func ParseBookingStatus(raw string) (BookingStatus, error) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !st.IsValid() {
		return "", fmt.Errorf("unknown booking status %q", raw)
	}
	return st, nil
}

// AllBookingStatuses returns every known status in declaration order.
func AllBookingStatuses() []BookingStatus {
	out := make([]BookingStatus, len(allBookingStatuses))
	copy(out, allBookingStatuses)
	return out
}

const (
	ChannelWeb     = "WEB"
	ChannelMobile  = "MOBILE"
	ChannelCounter = "COUNTER"
)

type Booking struct {
	ID                 int64         `json:"id"`
	BookingCode        string        `json:"booking_code"`
	UserID             int64         `json:"user_id"`
	ScheduleID         int64         `json:"schedule_id"`
	RouteID            int64         `json:"route_id"`
	DepartureDate      time.Time     `json:"departure_date"`
	PassengerCount     int           `json:"passenger_count"`
	VehicleCount       int           `json:"vehicle_count"`
	TotalAmount        int64         `json:"total_amount"`
	Status             BookingStatus `json:"status"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	Channel            string        `json:"channel"`
	Version            int64         `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// DaysBeforeDeparture counts whole calendar days between now and the departure date.
func (b *Booking) DaysBeforeDeparture(now time.Time) int {
	today := DateOnly(now)
	dep := DateOnly(b.DepartureDate)
	days := int(dep.Sub(today).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// HasDeparted is true once the departure date lies strictly before today.
func (b *Booking) HasDeparted(now time.Time) bool {
	return DateOnly(b.DepartureDate).Before(DateOnly(now))
}

// BookingDetails is a booking together with the rows it owns.
type BookingDetails struct {
	Booking  *Booking      `json:"booking"`
	Tickets  []*Ticket     `json:"tickets"`
	Vehicles []*Vehicle    `json:"vehicles"`
	Payments []*Payment    `json:"payments"`
	Refunds  []*Refund     `json:"refunds"`
	Logs     []*BookingLog `json:"logs"`
}
