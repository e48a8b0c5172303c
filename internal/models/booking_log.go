package models

import "time"

// BookingLog is an append-only audit row written on every status change.
type BookingLog struct {
	ID             int64         `json:"id"`
	BookingID      int64         `json:"booking_id"`
	PreviousStatus BookingStatus `json:"previous_status"`
	NewStatus      BookingStatus `json:"new_status"`
	ChangedByType  ActorType     `json:"changed_by_type"`
	ChangedByID    *int64        `json:"changed_by_id,omitempty"`
	Notes          string        `json:"notes,omitempty"`
	IPAddress      string        `json:"ip_address,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// NewBookingLog builds the log row for a transition made by actor.
func NewBookingLog(bookingID int64, from, to BookingStatus, actor Actor, notes, ip string) *BookingLog {
	return &BookingLog{
		BookingID:      bookingID,
		PreviousStatus: from,
		NewStatus:      to,
		ChangedByType:  actor.Type,
		ChangedByID:    actor.NullableID(),
		Notes:          notes,
		IPAddress:      ip,
	}
}
