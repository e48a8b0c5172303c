package models

import "time"

// DateLayout is the storage and wire format of calendar dates.
const DateLayout = "2006-01-02"

const (
	// DefaultMaxBookingDays how far ahead a departure may be booked
	DefaultMaxBookingDays = 90

	// DefaultPaymentExpiry how long a PENDING payment stays payable
	DefaultPaymentExpiry = 2 * time.Hour

	// DefaultSweepInterval period of the expiry/sync sweeps
	DefaultSweepInterval = 15 * time.Minute

	// DefaultSweepLockTTL upper bound of one sweep run holding the lock
	DefaultSweepLockTTL = 5 * time.Minute

	// RefundPolicyCacheTTL lifetime of cached refund policies
	RefundPolicyCacheTTL = 5 * time.Minute

	// NotifierQueueSize buffered notifications awaiting delivery
	NotifierQueueSize = 256

	// CheckInCompletedNote BookingLog note for the automatic completion
	CheckInCompletedNote = "all passengers checked in"
)

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC date.
func ParseDate(raw string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, raw, time.UTC)
}
