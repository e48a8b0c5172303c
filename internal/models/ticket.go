package models

import "time"

type TicketStatus string

const (
	TicketActive    TicketStatus = "ACTIVE"
	TicketUsed      TicketStatus = "USED"
	TicketExpired   TicketStatus = "EXPIRED"
	TicketCancelled TicketStatus = "CANCELLED"
)

type BoardingStatus string

const (
	NotBoarded BoardingStatus = "NOT_BOARDED"
	Boarded    BoardingStatus = "BOARDED"
)

type Ticket struct {
	ID             int64          `json:"id"`
	BookingID      int64          `json:"booking_id"`
	TicketCode     string         `json:"ticket_code"`
	PassengerName  string         `json:"passenger_name"`
	IDNumber       string         `json:"id_number,omitempty"`
	Price          int64          `json:"price"`
	Status         TicketStatus   `json:"status"`
	BoardingStatus BoardingStatus `json:"boarding_status"`
	CheckedIn      bool           `json:"checked_in"`
	BoardingTime   *time.Time     `json:"boarding_time,omitempty"`
	VehicleID      *int64         `json:"vehicle_id,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type VehicleCategory struct {
	ID          int64       `json:"id"`
	Code        string      `json:"code"`
	Name        string      `json:"name"`
	VehicleType VehicleType `json:"vehicle_type"`
	Price       int64       `json:"price"`
	IsActive    bool        `json:"is_active"`
}

type Vehicle struct {
	ID           int64       `json:"id"`
	BookingID    int64       `json:"booking_id"`
	CategoryID   int64       `json:"category_id"`
	Type         VehicleType `json:"type"`
	LicensePlate string      `json:"license_plate"`
	Price        int64       `json:"price"`
	CreatedAt    time.Time   `json:"created_at"`
}
