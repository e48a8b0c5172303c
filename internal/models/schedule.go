package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

type Route struct {
	ID          int64     `json:"id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	BasePrice   int64     `json:"base_price"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type Ferry struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	CapacityPassenger  int       `json:"capacity_passenger"`
	CapacityMotorcycle int       `json:"capacity_motorcycle"`
	CapacityCar        int       `json:"capacity_car"`
	CapacityBus        int       `json:"capacity_bus"`
	CapacityTruck      int       `json:"capacity_truck"`
	IsActive           bool      `json:"is_active"`
	CreatedAt          time.Time `json:"created_at"`
}

// Capacity returns the ferry limits as a load.
func (f *Ferry) Capacity() CapacityLoad {
	return CapacityLoad{
		Passengers:  f.CapacityPassenger,
		Motorcycles: f.CapacityMotorcycle,
		Cars:        f.CapacityCar,
		Buses:       f.CapacityBus,
		Trucks:      f.CapacityTruck,
	}
}

// Schedule is a recurring departure. An empty Days list means every day.
type Schedule struct {
	ID            int64          `json:"id"`
	RouteID       int64          `json:"route_id"`
	FerryID       int64          `json:"ferry_id"`
	DepartureTime string         `json:"departure_time"`
	ArrivalTime   string         `json:"arrival_time"`
	Days          []time.Weekday `json:"days"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
}

var rruleWeekdays = map[time.Weekday]rrule.Weekday{
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
	time.Sunday:    rrule.SU,
}

func (s *Schedule) recurrence(from time.Time) (*rrule.RRule, error) {
	opt := rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: DateOnly(from),
	}
	if len(s.Days) > 0 {
		opt.Freq = rrule.WEEKLY
		for _, d := range s.Days {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	}
	return rrule.NewRRule(opt)
}

// OperatesOn reports whether the schedule departs on the given calendar date.
func (s *Schedule) OperatesOn(date time.Time) bool {
	if !s.IsActive {
		return false
	}
	day := DateOnly(date)
	r, err := s.recurrence(day)
	if err != nil {
		return false
	}
	return len(r.Between(day, day.Add(24*time.Hour-time.Nanosecond), true)) > 0
}

// UpcomingDates lists the next n departure dates starting at from (inclusive).
func (s *Schedule) UpcomingDates(from time.Time, n int) []time.Time {
	if n <= 0 || !s.IsActive {
		return nil
	}
	r, err := s.recurrence(from)
	if err != nil {
		return nil
	}
	r.OrigOptions.Count = n
	limited, err := rrule.NewRRule(r.OrigOptions)
	if err != nil {
		return nil
	}
	return limited.All()
}

// DaysString encodes Days for storage as comma separated weekday numbers.
func (s *Schedule) DaysString() string {
	parts := make([]string, 0, len(s.Days))
	for _, d := range s.Days {
		parts = append(parts, strconv.Itoa(int(d)))
	}
	return strings.Join(parts, ",")
}

func ParseDays(raw string) ([]time.Weekday, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var days []time.Weekday
	for _, p := range strings.Split(raw, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("invalid weekday %q", p)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}

type ScheduleDateStatus string

const (
	DateAvailable    ScheduleDateStatus = "AVAILABLE"
	DateUnavailable  ScheduleDateStatus = "UNAVAILABLE"
	DateFull         ScheduleDateStatus = "FULL"
	DateCancelled    ScheduleDateStatus = "CANCELLED"
	DateWeatherIssue ScheduleDateStatus = "WEATHER_ISSUE"
)

func ParseScheduleDateStatus(raw string) (ScheduleDateStatus, error) {
	switch st := ScheduleDateStatus(strings.ToUpper(strings.TrimSpace(raw))); st {
	case DateAvailable, DateUnavailable, DateFull, DateCancelled, DateWeatherIssue:
		return st, nil
	default:
		return "", fmt.Errorf("unknown schedule date status %q", raw)
	}
}

type ScheduleDate struct {
	ID              int64              `json:"id"`
	ScheduleID      int64              `json:"schedule_id"`
	Date            time.Time          `json:"date"`
	PassengerCount  int                `json:"passenger_count"`
	MotorcycleCount int                `json:"motorcycle_count"`
	CarCount        int                `json:"car_count"`
	BusCount        int                `json:"bus_count"`
	TruckCount      int                `json:"truck_count"`
	Status          ScheduleDateStatus `json:"status"`
	StatusReason    string             `json:"status_reason,omitempty"`
	StatusExpiresAt *time.Time         `json:"status_expires_at,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Load returns the reserved counters.
func (d *ScheduleDate) Load() CapacityLoad {
	return CapacityLoad{
		Passengers:  d.PassengerCount,
		Motorcycles: d.MotorcycleCount,
		Cars:        d.CarCount,
		Buses:       d.BusCount,
		Trucks:      d.TruckCount,
	}
}

// StatusExpired is true when a temporary status has run out.
func (d *ScheduleDate) StatusExpired(now time.Time) bool {
	return d.Status != DateAvailable && d.StatusExpiresAt != nil && !d.StatusExpiresAt.After(now)
}

// Availability is a read model of a schedule date against its ferry.
type Availability struct {
	ScheduleID int64              `json:"schedule_id"`
	Date       string             `json:"date"`
	Status     ScheduleDateStatus `json:"status"`
	Reserved   CapacityLoad       `json:"reserved"`
	Capacity   CapacityLoad       `json:"capacity"`
	Remaining  CapacityLoad       `json:"remaining"`
}
