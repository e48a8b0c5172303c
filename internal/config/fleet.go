package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"ferrybook/internal/models"

	"gopkg.in/yaml.v3"
)

type fleetFile struct {
	Routes            []routeEntry    `yaml:"routes"`
	Ferries           []ferryEntry    `yaml:"ferries"`
	Schedules         []scheduleEntry `yaml:"schedules"`
	VehicleCategories []categoryEntry `yaml:"vehicle_categories"`
	Operators         []operatorEntry `yaml:"operators"`
}

type routeEntry struct {
	ID          int64  `yaml:"id"`
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
	BasePrice   int64  `yaml:"base_price"`
	Inactive    bool   `yaml:"inactive"`
}

type ferryEntry struct {
	ID       int64  `yaml:"id"`
	Name     string `yaml:"name"`
	Inactive bool   `yaml:"inactive"`
	Capacity struct {
		Passengers  int `yaml:"passengers"`
		Motorcycles int `yaml:"motorcycles"`
		Cars        int `yaml:"cars"`
		Buses       int `yaml:"buses"`
		Trucks      int `yaml:"trucks"`
	} `yaml:"capacity"`
}

type scheduleEntry struct {
	ID        int64    `yaml:"id"`
	RouteID   int64    `yaml:"route_id"`
	FerryID   int64    `yaml:"ferry_id"`
	Departure string   `yaml:"departure"`
	Arrival   string   `yaml:"arrival"`
	Days      []string `yaml:"days"`
	Inactive  bool     `yaml:"inactive"`
}

type categoryEntry struct {
	ID          int64  `yaml:"id"`
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	VehicleType string `yaml:"vehicle_type"`
	Price       int64  `yaml:"price"`
	Inactive    bool   `yaml:"inactive"`
}

type operatorEntry struct {
	ID     int64   `yaml:"id"`
	Routes []int64 `yaml:"routes"`
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// LoadFleet reads the reference data file. Environment variables are
// expanded the same way as in the main config.
func LoadFleet(path string) (*models.Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file fleetFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &file); err != nil {
		return nil, fmt.Errorf("failed to parse fleet file: %w", err)
	}

	fleet, err := file.toFleet()
	if err != nil {
		return nil, fmt.Errorf("fleet validation failed: %w", err)
	}
	return fleet, nil
}

func (f *fleetFile) toFleet() (*models.Fleet, error) {
	fleet := &models.Fleet{}
	routes := make(map[int64]bool)
	ferries := make(map[int64]bool)

	for _, r := range f.Routes {
		if r.ID <= 0 || routes[r.ID] {
			return nil, fmt.Errorf("route id %d is missing or duplicated", r.ID)
		}
		if strings.TrimSpace(r.Origin) == "" || strings.TrimSpace(r.Destination) == "" {
			return nil, fmt.Errorf("route %d: origin and destination are required", r.ID)
		}
		if r.BasePrice < 0 {
			return nil, fmt.Errorf("route %d: base price must not be negative", r.ID)
		}
		routes[r.ID] = true
		fleet.Routes = append(fleet.Routes, models.Route{
			ID:          r.ID,
			Origin:      r.Origin,
			Destination: r.Destination,
			BasePrice:   r.BasePrice,
			IsActive:    !r.Inactive,
		})
	}

	for _, fe := range f.Ferries {
		if fe.ID <= 0 || ferries[fe.ID] {
			return nil, fmt.Errorf("ferry id %d is missing or duplicated", fe.ID)
		}
		c := fe.Capacity
		if c.Passengers <= 0 {
			return nil, fmt.Errorf("ferry %d: passenger capacity must be positive", fe.ID)
		}
		if c.Motorcycles < 0 || c.Cars < 0 || c.Buses < 0 || c.Trucks < 0 {
			return nil, fmt.Errorf("ferry %d: vehicle capacity must not be negative", fe.ID)
		}
		ferries[fe.ID] = true
		fleet.Ferries = append(fleet.Ferries, models.Ferry{
			ID:                 fe.ID,
			Name:               fe.Name,
			CapacityPassenger:  c.Passengers,
			CapacityMotorcycle: c.Motorcycles,
			CapacityCar:        c.Cars,
			CapacityBus:        c.Buses,
			CapacityTruck:      c.Trucks,
			IsActive:           !fe.Inactive,
		})
	}

	seen := make(map[int64]bool)
	for _, s := range f.Schedules {
		if s.ID <= 0 || seen[s.ID] {
			return nil, fmt.Errorf("schedule id %d is missing or duplicated", s.ID)
		}
		if !routes[s.RouteID] {
			return nil, fmt.Errorf("schedule %d: unknown route %d", s.ID, s.RouteID)
		}
		if !ferries[s.FerryID] {
			return nil, fmt.Errorf("schedule %d: unknown ferry %d", s.ID, s.FerryID)
		}
		if _, err := time.Parse("15:04", s.Departure); err != nil {
			return nil, fmt.Errorf("schedule %d: departure must be HH:MM", s.ID)
		}
		if s.Arrival != "" {
			if _, err := time.Parse("15:04", s.Arrival); err != nil {
				return nil, fmt.Errorf("schedule %d: arrival must be HH:MM", s.ID)
			}
		}
		days, err := parseWeekdays(s.Days)
		if err != nil {
			return nil, fmt.Errorf("schedule %d: %w", s.ID, err)
		}
		seen[s.ID] = true
		fleet.Schedules = append(fleet.Schedules, models.Schedule{
			ID:            s.ID,
			RouteID:       s.RouteID,
			FerryID:       s.FerryID,
			DepartureTime: s.Departure,
			ArrivalTime:   s.Arrival,
			Days:          days,
			IsActive:      !s.Inactive,
		})
	}

	seen = make(map[int64]bool)
	codes := make(map[string]bool)
	for _, c := range f.VehicleCategories {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if c.ID <= 0 || seen[c.ID] {
			return nil, fmt.Errorf("vehicle category id %d is missing or duplicated", c.ID)
		}
		if code == "" || codes[code] {
			return nil, fmt.Errorf("vehicle category %d: code is missing or duplicated", c.ID)
		}
		vt, err := models.ParseVehicleType(c.VehicleType)
		if err != nil {
			return nil, fmt.Errorf("vehicle category %d: %w", c.ID, err)
		}
		if c.Price < 0 {
			return nil, fmt.Errorf("vehicle category %d: price must not be negative", c.ID)
		}
		seen[c.ID] = true
		codes[code] = true
		fleet.VehicleCategories = append(fleet.VehicleCategories, models.VehicleCategory{
			ID:          c.ID,
			Code:        code,
			Name:        c.Name,
			VehicleType: vt,
			Price:       c.Price,
			IsActive:    !c.Inactive,
		})
	}

	for _, op := range f.Operators {
		if op.ID <= 0 {
			return nil, fmt.Errorf("operator id %d must be positive", op.ID)
		}
		for _, routeID := range op.Routes {
			if !routes[routeID] {
				return nil, fmt.Errorf("operator %d: unknown route %d", op.ID, routeID)
			}
			fleet.OperatorRoutes = append(fleet.OperatorRoutes, models.OperatorRoute{OperatorID: op.ID, RouteID: routeID})
		}
	}

	return fleet, nil
}

// parseWeekdays accepts three letter day names. No days means daily.
func parseWeekdays(names []string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}
