package models

import (
	"fmt"
	"strings"
)

// CapacityClass is one of the counters kept per schedule date.
type CapacityClass string

const (
	ClassPassenger  CapacityClass = "passenger"
	ClassMotorcycle CapacityClass = "motorcycle"
	ClassCar        CapacityClass = "car"
	ClassBus        CapacityClass = "bus"
	ClassTruck      CapacityClass = "truck"
)

// CapacityClasses in the order reservations are checked.
var CapacityClasses = []CapacityClass{ClassPassenger, ClassMotorcycle, ClassCar, ClassBus, ClassTruck}

type VehicleType string

const (
	VehicleMotorcycle VehicleType = "MOTORCYCLE"
	VehicleCar        VehicleType = "CAR"
	VehiclePickup     VehicleType = "PICKUP"
	VehicleBus        VehicleType = "BUS"
	VehicleTruck      VehicleType = "TRUCK"
	VehicleTronton    VehicleType = "TRONTON"
)

func ParseVehicleType(raw string) (VehicleType, error) {
	vt := VehicleType(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := vehicleClasses[vt]; !ok {
		return "", fmt.Errorf("unknown vehicle type %q", raw)
	}
	return vt, nil
}

var vehicleClasses = map[VehicleType]CapacityClass{
	VehicleMotorcycle: ClassMotorcycle,
	VehicleCar:        ClassCar,
	VehiclePickup:     ClassCar,
	VehicleBus:        ClassBus,
	VehicleTruck:      ClassTruck,
	VehicleTronton:    ClassTruck,
}

// CapacityClass maps a vehicle type onto the deck slot it occupies.
func (t VehicleType) CapacityClass() CapacityClass {
	return vehicleClasses[t]
}

// CapacityLoad is a quantity per capacity class.
type CapacityLoad struct {
	Passengers  int `json:"passengers"`
	Motorcycles int `json:"motorcycles"`
	Cars        int `json:"cars"`
	Buses       int `json:"buses"`
	Trucks      int `json:"trucks"`
}

// LoadFor counts passengers and vehicles of a booking per class.
func LoadFor(passengers int, vehicles []*Vehicle) CapacityLoad {
	load := CapacityLoad{Passengers: passengers}
	for _, v := range vehicles {
		load = load.Add(v.Type.CapacityClass(), 1)
	}
	return load
}

func (l CapacityLoad) Get(c CapacityClass) int {
	switch c {
	case ClassPassenger:
		return l.Passengers
	case ClassMotorcycle:
		return l.Motorcycles
	case ClassCar:
		return l.Cars
	case ClassBus:
		return l.Buses
	case ClassTruck:
		return l.Trucks
	default:
		return 0
	}
}

func (l CapacityLoad) Add(c CapacityClass, n int) CapacityLoad {
	switch c {
	case ClassPassenger:
		l.Passengers += n
	case ClassMotorcycle:
		l.Motorcycles += n
	case ClassCar:
		l.Cars += n
	case ClassBus:
		l.Buses += n
	case ClassTruck:
		l.Trucks += n
	}
	return l
}

func (l CapacityLoad) Vehicles() int {
	return l.Motorcycles + l.Cars + l.Buses + l.Trucks
}

func (l CapacityLoad) IsZero() bool {
	return l == CapacityLoad{}
}

// Sub subtracts o, never going below zero per class.
func (l CapacityLoad) Sub(o CapacityLoad) CapacityLoad {
	out := CapacityLoad{}
	for _, c := range CapacityClasses {
		if v := l.Get(c) - o.Get(c); v > 0 {
			out = out.Add(c, v)
		}
	}
	return out
}

// FirstExceeded returns the first class where l+add would exceed limit.
func (l CapacityLoad) FirstExceeded(add, limit CapacityLoad) (CapacityClass, bool) {
	for _, c := range CapacityClasses {
		if add.Get(c) > 0 && l.Get(c)+add.Get(c) > limit.Get(c) {
			return c, true
		}
	}
	return "", false
}
