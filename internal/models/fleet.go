package models

// OperatorRoute grants an operator check-in rights on a route.
type OperatorRoute struct {
	OperatorID int64 `json:"operator_id"`
	RouteID    int64 `json:"route_id"`
}

// Fleet is the reference data loaded at startup: routes, vessels, timetables
// and vehicle tariffs. IDs are explicit so reloads update rows in place.
type Fleet struct {
	Routes            []Route           `json:"routes"`
	Ferries           []Ferry           `json:"ferries"`
	Schedules         []Schedule        `json:"schedules"`
	VehicleCategories []VehicleCategory `json:"vehicle_categories"`
	OperatorRoutes    []OperatorRoute   `json:"operator_routes"`
}
