package model

// MaxActivitiesPerDay caps the activity list of a single day.
const MaxActivitiesPerDay = 10

// DayPlan is one calendar day of a structured itinerary.
type DayPlan struct {
	Date       string   `json:"date"`
	Activities []string `json:"activities"`
	Meals      []string `json:"meals,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// StructuredPlan is the day-indexed form of a generated itinerary. RawMarkdown
// keeps the generated text verbatim.
type StructuredPlan struct {
	Summary        string         `json:"summary"`
	Days           []DayPlan      `json:"days"`
	BudgetEstimate map[string]any `json:"budget_estimate,omitempty"`
	RawMarkdown    string         `json:"raw_markdown"`
}

// Point is a map coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteRequest is the body of POST /route.
type RouteRequest struct {
	Points []Point `json:"points" validate:"required,min=1,max=200"`
	Mode   string  `json:"mode" validate:"omitempty,oneof=walking driving transit"`
}

// RouteEstimate is a rough distance and duration for a sequence of points.
type RouteEstimate struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
	Path        []Point `json:"path"`
}
