package itinerary

import (
	"github.com/tripcrew/trip-planner/internal/model"
)

// kmPerLeg is the flat distance assumed between consecutive points.
const kmPerLeg = 2.0

var speedsKmh = map[string]float64{
	"walking": 4.5,
	"driving": 40.0,
	"transit": 25.0,
}

// EstimateRoute returns a rough distance and duration for travelling through
// points in order. The path is echoed back unchanged.
func EstimateRoute(points []model.Point, mode string) model.RouteEstimate {
	legs := len(points) - 1
	if legs < 1 {
		legs = 1
	}

	speed, ok := speedsKmh[mode]
	if !ok {
		speed = 5.0
	}

	distance := kmPerLeg * float64(legs)
	return model.RouteEstimate{
		DistanceKm:  distance,
		DurationMin: distance / speed * 60.0,
		Path:        points,
	}
}
