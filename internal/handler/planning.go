package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/tripcrew/trip-planner/internal/itinerary"
	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/internal/service"
	"github.com/tripcrew/trip-planner/pkg/logger"
)

// PlanningHandler handles itinerary generation and its stateless helpers.
type PlanningHandler struct {
	planner *service.PlannerService
}

// NewPlanningHandler creates a new planning handler.
func NewPlanningHandler(planner *service.PlannerService) *PlanningHandler {
	return &PlanningHandler{planner: planner}
}

// Plan handles POST /api/v1/plan
func (h *PlanningHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req model.PlanRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	trip := req.TripRequest()
	logger.FromContext(r.Context()).Info("planning trip",
		zap.String("origin", trip.Origin),
		zap.Strings("cities", trip.Cities),
		zap.String("date_range", trip.DateRange),
	)

	plan, err := h.planner.Plan(r.Context(), trip)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

// Calendar handles POST /api/v1/plan/ics
func (h *PlanningHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	var req model.PlanRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	resp, err := h.planner.Calendar(req.TripRequest())
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Route handles POST /api/v1/route
func (h *PlanningHandler) Route(w http.ResponseWriter, r *http.Request) {
	var req model.RouteRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, itinerary.EstimateRoute(req.Points, req.Mode))
}
