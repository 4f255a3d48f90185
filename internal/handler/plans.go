package handler

import (
	"net/http"

	"github.com/tripcrew/trip-planner/internal/middleware"
	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/internal/service"
)

// PlanHandler handles saved plan endpoints. All routes require auth.
type PlanHandler struct {
	service *service.PlanService
}

// NewPlanHandler creates a new plan handler.
func NewPlanHandler(svc *service.PlanService) *PlanHandler {
	return &PlanHandler{service: svc}
}

// Save handles POST /api/v1/plans/save
func (h *PlanHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req model.SavePlanRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	resp, err := h.service.Save(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /api/v1/plans
func (h *PlanHandler) List(w http.ResponseWriter, r *http.Request) {
	plans, err := h.service.List(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleError(w, r, err)
		return
	}
	if plans == nil {
		plans = []model.PlanSummary{}
	}

	writeJSON(w, http.StatusOK, plans)
}

// Versions handles GET /api/v1/plans/{id}/versions
func (h *PlanHandler) Versions(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	versions, err := h.service.Versions(r.Context(), middleware.GetUserID(r.Context()), planID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if versions == nil {
		versions = []model.PlanVersion{}
	}

	writeJSON(w, http.StatusOK, versions)
}

// Favorite handles POST /api/v1/plans/{id}/favorite
func (h *PlanHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp, err := h.service.ToggleFavorite(r.Context(), middleware.GetUserID(r.Context()), planID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Replan handles POST /api/v1/plans/replan
func (h *PlanHandler) Replan(w http.ResponseWriter, r *http.Request) {
	var req model.ReplanRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	resp, err := h.service.Replan(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		handleError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/plans/{id}
func (h *PlanHandler) Delete(w http.ResponseWriter, r *http.Request) {
	planID, err := pathID(r)
	if err != nil {
		handleError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), planID); err != nil {
		handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
