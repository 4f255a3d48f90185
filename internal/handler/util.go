// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tripcrew/trip-planner/internal/middleware"
	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/internal/pipeline"
	"github.com/tripcrew/trip-planner/internal/service"
	"github.com/tripcrew/trip-planner/internal/store"
	"github.com/tripcrew/trip-planner/pkg/logger"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeBody reads a JSON body into dst and checks its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxed *http.MaxBytesError
		if errors.As(err, &maxed) {
			return err
		}
		return model.NewValidationError("body", "invalid request body")
	}
	return middleware.ValidateStruct(dst)
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("id", "invalid plan id")
	}
	return id, nil
}

// handleError maps domain errors onto HTTP responses.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	var (
		verr  *model.ValidationError
		terr  *pipeline.TimeoutError
		serr  *pipeline.StageError
		maxed *http.MaxBytesError
	)

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  verr.Message,
			"fields": verr.Fields,
		})
	case errors.As(err, &maxed):
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrForbidden):
		writeError(w, http.StatusForbidden, "plan belongs to another user")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "username already taken")
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, http.StatusConflict, "concurrent update, please retry")
	case errors.As(err, &terr):
		log.Warn("pipeline timed out", zap.String("stage", terr.Stage), zap.Duration("limit", terr.Limit))
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{
			"error": terr.Error(),
			"stage": terr.Stage,
		})
	case errors.As(err, &serr):
		log.Error("pipeline stage failed", zap.String("stage", serr.Stage), zap.Error(serr.Err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "itinerary generation failed",
			"stage": serr.Stage,
		})
	case errors.Is(err, service.ErrEventsDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
