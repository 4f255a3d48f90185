package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/pkg/logger"
	"github.com/tripcrew/trip-planner/pkg/metrics"
)

// ErrEventsDisabled is returned by Activity when no event stream is
// configured.
var ErrEventsDisabled = errors.New("plan events are disabled")

// PlanStore is the persistence the plan service needs.
type PlanStore interface {
	SavePlan(ctx context.Context, userID int64, title string, data model.JSONMap, notes *string, rating *int) (int64, int, error)
	ListPlans(ctx context.Context, userID int64) ([]model.PlanSummary, error)
	ListVersions(ctx context.Context, planID, userID int64) ([]model.PlanVersion, error)
	ToggleFavorite(ctx context.Context, planID, userID int64) (bool, error)
	Replan(ctx context.Context, planID, versionID int64, feedback string, userID int64) (int64, int, error)
	DeletePlan(ctx context.Context, planID, userID int64) error
}

// EventStream publishes and reads plan events.
type EventStream interface {
	PublishPlanEvent(ctx context.Context, event *model.PlanEvent) (uint64, error)
	RecentEvents(ctx context.Context, userID int64, afterSequence uint64, limit int) ([]model.PlanEvent, uint64, bool, error)
}

// PlanService handles saved plans, their versions and favorites.
type PlanService struct {
	store  PlanStore
	events EventStream
	logger *logger.Logger
}

// NewPlanService creates a new plan service. events may be nil.
func NewPlanService(store PlanStore, events EventStream, log *logger.Logger) *PlanService {
	return &PlanService{
		store:  store,
		events: events,
		logger: log,
	}
}

// Save appends a version to the user's plan with the request title.
func (s *PlanService) Save(ctx context.Context, userID int64, req *model.SavePlanRequest) (*model.SavePlanResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, model.NewValidationError("title", "title is required")
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		return nil, model.NewValidationError("rating", "rating must be between 1 and 5")
	}

	planID, version, err := s.store.SavePlan(ctx, userID, title, req.Data, req.Notes, req.Rating)
	if err != nil {
		return nil, err
	}

	metrics.PlanVersionsTotal.WithLabelValues("save").Inc()
	s.logger.Info("plan version saved",
		zap.Int64("user_id", userID),
		zap.Int64("plan_id", planID),
		zap.Int("version", version),
	)
	s.publish(ctx, &model.PlanEvent{
		UserID:  userID,
		PlanID:  planID,
		Type:    model.EventTypeVersionCreated,
		Version: version,
		Source:  "save",
	})

	return &model.SavePlanResponse{PlanID: planID, Version: version}, nil
}

// List returns the user's plans.
func (s *PlanService) List(ctx context.Context, userID int64) ([]model.PlanSummary, error) {
	return s.store.ListPlans(ctx, userID)
}

// Versions returns a plan's versions, newest first.
func (s *PlanService) Versions(ctx context.Context, userID, planID int64) ([]model.PlanVersion, error) {
	return s.store.ListVersions(ctx, planID, userID)
}

// ToggleFavorite flips the favorite flag of a plan.
func (s *PlanService) ToggleFavorite(ctx context.Context, userID, planID int64) (*model.FavoriteResponse, error) {
	active, err := s.store.ToggleFavorite(ctx, planID, userID)
	if err != nil {
		return nil, err
	}

	metrics.FavoritesToggledTotal.WithLabelValues(strconv.FormatBool(active)).Inc()
	s.publish(ctx, &model.PlanEvent{
		UserID: userID,
		PlanID: planID,
		Type:   model.EventTypeFavoriteToggled,
		Active: &active,
	})

	return &model.FavoriteResponse{Active: active}, nil
}

// Replan records feedback against a stored version as the plan's next
// version. The itinerary itself is not regenerated.
func (s *PlanService) Replan(ctx context.Context, userID int64, req *model.ReplanRequest) (*model.SavePlanResponse, error) {
	feedback := strings.TrimSpace(req.Feedback)
	if feedback == "" {
		return nil, model.NewValidationError("feedback", "feedback is required")
	}

	planID, version, err := s.store.Replan(ctx, req.PlanID, req.Version, feedback, userID)
	if err != nil {
		return nil, err
	}

	metrics.PlanVersionsTotal.WithLabelValues("replan").Inc()
	s.logger.Info("plan replanned",
		zap.Int64("user_id", userID),
		zap.Int64("plan_id", planID),
		zap.Int64("from_version_id", req.Version),
		zap.Int("version", version),
	)
	s.publish(ctx, &model.PlanEvent{
		UserID:   userID,
		PlanID:   planID,
		Type:     model.EventTypeVersionCreated,
		Version:  version,
		Source:   "replan",
		Metadata: map[string]any{"from_version_id": req.Version},
	})

	return &model.SavePlanResponse{PlanID: planID, Version: version}, nil
}

// Delete removes a plan and its history.
func (s *PlanService) Delete(ctx context.Context, userID, planID int64) error {
	if err := s.store.DeletePlan(ctx, planID, userID); err != nil {
		return err
	}

	s.logger.Info("plan deleted", zap.Int64("user_id", userID), zap.Int64("plan_id", planID))
	s.publish(ctx, &model.PlanEvent{
		UserID: userID,
		PlanID: planID,
		Type:   model.EventTypePlanDeleted,
	})
	return nil
}

// Activity returns the user's recent plan events after a stream sequence.
func (s *PlanService) Activity(ctx context.Context, userID int64, after uint64, limit int) (*model.ActivityResponse, error) {
	if s.events == nil {
		return nil, ErrEventsDisabled
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	events, last, hasMore, err := s.events.RecentEvents(ctx, userID, after, limit)
	if err != nil {
		return nil, err
	}
	return &model.ActivityResponse{Events: events, LastSequence: last, HasMore: hasMore}, nil
}

// publish sends an event best effort. Failures are logged and counted, never
// returned, since the store write already succeeded.
func (s *PlanService) publish(ctx context.Context, event *model.PlanEvent) {
	if s.events == nil {
		return
	}
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.CreatedAt = time.Now().UTC()

	if _, err := s.events.PublishPlanEvent(ctx, event); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "error").Inc()
		s.logger.Warn("failed to publish plan event",
			zap.String("type", string(event.Type)),
			zap.Int64("plan_id", event.PlanID),
			zap.Error(err),
		)
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(string(event.Type), "ok").Inc()
}
