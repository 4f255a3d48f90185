// Package service provides business logic for the trip planner.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tripcrew/trip-planner/internal/dates"
	"github.com/tripcrew/trip-planner/internal/itinerary"
	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/pkg/logger"
	"github.com/tripcrew/trip-planner/pkg/metrics"
)

// Pipeline produces raw itinerary text for a request.
type Pipeline interface {
	Run(ctx context.Context, req model.TripRequest) (string, error)
}

// PlannerService turns trip requests into structured itineraries.
type PlannerService struct {
	pipeline Pipeline
	logger   *logger.Logger
	now      func() time.Time
}

// NewPlannerService creates a new planner service.
func NewPlannerService(p Pipeline, log *logger.Logger) *PlannerService {
	return &PlannerService{
		pipeline: p,
		logger:   log,
		now:      time.Now,
	}
}

// Plan validates the request, resolves its dates, runs the pipeline and
// structures the result. Pipeline errors are returned unchanged.
func (s *PlannerService) Plan(ctx context.Context, req model.TripRequest) (*model.StructuredPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	days := s.resolve(req.DateRange)

	raw, err := s.pipeline.Run(ctx, req)
	if err != nil {
		return nil, err
	}

	plan := itinerary.ToStructured(raw, days)
	if strings.TrimSpace(raw) != "" && !hasActivities(plan) {
		metrics.ParseDegradedTotal.WithLabelValues("itinerary").Inc()
		s.logger.Warn("itinerary text had no dated sections",
			zap.Int("days", len(days)),
			zap.Int("raw_chars", len(raw)),
		)
	}

	return &plan, nil
}

// Calendar builds the placeholder calendar for a request without running the
// pipeline.
func (s *PlannerService) Calendar(req model.TripRequest) (*model.ICSResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	days := s.resolve(req.DateRange)
	title := "Trip"
	if len(req.Cities) > 0 {
		title = "Trip to " + req.Cities[0]
	}

	return &model.ICSResponse{
		ICS:         itinerary.BuildICS(days, title),
		RawMarkdown: itinerary.ICSPlaceholder,
	}, nil
}

func (s *PlannerService) resolve(text string) dates.Sequence {
	days, degraded := dates.Resolve(text, s.now())
	if degraded {
		metrics.ParseDegradedTotal.WithLabelValues("date_range").Inc()
		s.logger.Warn("date range parse degraded",
			zap.String("date_range", text),
			zap.String("start", days.Start().Format(dates.ISOLayout)),
			zap.Int("days", len(days)),
		)
	}
	return days
}

func hasActivities(plan model.StructuredPlan) bool {
	for _, d := range plan.Days {
		if len(d.Activities) > 0 {
			return true
		}
	}
	return false
}
