package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tripcrew/trip-planner/internal/middleware"
	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/internal/service"
	"github.com/tripcrew/trip-planner/pkg/logger"
	"github.com/tripcrew/trip-planner/pkg/metrics"
)

const replayBatch = 50

// ActivityHandler exposes a user's plan event history.
type ActivityHandler struct {
	service      *service.PlanService
	pollInterval time.Duration
	heartbeat    time.Duration
}

// NewActivityHandler creates a new activity handler.
func NewActivityHandler(svc *service.PlanService) *ActivityHandler {
	return &ActivityHandler{
		service:      svc,
		pollInterval: 2 * time.Second,
		heartbeat:    30 * time.Second,
	}
}

// ReplayCompleteEvent marks the end of the history replay on a stream.
type ReplayCompleteEvent struct {
	LastSequence uint64 `json:"last_sequence"`
	EventCount   int    `json:"event_count"`
}

// List handles GET /api/v1/plans/activity
// Supports ?after_sequence=N and ?limit=N for paging.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := replayBatch
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	resp, err := h.service.Activity(ctx, middleware.GetUserID(ctx), afterSequence(r), limit)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if resp.Events == nil {
		resp.Events = []model.PlanEvent{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stream handles GET /api/v1/plans/activity/stream
// It replays events after ?after_sequence=N, then polls for new ones until
// the client disconnects.
func (h *ActivityHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	after := afterSequence(r)

	// Fetch the first batch before switching to SSE so errors keep their
	// status codes.
	first, err := h.service.Activity(ctx, userID, after, replayBatch)
	if err != nil {
		handleError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.ActivityStreams.Inc()
	defer metrics.ActivityStreams.Dec()

	log := logger.FromContext(ctx).With(zap.Int64("user_id", userID))

	sendSSEEvent(w, flusher, "connected", map[string]uint64{"after_sequence": after})

	lastSequence := after
	replayed := 0
	resp := first
	for {
		for _, event := range resp.Events {
			if ctx.Err() != nil {
				return
			}
			sendSSEEvent(w, flusher, "plan_event", event)
			replayed++
		}
		if resp.LastSequence > lastSequence {
			lastSequence = resp.LastSequence
		}
		if !resp.HasMore {
			break
		}

		resp, err = h.service.Activity(ctx, userID, lastSequence, replayBatch)
		if err != nil {
			log.Error("failed to replay plan events", zap.Error(err))
			sendSSEEvent(w, flusher, "error", map[string]string{"code": "replay_error"})
			return
		}
	}

	sendSSEEvent(w, flusher, "replay_complete", &ReplayCompleteEvent{
		LastSequence: lastSequence,
		EventCount:   replayed,
	})
	log.Info("activity replay complete", zap.Int("events", replayed), zap.Uint64("last_sequence", lastSequence))

	poll := time.NewTicker(h.pollInterval)
	defer poll.Stop()
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("activity stream closed")
			return

		case <-poll.C:
			resp, err := h.service.Activity(ctx, userID, lastSequence, replayBatch)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("failed to poll plan events", zap.Error(err))
				continue
			}
			for _, event := range resp.Events {
				sendSSEEvent(w, flusher, "plan_event", event)
			}
			if resp.LastSequence > lastSequence {
				lastSequence = resp.LastSequence
			}

		case now := <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", map[string]time.Time{"timestamp": now.UTC()})
		}
	}
}

func afterSequence(r *http.Request) uint64 {
	if s := r.URL.Query().Get("after_sequence"); s != "" {
		if seq, err := strconv.ParseUint(s, 10, 64); err == nil {
			return seq
		}
	}
	return 0
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
	flusher.Flush()

	return nil
}
