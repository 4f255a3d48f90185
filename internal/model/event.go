package model

import (
	"time"
)

// EventType represents the type of plan event.
type EventType string

const (
	EventTypeVersionCreated  EventType = "version.created"
	EventTypeFavoriteToggled EventType = "favorite.toggled"
	EventTypePlanDeleted     EventType = "deleted"
)

// PlanEvent is published whenever a plan's history or favorite state changes.
type PlanEvent struct {
	ID        string         `json:"id"`
	UserID    int64          `json:"user_id"`
	PlanID    int64          `json:"plan_id"`
	Type      EventType      `json:"type"`
	Version   int            `json:"version,omitempty"`
	Source    string         `json:"source,omitempty"`
	Active    *bool          `json:"active,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Sequence  uint64         `json:"sequence,omitempty"`
}

// ActivityResponse lists a user's recent plan events.
type ActivityResponse struct {
	Events       []PlanEvent `json:"events"`
	LastSequence uint64      `json:"last_sequence"`
	HasMore      bool        `json:"has_more"`
}
