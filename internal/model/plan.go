package model

import (
	"time"
)

// User is a registered traveler. Only the credential hash is stored.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Plan is a named trip plan owned by exactly one user.
type Plan struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Title     string    `db:"title" json:"title"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlanVersion is one immutable snapshot of a plan's structured data.
type PlanVersion struct {
	ID        int64     `db:"id" json:"id"`
	PlanID    int64     `db:"plan_id" json:"plan_id"`
	Version   int       `db:"version" json:"version"`
	Data      JSONMap   `db:"data" json:"data"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	Rating    *int      `db:"rating" json:"rating,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// PlanSummary is one row of a user's plan list.
type PlanSummary struct {
	ID            int64  `db:"id" json:"id"`
	Title         string `db:"title" json:"title"`
	LatestVersion int    `db:"latest_version" json:"latest_version"`
}

// Favorite marks a plan as favored by a user. There is at most one row per
// (user, plan); toggling flips Active.
type Favorite struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	PlanID    int64     `db:"plan_id" json:"plan_id"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SavePlanRequest is the body of POST /plans/save.
type SavePlanRequest struct {
	Title  string  `json:"title" validate:"required,max=200"`
	Data   JSONMap `json:"data" validate:"required"`
	Notes  *string `json:"notes,omitempty" validate:"omitempty,max=10000"`
	Rating *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}

// SavePlanResponse identifies the version a save or replan produced.
type SavePlanResponse struct {
	PlanID  int64 `json:"plan_id"`
	Version int   `json:"version"`
}

// ReplanRequest is the body of POST /plans/replan. Version is the id of a
// row returned by GET /plans/{id}/versions; PlanID, when set, must be that
// version's plan.
type ReplanRequest struct {
	PlanID   int64  `json:"plan_id" validate:"omitempty,gt=0"`
	Version  int64  `json:"version" validate:"required,gt=0"`
	Feedback string `json:"feedback" validate:"required,max=10000"`
}

// FavoriteResponse is returned by POST /plans/{id}/favorite.
type FavoriteResponse struct {
	Active bool `json:"active"`
}

// CredentialsRequest is the body of the register and login endpoints.
type CredentialsRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}
