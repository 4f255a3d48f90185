package store

import "errors"

var (
	// ErrNotFound is returned when a plan, version or user does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the plan belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrVersionConflict is returned when concurrent writers kept colliding on
	// the same version number. The request can be retried.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate is returned when a username is already taken.
	ErrDuplicate = errors.New("already exists")
)
