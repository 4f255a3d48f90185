package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched by errors.Is when a run exceeds its deadline.
	ErrTimeout = errors.New("pipeline timed out")
	// ErrStageFailure is matched by errors.Is when a stage's generation fails.
	ErrStageFailure = errors.New("pipeline stage failed")
)

// TimeoutError reports a run that hit the global deadline. Partial output is
// discarded.
type TimeoutError struct {
	Limit time.Duration
	// Stage is the stage that was running when the deadline passed.
	Stage string
}

func (e *TimeoutError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("pipeline timed out after %s", e.Limit)
	}
	return fmt.Sprintf("pipeline timed out after %s during stage %s", e.Limit, e.Stage)
}

func (e *TimeoutError) Unwrap() error { return ErrTimeout }

// StageError carries the failing stage and the underlying cause.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() []error { return []error{ErrStageFailure, e.Err} }
