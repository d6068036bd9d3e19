package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a job, value, operation, pipeline or
	// workflow id is unknown to the engine.
	ErrNotFound = errors.New("not found")
	// ErrInvalidOperation is returned when an operation id or manifest cannot
	// be resolved.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrNotReady is returned when a result is requested before the job
	// succeeded.
	ErrNotReady = errors.New("job result not ready")
)

// InvalidInputError carries the per-field validation failures reported by
// the engine.
type InvalidInputError struct {
	Invalid map[string]string
}

func (e *InvalidInputError) Error() string {
	fields := make([]string, 0, len(e.Invalid))
	for name := range e.Invalid {
		fields = append(fields, name)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, name := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Invalid[name]))
	}
	return "invalid inputs: " + strings.Join(parts, "; ")
}

// JobFailedError reports that a job finished in the failed state.
type JobFailedError struct {
	JobID   uuid.UUID
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobID, e.Message)
}
