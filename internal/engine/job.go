package engine

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates the lifecycle states reported by the engine.
type JobStatus string

const (
	StatusQueued  JobStatus = "queued"
	StatusRunning JobStatus = "running"
	StatusSuccess JobStatus = "success"
	StatusFailed  JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Valid reports whether s is one of the known states.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Manifest is a fully resolved operation plus configuration.
type Manifest struct {
	ModuleType   string         `json:"module_type"`
	ModuleConfig map[string]any `json:"module_config"`
	OperationID  string         `json:"operation_id,omitempty"`
}

// JobRequest references the operation to run. Exactly one of OperationID and
// Manifest is set.
type JobRequest struct {
	OperationID string
	Manifest    *Manifest
	Inputs      map[string]any
}

// Job is the engine-side record of one execution request.
type Job struct {
	ID          uuid.UUID      `json:"job_id"`
	OperationID string         `json:"operation_id,omitempty"`
	Manifest    *Manifest      `json:"manifest,omitempty"`
	Inputs      map[string]any `json:"inputs"`
	Status      JobStatus      `json:"status"`
	Submitted   Timestamp      `json:"submitted"`
	Started     *Timestamp     `json:"started"`
	Finished    *Timestamp     `json:"finished"`
	Error       *string        `json:"error"`
}

// Timestamp is a point in time that encodes without sub-second precision.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// TimestampPtr returns nil for the zero time.
func TimestampPtr(t time.Time) *Timestamp {
	if t.IsZero() {
		return nil
	}
	ts := NewTimestamp(t)
	return &ts
}

// MarshalJSON truncates (never rounds) to whole seconds.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Truncate(time.Second).Format(time.RFC3339) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := time.Parse(`"`+time.RFC3339+`"`, string(b))
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
