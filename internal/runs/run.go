// Package runs records aggregation runs and drives them end to end.
package runs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrHistoryDisabled is returned by List when no store is configured.
var ErrHistoryDisabled = errors.New("run history is disabled")

// Run is the metadata of one aggregation run. Records and reports are not
// kept.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	Registry     string     `json:"registry"`
	Status       Status     `json:"status"`
	Sources      int        `json:"sources"`
	Records      int        `json:"records"`
	Error        string     `json:"error,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
	FailedSource string     `json:"failed_source,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

func NewRun(registry string, sources int) *Run {
	return &Run{
		ID:        uuid.New(),
		Registry:  registry,
		Status:    StatusRunning,
		Sources:   sources,
		StartedAt: time.Now().UTC(),
	}
}

// Duration is zero while the run is in flight.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Recorder persists run metadata.
type Recorder interface {
	Start(ctx context.Context, run *Run) error
	Finish(ctx context.Context, run *Run) error
}

// Store is a Recorder that can also list past runs, newest first.
type Store interface {
	Recorder
	List(ctx context.Context, limit int) ([]*Run, error)
}

// NopStore keeps nothing.
type NopStore struct{}

func (NopStore) Start(context.Context, *Run) error  { return nil }
func (NopStore) Finish(context.Context, *Run) error { return nil }

func (NopStore) List(context.Context, int) ([]*Run, error) {
	return nil, ErrHistoryDisabled
}
