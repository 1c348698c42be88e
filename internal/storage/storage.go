package storage

import (
	"context"
	"time"
)

// RunStatus is the outcome of a recorded run.
type RunStatus string

const (
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
)

// Run is one executed snippet as kept in history.
type Run struct {
	ID          string    `json:"id"`
	Interpreter string    `json:"interpreter"`
	Language    string    `json:"language"`
	Level       string    `json:"level"`
	Input       string    `json:"input"`
	Args        []string  `json:"args,omitempty"`
	Status      RunStatus `json:"status"`
	Output      string    `json:"output"`
	ErrorKind   string    `json:"error_kind,omitempty"`
	ErrorText   string    `json:"error_text,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

// RunListOptions controls filtering and pagination for ListRuns.
type RunListOptions struct {
	Interpreter string
	Status      RunStatus
	Limit       int
	Offset      int
}

// Store is the persistence interface for run history.
type Store interface {
	// CreateRun inserts a run. The ID field must be set by the caller.
	CreateRun(ctx context.Context, r *Run) error

	// GetRun returns a run by ID or ID prefix.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs ordered by created_at descending.
	ListRuns(ctx context.Context, opts RunListOptions) ([]Run, error)

	// DeleteRun removes a run.
	DeleteRun(ctx context.Context, id string) error

	// PruneRuns keeps the newest keep runs and deletes the rest. It returns
	// the number of deleted runs.
	PruneRuns(ctx context.Context, keep int) (int64, error)

	// Close releases resources.
	Close() error
}
