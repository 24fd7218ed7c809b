// Package repository persists matching runs, their assignments and reports.
package repository

import (
	"context"
	"time"

	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/internal/domain/result"
)

// Status is the lifecycle state of a run.
type Status string

// Run statuses.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Timings are stage durations in milliseconds.
type Timings struct {
	NormalizeMS float64 `json:"normalize_ms"`
	BuildMS     float64 `json:"build_matrix_ms"`
	SolveMS     float64 `json:"solve_ms"`
	AssembleMS  float64 `json:"assemble_ms"`
}

// Run is one submitted matching job.
type Run struct {
	ID         string          `json:"run_id"`
	RequestID  string          `json:"request_id,omitempty"`
	Status     Status          `json:"status"`
	Algorithm  string          `json:"algorithm"`
	Drivers    int             `json:"drivers"`
	Routes     int             `json:"routes"`
	Reason     string          `json:"reason,omitempty"`
	Error      string          `json:"error,omitempty"`
	Summary    *result.Summary `json:"summary,omitempty"`
	Timings    *Timings        `json:"timings,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

// Outcome is what a successful run stores.
type Outcome struct {
	Summary     result.Summary
	Timings     Timings
	Assignments []model.Assignment
	Report      string
}

// Store provides read/write access to run history.
type Store interface {
	// Create inserts a queued run. Returns ErrConflict if the id exists.
	Create(ctx context.Context, run Run) error
	// MarkRunning moves a run to running.
	MarkRunning(ctx context.Context, id string, at time.Time) error
	// Complete stores the outcome and marks the run succeeded.
	Complete(ctx context.Context, id string, out Outcome, at time.Time) error
	// Fail marks the run failed with a reason label and message.
	Fail(ctx context.Context, id, reason, message string, at time.Time) error

	// Get returns a run or ErrNotFound.
	Get(ctx context.Context, id string) (Run, error)
	// GetByRequest finds the run created for a client request id.
	GetByRequest(ctx context.Context, requestID string) (Run, error)
	// Assignments returns the ranked assignments of a succeeded run.
	Assignments(ctx context.Context, id string) ([]model.Assignment, error)
	// Report returns the text report of a succeeded run.
	Report(ctx context.Context, id string) (string, error)
	// Recent returns up to limit runs, newest first.
	Recent(ctx context.Context, limit int) ([]Run, error)
	// Count returns the number of stored runs.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Open returns a SQLiteStore for path, or a MemoryStore when path is empty.
func Open(ctx context.Context, path string, opts ...Option) (Store, error) {
	if path == "" {
		return NewMemoryStore(), nil
	}
	return OpenSQLite(ctx, path, opts...)
}
