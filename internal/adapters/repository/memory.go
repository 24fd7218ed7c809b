package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rumbo/drivermatch/internal/domain/model"
)

// MemoryStore keeps runs in process memory. It backs the service when no
// store path is configured and is safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	runs        map[string]*Run
	order       []string // creation order
	assignments map[string][]model.Assignment
	reports     map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:        make(map[string]*Run),
		assignments: make(map[string][]model.Assignment),
		reports:     make(map[string]string),
	}
}

// Create implements Store.
func (m *MemoryStore) Create(_ context.Context, run Run) error {
	defer observe("create", time.Now())
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; ok {
		return fmt.Errorf("%w: %s", ErrConflict, run.ID)
	}
	if run.Status == "" {
		run.Status = StatusQueued
	}
	run.CreatedAt = run.CreatedAt.Truncate(time.Millisecond)
	m.runs[run.ID] = &run
	m.order = append(m.order, run.ID)
	return nil
}

func (m *MemoryStore) update(id string, fn func(*Run)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(run)
	return nil
}

// MarkRunning implements Store.
func (m *MemoryStore) MarkRunning(_ context.Context, id string, at time.Time) error {
	defer observe("mark_running", time.Now())
	return m.update(id, func(r *Run) {
		r.Status = StatusRunning
		r.StartedAt = &at
	})
}

// Complete implements Store.
func (m *MemoryStore) Complete(_ context.Context, id string, out Outcome, at time.Time) error {
	defer observe("complete", time.Now())
	err := m.update(id, func(r *Run) {
		sum, tm := out.Summary, out.Timings
		r.Status = StatusSucceeded
		r.Summary = &sum
		r.Timings = &tm
		r.FinishedAt = &at
	})
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.assignments[id] = slices.Clone(out.Assignments)
	m.reports[id] = out.Report
	m.mu.Unlock()
	return nil
}

// Fail implements Store.
func (m *MemoryStore) Fail(_ context.Context, id, reason, message string, at time.Time) error {
	defer observe("fail", time.Now())
	return m.update(id, func(r *Run) {
		r.Status = StatusFailed
		r.Reason = reason
		r.Error = message
		r.FinishedAt = &at
	})
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (Run, error) {
	defer observe("get", time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *run, nil
}

// GetByRequest implements Store.
func (m *MemoryStore) GetByRequest(_ context.Context, requestID string) (Run, error) {
	defer observe("get_by_request", time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()
	if requestID != "" {
		for i := len(m.order) - 1; i >= 0; i-- {
			if run := m.runs[m.order[i]]; run.RequestID == requestID {
				return *run, nil
			}
		}
	}
	return Run{}, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
}

// Assignments implements Store.
func (m *MemoryStore) Assignments(_ context.Context, id string) ([]model.Assignment, error) {
	defer observe("assignments", time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	out := slices.Clone(m.assignments[id])
	if out == nil {
		out = []model.Assignment{}
	}
	return out, nil
}

// Report implements Store.
func (m *MemoryStore) Report(_ context.Context, id string) (string, error) {
	defer observe("report", time.Now())
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[id]; !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.reports[id], nil
}

// Recent implements Store.
func (m *MemoryStore) Recent(_ context.Context, limit int) ([]Run, error) {
	defer observe("recent", time.Now())
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Run, 0, min(limit, len(m.order)))
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *m.runs[m.order[i]])
	}
	return out, nil
}

// Count implements Store.
func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
