package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rumbo/drivermatch/internal/adapters/mq/queue"
	"github.com/rumbo/drivermatch/internal/adapters/repository"
	"github.com/rumbo/drivermatch/internal/domain/matching"
	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/pkg/logger"
	"github.com/rumbo/drivermatch/pkg/metrics"
)

// runRequest is the body of POST /v1/runs.
type runRequest struct {
	RequestID string            `json:"request_id"`
	Drivers   []model.RawDriver `json:"drivers"`
	Routes    []model.RawRoute  `json:"routes"`
}

type ackResponse struct {
	RunID     string            `json:"run_id"`
	Status    repository.Status `json:"status"`
	Duplicate bool              `json:"duplicate"`
}

// RunsHandler serves the /v1/runs resource.
type RunsHandler struct {
	deps         Dependencies
	maxLimit     int
	maxBodyBytes int64
	logger       logger.Logger
}

// NewRunsHandler creates a runs handler.
func NewRunsHandler(deps Dependencies, maxLimit int, maxBodyBytes int64, l logger.Logger) *RunsHandler {
	return &RunsHandler{deps: deps, maxLimit: maxLimit, maxBodyBytes: maxBodyBytes, logger: l}
}

// HandleSubmit handles POST /v1/runs.
//
// Validation runs synchronously so bad input is answered with 422 instead
// of a failed run. A repeated request_id returns the run it created first.
func (h *RunsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req runRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)

	if req.RequestID != "" {
		if run, ok := h.previous(ctx, req.RequestID); ok {
			writeJSON(w, http.StatusOK, ackResponse{RunID: run.ID, Status: run.Status, Duplicate: true})
			return
		}
	}

	if err := h.deps.Validator.Validate(req.Drivers, req.Routes); err != nil {
		metrics.RecordErrorByComponent("api", matching.Reason(err))
		writeError(w, http.StatusUnprocessableEntity, matching.Reason(err), err)
		return
	}

	runID := uuid.NewString()
	if req.RequestID != "" {
		if existing, seen := h.deps.Deduper.Claim(ctx, req.RequestID, runID); seen {
			writeJSON(w, http.StatusOK, ackResponse{RunID: existing, Status: repository.StatusQueued, Duplicate: true})
			return
		}
	}

	run := repository.Run{
		ID:        runID,
		RequestID: req.RequestID,
		Status:    repository.StatusQueued,
		Algorithm: string(h.deps.Validator.Algorithm()),
		Drivers:   len(req.Drivers),
		Routes:    len(req.Routes),
		CreatedAt: time.Now().UTC(),
	}
	if err := h.deps.Store.Create(ctx, run); err != nil {
		h.release(ctx, req.RequestID)
		h.logger.Error(ctx, "create run failed", logger.String("run_id", runID), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	err := h.deps.Queue.Enqueue(ctx, model.Job{
		RunID:      runID,
		RequestID:  req.RequestID,
		Drivers:    req.Drivers,
		Routes:     req.Routes,
		EnqueuedAt: run.CreatedAt,
	})
	if err != nil {
		h.release(ctx, req.RequestID)
		_ = h.deps.Store.Fail(context.WithoutCancel(ctx), runID, "rejected", err.Error(), time.Now().UTC())
		if errors.Is(err, queue.ErrQueueFull) {
			writeError(w, http.StatusTooManyRequests, "backpressure", fmt.Errorf("%w: %v", ErrBackpressure, err))
			return
		}
		writeError(w, http.StatusServiceUnavailable, "unavailable", fmt.Errorf("%w: %v", ErrUnavailable, err))
		return
	}

	metrics.RecordRunSubmitted()
	h.logger.Info(ctx, "run queued",
		logger.String("run_id", runID),
		logger.String("request_id", req.RequestID),
		logger.Int("drivers", run.Drivers),
		logger.Int("routes", run.Routes))
	writeJSON(w, http.StatusAccepted, ackResponse{RunID: runID, Status: repository.StatusQueued})
}

// previous finds the run already created for requestID, first in the
// idempotency memory and then in the store.
func (h *RunsHandler) previous(ctx context.Context, requestID string) (repository.Run, bool) {
	if id, ok := h.deps.Deduper.Lookup(ctx, requestID); ok {
		if run, err := h.deps.Store.Get(ctx, id); err == nil {
			return run, true
		}
		return repository.Run{ID: id, Status: repository.StatusQueued}, true
	}
	run, err := h.deps.Store.GetByRequest(ctx, requestID)
	if err != nil || (run.Status == repository.StatusFailed && run.Reason == "rejected") {
		return repository.Run{}, false
	}
	h.deps.Deduper.Claim(ctx, requestID, run.ID)
	return run, true
}

func (h *RunsHandler) release(ctx context.Context, requestID string) {
	if requestID != "" {
		h.deps.Deduper.Release(ctx, requestID)
	}
}

// HandleGet handles GET /v1/runs/{id}.
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.deps.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleAssignments handles GET /v1/runs/{id}/assignments.
func (h *RunsHandler) HandleAssignments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.requireSucceeded(w, r, id) {
		return
	}
	assignments, err := h.deps.Store.Assignments(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignments)
}

// HandleReport handles GET /v1/runs/{id}/report.
func (h *RunsHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.requireSucceeded(w, r, id) {
		return
	}
	report, err := h.deps.Store.Report(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(report))
}

// requireSucceeded answers 409 while a run has no results yet.
func (h *RunsHandler) requireSucceeded(w http.ResponseWriter, r *http.Request, id string) bool {
	run, err := h.deps.Store.Get(r.Context(), id)
	if err != nil {
		h.storeError(w, err)
		return false
	}
	if run.Status != repository.StatusSucceeded {
		writeError(w, http.StatusConflict, "not_ready",
			fmt.Errorf("run %s is %s", id, run.Status))
		return false
	}
	return true
}

// HandleList handles GET /v1/runs?limit=N.
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest))
			return
		}
		limit = n
	}
	limit = min(limit, h.maxLimit)

	runs, err := h.deps.Store.Recent(r.Context(), limit)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunsHandler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
