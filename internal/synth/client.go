package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rumbo/drivermatch/internal/domain/model"
	"github.com/rumbo/drivermatch/internal/domain/result"
)

// Terminal run statuses reported by the service.
const (
	statusSucceeded = "succeeded"
	statusFailed    = "failed"
)

// ErrRunFailed is returned by Wait when the run ends in the failed state.
var ErrRunFailed = errors.New("run failed")

// Ack is the service response to a submitted fleet.
type Ack struct {
	RunID     string `json:"run_id"`
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// RunStatus is the subset of a run record the client inspects.
type RunStatus struct {
	RunID   string          `json:"run_id"`
	Status  string          `json:"status"`
	Reason  string          `json:"reason,omitempty"`
	Error   string          `json:"error,omitempty"`
	Summary *result.Summary `json:"summary,omitempty"`
}

// APIError is a non-success response from the service.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("drivermatch: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client submits synthetic fleets to a running drivermatch service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// CheckHealth fails unless GET /healthz answers 200.
func (c *Client) CheckHealth(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Submit posts a fleet under requestID.
func (c *Client) Submit(ctx context.Context, requestID string, drivers []model.RawDriver, routes []model.RawRoute) (Ack, error) {
	body := map[string]any{
		"request_id": requestID,
		"drivers":    drivers,
		"routes":     routes,
	}
	var ack Ack
	err := c.do(ctx, http.MethodPost, "/v1/runs", body, &ack)
	return ack, err
}

// Run fetches the current state of a run.
func (c *Client) Run(ctx context.Context, runID string) (RunStatus, error) {
	var st RunStatus
	err := c.do(ctx, http.MethodGet, "/v1/runs/"+runID, nil, &st)
	return st, err
}

// Wait polls the run every interval until it succeeds, fails or ctx ends.
func (c *Client) Wait(ctx context.Context, runID string, interval time.Duration) (RunStatus, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := c.Run(ctx, runID)
		if err != nil {
			return st, err
		}
		switch st.Status {
		case statusSucceeded:
			return st, nil
		case statusFailed:
			return st, fmt.Errorf("%w: %s: %s", ErrRunFailed, st.Reason, st.Error)
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}
