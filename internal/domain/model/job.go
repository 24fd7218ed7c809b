package model

import "time"

// Job is a matching run waiting for a solver worker.
type Job struct {
	RunID      string
	RequestID  string
	Drivers    []RawDriver
	Routes     []RawRoute
	EnqueuedAt time.Time
}
