package models

import "time"

// Refresh run statuses.
const (
	RunStatusSuccess = "success"
	RunStatusError   = "error"
)

// RefreshRun records the outcome of one update cycle.
type RefreshRun struct {
	StartedAt  time.Time
	Endpoint   EndpointKind
	Status     string
	Error      string
	ID         int64
	DurationMs int64
	Points     int
}

// Failed reports whether the cycle ended in an error.
func (r RefreshRun) Failed() bool {
	return r.Status == RunStatusError
}
