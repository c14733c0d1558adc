package models

import "time"

// Report summarises one crawl pass over a single domain. Exactly one report
// is produced per pass, success or failure; a skipped tick produces a report
// with Skipped set.
type Report struct {
	Domain         string    `json:"domain"`
	StartedAt      time.Time `json:"started_at"`
	Checked        int       `json:"checked"`
	Found          int       `json:"found"`
	Changed        []string  `json:"changed"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	Skipped        bool      `json:"skipped,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// PoolStats is a point-in-time view of the browser pool.
type PoolStats struct {
	MaxSize  int `json:"max_size"`
	Idle     int `json:"idle"`
	Borrowed int `json:"borrowed"`
}

// HealthResponse is the payload of GET /api/v1/health.
type HealthResponse struct {
	Status         string    `json:"status"`
	Uptime         string    `json:"uptime"`
	SchedulerState string    `json:"scheduler_state"`
	PoolStats      PoolStats `json:"pool"`
	Version        string    `json:"version"`
}

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
