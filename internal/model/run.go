package model

import (
	"time"
)

// RunStatus represents the current state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records a single invocation of a pipeline command.
type Run struct {
	ID         string         `json:"id"`
	Command    string         `json:"command"`
	Status     RunStatus      `json:"status"`
	Stats      map[string]int `json:"stats,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// IngestStat is an append-only counter event recorded during ingestion.
type IngestStat struct {
	Event     string    `json:"event"`
	Count     int       `json:"count"`
	CreatedAt time.Time `json:"created_at"`
}
