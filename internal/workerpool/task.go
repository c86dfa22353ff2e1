package workerpool

import (
	"time"

	"github.com/sharetube/syncspace/internal/resolver"
)

type TaskType string

const (
	TaskFetchTrack         TaskType = "fetch_track"
	TaskVerifyAvailability TaskType = "verify_availability"
	TaskExtractMetadata    TaskType = "extract_metadata"
	TaskBatch              TaskType = "batch"
)

// TrackRequest describes one track to resolve. Exactly one of URL, Query or
// Known is expected to carry the lookup input. Source is the catalog the
// caller needs a playable URL from. SearchSource is the catalog a Query runs
// against and defaults to Source.
type TrackRequest struct {
	URL          string          `json:"url,omitempty"`
	Query        string          `json:"query,omitempty"`
	Source       resolver.Source `json:"source,omitempty"`
	SearchSource resolver.Source `json:"searchSource,omitempty"`
	Known        *resolver.Track `json:"known,omitempty"`
}

type Task struct {
	ID    string         `json:"taskId"`
	Type  TaskType       `json:"type"`
	Track TrackRequest   `json:"track"`
	Batch []TrackRequest `json:"batch,omitempty"`
}

type Metadata struct {
	Source resolver.Source `json:"source"`
	ID     string          `json:"id"`
	URL    string          `json:"url"`
}

type BatchItem struct {
	Index int             `json:"index"`
	Track *resolver.Track `json:"track,omitempty"`
	Error string          `json:"error,omitempty"`
}

type ResultData struct {
	Track     *resolver.Track `json:"track,omitempty"`
	Available *bool           `json:"available,omitempty"`
	Metadata  *Metadata       `json:"metadata,omitempty"`
	Batch     []BatchItem     `json:"batch,omitempty"`
}

type Result struct {
	TaskID         string        `json:"taskId"`
	Success        bool          `json:"success"`
	Data           *ResultData   `json:"data,omitempty"`
	Error          string        `json:"error,omitempty"`
	ProcessingTime time.Duration `json:"processingTime"`
	WorkerID       int           `json:"workerId"`

	err error
}

// Err returns the task failure, if any, keeping its error chain.
func (r *Result) Err() error {
	return r.err
}

type Health struct {
	Workers        int           `json:"workers"`
	Busy           int64         `json:"busy"`
	Uptime         time.Duration `json:"uptime"`
	TasksProcessed int64         `json:"tasksProcessed"`
	TasksFailed    int64         `json:"tasksFailed"`
}
