// Package jobs implements the background execution layer: a task model, an
// abstract queue with in-memory and Redis implementations, and a worker-pool
// runner that executes import and notification jobs off the request path.
//
// Ordering guarantees are intentionally minimal: one import job runs on one
// worker from start to finish, so its chunk commits and progress writes are
// strictly sequential; notification jobs run concurrently with everything
// else and are only guaranteed to have been enqueued after the mutating
// write committed.
package jobs

import (
	"encoding/json"
	"time"
)

// Kind discriminates task payloads.
type Kind string

const (
	// KindImport runs a CSV import job.
	KindImport Kind = "import"
	// KindNotify fans an event out to webhook subscriptions.
	KindNotify Kind = "notify"
)

// ImportPayload carries an import job's inputs.
type ImportPayload struct {
	FilePath string `json:"file_path"`
	JobID    string `json:"job_id"`
}

// NotifyPayload carries a notification job's event and serialized data
// snapshot. Data is kept as raw JSON so the task round-trips through Redis
// without reshaping the payload.
type NotifyPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Task is one unit of background work. Exactly one of Import / Notify is set,
// matching Kind.
type Task struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Import    *ImportPayload `json:"import,omitempty"`
	Notify    *NotifyPayload `json:"notify,omitempty"`
	Attempts  int            `json:"attempts"`
	CreatedAt time.Time      `json:"created_at"`
}
