// Package progress – Tracker.
//
// The Tracker is the single writer of a job's progress. Each call replaces
// the previous snapshot wholesale and re-arms the retention window, so a
// reader polling GetProgress either sees a complete snapshot or nothing.
package progress

import (
	"context"
	"encoding/json"
	"time"
)

// Terminal snapshot states. A reader stops polling once it sees one.
const (
	StatusComplete = "complete"
	StatusError    = "error"
)

// Snapshot is the complete progress state of one job at one point in time.
//
// Status carries a human-readable message while the job runs (for example
// "Processed 3000/10000 products...") and the literal "complete" or "error"
// once the job is done. Percentage is always derived from Progress and Total
// at write time, never stored independently.
type Snapshot struct {
	Progress   int    `json:"progress"`
	Status     string `json:"status"`
	Total      int    `json:"total,omitempty"`
	Percentage int    `json:"percentage"`
	Message    string `json:"message,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Terminal reports whether the snapshot is in a final state.
func (s *Snapshot) Terminal() bool {
	return s.Status == StatusComplete || s.Status == StatusError
}

// Tracker publishes progress snapshots for import jobs.
type Tracker struct {
	store Store
	ttl   time.Duration
}

// NewTracker returns a Tracker writing through store with the given
// retention window per snapshot.
func NewTracker(store Store, ttl time.Duration) *Tracker {
	return &Tracker{store: store, ttl: ttl}
}

func progressKey(jobID string) string { return "progress:" + jobID }

// percentage computes the integer progress percentage, 0 when total <= 0.
func percentage(processed, total int) int {
	if total <= 0 {
		return 0
	}
	return processed * 100 / total
}

func (t *Tracker) put(ctx context.Context, jobID string, s Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, progressKey(jobID), b, t.ttl)
}

// SetProgress publishes a running snapshot for jobID.
func (t *Tracker) SetProgress(ctx context.Context, jobID string, processed int, status string, total int) error {
	return t.put(ctx, jobID, Snapshot{
		Progress:   processed,
		Status:     status,
		Total:      total,
		Percentage: percentage(processed, total),
	})
}

// SetError publishes a terminal error snapshot for jobID.
func (t *Tracker) SetError(ctx context.Context, jobID, errMsg string) error {
	return t.put(ctx, jobID, Snapshot{
		Status: StatusError,
		Error:  errMsg,
	})
}

// SetComplete publishes a terminal success snapshot for jobID.
func (t *Tracker) SetComplete(ctx context.Context, jobID, message string) error {
	return t.put(ctx, jobID, Snapshot{
		Progress:   100,
		Status:     StatusComplete,
		Percentage: 100,
		Message:    message,
	})
}

// GetProgress returns the current snapshot for jobID, or (nil, nil) when no
// snapshot exists (never written, or expired). Callers must treat the nil
// snapshot as "waiting", distinct from any explicit state.
func (t *Tracker) GetProgress(ctx context.Context, jobID string) (*Snapshot, error) {
	b, err := t.store.Get(ctx, progressKey(jobID))
	if err != nil || b == nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// DeleteProgress drops the snapshot for jobID, if any.
func (t *Tracker) DeleteProgress(ctx context.Context, jobID string) error {
	return t.store.Delete(ctx, progressKey(jobID))
}
