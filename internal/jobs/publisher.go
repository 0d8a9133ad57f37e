// Package jobs – event publication.
//
// Publisher adapts the queue to the importer's EventPublisher seam and to
// the HTTP handlers that trigger notifications on direct CRUD mutations.
// Enqueueing happens strictly after the mutating write committed; delivery
// timing beyond that is up to the runner.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Publisher turns domain events into queued notification tasks.
type Publisher struct {
	Queue Queue
}

// Publish serializes data and enqueues a notification task for eventType.
func (p *Publisher) Publish(ctx context.Context, eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return p.Queue.Enqueue(ctx, &Task{
		ID:   uuid.NewString(),
		Kind: KindNotify,
		Notify: &NotifyPayload{
			Event: eventType,
			Data:  raw,
		},
		CreatedAt: time.Now().UTC(),
	})
}

// NewImportTask builds the queued task for one accepted upload.
func NewImportTask(filePath, jobID string) *Task {
	return &Task{
		ID:   uuid.NewString(),
		Kind: KindImport,
		Import: &ImportPayload{
			FilePath: filePath,
			JobID:    jobID,
		},
		CreatedAt: time.Now().UTC(),
	}
}
