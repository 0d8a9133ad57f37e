// Package jobs – Runner.
//
// The runner owns a small pool of workers pulling tasks from the queue.
// Import tasks run to completion on the worker that picked them up; their
// failures are terminal (the importer has already published the error
// snapshot). Notification tasks that fail with a dispatcher-internal error
// are re-enqueued after the policy backoff until the attempt budget runs
// out, which makes delivery at-least-once for subscribers.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-product-importer/internal/importer"
	"github.com/tbourn/go-product-importer/internal/webhook"
)

// ImportRunner executes one import job. Satisfied by *importer.Importer.
type ImportRunner interface {
	Run(ctx context.Context, filePath, jobID string) (importer.Summary, error)
}

// Notifier fans one event out to its subscribers. Satisfied by
// *webhook.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, eventType string, data any) error
}

// Runner executes queued tasks on a fixed worker pool.
type Runner struct {
	Queue    Queue
	Importer ImportRunner
	Notifier Notifier
	Workers  int
	Retry    webhook.RetryPolicy

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Start launches the worker pool. Workers run until Stop is called or the
// parent context is done.
func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	n := r.Workers
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		r.wg.Add(1)
		go r.worker(ctx, i)
	}
	log.Info().Int("workers", n).Msg("job runner started")
}

// Stop cancels the workers and waits for in-flight tasks to finish.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Runner) worker(ctx context.Context, id int) {
	defer r.wg.Done()
	for {
		t, err := r.Queue.Dequeue(ctx)
		if err != nil {
			return // context done
		}
		r.process(ctx, id, t)
	}
}

func (r *Runner) process(ctx context.Context, workerID int, t *Task) {
	lg := log.With().
		Int("worker", workerID).
		Str("task_id", t.ID).
		Str("kind", string(t.Kind)).
		Logger()

	switch t.Kind {
	case KindImport:
		if t.Import == nil {
			lg.Error().Msg("import task without payload")
			return
		}
		sum, err := r.Importer.Run(ctx, t.Import.FilePath, t.Import.JobID)
		if err != nil {
			lg.Error().Err(err).Str("job_id", t.Import.JobID).Msg("import job failed")
			return
		}
		lg.Info().
			Str("job_id", t.Import.JobID).
			Int("created", sum.Created).
			Int("updated", sum.Updated).
			Int("errors", sum.Errors).
			Msg("import job done")

	case KindNotify:
		if t.Notify == nil {
			lg.Error().Msg("notify task without payload")
			return
		}
		if err := r.Notifier.Notify(ctx, t.Notify.Event, t.Notify.Data); err != nil {
			r.retryNotify(ctx, lg, t, err)
		}

	default:
		lg.Error().Msg("unknown task kind")
	}
}

// retryNotify re-enqueues a failed notification after the policy backoff, or
// gives up once the attempt budget is spent. The wait happens off-worker so
// the pool keeps draining the queue.
func (r *Runner) retryNotify(ctx context.Context, lg zerolog.Logger, t *Task, cause error) {
	t.Attempts++
	if !r.Retry.ShouldRetry(t.Attempts) {
		lg.Error().Err(cause).Int("attempts", t.Attempts).Msg("notification failed permanently")
		return
	}
	delay := r.Retry.NextDelay(t.Attempts)
	lg.Warn().Err(cause).Int("attempt", t.Attempts).Dur("retry_in", delay).Msg("notification failed, will retry")
	go func() {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		if err := r.Queue.Enqueue(ctx, t); err != nil {
			lg.Error().Err(err).Msg("re-enqueue notification")
		}
	}()
}
