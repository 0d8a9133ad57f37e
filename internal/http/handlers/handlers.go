// Package handlers – dependency wiring.
//
// Handlers are transport-thin: they validate input, delegate to the
// repository / dispatcher / tracker, and translate errors into the standard
// envelope. All dependencies are injected here by the router.
package handlers

import (
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-product-importer/internal/jobs"
	"github.com/tbourn/go-product-importer/internal/progress"
	"github.com/tbourn/go-product-importer/internal/webhook"
)

// Handlers bundles the dependencies shared by all endpoints.
type Handlers struct {
	db         *gorm.DB
	queue      jobs.Queue
	events     *jobs.Publisher
	tracker    *progress.Tracker
	dispatcher *webhook.Dispatcher

	uploadDir      string
	maxUploadBytes int64

	// pollInterval is how often the progress stream re-reads the snapshot.
	pollInterval time.Duration
}

// Options configures optional Handlers behavior.
type Options struct {
	UploadDir      string
	MaxUploadBytes int64
	PollInterval   time.Duration // defaults to 500ms
}

// New constructs the handler set.
func New(db *gorm.DB, q jobs.Queue, tracker *progress.Tracker, dispatcher *webhook.Dispatcher, opts Options) *Handlers {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Handlers{
		db:             db,
		queue:          q,
		events:         &jobs.Publisher{Queue: q},
		tracker:        tracker,
		dispatcher:     dispatcher,
		uploadDir:      opts.UploadDir,
		maxUploadBytes: opts.MaxUploadBytes,
		pollInterval:   opts.PollInterval,
	}
}
