// Package importer – Importer.
//
// This file implements the import job itself. One job owns its file from
// acceptance to deletion: the row count pass, the chunked reconciliation
// loop, progress publication, and the terminal snapshot all happen on a
// single worker, so chunk processing is strictly sequential and progress
// writes are naturally ordered.
//
// Failure taxonomy:
//   - job-fatal (empty file, missing required columns, store connectivity):
//     terminal error snapshot, source file kept for inspection.
//   - row-level (bad SKU, empty name, invalid numerics, SKU uniqueness race
//     with a concurrent import): counted in Errors, row skipped.
//
// Observability: Run is OpenTelemetry-instrumented; spans carry the job id
// and the final counters.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-product-importer/internal/domain"
	"github.com/tbourn/go-product-importer/internal/progress"
	"github.com/tbourn/go-product-importer/internal/repo"
)

// DefaultChunkSize is the number of rows reconciled and committed per
// transaction when the Importer does not override it.
const DefaultChunkSize = 1000

// ErrEmptyFile is returned when the source file has no data rows.
var ErrEmptyFile = errors.New("file is empty")

// EventPublisher receives one event per record mutation. The importer treats
// publication as best-effort: a publish failure is logged, never fatal.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data any) error
}

// Summary is the final accounting of one import job.
type Summary struct {
	Total     int `json:"total"`
	Processed int `json:"processed"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Errors    int `json:"errors"`
}

// Importer runs import jobs against the product table.
type Importer struct {
	DB      *gorm.DB
	Tracker *progress.Tracker
	Events  EventPublisher // optional

	// ChunkSize overrides DefaultChunkSize when > 0.
	ChunkSize int
}

func (imp *Importer) chunkSize() int {
	if imp.ChunkSize > 0 {
		return imp.ChunkSize
	}
	return DefaultChunkSize
}

// Run executes one import job: counts rows, streams the file in chunks,
// reconciles each chunk against the product table, and publishes progress
// after every chunk. On success the source file is deleted and a terminal
// complete snapshot is written; on failure the file is kept and a terminal
// error snapshot carries the failure description.
func (imp *Importer) Run(ctx context.Context, filePath, jobID string) (Summary, error) {
	tr := otel.Tracer("importer/Importer")
	ctx, span := tr.Start(ctx, "Run",
		trace.WithAttributes(
			attribute.String("job.id", jobID),
		),
	)
	defer span.End()

	sum, err := imp.run(ctx, filePath, jobID)
	span.SetAttributes(
		attribute.Int("import.created", sum.Created),
		attribute.Int("import.updated", sum.Updated),
		attribute.Int("import.errors", sum.Errors),
	)
	if err != nil {
		importsTotal.WithLabelValues("error").Inc()
		// Terminal error snapshot; the file is left in place for inspection.
		if terr := imp.Tracker.SetError(ctx, jobID, err.Error()); terr != nil {
			log.Error().Err(terr).Str("job_id", jobID).Msg("write error snapshot")
		}
		return sum, err
	}
	importsTotal.WithLabelValues("complete").Inc()
	return sum, nil
}

func (imp *Importer) run(ctx context.Context, filePath, jobID string) (Summary, error) {
	var sum Summary

	if err := imp.Tracker.SetProgress(ctx, jobID, 0, "Reading CSV file...", 100); err != nil {
		return sum, err
	}

	// Pass 1: count data rows without holding the file in memory.
	total, err := countDataRows(filePath)
	if err != nil {
		return sum, err
	}
	if total <= 0 {
		return sum, ErrEmptyFile
	}
	sum.Total = total

	if err := imp.Tracker.SetProgress(ctx, jobID, 0,
		fmt.Sprintf("Processing %d products...", total), total); err != nil {
		return sum, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	headerFields, err := r.Read()
	if err != nil {
		return sum, fmt.Errorf("read header: %w", err)
	}
	h, err := newHeader(headerFields)
	if err != nil {
		return sum, err
	}

	chunkSize := imp.chunkSize()
	for {
		records, readErr := readChunk(r, chunkSize)
		if len(records) > 0 {
			if err := imp.processChunk(ctx, h, records, jobID, &sum); err != nil {
				return sum, err
			}
			sum.Processed += len(records)
			if err := imp.Tracker.SetProgress(ctx, jobID, sum.Processed,
				fmt.Sprintf("Processed %d/%d products...", sum.Processed, sum.Total),
				sum.Total); err != nil {
				return sum, err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return sum, fmt.Errorf("read csv: %w", readErr)
		}
	}

	// The job owns its file; remove it once fully consumed.
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("path", filePath).Msg("remove processed file")
	}

	msg := fmt.Sprintf("Import complete! Created: %d, Updated: %d, Errors: %d",
		sum.Created, sum.Updated, sum.Errors)
	if err := imp.Tracker.SetComplete(ctx, jobID, msg); err != nil {
		return sum, err
	}
	log.Info().
		Str("job_id", jobID).
		Int("created", sum.Created).
		Int("updated", sum.Updated).
		Int("errors", sum.Errors).
		Msg("import complete")
	return sum, nil
}

// readChunk reads up to n records. It returns io.EOF alongside the records
// read so far when the file ends mid-chunk.
func readChunk(r *csv.Reader, n int) ([][]string, error) {
	out := make([][]string, 0, n)
	for len(out) < n {
		rec, err := r.Read()
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// processChunk validates and reconciles one chunk: parse rows, deduplicate
// by case-insensitive SKU (last row wins), bulk-fetch the matching existing
// records in one query, then commit creates and updates in one transaction.
func (imp *Importer) processChunk(ctx context.Context, h header, records [][]string, jobID string, sum *Summary) error {
	// Working set keyed by lower(sku). A SKU repeated within the chunk
	// overwrites its earlier occurrence; the shadowed row is not an error.
	working := make(map[string]row, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		rw, err := parseRow(h, rec)
		if err != nil {
			sum.Errors++
			rowsTotal.WithLabelValues("rejected").Inc()
			continue
		}
		key := strings.ToLower(rw.SKU)
		if _, seen := working[key]; !seen {
			order = append(order, key)
		}
		working[key] = rw
	}
	if len(order) == 0 {
		return nil
	}

	keys := make([]string, len(order))
	copy(keys, order)
	existing, err := repo.FindBySKUs(ctx, imp.DB, keys)
	if err != nil {
		return fmt.Errorf("fetch existing products: %w", err)
	}
	existingBySKU := make(map[string]*domain.Product, len(existing))
	for i := range existing {
		existingBySKU[existing[i].SKULower] = &existing[i]
	}

	var (
		updates []*domain.Product
		creates []*domain.Product
	)
	for _, key := range order {
		rw := working[key]
		if p, ok := existingBySKU[key]; ok {
			// Overwrite mutable fields in place; stored SKU casing stays
			// whatever was written first.
			p.Name = rw.Name
			p.Description = rw.Description
			p.Price = rw.Price
			p.Quantity = rw.Quantity
			p.IsActive = rw.IsActive
			updates = append(updates, p)
		} else {
			creates = append(creates, &domain.Product{
				SKU:         rw.SKU, // original casing
				Name:        rw.Name,
				Description: rw.Description,
				Price:       rw.Price,
				Quantity:    rw.Quantity,
				IsActive:    rw.IsActive,
			})
		}
	}

	created, conflicts, err := imp.commitChunk(ctx, updates, creates)
	if err != nil {
		return err
	}
	sum.Updated += len(updates)
	sum.Created += len(created)
	sum.Errors += conflicts
	rowsTotal.WithLabelValues("updated").Add(float64(len(updates)))
	rowsTotal.WithLabelValues("created").Add(float64(len(created)))
	if conflicts > 0 {
		rowsTotal.WithLabelValues("rejected").Add(float64(conflicts))
	}

	imp.publishMutations(ctx, created, updates)
	return nil
}

// commitChunk applies one chunk's writes in a single transaction. Creates
// losing a uniqueness race against a concurrent import are demoted to
// row-level conflicts rather than aborting the job; any other store failure
// is fatal and rolls back the chunk.
func (imp *Importer) commitChunk(ctx context.Context, updates, creates []*domain.Product) (created []*domain.Product, conflicts int, err error) {
	err = imp.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range updates {
			if err := repo.SaveProduct(ctx, tx, p); err != nil {
				return err
			}
		}
		if len(creates) == 0 {
			return nil
		}
		if err := repo.CreateProducts(ctx, tx, creates); err == nil {
			created = creates
			return nil
		} else if !repo.IsUniqueViolation(err) {
			return err
		}
		// Batch insert hit the unique index: a concurrent job created one of
		// these SKUs after our bulk fetch. Fall back to row-at-a-time so only
		// the conflicting rows are lost.
		created = created[:0]
		for _, p := range creates {
			p.ID = "" // regenerate; the batch may have assigned IDs already
			if err := repo.CreateProduct(ctx, tx, p); err != nil {
				if repo.IsUniqueViolation(err) {
					conflicts++
					continue
				}
				return err
			}
			created = append(created, p)
		}
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("commit chunk: %w", err)
	}
	return created, conflicts, nil
}

// publishMutations enqueues one notification per mutated record. Publication
// is best-effort and never affects the import outcome.
func (imp *Importer) publishMutations(ctx context.Context, created, updated []*domain.Product) {
	if imp.Events == nil {
		return
	}
	for _, p := range created {
		if err := imp.Events.Publish(ctx, domain.EventProductCreated, p); err != nil {
			log.Warn().Err(err).Str("sku", p.SKU).Msg("publish created event")
		}
	}
	for _, p := range updated {
		if err := imp.Events.Publish(ctx, domain.EventProductUpdated, p); err != nil {
			log.Warn().Err(err).Str("sku", p.SKU).Msg("publish updated event")
		}
	}
}

// countDataRows streams the file once and returns the number of CSV records
// after the header. Counting with a CSV reader (not raw newlines) keeps the
// total consistent with the processing pass when quoted fields span lines.
func countDataRows(filePath string) (int, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	n := -1 // discount the header row
	for {
		_, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("count rows: %w", err)
		}
		n++
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
