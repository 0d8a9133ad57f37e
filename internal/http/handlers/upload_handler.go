// Upload HTTP handler.
//
// Accepts a CSV file, stages it under the upload directory with a generated
// name, pre-validates the header so obviously unusable files are rejected
// synchronously, publishes the initial "queued" progress snapshot, and hands
// the import job to the task queue. The response is 202 with the job id the
// client polls for progress; processing itself is asynchronous.
package handlers

import (
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-product-importer/internal/http/middleware"
	"github.com/tbourn/go-product-importer/internal/importer"
	"github.com/tbourn/go-product-importer/internal/jobs"
)

// UploadResponse acknowledges an accepted import file.
type UploadResponse struct {
	Message string `json:"message" example:"File uploaded successfully. Processing started."`
	JobID   string `json:"job_id" example:"123e4567-e89b-12d3-a456-426614174000"`
}

// UploadCSV godoc
// @ID          uploadCSV
// @Summary     Upload a CSV file for product import
// @Description Stages the file and queues an asynchronous import job. Poll /progress/{job_id} for status.
// @Tags        Import
// @Accept      multipart/form-data
// @Produce     json
// @Param       file formData file true "CSV file with at least sku, name, price columns"
// @Success     202 {object} handlers.UploadResponse
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     413 {object} handlers.ErrorResponse
// @Router      /upload [post]
func (h *Handlers) UploadCSV(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "file is required")
		return
	}
	if !strings.EqualFold(filepath.Ext(fh.Filename), ".csv") {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "only CSV files are allowed")
		return
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeTooLarge, "file exceeds maximum allowed size")
		return
	}

	// Stage the upload under a generated name; the original name is only
	// used for the extension check above.
	path := filepath.Join(h.uploadDir, uuid.NewString()+".csv")
	if err := c.SaveUploadedFile(fh, path); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeUploadFailed, err.Error())
		return
	}

	if err := validateCSVHeader(path); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			middleware.LoggerFrom(c).Warn().Err(rmErr).Str("path", path).Msg("remove rejected upload")
		}
		fail(c, http.StatusBadRequest, ErrCodeInvalidCSV, err.Error())
		return
	}

	jobID := uuid.NewString()
	ctx := c.Request.Context()

	// Publish the queued snapshot before enqueueing so a fast poller never
	// sees "absent" for an accepted job.
	if err := h.tracker.SetProgress(ctx, jobID, 0, "Queued for processing...", 100); err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Str("job_id", jobID).Msg("write queued snapshot")
	}

	if err := h.queue.Enqueue(ctx, jobs.NewImportTask(path, jobID)); err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "system busy, please try again later")
		return
	}

	ok(c, http.StatusAccepted, UploadResponse{
		Message: "File uploaded successfully. Processing started.",
		JobID:   jobID,
	})
}

// validateCSVHeader reads only the header row of the staged file and checks
// the required columns are present.
func validateCSVHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	fields, err := r.Read()
	if err == io.EOF {
		return errors.New("CSV file is empty")
	}
	if err != nil {
		return errors.New("invalid CSV format")
	}
	return importer.ValidateColumns(fields)
}
