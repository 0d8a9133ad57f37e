// Progress HTTP handlers.
//
// Two read paths over the same tracker:
//   - GET /progress/{job_id}         one-shot JSON snapshot
//   - GET /progress/{job_id}/stream  Server-Sent Events, polled server-side
//
// The stream polls the progress store at a fixed interval, emits a waiting
// payload while no snapshot exists, and terminates itself after forwarding a
// terminal snapshot. It never cancels the underlying job.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-importer/internal/http/middleware"
	"github.com/tbourn/go-product-importer/internal/progress"
)

// waitingPayload is emitted while no snapshot exists for the job id.
var waitingPayload = []byte(`{"status":"waiting","percentage":0}`)

// GetProgress godoc
// @ID          getProgress
// @Summary     Get the current progress snapshot for a job
// @Tags        Import
// @Produce     json
// @Param       job_id path string true "Job ID returned by the upload endpoint"
// @Success     200 {object} progress.Snapshot
// @Failure     500 {object} handlers.ErrorResponse
// @Router      /progress/{job_id} [get]
func (h *Handlers) GetProgress(c *gin.Context) {
	snap, err := h.tracker.GetProgress(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if snap == nil {
		ok(c, http.StatusOK, gin.H{"status": "waiting", "percentage": 0})
		return
	}
	ok(c, http.StatusOK, snap)
}

// StreamProgress godoc
// @ID          streamProgress
// @Summary     Stream progress updates for a job (SSE)
// @Description Emits one data event per poll until the job reaches a terminal state.
// @Tags        Import
// @Produce     text/event-stream
// @Param       job_id path string true "Job ID returned by the upload endpoint"
// @Success     200 {string} string "SSE stream"
// @Router      /progress/{job_id}/stream [get]
func (h *Handlers) StreamProgress(c *gin.Context) {
	jobID := c.Param("job_id")

	hdr := c.Writer.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	ctx := c.Request.Context()
	for {
		snap, err := h.tracker.GetProgress(ctx, jobID)
		if err != nil {
			middleware.LoggerFrom(c).Error().Err(err).Str("job_id", jobID).Msg("read progress snapshot")
			return
		}

		if !writeEvent(c, snap) {
			return
		}
		if snap != nil && snap.Terminal() {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.pollInterval):
		}
	}
}

// writeEvent emits one SSE data frame and reports whether the stream is
// still writable.
func writeEvent(c *gin.Context, snap *progress.Snapshot) bool {
	payload := waitingPayload
	if snap != nil {
		b, err := json.Marshal(snap)
		if err != nil {
			return false
		}
		payload = b
	}
	if _, err := c.Writer.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}
