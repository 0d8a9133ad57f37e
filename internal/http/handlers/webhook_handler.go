// Webhook subscription HTTP handlers.
//
// REST endpoints for managing subscriptions and probing them:
//   - GET    /webhooks
//   - POST   /webhooks
//   - PUT    /webhooks/{id}
//   - DELETE /webhooks/{id}
//   - POST   /webhooks/{id}/test  (synchronous test delivery)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-importer/internal/domain"
	"github.com/tbourn/go-product-importer/internal/repo"
	"github.com/tbourn/go-product-importer/internal/webhook"
)

// CreateWebhookRequest is the JSON payload for registering a subscription.
type CreateWebhookRequest struct {
	URL       string `json:"url" binding:"required" example:"https://example.com/hook"`
	EventType string `json:"event_type" binding:"required" example:"product.created"`
	IsEnabled *bool  `json:"is_enabled" example:"true"`
}

// UpdateWebhookRequest is the JSON payload for a partial subscription update.
type UpdateWebhookRequest struct {
	URL       *string `json:"url"`
	EventType *string `json:"event_type"`
	IsEnabled *bool   `json:"is_enabled"`
}

// ListWebhooks godoc
// @ID          listWebhooks
// @Summary     List webhook subscriptions
// @Tags        Webhooks
// @Produce     json
// @Success     200 {object} map[string][]domain.Webhook
// @Failure     500 {object} handlers.ErrorResponse
// @Router      /webhooks [get]
func (h *Handlers) ListWebhooks(c *gin.Context) {
	hooks, err := repo.ListWebhooks(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if hooks == nil {
		hooks = []domain.Webhook{}
	}
	ok(c, http.StatusOK, gin.H{"webhooks": hooks})
}

// CreateWebhook godoc
// @ID          createWebhook
// @Summary     Register a webhook subscription
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       body body handlers.CreateWebhookRequest true "Subscription payload"
// @Success     201 {object} domain.Webhook
// @Failure     400 {object} handlers.ErrorResponse
// @Router      /webhooks [post]
func (h *Handlers) CreateWebhook(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "url and event_type are required")
		return
	}
	if !webhook.ValidURL(req.URL) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid webhook URL")
		return
	}
	if !domain.IsValidEventType(req.EventType) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest,
			"invalid event type, must be one of: "+strings.Join(domain.ValidEventTypes, ", "))
		return
	}

	w := &domain.Webhook{
		URL:       req.URL,
		EventType: req.EventType,
		IsEnabled: true,
	}
	if req.IsEnabled != nil {
		w.IsEnabled = *req.IsEnabled
	}
	if err := repo.CreateWebhook(c.Request.Context(), h.db, w); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, w)
}

// UpdateWebhook godoc
// @ID          updateWebhook
// @Summary     Update a webhook subscription
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Param       id   path string true "Webhook ID (UUID)"
// @Param       body body handlers.UpdateWebhookRequest true "Fields to update"
// @Success     200 {object} domain.Webhook
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /webhooks/{id} [put]
func (h *Handlers) UpdateWebhook(c *gin.Context) {
	var req UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload")
		return
	}

	ctx := c.Request.Context()
	w, err := repo.GetWebhook(ctx, h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "webhook not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if req.URL != nil {
		if !webhook.ValidURL(*req.URL) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid webhook URL")
			return
		}
		w.URL = *req.URL
	}
	if req.EventType != nil {
		if !domain.IsValidEventType(*req.EventType) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest,
				"invalid event type, must be one of: "+strings.Join(domain.ValidEventTypes, ", "))
			return
		}
		w.EventType = *req.EventType
	}
	if req.IsEnabled != nil {
		w.IsEnabled = *req.IsEnabled
	}

	if err := repo.SaveWebhook(ctx, h.db, w); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, w)
}

// DeleteWebhook godoc
// @ID          deleteWebhook
// @Summary     Delete a webhook subscription
// @Tags        Webhooks
// @Produce     json
// @Param       id path string true "Webhook ID (UUID)"
// @Success     200 {object} map[string]string
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /webhooks/{id} [delete]
func (h *Handlers) DeleteWebhook(c *gin.Context) {
	err := repo.DeleteWebhook(c.Request.Context(), h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "webhook not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{"message": "webhook deleted successfully"})
}

// TestWebhook godoc
// @ID          testWebhook
// @Summary     Send a test delivery to a subscription
// @Description Sends one synthetic payload synchronously and reports the remote status and latency.
// @Tags        Webhooks
// @Produce     json
// @Param       id path string true "Webhook ID (UUID)"
// @Success     200 {object} map[string]any
// @Failure     404 {object} handlers.ErrorResponse
// @Failure     502 {object} handlers.ErrorResponse
// @Router      /webhooks/{id}/test [post]
func (h *Handlers) TestWebhook(c *gin.Context) {
	res, err := h.dispatcher.Test(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, webhook.ErrWebhookNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "webhook not found")
			return
		}
		fail(c, http.StatusBadGateway, ErrCodeTestFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, gin.H{
		"message":       "webhook test successful",
		"status_code":   res.StatusCode,
		"response_time": res.ResponseTime,
	})
}
