// Package repo – webhook subscription persistence.
//
// Thin CRUD over the webhooks table plus the two read paths the dispatcher
// depends on: ListEnabledWebhooks (fan-out targets for one event type) and
// TouchWebhook (recording a delivery attempt).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-product-importer/internal/domain"
)

// CreateWebhook inserts a new webhook subscription row with a UUID primary
// key and UTC creation timestamp.
func CreateWebhook(ctx context.Context, db *gorm.DB, w *domain.Webhook) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(w).Error
}

// GetWebhook fetches a single webhook by ID, or ErrNotFound.
func GetWebhook(ctx context.Context, db *gorm.DB, id string) (*domain.Webhook, error) {
	var w domain.Webhook
	err := db.WithContext(ctx).Where("id = ?", id).First(&w).Error
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListWebhooks returns every subscription, most recently created first.
func ListWebhooks(ctx context.Context, db *gorm.DB) ([]domain.Webhook, error) {
	var out []domain.Webhook
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// ListEnabledWebhooks returns the enabled subscriptions for one event type.
// This is the dispatcher's fan-out query.
func ListEnabledWebhooks(ctx context.Context, db *gorm.DB, eventType string) ([]domain.Webhook, error) {
	var out []domain.Webhook
	err := db.WithContext(ctx).
		Where("event_type = ? AND is_enabled = ?", eventType, true).
		Find(&out).Error
	return out, err
}

// SaveWebhook persists all fields of an already-loaded webhook row.
func SaveWebhook(ctx context.Context, db *gorm.DB, w *domain.Webhook) error {
	return db.WithContext(ctx).Save(w).Error
}

// TouchWebhook stamps last_triggered_at with the given time. Used by the
// dispatcher after every delivery attempt, regardless of the remote status.
func TouchWebhook(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Webhook{}).
		Where("id = ?", id).
		Update("last_triggered_at", at).Error
}

// DeleteWebhook removes a subscription by ID. Returns ErrNotFound when no
// row was affected.
func DeleteWebhook(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Webhook{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
