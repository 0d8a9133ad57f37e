// Package domain defines the persistence models for products and webhook
// subscriptions. These types are mapped with GORM and form the core data
// layer of the product importer application.
package domain

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Event types a webhook subscription can listen for.
const (
	EventProductCreated     = "product.created"
	EventProductUpdated     = "product.updated"
	EventProductDeleted     = "product.deleted"
	EventProductBulkDeleted = "product.bulk_deleted"
)

// ValidEventTypes lists every accepted webhook event type, in the order they
// are reported to clients in validation errors.
var ValidEventTypes = []string{
	EventProductCreated,
	EventProductUpdated,
	EventProductDeleted,
	EventProductBulkDeleted,
}

// IsValidEventType reports whether s is one of the supported event types.
func IsValidEventType(s string) bool {
	for _, e := range ValidEventTypes {
		if s == e {
			return true
		}
	}
	return false
}

// Product represents a single catalog record, keyed by a SKU that is unique
// case-insensitively. The SKU casing is preserved as first written; all
// lookups compare on the lower-cased form.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SKU: merchant identifier, 1-100 chars of [A-Za-z0-9_-].
//   - SKULower: lower-cased shadow of SKU carrying the unique index; kept in
//     sync by BeforeSave so the uniqueness constraint is enforced by the
//     database, not application code.
//   - Name: non-empty display name.
//   - Description: optional free text.
//   - Price: non-negative unit price.
//   - Quantity: non-negative stock count.
//   - IsActive: soft availability flag.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Product struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	SKU         string    `json:"sku"         gorm:"type:varchar(100);not null;index"`
	SKULower    string    `json:"-"           gorm:"type:varchar(100);not null;uniqueIndex:ux_products_sku_lower"`
	Name        string    `json:"name"        gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:varchar(1000)"`
	Price       float64   `json:"price"       gorm:"not null"`
	Quantity    int       `json:"quantity"    gorm:"not null;default:0"`
	IsActive    bool      `json:"is_active"   gorm:"not null;default:true;index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Product.
func (Product) TableName() string { return "products" }

// BeforeSave keeps the lower-cased SKU shadow column in sync on every write.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	p.SKULower = strings.ToLower(p.SKU)
	return nil
}

// Webhook represents a subscriber endpoint for one event type. Subscriptions
// are owned by the storage layer; the dispatcher only reads them and records
// delivery attempts via LastTriggeredAt.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - URL: subscriber endpoint (http/https).
//   - EventType: one of the product.* event types.
//   - IsEnabled: disabled subscriptions are skipped by the dispatcher.
//   - LastTriggeredAt: set after each delivery attempt, nil until the first.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Webhook struct {
	ID              string     `json:"id"                gorm:"type:char(36);primaryKey"`
	URL             string     `json:"url"               gorm:"type:varchar(500);not null"`
	EventType       string     `json:"event_type"        gorm:"type:varchar(50);not null;index"`
	IsEnabled       bool       `json:"is_enabled"        gorm:"not null;default:true;index"`
	LastTriggeredAt *time.Time `json:"last_triggered_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Webhook.
func (Webhook) TableName() string { return "webhooks" }
