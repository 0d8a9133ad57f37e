// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Product
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a product is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated. A violation of the case-insensitive
//     SKU unique index surfaces this way; IsUniqueViolation can classify it.
//
// SKU matching is case-insensitive throughout: every lookup compares against
// the sku_lower shadow column, which carries the unique index.
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-product-importer/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// IsUniqueViolation reports whether err looks like a unique-constraint
// failure. GORM does not normalize driver errors, so this matches on the
// SQLite/Postgres message fragments that both name the violated constraint.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "constraint failed") ||
		strings.Contains(msg, "duplicate key")
}

// CreateProduct inserts a single product row. The ID is a generated UUID and
// CreatedAt is set to UTC. The SKU casing is stored as given.
func CreateProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(p).Error
}

// CreateProducts bulk-inserts the given products in one statement. IDs and
// timestamps are filled in like CreateProduct. An empty slice is a no-op.
func CreateProducts(ctx context.Context, db *gorm.DB, ps []*domain.Product) error {
	if len(ps) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, p := range ps {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
	}
	return db.WithContext(ctx).Create(ps).Error
}

// FindBySKUs returns every product whose SKU matches one of the given values,
// compared case-insensitively, in a single query. Callers typically pass one
// chunk's worth of SKUs; values are lowered here so callers may pass raw input.
func FindBySKUs(ctx context.Context, db *gorm.DB, skus []string) ([]domain.Product, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	lowered := make([]string, 0, len(skus))
	for _, s := range skus {
		lowered = append(lowered, strings.ToLower(s))
	}
	var out []domain.Product
	err := db.WithContext(ctx).
		Where("sku_lower IN ?", lowered).
		Find(&out).Error
	return out, err
}

// GetBySKU fetches a single product by case-insensitive SKU, or ErrNotFound.
func GetBySKU(ctx context.Context, db *gorm.DB, sku string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).
		Where("sku_lower = ?", strings.ToLower(sku)).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProduct fetches a single product by ID, or ErrNotFound.
func GetProduct(ctx context.Context, db *gorm.DB, id string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProduct persists all fields of an already-loaded product row.
func SaveProduct(ctx context.Context, db *gorm.DB, p *domain.Product) error {
	return db.WithContext(ctx).Save(p).Error
}

// ProductFilter narrows ListProductsPage results.
type ProductFilter struct {
	// Search matches SKU, name, or description, case-insensitively.
	Search string
	// IsActive filters on the availability flag when non-nil.
	IsActive *bool
}

// CountProducts returns the number of products matching the filter.
func CountProducts(ctx context.Context, db *gorm.DB, f ProductFilter) (int64, error) {
	var total int64
	err := applyProductFilter(db.WithContext(ctx).Model(&domain.Product{}), f).
		Count(&total).Error
	return total, err
}

// ListProductsPage returns a paginated slice of products matching the filter,
// ordered by creation time descending. Use CountProducts to obtain the total
// for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListProductsPage(ctx context.Context, db *gorm.DB, f ProductFilter, offset, limit int) ([]domain.Product, error) {
	var out []domain.Product
	err := applyProductFilter(db.WithContext(ctx), f).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func applyProductFilter(q *gorm.DB, f ProductFilter) *gorm.DB {
	if s := strings.TrimSpace(f.Search); s != "" {
		term := "%" + strings.ToLower(s) + "%"
		q = q.Where(
			"sku_lower LIKE ? OR lower(name) LIKE ? OR lower(description) LIKE ?",
			term, term, term,
		)
	}
	if f.IsActive != nil {
		q = q.Where("is_active = ?", *f.IsActive)
	}
	return q
}

// DeleteProduct removes a product by ID. Returns ErrNotFound when no row was
// affected.
func DeleteProduct(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAllProducts removes every product and returns how many were deleted.
func DeleteAllProducts(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).Where("1 = 1").Delete(&domain.Product{})
	return res.RowsAffected, res.Error
}
