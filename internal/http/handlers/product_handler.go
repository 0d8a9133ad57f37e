// Product HTTP handlers.
//
// REST endpoints for direct catalog CRUD:
//   - GET    /products        (paginated list with search and active filter)
//   - GET    /products/{id}
//   - POST   /products
//   - PUT    /products/{id}
//   - DELETE /products/{id}
//   - DELETE /products        (bulk delete)
//
// Every mutation enqueues the matching product.* notification event after
// the write commits; enqueue failures are logged and never fail the request.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-importer/internal/domain"
	"github.com/tbourn/go-product-importer/internal/http/middleware"
	"github.com/tbourn/go-product-importer/internal/importer"
	"github.com/tbourn/go-product-importer/internal/repo"
	"github.com/tbourn/go-product-importer/internal/utils"
)

// CreateProductRequest is the JSON payload for creating a product.
type CreateProductRequest struct {
	SKU         string   `json:"sku" binding:"required" example:"SKU-001"`
	Name        string   `json:"name" binding:"required" example:"Widget"`
	Description string   `json:"description" example:"A widget"`
	Price       *float64 `json:"price" binding:"required" example:"9.99"`
	Quantity    int      `json:"quantity" example:"5"`
	IsActive    *bool    `json:"is_active" example:"true"`
}

// UpdateProductRequest is the JSON payload for a partial product update.
// Only non-nil fields are applied.
type UpdateProductRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Quantity    *int     `json:"quantity"`
	IsActive    *bool    `json:"is_active"`
}

// ProductListResponse is the paginated product listing envelope.
type ProductListResponse struct {
	Products   []domain.Product `json:"products"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalPages int64            `json:"total_pages"`
}

// ListProducts godoc
// @ID          listProducts
// @Summary     List products
// @Description Returns a paginated product list with optional search and active filter.
// @Tags        Products
// @Produce     json
// @Param       page      query int    false "Page number (1-based)"
// @Param       per_page  query int    false "Items per page (max 100)"
// @Param       search    query string false "Search term for SKU, name, or description"
// @Param       is_active query bool   false "Filter by active status"
// @Success     200 {object} handlers.ProductListResponse
// @Failure     500 {object} handlers.ErrorResponse
// @Router      /products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	page := utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	perPage := utils.ClampInt(utils.AtoiDefault(c.Query("per_page"), 50), 1, 100)

	filter := repo.ProductFilter{Search: c.Query("search")}
	if v := c.Query("is_active"); v != "" {
		b := strings.EqualFold(v, "true") || v == "1"
		filter.IsActive = &b
	}

	ctx := c.Request.Context()
	total, err := repo.CountProducts(ctx, h.db, filter)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	items, err := repo.ListProductsPage(ctx, h.db, filter, (page-1)*perPage, perPage)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	if items == nil {
		items = []domain.Product{}
	}

	ok(c, http.StatusOK, ProductListResponse{
		Products:   items,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + int64(perPage) - 1) / int64(perPage),
	})
}

// GetProduct godoc
// @ID          getProduct
// @Summary     Get a product
// @Tags        Products
// @Produce     json
// @Param       id path string true "Product ID (UUID)"
// @Success     200 {object} domain.Product
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /products/{id} [get]
func (h *Handlers) GetProduct(c *gin.Context) {
	p, err := repo.GetProduct(c.Request.Context(), h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "product not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, p)
}

// CreateProduct godoc
// @ID          createProduct
// @Summary     Create a product
// @Tags        Products
// @Accept      json
// @Produce     json
// @Param       body body handlers.CreateProductRequest true "Product payload"
// @Success     201 {object} domain.Product
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     409 {object} handlers.ErrorResponse
// @Router      /products [post]
func (h *Handlers) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sku, name and price are required")
		return
	}
	if !importer.ValidSKU(req.SKU) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid SKU format")
		return
	}
	if !importer.ValidPrice(*req.Price) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "price must be non-negative")
		return
	}
	if !importer.ValidQuantity(req.Quantity) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "quantity must be non-negative")
		return
	}

	ctx := c.Request.Context()
	if _, err := repo.GetBySKU(ctx, h.db, req.SKU); err == nil {
		fail(c, http.StatusConflict, ErrCodeConflict, "product with this SKU already exists")
		return
	} else if !errors.Is(err, repo.ErrNotFound) {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	p := &domain.Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Quantity:    req.Quantity,
		IsActive:    true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	if err := repo.CreateProduct(ctx, h.db, p); err != nil {
		if repo.IsUniqueViolation(err) {
			fail(c, http.StatusConflict, ErrCodeConflict, "product with this SKU already exists")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	h.publish(c, domain.EventProductCreated, p)
	ok(c, http.StatusCreated, p)
}

// UpdateProduct godoc
// @ID          updateProduct
// @Summary     Update a product
// @Tags        Products
// @Accept      json
// @Produce     json
// @Param       id   path string true "Product ID (UUID)"
// @Param       body body handlers.UpdateProductRequest true "Fields to update"
// @Success     200 {object} domain.Product
// @Failure     400 {object} handlers.ErrorResponse
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /products/{id} [put]
func (h *Handlers) UpdateProduct(c *gin.Context) {
	var req UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid payload")
		return
	}

	ctx := c.Request.Context()
	p, err := repo.GetProduct(ctx, h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "product not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if req.Name != nil {
		if *req.Name == "" {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "name must not be empty")
			return
		}
		p.Name = *req.Name
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		if !importer.ValidPrice(*req.Price) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "price must be non-negative")
			return
		}
		p.Price = *req.Price
	}
	if req.Quantity != nil {
		if !importer.ValidQuantity(*req.Quantity) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "quantity must be non-negative")
			return
		}
		p.Quantity = *req.Quantity
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}

	if err := repo.SaveProduct(ctx, h.db, p); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	h.publish(c, domain.EventProductUpdated, p)
	ok(c, http.StatusOK, p)
}

// DeleteProduct godoc
// @ID          deleteProduct
// @Summary     Delete a product
// @Tags        Products
// @Produce     json
// @Param       id path string true "Product ID (UUID)"
// @Success     200 {object} map[string]string
// @Failure     404 {object} handlers.ErrorResponse
// @Router      /products/{id} [delete]
func (h *Handlers) DeleteProduct(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := repo.GetProduct(ctx, h.db, c.Param("id"))
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "product not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	if err := repo.DeleteProduct(ctx, h.db, p.ID); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	h.publish(c, domain.EventProductDeleted, p)
	ok(c, http.StatusOK, gin.H{"message": "product deleted successfully"})
}

// BulkDeleteProducts godoc
// @ID          bulkDeleteProducts
// @Summary     Delete all products
// @Tags        Products
// @Produce     json
// @Success     200 {object} map[string]any
// @Failure     500 {object} handlers.ErrorResponse
// @Router      /products [delete]
func (h *Handlers) BulkDeleteProducts(c *gin.Context) {
	count, err := repo.DeleteAllProducts(c.Request.Context(), h.db)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	h.publish(c, domain.EventProductBulkDeleted, gin.H{"count": count})
	ok(c, http.StatusOK, gin.H{
		"message": "all products deleted",
		"count":   count,
	})
}

// publish enqueues a notification event; failures are logged, never fatal to
// the request that triggered them.
func (h *Handlers) publish(c *gin.Context, eventType string, data any) {
	if err := h.events.Publish(c.Request.Context(), eventType, data); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Str("event", eventType).Msg("enqueue notification")
	}
}
