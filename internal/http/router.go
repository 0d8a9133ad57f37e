// Package httpapi wires the HTTP transport (Gin) to the importer's
// collaborators: the record store, the task queue, the progress tracker, and
// the webhook dispatcher. It centralizes cross-cutting concerns such as
// tracing, correlation IDs, logging, panic recovery, metrics, CORS, and rate
// limiting.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter (sized for CSV uploads)
//  6. Gzip (progress streams excluded so events flush promptly)
//  7. Metrics
//  8. Rate limiter (per IP)
//  9. CORS posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-product-importer/internal/config"
	"github.com/tbourn/go-product-importer/internal/http/handlers"
	"github.com/tbourn/go-product-importer/internal/http/middleware"
	"github.com/tbourn/go-product-importer/internal/jobs"
	"github.com/tbourn/go-product-importer/internal/progress"
	"github.com/tbourn/go-product-importer/internal/webhook"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine, then mounts the versioned public API under cfg.APIBasePath.
func RegisterRoutes(
	r *gin.Engine,
	db *gorm.DB,
	q jobs.Queue,
	tracker *progress.Tracker,
	dispatcher *webhook.Dispatcher,
	cfg config.Config,
) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Body cap: the upload limit plus headroom for multipart framing
	r.Use(limitBody(cfg.Import.MaxUploadBytes + 1<<20))

	// 6) Compression, except on the event stream
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{apiBase + "/progress"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Token-bucket rate limiter per IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst)
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(db, q, tracker, dispatcher, handlers.Options{
		UploadDir:      cfg.Import.UploadDir,
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
	})

	// Public API
	api := groupWithPrefix(r, apiBase)
	{
		// Import pipeline
		api.POST("/upload", h.UploadCSV)
		api.GET("/progress/:job_id", h.GetProgress)
		api.GET("/progress/:job_id/stream", h.StreamProgress)

		// Products
		api.GET("/products", h.ListProducts)
		api.POST("/products", h.CreateProduct)
		api.DELETE("/products", h.BulkDeleteProducts)
		api.GET("/products/:id", h.GetProduct)
		api.PUT("/products/:id", h.UpdateProduct)
		api.DELETE("/products/:id", h.DeleteProduct)

		// Webhooks
		api.GET("/webhooks", h.ListWebhooks)
		api.POST("/webhooks", h.CreateWebhook)
		api.PUT("/webhooks/:id", h.UpdateWebhook)
		api.DELETE("/webhooks/:id", h.DeleteWebhook)
		api.POST("/webhooks/:id/test", h.TestWebhook)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
