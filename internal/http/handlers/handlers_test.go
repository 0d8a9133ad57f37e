package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-product-importer/internal/domain"
	"github.com/tbourn/go-product-importer/internal/jobs"
	"github.com/tbourn/go-product-importer/internal/progress"
	"github.com/tbourn/go-product-importer/internal/webhook"
)

// ---------- shared test fixture ----------

type testAPI struct {
	engine  *gin.Engine
	db      *gorm.DB
	queue   *jobs.MemoryQueue
	tracker *progress.Tracker
	h       *Handlers
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := db.AutoMigrate(&domain.Product{}, &domain.Webhook{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	q := jobs.NewMemoryQueue(64)
	tracker := progress.NewTracker(progress.NewMemoryStore(), time.Hour)
	dispatcher := webhook.NewDispatcher(db, time.Second)

	h := New(db, q, tracker, dispatcher, Options{
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 << 20,
		PollInterval:   5 * time.Millisecond,
	})

	r := gin.New()
	r.POST("/upload", h.UploadCSV)
	r.GET("/progress/:job_id", h.GetProgress)
	r.GET("/progress/:job_id/stream", h.StreamProgress)
	r.GET("/products", h.ListProducts)
	r.POST("/products", h.CreateProduct)
	r.DELETE("/products", h.BulkDeleteProducts)
	r.GET("/products/:id", h.GetProduct)
	r.PUT("/products/:id", h.UpdateProduct)
	r.DELETE("/products/:id", h.DeleteProduct)
	r.GET("/webhooks", h.ListWebhooks)
	r.POST("/webhooks", h.CreateWebhook)
	r.PUT("/webhooks/:id", h.UpdateWebhook)
	r.DELETE("/webhooks/:id", h.DeleteWebhook)
	r.POST("/webhooks/:id/test", h.TestWebhook)

	return &testAPI{engine: r, db: db, queue: q, tracker: tracker, h: h}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), into); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

// multipartCSV builds a multipart body with one file part named "file".
func multipartCSV(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return buf, mw.FormDataContentType()
}

func (a *testAPI) upload(t *testing.T, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	buf, contentType := multipartCSV(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, "/upload", buf)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}
