package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"
)

func newMWEngine(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

var uuidRE = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	r := newMWEngine(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	rid := w.Header().Get("X-Request-ID")
	if !uuidRE.MatchString(rid) {
		t.Fatalf("expected generated UUID request id, got %q", rid)
	}
}

func TestRequestID_PropagatesIncoming(t *testing.T) {
	r := newMWEngine(RequestID())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-ID"); got != "client-supplied-id" {
		t.Fatalf("incoming request id not reused: %q", got)
	}
}

func TestLogger_AttachesRequestScopedLogger(t *testing.T) {
	r := newMWEngine(RequestID(), Logger())
	var sawLogger bool
	r.GET("/x", func(c *gin.Context) {
		if lg := LoggerFrom(c); lg != nil {
			sawLogger = true
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if !sawLogger {
		t.Fatalf("request-scoped logger missing")
	}
}

func TestLoggerFrom_FallsBackWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if lg := LoggerFrom(c); lg == nil {
		t.Fatalf("expected fallback logger")
	}
}

func TestRecovery_ConvertsPanicTo500(t *testing.T) {
	r := newMWEngine(RequestID(), Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !regexp.MustCompile(`"code":"internal_error"`).MatchString(body) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("no-op truncate = %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abcdef", 0); got != "abcdef" {
		t.Errorf("disabled truncate = %q", got)
	}
}
