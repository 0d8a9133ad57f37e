// Package webhook implements outbound event notification: fan-out delivery
// of one event to every enabled subscription, with per-subscription failure
// isolation, and a synchronous test path for operators.
//
// Delivery semantics (at-least-once, not idempotent for subscribers):
//   - A subscription that is unreachable or answers non-2xx never affects
//     the other subscriptions for the same event; the failure is logged and
//     the loop continues.
//   - Only a dispatcher-internal error (subscription lookup, payload
//     serialization) is surfaced to the caller, where the job runner retries
//     the whole fan-out under RetryPolicy. A retried fan-out may re-deliver
//     to subscriptions that already succeeded.
//   - last_triggered_at is stamped after every completed request, regardless
//     of the remote status code; transport-level failures do not stamp it.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-product-importer/internal/domain"
	"github.com/tbourn/go-product-importer/internal/repo"
)

// DefaultTimeout bounds every outbound delivery request.
const DefaultTimeout = 10 * time.Second

// ErrWebhookNotFound indicates the requested subscription does not exist.
var ErrWebhookNotFound = errors.New("webhook not found")

// Envelope is the JSON body delivered to subscribers.
type Envelope struct {
	Event     string `json:"event"`
	Data      any    `json:"data"`
	Timestamp string `json:"timestamp"`
}

// TestResult reports the outcome of a synchronous test delivery.
type TestResult struct {
	StatusCode   int     `json:"status_code"`
	ResponseTime float64 `json:"response_time"` // seconds
}

// Dispatcher delivers event payloads to webhook subscriptions.
type Dispatcher struct {
	DB     *gorm.DB
	Client *http.Client // defaults to a client with DefaultTimeout
}

// NewDispatcher returns a Dispatcher using db for subscription lookups and a
// delivery client bounded by timeout (DefaultTimeout when <= 0).
func NewDispatcher(db *gorm.DB, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		DB:     db,
		Client: &http.Client{Timeout: timeout},
	}
}

func (d *Dispatcher) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// Notify delivers the event payload to every enabled subscription for
// eventType, independently. It returns an error only for dispatcher-internal
// failures; individual delivery failures are isolated and logged.
func (d *Dispatcher) Notify(ctx context.Context, eventType string, data any) error {
	tr := otel.Tracer("webhook/Dispatcher")
	ctx, span := tr.Start(ctx, "Notify",
		trace.WithAttributes(attribute.String("event.type", eventType)),
	)
	defer span.End()

	hooks, err := repo.ListEnabledWebhooks(ctx, d.DB, eventType)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	if len(hooks) == 0 {
		return nil
	}

	body, err := json.Marshal(Envelope{
		Event:     eventType,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	span.SetAttributes(attribute.Int("subscriptions", len(hooks)))
	for i := range hooks {
		d.deliver(ctx, &hooks[i], body)
	}
	return nil
}

// deliver POSTs the envelope to one subscription. Failures stay local: they
// are logged and counted, never returned.
func (d *Dispatcher) deliver(ctx context.Context, w *domain.Webhook, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		deliveriesTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("url", w.URL).Msg("build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client().Do(req)
	if err != nil {
		deliveriesTotal.WithLabelValues("error").Inc()
		log.Warn().Err(err).Str("url", w.URL).Str("event", w.EventType).Msg("webhook delivery failed")
		return
	}
	resp.Body.Close()

	// The request completed; stamp the attempt whatever the remote said.
	if err := repo.TouchWebhook(ctx, d.DB, w.ID, time.Now().UTC()); err != nil {
		log.Error().Err(err).Str("webhook_id", w.ID).Msg("update last_triggered_at")
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		deliveriesTotal.WithLabelValues("success").Inc()
		log.Info().Str("url", w.URL).Int("status", resp.StatusCode).Msg("webhook delivered")
	} else {
		deliveriesTotal.WithLabelValues("rejected").Inc()
		log.Warn().Str("url", w.URL).Int("status", resp.StatusCode).Msg("webhook rejected")
	}
}

// Test sends one synthetic payload to the subscription identified by id and
// reports the remote status and latency. It sits outside the retry policy:
// transport failures are returned to the caller directly. last_triggered_at
// is stamped only when the request completes.
func (d *Dispatcher) Test(ctx context.Context, id string) (*TestResult, error) {
	w, err := repo.GetWebhook(ctx, d.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrWebhookNotFound
		}
		return nil, err
	}

	body, err := json.Marshal(Envelope{
		Event: w.EventType,
		Data: map[string]any{
			"test":    true,
			"message": "This is a test webhook notification",
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := d.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("webhook test failed: %w", err)
	}
	resp.Body.Close()
	elapsed := time.Since(start)

	if terr := repo.TouchWebhook(ctx, d.DB, w.ID, time.Now().UTC()); terr != nil {
		log.Error().Err(terr).Str("webhook_id", w.ID).Msg("update last_triggered_at")
	}

	return &TestResult{
		StatusCode:   resp.StatusCode,
		ResponseTime: elapsed.Seconds(),
	}, nil
}
