// Package webhook – retry policy.
//
// The policy governs the fan-out as a whole and is deliberately decoupled
// from the per-subscription error isolation inside Dispatcher.Notify: a
// subscription-level failure never consumes an attempt, only a
// dispatcher-internal error does.
package webhook

import "time"

// RetryPolicy bounds how often a failed fan-out is re-run.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int
	// Backoff is the fixed delay before each re-attempt.
	Backoff time.Duration
}

// DefaultRetryPolicy mirrors the delivery contract: three attempts with a
// minute between them.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 60 * time.Second}

// ShouldRetry reports whether another attempt is allowed after `attempts`
// tries have already run.
func (p RetryPolicy) ShouldRetry(attempts int) bool {
	return attempts < p.MaxAttempts
}

// NextDelay returns the wait before the attempt following `attempts` tries.
func (p RetryPolicy) NextDelay(attempts int) time.Duration {
	return p.Backoff
}
