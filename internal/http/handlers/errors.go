// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase, snake_case, and stable: clients branch on them for
// programmatic error handling, supplementing the human-readable message.
// Generic codes mirror common HTTP status semantics; domain-specific codes
// cover outcomes a status alone cannot convey.
package handlers

const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeTooLarge    = "payload_too_large"
	ErrCodeRateLimited = "too_many_requests"
	ErrCodeInternal    = "internal_error"

	// Domain-specific:
	ErrCodeInvalidCSV       = "invalid_csv"
	ErrCodeUploadFailed     = "upload_failed"
	ErrCodeTestFailed       = "webhook_test_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
