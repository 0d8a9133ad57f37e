// Package importer implements the asynchronous CSV import pipeline: chunked
// streaming of the source file, per-row validation, case-insensitive
// upsert-by-SKU reconciliation against the product table, per-chunk commits,
// and progress snapshot publication after every chunk.
package importer

import "regexp"

// skuRE is the accepted SKU shape: 1-100 chars of alphanumerics, hyphens,
// and underscores. Matching is case-preserving; uniqueness is enforced on
// the lower-cased form elsewhere.
var skuRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// ValidSKU reports whether sku satisfies the SKU format rule.
func ValidSKU(sku string) bool {
	return skuRE.MatchString(sku)
}

// ValidPrice reports whether price is acceptable (non-negative).
func ValidPrice(price float64) bool {
	return price >= 0
}

// ValidQuantity reports whether quantity is acceptable (non-negative).
func ValidQuantity(quantity int) bool {
	return quantity >= 0
}
