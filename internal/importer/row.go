// Package importer – CSV row parsing.
//
// Raw CSV records are converted into a strongly-typed row value by an
// explicit per-row step that maps missing optional columns to documented
// defaults (description "", quantity 0, is_active true). Header names are
// normalized once per file; unknown columns are ignored.
package importer

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Required CSV columns, after header normalization.
var requiredColumns = []string{"sku", "name", "price"}

// ErrMissingColumns is wrapped by the error returned when the header lacks
// one or more required columns.
var ErrMissingColumns = errors.New("missing required columns")

// header maps normalized column names to their position in each record.
type header map[string]int

// newHeader normalizes raw header fields (lower-case, trimmed) and verifies
// the required columns are present. The returned error names every missing
// column, sorted for determinism.
func newHeader(fields []string) (header, error) {
	h := make(header, len(fields))
	for i, f := range fields {
		name := strings.ToLower(strings.TrimSpace(f))
		if name == "" {
			continue
		}
		// First occurrence wins on duplicate headers.
		if _, ok := h[name]; !ok {
			h[name] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := h[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return h, nil
}

// ValidateColumns checks a raw header row for the required columns, with
// the same normalization the pipeline applies. Used by the upload endpoint
// to reject unusable files before a job is queued.
func ValidateColumns(fields []string) error {
	_, err := newHeader(fields)
	return err
}

// get returns the trimmed cell under col, and whether the column exists and
// the record is wide enough to contain it.
func (h header) get(record []string, col string) (string, bool) {
	i, ok := h[col]
	if !ok || i >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[i]), true
}

// row is one validated CSV line, ready for reconciliation.
type row struct {
	SKU         string
	Name        string
	Description string
	Price       float64
	Quantity    int
	IsActive    bool
}

// parseRow converts one CSV record into a row. It returns an error for any
// rejection condition: bad SKU format, empty name, negative or non-numeric
// price or quantity. Rejected rows are counted by the caller and skipped;
// they never abort the chunk.
func parseRow(h header, record []string) (row, error) {
	r := row{Quantity: 0, IsActive: true}

	sku, _ := h.get(record, "sku")
	if !ValidSKU(sku) {
		return r, fmt.Errorf("invalid sku %q", sku)
	}
	r.SKU = sku

	name, _ := h.get(record, "name")
	if name == "" {
		return r, errors.New("empty name")
	}
	r.Name = name

	priceStr, _ := h.get(record, "price")
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || !ValidPrice(price) {
		return r, fmt.Errorf("invalid price %q", priceStr)
	}
	r.Price = price

	if desc, ok := h.get(record, "description"); ok {
		r.Description = desc
	}

	if qStr, ok := h.get(record, "quantity"); ok {
		q, err := strconv.Atoi(qStr)
		if err != nil || !ValidQuantity(q) {
			return r, fmt.Errorf("invalid quantity %q", qStr)
		}
		r.Quantity = q
	}

	if aStr, ok := h.get(record, "is_active"); ok && aStr != "" {
		r.IsActive = truthy(aStr)
	}

	return r, nil
}

// truthy maps common boolean spellings to a flag; anything unrecognized is
// treated as false.
func truthy(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y", "on", "t":
		return true
	default:
		return false
	}
}
