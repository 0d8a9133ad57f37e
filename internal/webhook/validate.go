// Package webhook – subscription input validation.
package webhook

import (
	"net/url"
	"strings"
)

// ValidURL reports whether s is an absolute http(s) URL with a host, the
// only shape accepted for subscription endpoints.
func ValidURL(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}
