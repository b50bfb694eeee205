package cache

import (
	"fmt"
	"net/http"
	"time"
)

// FreshnessHeaders describes how long e stays live at now as
// Cache-Control, Expires and Age headers. A nil or expired entry yields
// "Cache-Control: no-cache".
func FreshnessHeaders(e *Entry, now time.Time) http.Header {
	h := http.Header{}
	if e == nil || e.IsExpiredAt(now) {
		h.Set("Cache-Control", "no-cache")
		return h
	}

	// max-age is rounded down so clients never outlive the entry
	maxAge := int(e.Expires.Sub(now) / time.Second)
	h.Set("Cache-Control", fmt.Sprintf("max-age=%d", maxAge))
	h.Set("Expires", e.Expires.UTC().Format(http.TimeFormat))

	if !e.CachedAt.IsZero() {
		age := int(now.Sub(e.CachedAt) / time.Second)
		if age < 0 {
			age = 0
		}
		h.Set("Age", fmt.Sprintf("%d", age))
	}
	return h
}

// ApplyFreshness copies FreshnessHeaders(e, now) into dst.
func ApplyFreshness(dst http.Header, e *Entry, now time.Time) {
	for key, values := range FreshnessHeaders(e, now) {
		dst[key] = values
	}
}
