package cache

import (
	"net/http"
	"time"
)

// Meta is the ancillary response data stored next to a cached body.
type Meta struct {
	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Header are the response headers
	Header http.Header `json:"header"`
}

// Entry represents a cached request result.
type Entry struct {
	// ID is the request identity (canonical address + sorted query)
	ID string `json:"id"`

	// Body is the parsed response payload
	Body any `json:"body"`

	// Meta is the response metadata
	Meta Meta `json:"meta"`

	// Expires is when the entry stops being eligible to serve reads
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was created
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry builds an entry that expires ttl after now.
// It returns false when ttl is not positive: such results are not cached.
func NewEntry(id string, body any, meta Meta, now time.Time, ttl time.Duration) (*Entry, bool) {
	if ttl <= 0 {
		return nil, false
	}
	return &Entry{
		ID:       id,
		Body:     body,
		Meta:     meta,
		Expires:  now.Add(ttl),
		CachedAt: now,
	}, true
}

// Value returns the (body, metadata) pair.
func (e *Entry) Value() (any, Meta) {
	return e.Body, e.Meta
}

// IsExpiredAt reports whether the entry has expired at the given instant.
// An entry is live strictly before its Expires time.
func (e *Entry) IsExpiredAt(now time.Time) bool {
	return !now.Before(e.Expires)
}

// IsExpired returns true if the cache entry has expired.
func (e *Entry) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
