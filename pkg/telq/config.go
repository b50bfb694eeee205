package telq

import (
	"net/http"
	"time"

	"github.com/Sternrassler/telq/pkg/cache"
	"github.com/Sternrassler/telq/pkg/params"
	"github.com/rs/zerolog"
)

// Config holds the client configuration.
type Config struct {
	// Transport performs outbound calls (default: HTTPTransport)
	Transport Transport

	// Registry caches GET results (default: a new registry owned by the client)
	Registry *cache.Registry

	// Caching
	CacheEnabled bool          // Serve and populate the GET cache
	CacheUnit    time.Duration // Unit of Options.Expires

	// HTTP
	UserAgent string
	Timeout   time.Duration // Default transport timeout

	// Retry (MaxAttempts 1 disables retries)
	Retry RetryConfig

	// Logger (default: global logger with component=telq)
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration: caching on, cache
// durations in minutes, no retries.
func DefaultConfig() Config {
	return Config{
		CacheEnabled: true,
		CacheUnit:    time.Minute,
		UserAgent:    "telq/0.1.0",
		Timeout:      30 * time.Second,
		Retry:        NoRetry(),
	}
}

// Options describes a single GET or POST call.
type Options struct {
	// URL is the target address
	URL string

	// Source is an alias of URL, used when URL is empty
	Source string

	// Params are the query parameters
	Params params.Params

	// Query is an alias of Params, used when Params is empty
	Query params.Params

	// Expires is the cache duration in Config.CacheUnit units; 0 disables caching
	Expires float64

	// Header is sent with the request
	Header http.Header

	// Body is the POST payload
	Body any
}

// target resolves the address and parameters, honoring the aliases.
func (o Options) target() (string, params.Params) {
	url := o.URL
	if url == "" {
		url = o.Source
	}
	p := o.Params
	if len(p) == 0 {
		p = o.Query
	}
	return url, p
}
