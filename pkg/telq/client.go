// Package telq provides a cache-aware request facade: GET and POST over a
// pluggable transport, memoized GET results, and named operations
// contributed by plugins (document store, relational store, key-value
// store).
package telq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/telq/pkg/cache"
	"github.com/Sternrassler/telq/pkg/params"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for facade operations.
var (
	telqRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telq_requests_total",
		Help: "Total operations by name and outcome",
	}, []string{"operation", "status"})

	telqRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "telq_request_duration_seconds",
		Help:    "Operation duration in seconds by name",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"operation"})

	telqErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telq_errors_total",
		Help: "Total request errors by class",
	}, []string{"class"})
)

// Built-in operation names.
const (
	OpGet  = "get"
	OpPost = "post"
)

// Client is the request facade.
type Client struct {
	transport    Transport
	registry     *cache.Registry
	ownsRegistry bool
	config       Config
	logger       zerolog.Logger

	mu      sync.RWMutex
	ops     map[string]Operation
	closers []func() error
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.CacheEnabled && cfg.CacheUnit <= 0 {
		return nil, fmt.Errorf("cache unit must be positive (got %s)", cfg.CacheUnit)
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = NoRetry()
	}

	logger := log.With().Str("component", "telq").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	transport := cfg.Transport
	if transport == nil {
		transport = NewHTTPTransport(nil, cfg.UserAgent, cfg.Timeout)
	}

	registry := cfg.Registry
	owns := false
	if registry == nil {
		registry = cache.NewRegistry(cache.WithLogger(logger))
		owns = true
	}

	c := &Client{
		transport:    transport,
		registry:     registry,
		ownsRegistry: owns,
		config:       cfg,
		logger:       logger,
		ops:          make(map[string]Operation),
	}

	c.ops[OpGet] = optionsOperation(c.Get)
	c.ops[OpPost] = optionsOperation(c.Post)

	return c, nil
}

// Get performs a cache-aware GET.
//
// The request identity is the target address plus the canonical query
// string. A live cached entry for that identity is returned without
// calling the transport. Otherwise the transport is called; a 200
// response is decoded, cached when opts.Expires is positive, and
// returned. Any other outcome is a *RequestError.
func (c *Client) Get(ctx context.Context, opts Options) (any, error) {
	target, p := opts.target()
	if target == "" {
		return nil, ErrNoURL
	}

	start := time.Now()
	defer func() {
		telqRequestDuration.WithLabelValues(OpGet).Observe(time.Since(start).Seconds())
	}()

	identity := params.Identity(target, p)
	ttl := c.cacheTTL(opts.Expires)

	if c.config.CacheEnabled {
		if entry, ok := c.registry.Lookup(identity); ok {
			c.logger.Debug().Str("id", identity).Msg("Cache hit")
			telqRequestsTotal.WithLabelValues(OpGet, "cache_hit").Inc()
			return entry.Body, nil
		}
	}

	resp, err := c.do(ctx, &Request{
		Method: http.MethodGet,
		URL:    identity,
		Header: opts.Header.Clone(),
	}, func(code int) bool { return code == http.StatusOK })
	if err != nil {
		return nil, err
	}

	body := decodeBody(resp.Body)

	if c.config.CacheEnabled {
		meta := cache.Meta{StatusCode: resp.StatusCode, Header: resp.Header}
		if entry, ok := cache.NewEntry(identity, body, meta, c.registry.Now(), ttl); ok {
			c.registry.Add(entry)
		}
	}

	return body, nil
}

// Post sends opts.Body to the target. It never reads or writes the cache.
// Any 2xx response is a success and its decoded body is returned.
func (c *Client) Post(ctx context.Context, opts Options) (any, error) {
	target, p := opts.target()
	if target == "" {
		return nil, ErrNoURL
	}

	start := time.Now()
	defer func() {
		telqRequestDuration.WithLabelValues(OpPost).Observe(time.Since(start).Seconds())
	}()

	payload, isJSON, err := encodeBody(opts.Body)
	if err != nil {
		return nil, err
	}

	header := opts.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if isJSON && header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(ctx, &Request{
		Method: http.MethodPost,
		URL:    params.Identity(target, p),
		Header: header,
		Body:   payload,
	}, func(code int) bool { return code >= 200 && code < 300 })
	if err != nil {
		return nil, err
	}

	return decodeBody(resp.Body), nil
}

// do runs the transport with the configured retry policy. Responses whose
// status is not accepted are returned as *RequestError.
func (c *Client) do(ctx context.Context, req *Request, accept func(int) bool) (*Response, error) {
	operation := lowerMethod(req.Method)

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL).
		Msg("Executing request")

	var resp *Response
	err := retryWithBackoff(ctx, c.config.Retry, c.logger, func() error {
		r, err := c.transport.Do(ctx, req)
		if err != nil {
			class := classifyError(0, err)
			telqErrorsTotal.WithLabelValues(string(class)).Inc()
			telqRequestsTotal.WithLabelValues(operation, "network_error").Inc()
			return &RequestError{Err: err, Class: class}
		}

		telqRequestsTotal.WithLabelValues(operation, fmt.Sprintf("%d", r.StatusCode)).Inc()

		if !accept(r.StatusCode) {
			reqErr := statusError(r)
			telqErrorsTotal.WithLabelValues(string(reqErr.Class)).Inc()
			c.logger.Debug().
				Str("url", req.URL).
				Int("status", r.StatusCode).
				Str("error_class", string(reqErr.Class)).
				Msg("Request rejected")
			return reqErr
		}

		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// cacheTTL scales a caller duration hint into an absolute duration.
func (c *Client) cacheTTL(expires float64) time.Duration {
	if expires <= 0 {
		return 0
	}
	return time.Duration(expires * float64(c.config.CacheUnit))
}

// Cache returns the registry used for GET results.
func (c *Client) Cache() *cache.Registry {
	return c.registry
}

// Logger returns the client logger. Plugins derive their loggers from it.
func (c *Client) Logger() zerolog.Logger {
	return c.logger
}

// OnClose registers fn to run when the client is closed. Plugins use it
// to release connections they hold.
func (c *Client) OnClose(fn func() error) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Close runs the close hooks in reverse order and disposes the registry
// if the client created it. Close hooks run once.
func (c *Client) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	if c.ownsRegistry {
		c.registry.Close()
	}
	return errors.Join(errs...)
}

// optionsOperation exposes an Options-based method as an Operation.
func optionsOperation(fn func(context.Context, Options) (any, error)) Operation {
	return func(ctx context.Context, args any) (any, error) {
		switch opts := args.(type) {
		case Options:
			return fn(ctx, opts)
		case *Options:
			if opts == nil {
				return nil, ErrNoURL
			}
			return fn(ctx, *opts)
		default:
			return nil, fmt.Errorf("%w: want telq.Options, got %T", ErrInvalidArgs, args)
		}
	}
}

func lowerMethod(method string) string {
	switch method {
	case http.MethodGet:
		return OpGet
	case http.MethodPost:
		return OpPost
	default:
		return method
	}
}

// AsRequestError extracts a *RequestError from err.
func AsRequestError(err error) (*RequestError, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr, true
	}
	return nil, false
}
