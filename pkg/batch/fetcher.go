package batch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Sternrassler/telq/pkg/telq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Config holds fetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests
	MaxConcurrency int
	// Timeout per request
	Timeout time.Duration
	// Logger (default: global logger with component=batch)
	Logger *zerolog.Logger
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 10,
		Timeout:        15 * time.Second,
	}
}

// Getter performs a single request. *telq.Client implements it.
type Getter interface {
	Get(ctx context.Context, opts telq.Options) (any, error)
}

// Fetcher runs requests through a Getter with bounded concurrency.
type Fetcher struct {
	getter Getter
	config Config
	logger zerolog.Logger
}

// NewFetcher creates a fetcher. Non-positive config values fall back to
// the defaults.
func NewFetcher(getter Getter, config Config) *Fetcher {
	defaults := DefaultConfig()
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	logger := log.With().Str("component", "batch").Logger()
	if config.Logger != nil {
		logger = *config.Logger
	}

	return &Fetcher{
		getter: getter,
		config: config,
		logger: logger,
	}
}

// FetchAll runs every request and returns the results by index. Failed
// requests leave a nil slot; the first failure is returned as the error.
func (f *Fetcher) FetchAll(ctx context.Context, requests []telq.Options) ([]any, error) {
	results := make([]any, len(requests))
	err := f.run(ctx, len(requests), func(ctx context.Context, i int) error {
		v, err := f.getter.Get(ctx, requests[i])
		if err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
		results[i] = v
		return nil
	})
	return results, err
}

// FetchMap runs every request and returns the results under their keys.
// Failed requests are absent from the map; the first failure is returned
// as the error.
func (f *Fetcher) FetchMap(ctx context.Context, requests map[string]telq.Options) (map[string]any, error) {
	keys := make([]string, 0, len(requests))
	for key := range requests {
		keys = append(keys, key)
	}

	values := make([]any, len(keys))
	ok := make([]bool, len(keys))
	err := f.run(ctx, len(keys), func(ctx context.Context, i int) error {
		v, err := f.getter.Get(ctx, requests[keys[i]])
		if err != nil {
			return fmt.Errorf("request %q: %w", keys[i], err)
		}
		values[i], ok[i] = v, true
		return nil
	})

	results := make(map[string]any, len(keys))
	for i, key := range keys {
		if ok[i] {
			results[key] = values[i]
		}
	}
	return results, err
}

// run calls fn for indexes 0..n-1 on at most MaxConcurrency goroutines.
// A failure does not cancel the remaining calls.
func (f *Fetcher) run(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	start := time.Now()
	var failed atomic.Int32

	f.logger.Debug().
		Int("requests", n).
		Int("concurrency", f.config.MaxConcurrency).
		Msg("Starting batch fetch")

	var g errgroup.Group
	g.SetLimit(f.config.MaxConcurrency)

	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			failed.Add(int32(n - i))
			g.Go(ctx.Err)
			break
		}

		g.Go(func() error {
			reqCtx, cancel := context.WithTimeout(ctx, f.config.Timeout)
			defer cancel()

			if err := fn(reqCtx, i); err != nil {
				failed.Add(1)
				f.logger.Warn().Err(err).Int("index", i).Msg("Batch request failed")
				return err
			}
			return nil
		})
	}

	err := g.Wait()

	f.logger.Debug().
		Int("requests", n).
		Int32("failed", failed.Load()).
		Dur("duration", time.Since(start)).
		Msg("Batch fetch complete")

	if err != nil {
		return fmt.Errorf("batch (partial data: %d/%d succeeded): %w", n-int(failed.Load()), n, err)
	}
	return nil
}
