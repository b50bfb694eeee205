package telq

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Future is the pending result of an asynchronous call. It settles
// exactly once.
type Future struct {
	done  chan struct{}
	value any
	err   error
}

// Go runs fn in a new goroutine and returns its Future immediately.
func Go(ctx context.Context, fn func(context.Context) (any, error)) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = fn(ctx)
	}()
	return f
}

// Resolved returns a Future already settled with v.
func Resolved(v any) *Future {
	f := &Future{done: make(chan struct{}), value: v}
	close(f.done)
	return f
}

// Rejected returns a Future already settled with err.
func Rejected(err error) *Future {
	f := &Future{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}

// Done is closed once the Future settles.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the Future settles or ctx is done. A cancelled ctx
// does not cancel the underlying call.
func (f *Future) Await(ctx context.Context) (any, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// All waits for every Future and returns their values in order. The
// first rejection is returned and the remaining waits are abandoned.
func All(ctx context.Context, futures ...*Future) ([]any, error) {
	results := make([]any, len(futures))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range futures {
		g.Go(func() error {
			v, err := f.Await(gctx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// GetAsync runs Get in the background.
func (c *Client) GetAsync(ctx context.Context, opts Options) *Future {
	return Go(ctx, func(ctx context.Context) (any, error) {
		return c.Get(ctx, opts)
	})
}

// PostAsync runs Post in the background.
func (c *Client) PostAsync(ctx context.Context, opts Options) *Future {
	return Go(ctx, func(ctx context.Context) (any, error) {
		return c.Post(ctx, opts)
	})
}

// CallAsync runs Call in the background.
func (c *Client) CallAsync(ctx context.Context, name string, args any) *Future {
	return Go(ctx, func(ctx context.Context) (any, error) {
		return c.Call(ctx, name, args)
	})
}
