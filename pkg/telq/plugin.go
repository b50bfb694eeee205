package telq

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Operation is an asynchronous capability resolved by name at call time.
// HTTP get/post and every plugin-contributed backend share this shape.
type Operation func(ctx context.Context, args any) (any, error)

// Plugin extends a client, conventionally by registering operations.
// opts is whatever the caller passed to Use.
type Plugin func(c *Client, opts any) error

// Use invokes plugin with the client and opts and returns its result.
// A nil plugin is a wiring error reported immediately.
func (c *Client) Use(plugin Plugin, opts any) error {
	if plugin == nil {
		return ErrInvalidPlugin
	}
	return plugin(c, opts)
}

// MustUse is like Use but panics on error.
func (c *Client) MustUse(plugin Plugin, opts any) {
	if err := c.Use(plugin, opts); err != nil {
		panic(fmt.Sprintf("telq: %v", err))
	}
}

// Register adds a named operation.
func (c *Client) Register(name string, op Operation) error {
	if name == "" || op == nil {
		return fmt.Errorf("%w: %q", ErrInvalidOperation, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.ops[name]; exists {
		return fmt.Errorf("%w: %s", ErrOperationExists, name)
	}
	c.ops[name] = op

	c.logger.Debug().Str("operation", name).Msg("Registered operation")
	return nil
}

// Has reports whether an operation is registered under name.
func (c *Client) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.ops[name]
	return ok
}

// Operations returns the registered operation names, sorted.
func (c *Client) Operations() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.ops))
	for name := range c.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs the operation registered under name. Plugin operations never
// touch the GET cache.
func (c *Client) Call(ctx context.Context, name string, args any) (any, error) {
	c.mu.RLock()
	op, ok := c.ops[name]
	c.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	// get and post record their own metrics
	if name == OpGet || name == OpPost {
		return op(ctx, args)
	}

	start := time.Now()
	result, err := op(ctx, args)
	telqRequestDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	status := "ok"
	if err != nil {
		status = "error"
		c.logger.Debug().Err(err).Str("operation", name).Msg("Operation failed")
	}
	telqRequestsTotal.WithLabelValues(name, status).Inc()

	return result, err
}
