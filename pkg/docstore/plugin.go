// Package docstore exposes document-database queries as a telq operation.
//
// The plugin registers a single operation (default name "dbMongoose") that
// takes a Request and runs it against a Model:
//
//	client.MustUse(docstore.Plugin, docstore.Options{Model: docstore.NewMongoModel(coll)})
//	users, err := client.Call(ctx, "dbMongoose", docstore.Request{
//		Query: map[string]any{"active": true},
//	})
//
// Results never pass through the telq GET cache.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Sternrassler/telq/pkg/telq"
	"github.com/rs/zerolog"
)

// DefaultName is the operation name registered when Options.Name is empty.
const DefaultName = "dbMongoose"

// DefaultOperation is used when Request.Operation is empty.
const DefaultOperation = "find"

var (
	// ErrNoModel is returned when neither the request nor the plugin has a model.
	ErrNoModel = errors.New("no model")

	// ErrUnsupportedOperation is returned by a Model for operations it cannot run.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// Model runs a named operation against a document collection.
//
// conditions is nil when the caller supplied none. When it is set, it is
// the filter and query is the operation argument (projection, update
// document); otherwise query is the filter.
type Model interface {
	Exec(ctx context.Context, operation string, query, conditions map[string]any) (any, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, operation string, query, conditions map[string]any) (any, error)

// Exec calls f.
func (f ModelFunc) Exec(ctx context.Context, operation string, query, conditions map[string]any) (any, error) {
	return f(ctx, operation, query, conditions)
}

// Request is the argument of the docstore operation.
type Request struct {
	Operation  string
	Query      map[string]any
	Conditions map[string]any

	// Model overrides the plugin's default model.
	Model Model
}

// Options configures the plugin.
type Options struct {
	// Name of the registered operation (default "dbMongoose")
	Name string

	// Model is used for requests that carry none
	Model Model
}

// Plugin registers the docstore operation on c. opts may be nil, Options
// or *Options.
func Plugin(c *telq.Client, opts any) error {
	var o Options
	switch v := opts.(type) {
	case nil:
	case Options:
		o = v
	case *Options:
		if v != nil {
			o = *v
		}
	default:
		return fmt.Errorf("docstore: unexpected plugin options %T", opts)
	}

	if o.Name == "" {
		o.Name = DefaultName
	}

	logger := c.Logger().With().Str("plugin", "docstore").Str("operation", o.Name).Logger()
	store := &store{model: o.Model, logger: logger}

	return c.Register(o.Name, store.call)
}

type store struct {
	model  Model
	logger zerolog.Logger
}

func (s *store) call(ctx context.Context, args any) (any, error) {
	var req Request
	switch v := args.(type) {
	case Request:
		req = v
	case *Request:
		if v == nil {
			return nil, ErrNoModel
		}
		req = *v
	default:
		return nil, fmt.Errorf("%w: want docstore.Request, got %T", telq.ErrInvalidArgs, args)
	}

	if req.Model == nil {
		req.Model = s.model
	}

	s.logger.Debug().Str("db_operation", req.Operation).Msg("Executing document query")
	return Exec(ctx, req)
}

// Exec applies the request defaults and runs it against req.Model. Model
// errors are returned unchanged.
func Exec(ctx context.Context, req Request) (any, error) {
	if req.Model == nil {
		return nil, ErrNoModel
	}

	operation := req.Operation
	if operation == "" {
		operation = DefaultOperation
	}

	query := req.Query
	if query == nil {
		query = map[string]any{}
	}

	return req.Model.Exec(ctx, operation, query, req.Conditions)
}
