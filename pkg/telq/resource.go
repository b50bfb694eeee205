package telq

import (
	"context"
	"fmt"
)

// bodyErrorKeys are the fields some upstream services use to report a
// failure inside a 200 response.
var bodyErrorKeys = []string{"errorId", "errorMessage", "Error"}

// BodyError reports a successful response whose body describes an error.
type BodyError struct {
	Body map[string]any
}

// Error implements the error interface.
func (e *BodyError) Error() string {
	for _, key := range []string{"errorMessage", "Error", "errorId"} {
		if v, ok := e.Body[key]; ok {
			return fmt.Sprintf("response reports error: %v", v)
		}
	}
	return "response reports error"
}

// CheckBody returns a *BodyError when v is a JSON object carrying one of
// the error fields.
func CheckBody(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range bodyErrorKeys {
		if _, found := obj[key]; found {
			return &BodyError{Body: obj}
		}
	}
	return nil
}

// Resource wraps a Client and rejects GET results that report an error
// in their body.
type Resource struct {
	client *Client
}

// NewResource creates a Resource on top of c.
func NewResource(c *Client) *Resource {
	return &Resource{client: c}
}

// Get performs c.Get and applies CheckBody to the result.
func (r *Resource) Get(ctx context.Context, opts Options) (any, error) {
	v, err := r.client.Get(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := CheckBody(v); err != nil {
		return nil, err
	}
	return v, nil
}
