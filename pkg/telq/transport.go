package telq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is a resolved outbound call handed to a Transport.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is what a Transport returns for a completed exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs a single outbound exchange. An error means no
// response was produced; any status code is returned as a Response.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Do calls f.
func (f TransportFunc) Do(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// HTTPTransport sends requests with a net/http client.
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

// NewHTTPTransport creates a transport. A nil client gets a default
// client with the given timeout.
func NewHTTPTransport(client *http.Client, userAgent string, timeout time.Duration) *HTTPTransport {
	if client == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPTransport{
		client:    client,
		userAgent: userAgent,
	}
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for key, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(key, value)
		}
	}
	if t.userAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.userAgent)
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       data,
	}, nil
}

// decodeBody parses a JSON body. Bodies that are not JSON text are
// returned as a string, and an empty body as nil.
func decodeBody(data []byte) any {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if !json.Valid(data) {
		return string(data)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return v
}

// encodeBody turns a POST body into bytes. Byte slices, strings and
// readers are sent as-is; anything else is encoded as JSON.
func encodeBody(body any) ([]byte, bool, error) {
	switch b := body.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		return b, false, nil
	case json.RawMessage:
		return b, true, nil
	case string:
		return []byte(b), false, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, false, fmt.Errorf("read body: %w", err)
		}
		return data, false, nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("encode body: %w", err)
	}
	return data, true, nil
}
