package telq

import (
	"errors"
	"net/http"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{name: "client error should not retry", errorClass: ErrorClassClient, expected: false},
		{name: "server error should retry", errorClass: ErrorClassServer, expected: true},
		{name: "network error should retry", errorClass: ErrorClassNetwork, expected: true},
		{name: "status error should not retry", errorClass: ErrorClassStatus, expected: false},
		{name: "empty error class should not retry", errorClass: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.errorClass); got != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, got, tt.expected)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   ErrorClass
	}{
		{name: "transport failure", statusCode: 0, err: errors.New("dial tcp"), expected: ErrorClassNetwork},
		{name: "not found", statusCode: 404, expected: ErrorClassClient},
		{name: "bad request", statusCode: 400, expected: ErrorClassClient},
		{name: "internal error", statusCode: 500, expected: ErrorClassServer},
		{name: "bad gateway", statusCode: 502, expected: ErrorClassServer},
		{name: "created", statusCode: 201, expected: ErrorClassStatus},
		{name: "redirect", statusCode: 304, expected: ErrorClassStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyError(tt.statusCode, tt.err); got != tt.expected {
				t.Errorf("classifyError(%d, %v) = %q, want %q", tt.statusCode, tt.err, got, tt.expected)
			}
		})
	}
}

func TestRequestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		reqErr   *RequestError
		expected string
	}{
		{
			name: "with status",
			reqErr: &RequestError{
				Err:        errors.New("unexpected status: 500 Internal Server Error"),
				StatusCode: 500,
				Class:      ErrorClassServer,
			},
			expected: "telq server error (status 500): unexpected status: 500 Internal Server Error",
		},
		{
			name: "without status",
			reqErr: &RequestError{
				Err:   errors.New("connection refused"),
				Class: ErrorClassNetwork,
			},
			expected: "telq network error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reqErr.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRequestError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying")
	reqErr := &RequestError{Err: underlying, Class: ErrorClassNetwork}

	if !errors.Is(reqErr, underlying) {
		t.Error("errors.Is should find the underlying error")
	}
	if reqErr.HasStatus() {
		t.Error("HasStatus() should be false without a status code")
	}
}

func TestStatusError(t *testing.T) {
	reqErr := statusError(&Response{
		StatusCode: http.StatusNotFound,
		Body:       []byte(`{"error":"not found"}`),
	})

	if reqErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", reqErr.StatusCode)
	}
	if reqErr.Class != ErrorClassClient {
		t.Errorf("Class = %q, want client", reqErr.Class)
	}
	if !errors.Is(reqErr, ErrUnexpectedStatus) {
		t.Error("status error should wrap ErrUnexpectedStatus")
	}
	body, ok := reqErr.Body.(map[string]any)
	if !ok || body["error"] != "not found" {
		t.Errorf("Body = %v, want decoded JSON", reqErr.Body)
	}
}

func TestAsRequestError(t *testing.T) {
	if _, ok := AsRequestError(errors.New("plain")); ok {
		t.Error("plain error should not be a RequestError")
	}

	wrapped := errors.Join(errors.New("context"), &RequestError{StatusCode: 500, Class: ErrorClassServer, Err: ErrUnexpectedStatus})
	reqErr, ok := AsRequestError(wrapped)
	if !ok || reqErr.StatusCode != 500 {
		t.Errorf("AsRequestError(wrapped) = %v, %v", reqErr, ok)
	}
}
