package telq

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors returned by the client.
var (
	// ErrNoURL is returned when neither URL nor Source is set.
	ErrNoURL = errors.New("no url or source provided")

	// ErrUnexpectedStatus is wrapped by RequestError for non-success responses.
	ErrUnexpectedStatus = errors.New("unexpected status")

	// ErrInvalidPlugin is returned by Use when the plugin is not a function.
	ErrInvalidPlugin = errors.New("must provide telq plugin as a function")

	// ErrInvalidOperation is returned by Register for an empty name or nil handler.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrOperationExists is returned by Register when the name is taken.
	ErrOperationExists = errors.New("operation already registered")

	// ErrUnknownOperation is returned by Call for unregistered names.
	ErrUnknownOperation = errors.New("unknown operation")

	// ErrInvalidArgs is returned when an operation receives arguments of the wrong type.
	ErrInvalidArgs = errors.New("invalid operation arguments")

	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures where no response was produced.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassStatus represents any other status the caller did not accept.
	ErrorClassStatus ErrorClass = "status"
)

// RequestError is the structured rejection of a GET or POST.
type RequestError struct {
	// Err is the underlying error
	Err error

	// Body is the response body (decoded when it is JSON), nil without a response
	Body any

	// StatusCode is the response status, 0 when the transport never produced a response
	StatusCode int

	// Class is the error classification
	Class ErrorClass
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("telq %s error: %v", e.Class, e.Err)
	}
	return fmt.Sprintf("telq %s error (status %d): %v", e.Class, e.StatusCode, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *RequestError) Unwrap() error {
	return e.Err
}

// HasStatus reports whether the transport produced a response.
func (e *RequestError) HasStatus() bool {
	return e.StatusCode != 0
}

// classifyError categorizes a failure for observability and retry decisions.
func classifyError(statusCode int, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ErrorClassStatus
	}
}

// shouldRetry determines if an error should be retried based on its classification.
func shouldRetry(errorClass ErrorClass) bool {
	switch errorClass {
	case ErrorClassServer, ErrorClassNetwork:
		return true
	default:
		return false
	}
}

func statusError(resp *Response) *RequestError {
	return &RequestError{
		Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, statusText(resp.StatusCode)),
		Body:       decodeBody(resp.Body),
		StatusCode: resp.StatusCode,
		Class:      classifyError(resp.StatusCode, nil),
	}
}

func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}
	return fmt.Sprintf("%d", code)
}
