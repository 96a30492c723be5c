package fetchstate

import (
	"errors"
	"fmt"
)

// DefaultErrorMessage is the failure message used when the server gives none.
const DefaultErrorMessage = "Something went wrong"

// TransportError represents a request that never produced a response:
// network, DNS and context errors.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s %s failed: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError creates a transport error for the request.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func NewTransportError(req Request, err error) *TransportError {
	return &TransportError{
		Method: req.method(),
		Path:   req.Path,
		Err:    err,
	}
}

// ServerError represents a response with a non-success status.
type ServerError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return DefaultErrorMessage
}

// NewServerError creates a server error, falling back to
// DefaultErrorMessage when message is empty.
func NewServerError(statusCode int, message string) *ServerError {
	if message == "" {
		message = DefaultErrorMessage
	}

	return &ServerError{
		StatusCode: statusCode,
		Message:    message,
	}
}

// TransformError represents a payload the descriptor could not turn into
// a domain value, including transforms that panicked.
type TransformError struct {
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transforming response: %v", e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

// IsTransportError checks if an error is a TransportError.
func IsTransportError(err error) bool {
	var transportErr *TransportError

	return errors.As(err, &transportErr)
}

// IsServerError checks if an error is a ServerError.
func IsServerError(err error) bool {
	var serverErr *ServerError

	return errors.As(err, &serverErr)
}

// IsTransformError checks if an error is a TransformError.
func IsTransformError(err error) bool {
	var transformErr *TransformError

	return errors.As(err, &transformErr)
}

// messageOf returns the user-visible message for a failure.
func messageOf(err error) string {
	if err == nil {
		return DefaultErrorMessage
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Error()
	}

	if msg := err.Error(); msg != "" {
		return msg
	}

	return DefaultErrorMessage
}
