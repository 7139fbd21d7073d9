package fetch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// NetworkError represents a transport failure where no (complete) response was received
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error requesting %s: %v", e.URL, e.Err)
}

// Cause returns the underlying transport error
func (e *NetworkError) Cause() error { return e.Err }

// Unwrap returns the underlying transport error
func (e *NetworkError) Unwrap() error { return e.Err }

// RequestError represents a response with a non success status code
type RequestError struct {
	StatusCode int
	// Status is the status text, e.g. "500 Internal Server Error"
	Status string
	Body   string
}

func (e *RequestError) Error() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return e.Status
	}
	return fmt.Sprintf("%s: %s", e.Status, body)
}

// DecodeError represents a response body that could not be parsed for its content type
type DecodeError struct {
	ContentType string
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s response: %v", e.ContentType, e.Err)
}

// Cause returns the underlying decode error
func (e *DecodeError) Cause() error { return e.Err }

// Unwrap returns the underlying decode error
func (e *DecodeError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is or wraps a NetworkError
func IsNetworkError(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsRequestError reports whether err is or wraps a RequestError
func IsRequestError(err error) bool {
	var target *RequestError
	return errors.As(err, &target)
}

// IsDecodeError reports whether err is or wraps a DecodeError
func IsDecodeError(err error) bool {
	var target *DecodeError
	return errors.As(err, &target)
}

// StatusCode returns the HTTP status code carried by err, 0 if err is no RequestError
func StatusCode(err error) int {
	var target *RequestError
	if errors.As(err, &target) {
		return target.StatusCode
	}
	return 0
}
