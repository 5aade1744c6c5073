package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-iom/pkg/render"
)

var (
	// ErrTransport wraps network level failures (no response received).
	ErrTransport = errors.New("client: transport failure")
	// ErrNotFound is returned for lookups that matched nothing.
	ErrNotFound = errors.New("client: not found")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Method     string
	Endpoint   string
	Fields     map[string][]string
	Detail     string
	RequestID  string
}

func newAPIError(method, endpoint, requestID string, status int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: status,
		Method:     method,
		Endpoint:   endpoint,
		RequestID:  requestID,
	}
	if fields, ok := render.DecodeErrorPayload(body); ok {
		apiErr.Fields = fields
		apiErr.Detail = render.Flatten(fields)
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 {
		apiErr.Detail = text
	}
	if apiErr.Detail == "" {
		apiErr.Detail = http.StatusText(status)
	}
	return apiErr
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: %s %s: %d: %s", e.Method, e.Endpoint, e.StatusCode, e.Detail)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Validation reports whether the response is a field-keyed validation failure.
func (e *APIError) Validation() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && len(e.Fields) > 0
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 or an empty lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransport reports whether err is a network failure or a 5xx response.
func IsTransport(err error) bool {
	if errors.Is(err, ErrTransport) {
		return true
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.StatusCode >= 500
	}
	return false
}
