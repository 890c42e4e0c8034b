package api

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned for every non-2xx backend response.
type APIError struct {
	Status   int
	Body     string
	Endpoint string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api error %d on %s", e.Status, e.Endpoint)
	}
	return fmt.Sprintf("api error %d on %s: %s", e.Status, e.Endpoint, e.Body)
}

// StatusCode exposes the HTTP status to the error taxonomy.
func (e *APIError) StatusCode() int {
	return e.Status
}

// IsUnauthorized reports whether the backend rejected the credentials (401 or 403).
func (e *APIError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Status == http.StatusNotFound
}
