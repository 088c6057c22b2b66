package podcastindex

import (
	"errors"
	"fmt"
)

// errNotFound is internal: lookups translate it into a nil result.
var errNotFound = errors.New("podcastindex: not found")

// APIError is a failed call to the directory. StatusCode is zero for
// transport failures. Retryable is true for transport errors, 429 and 5xx.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
	Retryable  bool
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("podcastindex %s: request failed: %v", e.Endpoint, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("podcastindex %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("podcastindex %s: status %d", e.Endpoint, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsAuth reports whether the directory rejected the credentials.
func (e *APIError) IsAuth() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}
