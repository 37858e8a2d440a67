package bitable

import (
	"errors"
	"fmt"
	"net"
)

// APIError is any non-2xx HTTP response or non-zero envelope code returned
// by the bitable API.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("bitable api error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("bitable http error %d: %s", e.Status, e.Message)
}

// retryable reports whether an operation that failed with err may succeed on
// a later attempt: rate limiting, server-side failures and network timeouts
// qualify; everything else (bad request, permission denied) does not.
func retryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == 429 || apiErr.Status >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}
