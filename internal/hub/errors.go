package hub

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rmacdonaldsmith/websubhub/internal/fetcher"
)

var (
	// ErrInvalidInput is matched by every request validation error
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidSecret is returned for an empty or oversized hub.secret
	ErrInvalidSecret = fmt.Errorf("%w: invalid secret", ErrInvalidInput)
	// ErrInvalidMode is returned for an unknown hub.mode
	ErrInvalidMode = fmt.Errorf("%w: invalid mode", ErrInvalidInput)
	// ErrInvalidURL is returned when a topic or callback is not an absolute http(s) URL
	ErrInvalidURL = fmt.Errorf("%w: invalid URL", ErrInvalidInput)
	// ErrMissingField is returned when a required parameter is absent
	ErrMissingField = fmt.Errorf("%w: missing field", ErrInvalidInput)

	// ErrTopicFetchFailed wraps the *fetcher.Error of a failed publish
	ErrTopicFetchFailed = errors.New("topic fetch failed")

	// ErrNotRunning is returned when the hub is not started or already closed
	ErrNotRunning = errors.New("hub is not running")
)

// StatusCode maps a hub error to the HTTP status reported to the requester
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var ferr *fetcher.Error
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.As(err, &ferr):
		return ferr.StatusCode
	case errors.Is(err, ErrQueueFull), errors.Is(err, ErrPoolStopped), errors.Is(err, ErrNotRunning):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
