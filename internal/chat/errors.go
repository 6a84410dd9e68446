package chat

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alimgiray/sentinel/internal/models"
)

// APIError is a non-2xx Discord response.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
	// Code is Discord's JSON error code, zero when absent.
	Code int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord: %s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is maps the status onto the shared taxonomy. Server errors are
// transient; other failures are not retried.
func (e *APIError) Is(target error) bool {
	switch target {
	case models.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case models.ErrTransient:
		return e.StatusCode >= 500
	}
	return false
}

// RateLimitError is a 429 response with the server's backoff hint.
type RateLimitError struct {
	*APIError
	Wait time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s (retry after %s)", e.APIError.Error(), e.Wait)
}

func (e *RateLimitError) RetryAfter() time.Duration { return e.Wait }

func (e *RateLimitError) Is(target error) bool { return target == models.ErrTransient }

func (e *RateLimitError) Unwrap() error { return e.APIError }

// IsNotFound reports whether err is a Discord 404, such as an unknown member.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func retryAfterHeader(header http.Header) time.Duration {
	if value := header.Get("Retry-After"); value != "" {
		if seconds, err := strconv.ParseFloat(value, 64); err == nil && seconds > 0 {
			return time.Duration(seconds * float64(time.Second))
		}
	}
	return 0
}
