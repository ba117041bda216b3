// internal/providers/common/errors.go
package common

import (
	"errors"
	"fmt"
	"strings"
)

// UpstreamError is an HTTP-level failure from a provider API
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited reports whether the error is a provider 429
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode == 429
	}
	return strings.Contains(err.Error(), "429") || strings.Contains(strings.ToLower(err.Error()), "rate limit")
}

// IsRetryable reports whether the error is worth another attempt: rate limits,
// server errors and transport failures. 4xx other than 429 are permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode == 429 || ue.StatusCode >= 500
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "timed out", "connection reset", "connection refused", "network", "temporary", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
