// internal/providers/common/backoff.go
package common

import "time"

// MaxAttempts is the attempt cap for provider calls
const MaxAttempts = 5

// BackoffDelay returns the sleep before retrying attempt+1. Delays double from
// a 1s base capped at 10s; rate-limited calls double from 2s capped at 30s.
func BackoffDelay(attempt int, rateLimited bool) time.Duration {
	base := time.Second
	ceiling := 10 * time.Second
	if rateLimited {
		base = 2 * time.Second
		ceiling = 30 * time.Second
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= ceiling {
			return ceiling
		}
	}
	if delay > ceiling {
		return ceiling
	}
	return delay
}
