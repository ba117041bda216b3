// services/errors.go
package services

import (
	"errors"

	"github.com/promptpulse/pulse-workflows/internal/providers/common"
)

// Sentinel errors for the submission and dispatch pipeline. API handlers map
// these onto HTTP status codes; workers use them to decide ack vs. redelivery.
var (
	// ErrInvalidRequest means required submission fields are missing.
	ErrInvalidRequest = errors.New("invalid request: missing required fields")

	// Credential probe failures, mapped from the LLM provider's response.
	ErrAuthFailed     = errors.New("openai key rejected (401)")
	ErrQuotaExceeded  = errors.New("openai quota exceeded (429)")
	ErrModelForbidden = errors.New("openai model forbidden (403)")
	ErrModelNotFound  = errors.New("openai model not found (404)")

	// ErrUpstreamUnavailable means the credential probe hit a provider outage.
	ErrUpstreamUnavailable = errors.New("openai temporarily unavailable")

	// ErrAllProvidersDown means neither scraping provider passed its last probe.
	ErrAllProvidersDown = errors.New("no scraping provider is currently healthy")

	// ErrUpstreamFailed means the provider explicitly reported a failed scrape.
	ErrUpstreamFailed = errors.New("provider reported scrape failure")

	// ErrUpstreamEmpty means the provider completed with zero results.
	ErrUpstreamEmpty = errors.New("provider returned no results")

	// ErrNoResponse means one prompt was absent from its shard's output.
	ErrNoResponse = errors.New("no response returned for prompt")
)

// IsRetryableUpstream reports whether a dispatch error should trigger message
// redelivery. Explicit provider failures and empty results are permanent.
func IsRetryableUpstream(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUpstreamFailed) || errors.Is(err, ErrUpstreamEmpty) || errors.Is(err, ErrNoResponse) {
		return false
	}
	return common.IsRetryable(err)
}
