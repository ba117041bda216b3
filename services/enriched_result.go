// services/enriched_result.go
package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

// applyEnrichedResult writes one enriched provider response onto a tracking
// result row. The row is left in fulfilled status; persistence is the caller's
// job.
func applyEnrichedResult(row *models.TrackingResult, resp *models.NormalizedResponse, enriched *models.EnrichmentResult, sentiment, salience int, volume *models.VolumeData, locationCode int, rawResponse, source string) error {
	stored := models.StoredResponse{
		AnswerText:  enriched.SanitizedText,
		RawResponse: rawResponse,
	}
	responseJSON, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal response blob: %w", err)
	}

	citationsJSON, err := json.Marshal(resp.Citations)
	if err != nil {
		return fmt.Errorf("failed to marshal citations: %w", err)
	}

	serpJSON, err := json.Marshal(enriched.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal feature map: %w", err)
	}

	row.Status = models.ResultStatusFulfilled
	row.IsPresent = &enriched.IsPresent
	row.IsDomainPresent = &enriched.IsDomainPresent
	row.Sentiment = &sentiment
	row.Salience = &salience
	row.Response = responseJSON
	row.Citations = citationsJSON
	row.MentionCount = &enriched.MentionCount
	row.DomainMentionCount = &enriched.DomainMentionCount
	row.WebSearch = &resp.WebSearchTriggered
	row.LCP = &enriched.LCP
	row.Actionability = &enriched.Actionability
	row.IntentClassification = &enriched.Intent
	row.Serp = serpJSON
	row.Timestamp = time.Now().UnixMilli()
	row.Source = &source

	if volume != nil {
		row.AISearchVolume = &volume.CurrentVolume
		trendsJSON, err := json.Marshal(volume.MonthlyTrends)
		if err != nil {
			return fmt.Errorf("failed to marshal monthly trends: %w", err)
		}
		row.AIMonthlyTrends = trendsJSON
		now := time.Now().UTC()
		row.AIVolumeFetchedAt = &now
		row.AIVolumeLocationCode = &locationCode
	}

	return nil
}

// resultSource tags the row with the provider, with a nightly suffix for
// scheduler-driven runs
func resultSource(service string, nightly bool) string {
	if nightly {
		return service + "-nightly"
	}
	return service
}

// firstMatchedBrand picks the brand the LLM scorers should rate: the first
// configured brand that actually matched.
func firstMatchedBrand(brandMentions []string, counts map[string]int) string {
	for _, brand := range brandMentions {
		if counts[brand] > 0 {
			return brand
		}
	}
	if len(brandMentions) > 0 {
		return brandMentions[0]
	}
	return ""
}
