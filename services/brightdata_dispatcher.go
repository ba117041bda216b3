// services/brightdata_dispatcher.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/models"
	"github.com/promptpulse/pulse-workflows/internal/providers/common"
	"github.com/promptpulse/pulse-workflows/internal/textutil"
)

const (
	chatGPTURL = "https://chatgpt.com"

	// Wall-clock cap on snapshot polling; a shard still running past this is
	// treated as an upstream failure.
	snapshotMaxWait = 30 * time.Minute
)

// BrightDataAPI is the client surface the polling dispatcher needs
type BrightDataAPI interface {
	Trigger(ctx context.Context, payload common.BrightDataRequest, datasetID string) (string, error)
	GetBatchResults(ctx context.Context, snapshotID string, maxWait time.Duration) ([]common.BrightDataResult, error)
	FetchSnapshot(ctx context.Context, snapshotID string) ([]byte, error)
}

type brightDataDispatcher struct {
	client     BrightDataAPI
	datasetID  string
	repos      *RepositoryManager
	enrichment EnrichmentService
	analysis   AnalysisService
	volumes    VolumeService
	batches    JobBatchService
	notifier   NotifierService
}

// NewBrightDataDispatcher creates the polling dispatcher for provider A
func NewBrightDataDispatcher(client BrightDataAPI, datasetID string, repos *RepositoryManager, enrichment EnrichmentService, analysis AnalysisService, volumes VolumeService, batches JobBatchService, notifier NotifierService) *brightDataDispatcher {
	return &brightDataDispatcher{
		client:     client,
		datasetID:  datasetID,
		repos:      repos,
		enrichment: enrichment,
		analysis:   analysis,
		volumes:    volumes,
		batches:    batches,
		notifier:   notifier,
	}
}

// TriggerShard submits one shard's prompts and returns the snapshot ID.
// Redelivered messages that already carry a snapshot ID skip the trigger so a
// retry never scrapes twice.
func (d *brightDataDispatcher) TriggerShard(ctx context.Context, event *models.DispatchEvent) (string, error) {
	if event.SnapshotID != "" {
		fmt.Printf("[BrightDataDispatcher] ♻️ Reusing snapshot %s for shard %d\n", event.SnapshotID, event.BatchNumber)
		return event.SnapshotID, nil
	}

	country := common.MapLocationToCountry(event.Location)
	inputs := make([]common.BrightDataInput, len(event.Prompts))
	for i, job := range event.Prompts {
		inputs[i] = common.BrightDataInput{
			URL:       chatGPTURL,
			Prompt:    localizedPrompt(job.Text, event.Location),
			Country:   country,
			WebSearch: event.WebSearch,
			Index:     i,
		}
	}

	snapshotID, err := d.client.Trigger(ctx, common.BrightDataRequest{Input: inputs}, d.datasetID)
	if err != nil {
		return "", fmt.Errorf("failed to trigger scrape: %w", err)
	}

	fmt.Printf("[BrightDataDispatcher] 🚀 Triggered shard %d/%d as snapshot %s (%d prompts)\n",
		event.BatchNumber+1, event.TotalBatches, snapshotID, len(inputs))
	d.notifySubmitted(ctx, event)
	return snapshotID, nil
}

// notifySubmitted emits the per-shard submitted email. Snapshot reuse skips the
// trigger, so redeliveries never email twice.
func (d *brightDataDispatcher) notifySubmitted(ctx context.Context, event *models.DispatchEvent) {
	if event.IsNightly || event.JobBatchID == nil || event.Email == nil || *event.Email == "" {
		return
	}
	vars := map[string]string{
		"job_batch_id":  event.JobBatchID.String(),
		"batch_number":  fmt.Sprintf("%d", event.BatchNumber+1),
		"total_batches": fmt.Sprintf("%d", event.TotalBatches),
	}
	if err := d.notifier.Send(ctx, NotificationSubmitted, *event.Email, vars); err != nil {
		fmt.Printf("[BrightDataDispatcher] ⚠️ Failed to send submitted email: %v\n", err)
	}
}

// DispatchShard consumes one queue message end to end: trigger (unless the
// message already carries a snapshot), poll, enrich, persist, and update the
// batch counters. A returned error means the message should be redelivered.
func (d *brightDataDispatcher) DispatchShard(ctx context.Context, event *models.DispatchEvent) error {
	if event.Service != models.ServiceBrightData {
		fmt.Printf("[BrightDataDispatcher] ⏭️ Dropping message for service %s\n", event.Service)
		return nil
	}

	snapshotID, err := d.TriggerShard(ctx, event)
	if err != nil {
		return d.disposeShardError(ctx, event, err)
	}
	event.SnapshotID = snapshotID

	return d.ProcessSnapshot(ctx, event, snapshotID)
}

// ProcessSnapshot polls the snapshot until ready and processes its results
func (d *brightDataDispatcher) ProcessSnapshot(ctx context.Context, event *models.DispatchEvent, snapshotID string) error {
	results, err := d.client.GetBatchResults(ctx, snapshotID, snapshotMaxWait)
	if err != nil {
		if !common.IsRetryable(err) {
			err = fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
		}
		return d.disposeShardError(ctx, event, err)
	}

	if len(results) == 0 {
		return d.disposeShardError(ctx, event, ErrUpstreamEmpty)
	}
	if len(results) < len(event.Prompts) {
		fmt.Printf("[BrightDataDispatcher] ⚠️ Snapshot %s returned %d of %d results\n", snapshotID, len(results), len(event.Prompts))
	}

	matched := matchResults(event, results)
	volumes := d.fetchVolumes(ctx, event)

	for i, job := range event.Prompts {
		result := matched[i]
		if result == nil {
			fmt.Printf("[BrightDataDispatcher] ❌ No response for prompt %s\n", job.PromptID)
			d.failPrompt(ctx, event, job, ErrNoResponse.Error())
			continue
		}
		if result.Error != "" {
			fmt.Printf("[BrightDataDispatcher] ❌ Provider error for prompt %s: %s\n", job.PromptID, result.Error)
			d.failPrompt(ctx, event, job, result.Error)
			continue
		}

		var volume *models.VolumeData
		if volumes != nil {
			volume = volumes[i]
		}
		if err := d.persistResult(ctx, event, job, result, volume); err != nil {
			fmt.Printf("[BrightDataDispatcher] ⚠️ Failed to persist result for prompt %s: %v\n", job.PromptID, err)
			d.failPrompt(ctx, event, job, "failed to persist result")
		}
	}

	if event.JobBatchID != nil {
		if err := d.batches.RecordShardOutcome(ctx, *event.JobBatchID, event.BatchNumber, true, ""); err != nil {
			fmt.Printf("[BrightDataDispatcher] ⚠️ Failed to record shard outcome: %v\n", err)
		}
	}
	return nil
}

// matchResults pairs shard results to prompt jobs by index, falling back to
// exact text equality for providers that reorder entries. Text matching
// accepts both the raw prompt and its localized form, since the provider
// echoes whatever was submitted.
func matchResults(event *models.DispatchEvent, results []common.BrightDataResult) []*common.BrightDataResult {
	jobs := event.Prompts
	matched := make([]*common.BrightDataResult, len(jobs))
	used := make([]bool, len(results))

	for ri := range results {
		idx := results[ri].Index
		if idx >= 0 && idx < len(jobs) && matched[idx] == nil {
			matched[idx] = &results[ri]
			used[ri] = true
		}
	}

	for ji := range jobs {
		if matched[ji] != nil {
			continue
		}
		raw := strings.TrimSpace(jobs[ji].Text)
		localized := strings.TrimSpace(localizedPrompt(jobs[ji].Text, event.Location))
		for ri := range results {
			if used[ri] {
				continue
			}
			echoed := strings.TrimSpace(results[ri].Prompt)
			if echoed == raw || echoed == localized {
				matched[ji] = &results[ri]
				used[ri] = true
				break
			}
		}
	}

	return matched
}

// localizedPrompt prefixes a prompt with a localization instruction when geo
// hints are present
func localizedPrompt(text string, location *models.Location) string {
	if location == nil {
		return text
	}

	var parts []string
	if location.City != nil && *location.City != "" {
		parts = append(parts, *location.City)
	}
	if location.Region != nil && *location.Region != "" {
		parts = append(parts, *location.Region)
	}
	if location.Country != "" {
		parts = append(parts, location.Country)
	}
	if len(parts) == 0 {
		return text
	}

	return fmt.Sprintf("Ensure your response is localized to %s. Answer the following question: %s",
		strings.Join(parts, ", "), text)
}

func (d *brightDataDispatcher) persistResult(ctx context.Context, event *models.DispatchEvent, job models.PromptJob, result *common.BrightDataResult, volume *models.VolumeData) error {
	resp := normalizeBrightDataResult(result)
	enriched := d.enrichment.Enrich(resp, job.Text, job.BrandMentions, job.DomainMentions)
	fmt.Printf("[BrightDataDispatcher] 🔎 Enriched prompt %s: present=%t features: %s\n",
		job.PromptID, enriched.IsPresent, FeatureSummary(enriched.Features))

	sentiment, salience := 0, 0
	if enriched.IsPresent {
		brand := firstMatchedBrand(job.BrandMentions, enriched.BrandCounts)
		sentiment, salience = d.analysis.Scores(ctx, event.OpenAIKey, event.OpenAIModel, brand, enriched.SanitizedText)
	}

	row, err := d.rowFor(ctx, event, job)
	if err != nil {
		return err
	}

	locationCode := common.MapLocationToCode(event.Location)
	source := resultSource(models.ServiceBrightData, event.IsNightly)
	if err := applyEnrichedResult(row, resp, enriched, sentiment, salience, volume, locationCode, result.AnswerTextMarkdown, source); err != nil {
		return err
	}

	if event.IsNightly {
		return d.repos.TrackingResultRepo.Create(ctx, row)
	}
	return d.repos.TrackingResultRepo.Update(ctx, row)
}

// rowFor loads the pending row for an API submission, or builds a fresh row
// for a nightly run
func (d *brightDataDispatcher) rowFor(ctx context.Context, event *models.DispatchEvent, job models.PromptJob) (*models.TrackingResult, error) {
	if !event.IsNightly {
		return d.repos.TrackingResultRepo.GetByID(ctx, job.TrackingResultID)
	}
	return &models.TrackingResult{
		TrackingResultID: uuid.New(),
		PromptID:         job.PromptID,
		PromptText:       job.Text,
		ProjectID:        event.ProjectID,
		UserID:           event.UserID,
		BatchNumber:      event.BatchNumber,
	}, nil
}

func (d *brightDataDispatcher) fetchVolumes(ctx context.Context, event *models.DispatchEvent) []*models.VolumeData {
	texts := make([]string, len(event.Prompts))
	for i, job := range event.Prompts {
		texts[i] = job.Text
	}
	volumes, err := d.volumes.BatchVolumes(ctx, texts, common.MapLocationToCode(event.Location))
	if err != nil {
		fmt.Printf("[BrightDataDispatcher] ⚠️ Volume lookup failed for shard %d: %v\n", event.BatchNumber, err)
		return nil
	}
	return volumes
}

func (d *brightDataDispatcher) failPrompt(ctx context.Context, event *models.DispatchEvent, job models.PromptJob, reason string) {
	if event.IsNightly {
		// Nightly runs have no pending row to fail
		return
	}
	if err := d.repos.TrackingResultRepo.MarkFailed(ctx, job.TrackingResultID, reason); err != nil {
		fmt.Printf("[BrightDataDispatcher] ⚠️ Failed to mark prompt %s failed: %v\n", job.PromptID, err)
	}
}

// FailShard routes a shard-level failure: retryable errors bubble up for
// redelivery, permanent ones fail the shard's rows and absorb the message
func (d *brightDataDispatcher) FailShard(ctx context.Context, event *models.DispatchEvent, err error) error {
	return d.disposeShardError(ctx, event, err)
}

func (d *brightDataDispatcher) disposeShardError(ctx context.Context, event *models.DispatchEvent, err error) error {
	if IsRetryableUpstream(err) {
		fmt.Printf("[BrightDataDispatcher] 🔁 Retryable failure for shard %d, requesting redelivery: %v\n", event.BatchNumber, err)
		return err
	}

	fmt.Printf("[BrightDataDispatcher] ❌ Permanent failure for shard %d: %v\n", event.BatchNumber, err)
	if event.JobBatchID != nil {
		if markErr := d.repos.TrackingResultRepo.MarkShardFailed(ctx, *event.JobBatchID, event.BatchNumber, err.Error()); markErr != nil {
			fmt.Printf("[BrightDataDispatcher] ⚠️ Failed to mark shard failed: %v\n", markErr)
		}
		if recErr := d.batches.RecordShardOutcome(ctx, *event.JobBatchID, event.BatchNumber, false, err.Error()); recErr != nil {
			fmt.Printf("[BrightDataDispatcher] ⚠️ Failed to record shard outcome: %v\n", recErr)
		}
	}
	return nil
}

// FindSnapshotEntry fetches a snapshot and returns the single entry matching a
// prompt text. Debug passthrough for the snapshot inspection endpoint.
func (d *brightDataDispatcher) FindSnapshotEntry(ctx context.Context, snapshotID, promptText string) (*common.BrightDataResult, error) {
	body, err := d.client.FetchSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}

	if isStatus, status, message := common.IsStatusResponse(body); isStatus {
		return nil, fmt.Errorf("snapshot %s not ready: %s (%s)", snapshotID, status, message)
	}

	var results []common.BrightDataResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	for i := range results {
		if strings.TrimSpace(results[i].Prompt) == strings.TrimSpace(promptText) {
			return &results[i], nil
		}
	}
	return nil, nil
}

// normalizeBrightDataResult converts a provider A result into the
// provider-agnostic envelope the enrichment engine consumes
func normalizeBrightDataResult(result *common.BrightDataResult) *models.NormalizedResponse {
	resp := &models.NormalizedResponse{
		AnswerText:         repairCitationMarkers(result.AnswerTextMarkdown, result.LinksAttached),
		LinkCount:          len(result.LinksAttached),
		WebSearchTriggered: result.WebSearchTriggered,
	}

	resp.Citations = parseBrightDataCitations(result.Citations)

	// Attached links contribute their hostnames to the citation pool
	for _, link := range result.LinksAttached {
		host := textutil.Hostname(link.URL)
		if host == "" {
			continue
		}
		resp.Citations = append(resp.Citations, models.Citation{
			Title:  link.Text,
			Domain: host,
			URL:    textutil.NormalizeCitationURL(link.URL),
		})
	}

	return resp
}

// repairCitationMarkers rewrites bare [n] position markers into [n](url)
// markdown links using the attached-links list. Upstream emits both escaped
// and unescaped marker forms.
func repairCitationMarkers(text string, links []common.BrightDataLink) string {
	if len(links) == 0 {
		return text
	}

	result := text
	for _, link := range links {
		if link.URL == "" {
			continue
		}
		repaired := fmt.Sprintf("[%d](%s)", link.Position, link.URL)
		result = strings.ReplaceAll(result, fmt.Sprintf("\\[%d\\]", link.Position), repaired)
		if !strings.Contains(result, fmt.Sprintf("[%d](", link.Position)) {
			result = strings.ReplaceAll(result, fmt.Sprintf("[%d]", link.Position), repaired)
		}
	}
	return result
}

// parseBrightDataCitations handles the two historical citation shapes: a bare
// list of URL strings, or a list of {title, url} objects
func parseBrightDataCitations(raw interface{}) []models.Citation {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	citations := make([]models.Citation, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if host := textutil.Hostname(v); host != "" {
				citations = append(citations, models.Citation{
					Domain: host,
					URL:    textutil.NormalizeCitationURL(v),
				})
			}
		case map[string]interface{}:
			urlStr, _ := v["url"].(string)
			title, _ := v["title"].(string)
			host := textutil.Hostname(urlStr)
			if host == "" {
				continue
			}
			citations = append(citations, models.Citation{
				Title:  title,
				Domain: host,
				URL:    textutil.NormalizeCitationURL(urlStr),
			})
		}
	}
	return citations
}
