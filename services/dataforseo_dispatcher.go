// services/dataforseo_dispatcher.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/models"
	"github.com/promptpulse/pulse-workflows/internal/providers/common"
	"github.com/promptpulse/pulse-workflows/internal/textutil"
)

// DataForSEO task status code for a completed task
const dataForSEOTaskOK = 20000

// Spacing between per-prompt task submissions within a shard
const taskSubmitSpacing = time.Second

// DataForSEOAPI is the client surface the callback dispatcher needs
type DataForSEOAPI interface {
	PostLLMTask(ctx context.Context, task common.LLMTaskPost) (string, error)
}

type dataForSEODispatcher struct {
	client     DataForSEOAPI
	appURL     string
	repos      *RepositoryManager
	enrichment EnrichmentService
	analysis   AnalysisService
	volumes    VolumeService
	batches    JobBatchService
	notifier   NotifierService
	sleep      func(time.Duration)
}

// NewDataForSEODispatcher creates the callback-driven dispatcher for provider B
func NewDataForSEODispatcher(client DataForSEOAPI, appURL string, repos *RepositoryManager, enrichment EnrichmentService, analysis AnalysisService, volumes VolumeService, batches JobBatchService, notifier NotifierService) *dataForSEODispatcher {
	return &dataForSEODispatcher{
		client:     client,
		appURL:     appURL,
		repos:      repos,
		enrichment: enrichment,
		analysis:   analysis,
		volumes:    volumes,
		batches:    batches,
		notifier:   notifier,
		sleep:      time.Sleep,
	}
}

// DispatchShard submits one task per prompt with the callback URL attached.
// The shard's results arrive later through HandleCallback.
func (d *dataForSEODispatcher) DispatchShard(ctx context.Context, event *models.DispatchEvent) error {
	if event.Service != models.ServiceDataForSEO {
		fmt.Printf("[DataForSEODispatcher] ⏭️ Dropping message for service %s\n", event.Service)
		return nil
	}

	locationName := common.MapLocationToName(event.Location)
	submitted := 0

	for i, job := range event.Prompts {
		if i > 0 {
			d.sleep(taskSubmitSpacing)
		}

		task := common.LLMTaskPost{
			UserPrompt:   job.Text,
			LLMName:      event.OpenAIModel,
			WebSearch:    event.WebSearch,
			LocationName: locationName,
			PostbackURL:  d.callbackURL(event, job),
		}

		taskID, err := d.submitWithRetry(ctx, task)
		if err != nil {
			fmt.Printf("[DataForSEODispatcher] ❌ Task submission failed for prompt %s: %v\n", job.PromptID, err)
			if !event.IsNightly {
				if markErr := d.repos.TrackingResultRepo.MarkFailed(ctx, job.TrackingResultID, err.Error()); markErr != nil {
					fmt.Printf("[DataForSEODispatcher] ⚠️ Failed to mark prompt failed: %v\n", markErr)
				}
			}
			continue
		}

		if !event.IsNightly {
			if err := d.repos.TrackingResultRepo.SetTaskID(ctx, job.TrackingResultID, taskID); err != nil {
				fmt.Printf("[DataForSEODispatcher] ⚠️ Failed to stamp task id on %s: %v\n", job.TrackingResultID, err)
			}
		}
		submitted++
	}

	if event.JobBatchID != nil {
		if submitted == 0 {
			// Nothing reached the provider, so no callback will ever complete
			// this shard
			if err := d.batches.RecordShardOutcome(ctx, *event.JobBatchID, event.BatchNumber, false, ErrUpstreamFailed.Error()); err != nil {
				fmt.Printf("[DataForSEODispatcher] ⚠️ Failed to record shard outcome: %v\n", err)
			}
			return nil
		}

		if err := d.repos.JobBatchRepo.UpdateStatus(ctx, *event.JobBatchID, models.BatchStatusProcessing); err != nil {
			fmt.Printf("[DataForSEODispatcher] ⚠️ Failed to transition batch: %v\n", err)
		}
		if event.Email != nil && *event.Email != "" {
			vars := map[string]string{
				"job_batch_id":  event.JobBatchID.String(),
				"batch_number":  fmt.Sprintf("%d", event.BatchNumber+1),
				"total_batches": fmt.Sprintf("%d", event.TotalBatches),
			}
			if err := d.notifier.Send(ctx, NotificationSubmitted, *event.Email, vars); err != nil {
				fmt.Printf("[DataForSEODispatcher] ⚠️ Failed to send submitted email: %v\n", err)
			}
		}
	}

	fmt.Printf("[DataForSEODispatcher] 🚀 Submitted %d/%d tasks for shard %d\n", submitted, len(event.Prompts), event.BatchNumber)
	return nil
}

func (d *dataForSEODispatcher) submitWithRetry(ctx context.Context, task common.LLMTaskPost) (string, error) {
	var taskID string
	var err error
	for attempt := 1; attempt <= common.MaxAttempts; attempt++ {
		taskID, err = d.client.PostLLMTask(ctx, task)
		if err == nil {
			return taskID, nil
		}
		if !common.IsRetryable(err) || attempt == common.MaxAttempts {
			return "", err
		}
		delay := common.BackoffDelay(attempt, common.IsRateLimited(err))
		fmt.Printf("[DataForSEODispatcher] ⚠️ Submission attempt %d failed, retrying in %v: %v\n", attempt, delay, err)
		d.sleep(delay)
	}
	return "", err
}

// callbackURL builds the postback URL carrying the correlation context as
// query parameters
func (d *dataForSEODispatcher) callbackURL(event *models.DispatchEvent, job models.PromptJob) string {
	q := url.Values{}
	q.Set("user_id", event.UserID.String())
	q.Set("projectId", event.ProjectID.String())
	q.Set("promptId", job.PromptID.String())
	q.Set("openaiModel", event.OpenAIModel)
	q.Set("isNightly", fmt.Sprintf("%t", event.IsNightly))
	return strings.TrimRight(d.appURL, "/") + "/api/dataforseo/callback?" + q.Encode()
}

// HandleCallback consumes one provider postback. Logical failures are
// recorded and absorbed; only unexpected faults return an error.
func (d *dataForSEODispatcher) HandleCallback(ctx context.Context, cbCtx *models.CallbackContext, body []byte) error {
	var envelope common.TaskEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode callback body: %w", err)
	}
	if len(envelope.Tasks) == 0 {
		return fmt.Errorf("callback contained no tasks")
	}
	task := envelope.Tasks[0]

	if cbCtx.IsNightly {
		return d.handleNightlyCallback(ctx, cbCtx, &task)
	}

	row, err := d.repos.TrackingResultRepo.GetByTaskID(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("failed to look up task %s: %w", task.ID, err)
	}
	if row == nil {
		fmt.Printf("[DataForSEODispatcher] ⚠️ Callback for unknown task %s, ignoring\n", task.ID)
		return nil
	}

	// Late-failure guard: a retried callback must never downgrade a
	// fulfilled row
	if row.Status == models.ResultStatusFulfilled {
		fmt.Printf("[DataForSEODispatcher] ⏭️ Task %s already fulfilled, ignoring callback\n", task.ID)
		return nil
	}

	result := successfulResult(&task)
	if result == nil {
		fmt.Printf("[DataForSEODispatcher] ❌ Task %s failed upstream (status %d): %s\n", task.ID, task.StatusCode, task.StatusMessage)
		reason := fmt.Sprintf("provider task failed (status %d)", task.StatusCode)
		if err := d.repos.TrackingResultRepo.MarkFailed(ctx, row.TrackingResultID, reason); err != nil {
			return fmt.Errorf("failed to mark result failed: %w", err)
		}
		d.finishShardIfDone(ctx, row)
		return nil
	}

	key := ""
	if row.JobBatchID != nil {
		batch, err := d.repos.JobBatchRepo.GetByID(ctx, *row.JobBatchID)
		if err == nil {
			key = batch.OpenAIKey
		}
	}

	if err := d.fulfillRow(ctx, cbCtx, row, result, key, false); err != nil {
		// Fallback minimal write so the row is never stuck processing
		if markErr := d.repos.TrackingResultRepo.MarkFailed(ctx, row.TrackingResultID, "failed to persist enriched result"); markErr != nil {
			fmt.Printf("[DataForSEODispatcher] ⚠️ Fallback failure write failed: %v\n", markErr)
		}
		return err
	}

	d.finishShardIfDone(ctx, row)
	return nil
}

// handleNightlyCallback builds and inserts a fresh row; nightly failures
// leave no trace beyond the log
func (d *dataForSEODispatcher) handleNightlyCallback(ctx context.Context, cbCtx *models.CallbackContext, task *common.Task) error {
	result := successfulResult(task)
	if result == nil {
		fmt.Printf("[DataForSEODispatcher] ❌ Nightly task %s failed upstream (status %d), no row created\n", task.ID, task.StatusCode)
		return nil
	}

	prompt, err := d.repos.PromptRepo.GetByID(ctx, cbCtx.PromptID)
	if err != nil {
		return fmt.Errorf("failed to load prompt for nightly callback: %w", err)
	}

	row := &models.TrackingResult{
		TrackingResultID: uuid.New(),
		PromptID:         prompt.PromptID,
		PromptText:       prompt.Text,
		ProjectID:        cbCtx.ProjectID,
		UserID:           cbCtx.UserID,
		ExternalTaskID:   &task.ID,
	}

	key := ""
	if settings, err := d.repos.UserSettingsRepo.GetByUserID(ctx, cbCtx.UserID); err == nil && settings != nil && settings.OpenAIKey != nil {
		key = *settings.OpenAIKey
	}

	return d.fulfillRow(ctx, cbCtx, row, result, key, true)
}

func (d *dataForSEODispatcher) fulfillRow(ctx context.Context, cbCtx *models.CallbackContext, row *models.TrackingResult, result *common.TaskResult, openAIKey string, insert bool) error {
	resp := normalizeDataForSEOResult(result)

	brands, domains := d.mentionListsFor(ctx, row)
	enriched := d.enrichment.Enrich(resp, row.PromptText, brands, domains)
	fmt.Printf("[DataForSEODispatcher] 🔎 Enriched prompt %s: present=%t features: %s\n",
		row.PromptID, enriched.IsPresent, FeatureSummary(enriched.Features))

	sentiment, salience := 0, 0
	if enriched.IsPresent && openAIKey != "" {
		brand := firstMatchedBrand(brands, enriched.BrandCounts)
		sentiment, salience = d.analysis.Scores(ctx, openAIKey, cbCtx.OpenAIModel, brand, enriched.SanitizedText)
	}

	var volume *models.VolumeData
	locationCode := common.MapLocationToCode(nil)
	if volumes, err := d.volumes.BatchVolumes(ctx, []string{row.PromptText}, locationCode); err == nil && len(volumes) == 1 {
		volume = volumes[0]
	}

	source := resultSource(models.ServiceDataForSEO, cbCtx.IsNightly)
	if err := applyEnrichedResult(row, resp, enriched, sentiment, salience, volume, locationCode, result.Markdown, source); err != nil {
		return err
	}

	if insert {
		return d.repos.TrackingResultRepo.Create(ctx, row)
	}
	return d.repos.TrackingResultRepo.Update(ctx, row)
}

// mentionListsFor resolves the brand and domain lists for a row, preferring
// the prompt's own lists with the batch snapshot as fallback
func (d *dataForSEODispatcher) mentionListsFor(ctx context.Context, row *models.TrackingResult) ([]string, []string) {
	if prompt, err := d.repos.PromptRepo.GetByID(ctx, row.PromptID); err == nil {
		if len(prompt.BrandMentions) > 0 || len(prompt.DomainMentions) > 0 {
			return prompt.BrandMentions, prompt.DomainMentions
		}
	}
	if row.JobBatchID != nil {
		if batch, err := d.repos.JobBatchRepo.GetByID(ctx, *row.JobBatchID); err == nil {
			return batch.BrandMentions, batch.DomainMentions
		}
	}
	return nil, nil
}

// finishShardIfDone records the shard outcome once every row in the shard has
// reached a terminal status
func (d *dataForSEODispatcher) finishShardIfDone(ctx context.Context, row *models.TrackingResult) {
	if row.JobBatchID == nil {
		return
	}

	rows, err := d.repos.TrackingResultRepo.GetByShard(ctx, *row.JobBatchID, row.BatchNumber)
	if err != nil {
		fmt.Printf("[DataForSEODispatcher] ⚠️ Failed to load shard rows: %v\n", err)
		return
	}

	fulfilled := 0
	for _, r := range rows {
		switch r.Status {
		case models.ResultStatusPending, models.ResultStatusProcessing:
			return // shard still in flight
		case models.ResultStatusFulfilled:
			fulfilled++
		}
	}

	succeeded := fulfilled > 0
	reason := ""
	if !succeeded {
		reason = "all prompts in shard failed"
	}
	if err := d.batches.RecordShardOutcome(ctx, *row.JobBatchID, row.BatchNumber, succeeded, reason); err != nil {
		fmt.Printf("[DataForSEODispatcher] ⚠️ Failed to record shard outcome: %v\n", err)
	}
}

// successfulResult returns the task's first result when the task completed
// with usable output, nil otherwise
func successfulResult(task *common.Task) *common.TaskResult {
	if task.StatusCode != dataForSEOTaskOK || len(task.Result) == 0 {
		return nil
	}
	result := &task.Result[0]
	if strings.TrimSpace(result.Markdown) == "" && len(result.Items) == 0 {
		return nil
	}
	return result
}

// normalizeDataForSEOResult converts a provider B result into the
// provider-agnostic envelope the enrichment engine consumes
func normalizeDataForSEOResult(result *common.TaskResult) *models.NormalizedResponse {
	resp := &models.NormalizedResponse{
		AnswerText:  result.Markdown,
		SourceCount: len(result.Sources),
		// Sources present means web search actually ran, regardless of the
		// submitted flag
		WebSearchTriggered: result.WebSearch || len(result.Sources) > 0,
	}

	if resp.AnswerText == "" {
		resp.AnswerText = collectItemText(result.Items)
	}

	countItems(result.Items, resp)

	for _, source := range result.Sources {
		host := source.Domain
		if host == "" {
			host = textutil.Hostname(source.URL)
		}
		if host == "" {
			continue
		}
		citation := models.Citation{
			Title:  source.Title,
			Domain: strings.ToLower(host),
			URL:    textutil.NormalizeCitationURL(source.URL),
		}
		if source.DateTime != "" {
			if t, err := time.Parse(time.RFC3339, source.DateTime); err == nil {
				citation.PublishedAt = &t
			}
		}
		resp.Citations = append(resp.Citations, citation)
	}

	return resp
}

func collectItemText(items []common.ResultItem) string {
	var parts []string
	for _, item := range items {
		if item.Text != "" {
			parts = append(parts, item.Text)
		}
		if len(item.Items) > 0 {
			if nested := collectItemText(item.Items); nested != "" {
				parts = append(parts, nested)
			}
		}
	}
	return strings.Join(parts, "\n")
}

func countItems(items []common.ResultItem, resp *models.NormalizedResponse) {
	for _, item := range items {
		switch {
		case strings.Contains(item.Type, "product"):
			resp.ProductCount++
		case strings.Contains(item.Type, "image"):
			resp.ImageItemCount++
		case strings.Contains(item.Type, "local"):
			resp.LocalItemCount++
		case strings.Contains(item.Type, "map"):
			resp.HasMapFlag = true
		case strings.Contains(item.Type, "link"):
			resp.LinkCount++
		}
		if len(item.Items) > 0 {
			countItems(item.Items, resp)
		}
	}
}
