// services/submission_service.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

type submissionService struct {
	repos       *RepositoryManager
	health      ProviderHealthService
	credentials CredentialService
	publisher   EventPublisher
	notifier    NotifierService
	defaultModel string
}

// NewSubmissionService creates the POST /enqueue pipeline
func NewSubmissionService(repos *RepositoryManager, health ProviderHealthService, credentials CredentialService, publisher EventPublisher, notifier NotifierService, defaultModel string) SubmissionService {
	return &submissionService{
		repos:        repos,
		health:       health,
		credentials:  credentials,
		publisher:    publisher,
		notifier:     notifier,
		defaultModel: defaultModel,
	}
}

// ShardSize returns the per-shard prompt count for a submission of n prompts
func ShardSize(n int) int {
	switch {
	case n < 5:
		return n
	case n <= 10:
		return 5
	default:
		return 10
	}
}

// Enqueue validates the submission, persists the batch with its pending
// result rows, and fans one queue message out per shard.
func (s *submissionService) Enqueue(ctx context.Context, req *SubmissionRequest) (*SubmissionResponse, error) {
	if req.ProjectID == uuid.Nil || req.UserID == uuid.Nil || len(req.Prompts) == 0 || req.OpenAIKey == "" {
		return nil, ErrInvalidRequest
	}

	model := req.OpenAIModel
	if model == "" {
		model = s.defaultModel
	}

	if err := s.credentials.Validate(ctx, req.OpenAIKey, model); err != nil {
		return nil, err
	}

	service, err := s.health.Active(ctx)
	if err != nil {
		return nil, err
	}

	if len(req.Tags) > 0 {
		if err := s.repos.TagRepo.Upsert(ctx, req.ProjectID, req.Tags); err != nil {
			return nil, fmt.Errorf("failed to upsert tags: %w", err)
		}
	}

	size := ShardSize(len(req.Prompts))
	totalBatches := (len(req.Prompts) + size - 1) / size

	now := time.Now().UTC()
	batch := &models.JobBatch{
		JobBatchID:     uuid.New(),
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		Email:          req.Email,
		TotalPrompts:   len(req.Prompts),
		TotalBatches:   totalBatches,
		Status:         models.BatchStatusPending,
		OpenAIKey:      req.OpenAIKey,
		OpenAIModel:    model,
		WebSearch:      req.WebSearch,
		BrandMentions:  []string(req.BrandMentions),
		DomainMentions: []string(req.DomainMentions),
		Tags:           req.Tags,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Location != nil {
		batch.Country = &req.Location.Country
		batch.Region = req.Location.Region
		batch.City = req.Location.City
	}

	prompts := make([]*models.Prompt, len(req.Prompts))
	results := make([]*models.TrackingResult, len(req.Prompts))
	for i, text := range req.Prompts {
		prompt := &models.Prompt{
			PromptID:       uuid.New(),
			ProjectID:      req.ProjectID,
			Text:           text,
			Enabled:        true,
			BrandMentions:  []string(req.BrandMentions),
			DomainMentions: []string(req.DomainMentions),
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if req.Location != nil {
			prompt.Country = &req.Location.Country
			prompt.Region = req.Location.Region
			prompt.City = req.Location.City
		}
		prompts[i] = prompt

		results[i] = &models.TrackingResult{
			TrackingResultID: uuid.New(),
			PromptID:         prompt.PromptID,
			PromptText:       text,
			ProjectID:        req.ProjectID,
			UserID:           req.UserID,
			JobBatchID:       &batch.JobBatchID,
			BatchNumber:      i / size,
			Status:           models.ResultStatusPending,
			Timestamp:        now.UnixMilli(),
		}
	}

	// Batch row, prompt rows, and pending results commit or roll back together
	if err := s.repos.JobBatchRepo.CreateWithResults(ctx, batch, prompts, results); err != nil {
		return nil, fmt.Errorf("failed to persist submission: %w", err)
	}

	if err := s.repos.JobBatchRepo.UpdateStatus(ctx, batch.JobBatchID, models.BatchStatusProcessing); err != nil {
		return nil, fmt.Errorf("failed to transition batch to processing: %w", err)
	}

	s.publishShards(ctx, service, batch, req, model, prompts, results, size, totalBatches)

	fmt.Printf("[SubmissionService] ✅ Enqueued batch %s (%d prompts, %d shards) via %s\n",
		batch.JobBatchID, len(req.Prompts), totalBatches, service)

	return &SubmissionResponse{
		JobBatchID:   batch.JobBatchID,
		TotalPrompts: len(req.Prompts),
		TotalBatches: totalBatches,
		Service:      service,
	}, nil
}

// publishShards fans out one message per shard. Publishing is fire-and-forget:
// a failed publish leaves that shard's rows pending for operator remediation.
func (s *submissionService) publishShards(ctx context.Context, service string, batch *models.JobBatch, req *SubmissionRequest, model string, prompts []*models.Prompt, results []*models.TrackingResult, size, totalBatches int) {
	topic := models.TopicForService(service)

	for shard := 0; shard < totalBatches; shard++ {
		start := shard * size
		end := min(start+size, len(prompts))

		jobs := make([]models.PromptJob, 0, end-start)
		for i := start; i < end; i++ {
			jobs = append(jobs, models.PromptJob{
				PromptID:         prompts[i].PromptID,
				TrackingResultID: results[i].TrackingResultID,
				Text:             prompts[i].Text,
				BrandMentions:    prompts[i].BrandMentions,
				DomainMentions:   prompts[i].DomainMentions,
			})
		}

		event := &models.DispatchEvent{
			Service:      service,
			JobBatchID:   &batch.JobBatchID,
			UserID:       req.UserID,
			ProjectID:    req.ProjectID,
			BatchNumber:  shard,
			TotalBatches: totalBatches,
			Email:        req.Email,
			OpenAIKey:    req.OpenAIKey,
			OpenAIModel:  model,
			WebSearch:    req.WebSearch,
			IsNightly:    false,
			Location:     req.Location,
			Prompts:      jobs,
		}

		if err := s.publisher.Publish(ctx, topic, event); err != nil {
			fmt.Printf("[SubmissionService] ⚠️ Failed to publish shard %d of batch %s: %v\n", shard, batch.JobBatchID, err)
			continue
		}
	}
}
