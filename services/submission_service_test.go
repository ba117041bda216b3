package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

func TestShardSize(t *testing.T) {
	tests := []struct {
		prompts      int
		size         int
		totalBatches int
	}{
		{prompts: 1, size: 1, totalBatches: 1},
		{prompts: 4, size: 4, totalBatches: 1},
		{prompts: 5, size: 5, totalBatches: 1},
		{prompts: 10, size: 5, totalBatches: 2},
		{prompts: 11, size: 10, totalBatches: 2},
		{prompts: 20, size: 10, totalBatches: 2},
	}

	for _, tt := range tests {
		size := ShardSize(tt.prompts)
		if size != tt.size {
			t.Errorf("ShardSize(%d) = %d, want %d", tt.prompts, size, tt.size)
		}
		batches := (tt.prompts + size - 1) / size
		if batches != tt.totalBatches {
			t.Errorf("%d prompts: %d batches, want %d", tt.prompts, batches, tt.totalBatches)
		}
	}
}

func newSubmissionForTest(rm *RepositoryManager, publisher *fakePublisher, health *fakeHealth, creds *fakeCredentials) SubmissionService {
	return NewSubmissionService(rm, health, creds, publisher, &fakeNotifier{}, "gpt-4o-mini")
}

func validRequest(n int) *SubmissionRequest {
	prompts := make([]string, n)
	for i := range prompts {
		prompts[i] = fmt.Sprintf("prompt %d", i)
	}
	email := "user@example.com"
	return &SubmissionRequest{
		ProjectID:     uuid.New(),
		UserID:        uuid.New(),
		Email:         &email,
		Prompts:       prompts,
		BrandMentions: StringList{"Acme"},
		OpenAIKey:     "sk-test",
		Tags:          []string{"Launch"},
	}
}

func TestEnqueueHappyPath(t *testing.T) {
	rm, batches, _, _, _, tags, _ := newFakeRepos()
	publisher := &fakePublisher{}
	svc := newSubmissionForTest(rm, publisher, &fakeHealth{active: models.ServiceDataForSEO}, &fakeCredentials{})

	resp, err := svc.Enqueue(context.Background(), validRequest(11))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if resp.TotalPrompts != 11 || resp.TotalBatches != 2 {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if resp.Service != models.ServiceDataForSEO {
		t.Errorf("Expected dataforseo service, got %s", resp.Service)
	}

	// Exactly totalPrompts result rows exist after the transactional insert
	if len(batches.created) != 11 {
		t.Errorf("Expected 11 tracking results, got %d", len(batches.created))
	}

	stored, _ := batches.GetByID(context.Background(), resp.JobBatchID)
	if stored.Status != models.BatchStatusProcessing {
		t.Errorf("Expected processing status, got %s", stored.Status)
	}

	if len(publisher.published) != 2 {
		t.Fatalf("Expected 2 shard messages, got %d", len(publisher.published))
	}
	first := publisher.published[0].event
	second := publisher.published[1].event
	if len(first.Prompts) != 10 || len(second.Prompts) != 1 {
		t.Errorf("Expected shard sizes {10,1}, got {%d,%d}", len(first.Prompts), len(second.Prompts))
	}
	if publisher.published[0].topic != models.TopicDataForSEODispatch {
		t.Errorf("Expected dataforseo topic, got %s", publisher.published[0].topic)
	}
	if first.IsNightly {
		t.Error("API submissions must not be nightly")
	}

	if len(tags.upserted) != 1 || tags.upserted[0] != "Launch" {
		t.Errorf("Expected tag upsert, got %v", tags.upserted)
	}

	// Batch numbers assigned by position
	for i, r := range batches.created {
		want := i / 10
		if r.BatchNumber != want {
			t.Errorf("Result %d: batch_number %d, want %d", i, r.BatchNumber, want)
		}
		if r.Status != models.ResultStatusPending {
			t.Errorf("Result %d: expected pending, got %s", i, r.Status)
		}
	}
}

func TestEnqueueMissingFields(t *testing.T) {
	rm, _, _, _, _, _, _ := newFakeRepos()
	svc := newSubmissionForTest(rm, &fakePublisher{}, &fakeHealth{active: models.ServiceBrightData}, &fakeCredentials{})

	tests := []struct {
		name string
		mut  func(*SubmissionRequest)
	}{
		{name: "missing project", mut: func(r *SubmissionRequest) { r.ProjectID = uuid.Nil }},
		{name: "missing user", mut: func(r *SubmissionRequest) { r.UserID = uuid.Nil }},
		{name: "no prompts", mut: func(r *SubmissionRequest) { r.Prompts = nil }},
		{name: "missing key", mut: func(r *SubmissionRequest) { r.OpenAIKey = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(3)
			tt.mut(req)
			if _, err := svc.Enqueue(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestEnqueueCredentialFailure(t *testing.T) {
	rm, batches, _, _, _, _, _ := newFakeRepos()
	svc := newSubmissionForTest(rm, &fakePublisher{}, &fakeHealth{active: models.ServiceBrightData}, &fakeCredentials{err: ErrAuthFailed})

	if _, err := svc.Enqueue(context.Background(), validRequest(3)); !errors.Is(err, ErrAuthFailed) {
		t.Errorf("Expected ErrAuthFailed, got %v", err)
	}
	if len(batches.batches) != 0 {
		t.Error("No batch rows should exist after failed validation")
	}
}

func TestEnqueueAllProvidersDown(t *testing.T) {
	rm, batches, _, _, _, _, _ := newFakeRepos()
	publisher := &fakePublisher{}
	svc := newSubmissionForTest(rm, publisher, &fakeHealth{err: ErrAllProvidersDown}, &fakeCredentials{})

	if _, err := svc.Enqueue(context.Background(), validRequest(3)); !errors.Is(err, ErrAllProvidersDown) {
		t.Errorf("Expected ErrAllProvidersDown, got %v", err)
	}
	// No records are created when no provider is healthy
	if len(batches.batches) != 0 || len(batches.created) != 0 {
		t.Error("No rows should exist when all providers are down")
	}
	if len(publisher.published) != 0 {
		t.Error("Nothing should be published when all providers are down")
	}
}

func TestEnqueuePublishFailureIsBestEffort(t *testing.T) {
	rm, _, _, _, _, _, _ := newFakeRepos()
	publisher := &fakePublisher{failTopics: map[string]bool{models.TopicBrightDataDispatch: true}}
	svc := newSubmissionForTest(rm, publisher, &fakeHealth{active: models.ServiceBrightData}, &fakeCredentials{})

	resp, err := svc.Enqueue(context.Background(), validRequest(10))
	if err != nil {
		t.Fatalf("Publish failure must not fail the submission: %v", err)
	}
	if resp.TotalBatches != 2 {
		t.Errorf("Expected 2 batches, got %d", resp.TotalBatches)
	}
}
