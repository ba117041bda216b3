package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

func seedBatch(repo *fakeJobBatchRepo, totalBatches int, email string) *models.JobBatch {
	batch := &models.JobBatch{
		JobBatchID:   uuid.New(),
		UserID:       uuid.New(),
		ProjectID:    uuid.New(),
		TotalPrompts: totalBatches * 5,
		TotalBatches: totalBatches,
		Status:       models.BatchStatusProcessing,
	}
	if email != "" {
		batch.Email = &email
	}
	repo.batches[batch.JobBatchID] = batch
	return batch
}

func TestRecordShardOutcomeAllSucceed(t *testing.T) {
	rm, batches, _, _, _, _, _ := newFakeRepos()
	notifier := &fakeNotifier{}
	svc := NewJobBatchService(rm, notifier)

	batch := seedBatch(batches, 2, "user@example.com")

	if err := svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 0, true, ""); err != nil {
		t.Fatalf("First shard failed: %v", err)
	}
	got, _ := batches.GetByID(context.Background(), batch.JobBatchID)
	if got.Terminal() {
		t.Error("Batch should not be terminal after one of two shards")
	}

	if err := svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 1, true, ""); err != nil {
		t.Fatalf("Second shard failed: %v", err)
	}
	got, _ = batches.GetByID(context.Background(), batch.JobBatchID)
	if got.Status != models.BatchStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("Expected completed_at stamp on terminal transition")
	}
	if len(notifier.sent) != 2 {
		t.Errorf("Expected 2 success emails, got %d", len(notifier.sent))
	}
}

func TestRecordShardOutcomeMixedResults(t *testing.T) {
	rm, batches, _, _, _, _, _ := newFakeRepos()
	svc := NewJobBatchService(rm, &fakeNotifier{})

	batch := seedBatch(batches, 3, "")
	svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 0, true, "")
	svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 1, false, "upstream empty")
	svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 2, true, "")

	got, _ := batches.GetByID(context.Background(), batch.JobBatchID)
	if got.Status != models.BatchStatusCompletedWithErrors {
		t.Errorf("Expected completed_with_errors, got %s", got.Status)
	}
}

func TestRecordShardOutcomeAllFail(t *testing.T) {
	rm, batches, _, _, _, _, _ := newFakeRepos()
	svc := NewJobBatchService(rm, &fakeNotifier{})

	batch := seedBatch(batches, 2, "")
	svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 0, false, "scrape failed")
	svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 1, false, "scrape failed")

	got, _ := batches.GetByID(context.Background(), batch.JobBatchID)
	if got.Status != models.BatchStatusFailed {
		t.Errorf("Expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == nil || *got.ErrorMessage != "scrape failed" {
		t.Error("Expected error message on failed batch")
	}
}

func TestRecordShardOutcomeSumGuard(t *testing.T) {
	rm, batches, _, _, _, _, _ := newFakeRepos()
	notifier := &fakeNotifier{}
	svc := NewJobBatchService(rm, notifier)

	batch := seedBatch(batches, 1, "user@example.com")
	svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 0, true, "")

	first, _ := batches.GetByID(context.Background(), batch.JobBatchID)
	firstCompletedAt := *first.CompletedAt

	// Replay the same shard message several times
	for i := 0; i < 3; i++ {
		if err := svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 0, true, ""); err != nil {
			t.Fatalf("Replay %d errored: %v", i, err)
		}
	}

	got, _ := batches.GetByID(context.Background(), batch.JobBatchID)
	if got.CompletedBatches != 1 || got.FailedBatches != 0 {
		t.Errorf("Replays double-counted: %d completed, %d failed", got.CompletedBatches, got.FailedBatches)
	}
	if got.Status != models.BatchStatusCompleted {
		t.Errorf("Expected completed, got %s", got.Status)
	}
	if !got.CompletedAt.Equal(firstCompletedAt) {
		t.Error("Replay changed completed_at")
	}
	if len(notifier.sent) != 1 {
		t.Errorf("Expected exactly 1 email, got %d", len(notifier.sent))
	}
}

func TestSuccessEmailDedupedWhenNoRows(t *testing.T) {
	rm, batches, results, _, _, _, _ := newFakeRepos()
	notifier := &fakeNotifier{}
	svc := NewJobBatchService(rm, notifier)

	results.existsForShard = false
	batch := seedBatch(batches, 1, "user@example.com")
	svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 0, true, "")

	if len(notifier.sent) != 0 {
		t.Errorf("Expected success email to be skipped, got %d emails", len(notifier.sent))
	}
}

func TestFailureEmailAlwaysSent(t *testing.T) {
	rm, batches, results, _, _, _, _ := newFakeRepos()
	notifier := &fakeNotifier{}
	svc := NewJobBatchService(rm, notifier)

	results.existsForShard = false
	batch := seedBatch(batches, 1, "user@example.com")
	svc.RecordShardOutcome(context.Background(), batch.JobBatchID, 0, false, "upstream failed")

	if len(notifier.sent) != 1 {
		t.Fatalf("Expected 1 failure email, got %d", len(notifier.sent))
	}
	if notifier.sent[0].kind != NotificationFailed {
		t.Errorf("Expected failed kind, got %s", notifier.sent[0].kind)
	}
	if notifier.sent[0].vars["reason"] != "upstream failed" {
		t.Errorf("Expected reason var, got %v", notifier.sent[0].vars)
	}
}
