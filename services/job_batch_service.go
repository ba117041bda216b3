// services/job_batch_service.go
package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

type jobBatchService struct {
	repos    *RepositoryManager
	notifier NotifierService
}

// NewJobBatchService creates the job-batch state machine
func NewJobBatchService(repos *RepositoryManager, notifier NotifierService) JobBatchService {
	return &jobBatchService{repos: repos, notifier: notifier}
}

// RecordShardOutcome applies one shard's outcome to the batch. Redelivered
// messages are caught by the sum guard: once the counters fill, further calls
// change nothing.
func (s *jobBatchService) RecordShardOutcome(ctx context.Context, jobBatchID uuid.UUID, batchNumber int, succeeded bool, reason string) error {
	batch, err := s.repos.JobBatchRepo.GetByID(ctx, jobBatchID)
	if err != nil {
		return fmt.Errorf("failed to load job batch: %w", err)
	}

	// Sum guard: a replayed shard message must not double-count
	if batch.CompletedBatches+batch.FailedBatches >= batch.TotalBatches {
		fmt.Printf("[JobBatchService] ⏭️ Counters already full for batch %s, skipping increment\n", jobBatchID)
		return nil
	}

	if succeeded {
		batch, err = s.repos.JobBatchRepo.IncrementCompleted(ctx, jobBatchID)
	} else {
		batch, err = s.repos.JobBatchRepo.IncrementFailed(ctx, jobBatchID)
	}
	if err != nil {
		return fmt.Errorf("failed to increment batch counter: %w", err)
	}

	// Only the increment that fills the counters writes the terminal state
	if batch.CompletedBatches+batch.FailedBatches == batch.TotalBatches {
		status := models.BatchStatusCompletedWithErrors
		switch {
		case batch.FailedBatches == 0:
			status = models.BatchStatusCompleted
		case batch.CompletedBatches == 0:
			status = models.BatchStatusFailed
		}

		if err := s.repos.JobBatchRepo.SetTerminal(ctx, jobBatchID, status, time.Now().UTC()); err != nil {
			return fmt.Errorf("failed to set terminal status: %w", err)
		}
		if !succeeded && reason != "" {
			if err := s.repos.JobBatchRepo.SetError(ctx, jobBatchID, reason); err != nil {
				fmt.Printf("[JobBatchService] ⚠️ Failed to record batch error: %v\n", err)
			}
		}
		fmt.Printf("[JobBatchService] 🏁 Batch %s reached terminal status %s (%d completed, %d failed)\n",
			jobBatchID, status, batch.CompletedBatches, batch.FailedBatches)
	}

	s.notifyShard(ctx, batch, batchNumber, succeeded, reason)
	return nil
}

// notifyShard emits the per-shard lifecycle email. Nightly shards carry no
// email address and fall through the notifier's no-op path.
func (s *jobBatchService) notifyShard(ctx context.Context, batch *models.JobBatch, batchNumber int, succeeded bool, reason string) {
	if batch.Email == nil || *batch.Email == "" {
		return
	}

	kind := NotificationFailed
	if succeeded {
		kind = NotificationSucceeded

		// Success emails dedupe against the shard's result rows: a callback
		// retry that produced no rows sends nothing.
		exists, err := s.repos.TrackingResultRepo.ExistsForShard(ctx, batch.UserID, batch.JobBatchID, batchNumber)
		if err != nil {
			fmt.Printf("[JobBatchService] ⚠️ Dedup check failed for batch %s shard %d: %v\n", batch.JobBatchID, batchNumber, err)
			return
		}
		if !exists {
			fmt.Printf("[JobBatchService] ⏭️ No result rows for batch %s shard %d, skipping success email\n", batch.JobBatchID, batchNumber)
			return
		}
	}

	vars := map[string]string{
		"job_batch_id":  batch.JobBatchID.String(),
		"batch_number":  strconv.Itoa(batchNumber + 1),
		"total_batches": strconv.Itoa(batch.TotalBatches),
		"total_prompts": strconv.Itoa(batch.TotalPrompts),
	}
	if reason != "" {
		vars["reason"] = reason
	}

	if err := s.notifier.Send(ctx, kind, *batch.Email, vars); err != nil {
		fmt.Printf("[JobBatchService] ⚠️ Failed to send %s email for batch %s shard %d: %v\n", kind, batch.JobBatchID, batchNumber, err)
	}
}
