// internal/repositories/interfaces.go
package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

// JobBatchRepository persists job batches and drives the per-batch counters.
type JobBatchRepository interface {
	// CreateWithResults inserts the batch row, its prompt rows, and its
	// pending tracking results as a single transactional unit.
	CreateWithResults(ctx context.Context, batch *models.JobBatch, prompts []*models.Prompt, results []*models.TrackingResult) error
	GetByID(ctx context.Context, jobBatchID uuid.UUID) (*models.JobBatch, error)
	UpdateStatus(ctx context.Context, jobBatchID uuid.UUID, status string) error
	// IncrementCompleted atomically bumps completed_batches and returns the
	// updated row. Increments are serializable at the store.
	IncrementCompleted(ctx context.Context, jobBatchID uuid.UUID) (*models.JobBatch, error)
	IncrementFailed(ctx context.Context, jobBatchID uuid.UUID) (*models.JobBatch, error)
	SetTerminal(ctx context.Context, jobBatchID uuid.UUID, status string, completedAt time.Time) error
	SetError(ctx context.Context, jobBatchID uuid.UUID, message string) error
}

// TrackingResultRepository persists per-prompt results.
type TrackingResultRepository interface {
	Create(ctx context.Context, result *models.TrackingResult) error
	GetByID(ctx context.Context, trackingResultID uuid.UUID) (*models.TrackingResult, error)
	GetByTaskID(ctx context.Context, taskID string) (*models.TrackingResult, error)
	GetByShard(ctx context.Context, jobBatchID uuid.UUID, batchNumber int) ([]*models.TrackingResult, error)
	Update(ctx context.Context, result *models.TrackingResult) error
	// SetTaskID stamps the external task id and moves the row to processing.
	SetTaskID(ctx context.Context, trackingResultID uuid.UUID, taskID string) error
	// MarkFailed is the minimal fallback write used when a full update fails.
	MarkFailed(ctx context.Context, trackingResultID uuid.UUID, reason string) error
	MarkShardFailed(ctx context.Context, jobBatchID uuid.UUID, batchNumber int, reason string) error
	// ExistsForShard reports whether any result row exists for this user and
	// shard; the notifier uses it to deduplicate success emails.
	ExistsForShard(ctx context.Context, userID, jobBatchID uuid.UUID, batchNumber int) (bool, error)
}

// PromptRepository reads and writes tracked prompts.
type PromptRepository interface {
	GetByID(ctx context.Context, promptID uuid.UUID) (*models.Prompt, error)
	GetEnabledByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error)
}

// ProjectRepository reads projects and stamps nightly runs.
type ProjectRepository interface {
	GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error)
	// GetScheduled returns projects with a non-null scheduler frequency.
	GetScheduled(ctx context.Context) ([]*models.Project, error)
	StampNightlyRun(ctx context.Context, projectID uuid.UUID, at time.Time) error
}

// TagRepository upserts batch tags within a project scope.
type TagRepository interface {
	// Upsert matches existing tags case-insensitively within the project and
	// creates missing ones with the default color.
	Upsert(ctx context.Context, projectID uuid.UUID, names []string) error
}

// UserSettingsRepository reads per-user credentials.
type UserSettingsRepository interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error)
}
