// internal/repositories/postgresql/job_batch_repo.go
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/promptpulse/pulse-workflows/internal/models"
	"github.com/promptpulse/pulse-workflows/internal/repositories"
)

type jobBatchRepo struct {
	db *sqlx.DB
}

func NewJobBatchRepo(db *sqlx.DB) repositories.JobBatchRepository {
	return &jobBatchRepo{db: db}
}

const jobBatchColumns = `job_batch_id, user_id, project_id, email, total_prompts, total_batches,
	completed_batches, failed_batches, status, openai_key, openai_model, web_search,
	country, region, city, brand_mentions, domain_mentions, tags, error_message,
	created_at, updated_at, completed_at`

func (r *jobBatchRepo) CreateWithResults(ctx context.Context, batch *models.JobBatch, prompts []*models.Prompt, results []*models.TrackingResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO job_batches (`+jobBatchColumns+`)
		VALUES (:job_batch_id, :user_id, :project_id, :email, :total_prompts, :total_batches,
			:completed_batches, :failed_batches, :status, :openai_key, :openai_model, :web_search,
			:country, :region, :city, :brand_mentions, :domain_mentions, :tags, :error_message,
			:created_at, :updated_at, :completed_at)`, batch)
	if err != nil {
		return fmt.Errorf("failed to insert job batch: %w", err)
	}

	if len(prompts) > 0 {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO prompts (prompt_id, project_id, text, enabled, brand_mentions,
				domain_mentions, country, region, city, created_at, updated_at)
			VALUES (:prompt_id, :project_id, :text, :enabled, :brand_mentions,
				:domain_mentions, :country, :region, :city, :created_at, :updated_at)
			ON CONFLICT (prompt_id) DO NOTHING`, prompts)
		if err != nil {
			return fmt.Errorf("failed to bulk insert prompts: %w", err)
		}
	}

	if len(results) > 0 {
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO tracking_results (tracking_result_id, prompt_id, prompt_text, project_id,
				user_id, job_batch_id, batch_number, status, timestamp)
			VALUES (:tracking_result_id, :prompt_id, :prompt_text, :project_id,
				:user_id, :job_batch_id, :batch_number, :status, :timestamp)`, results)
		if err != nil {
			return fmt.Errorf("failed to bulk insert tracking results: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit submission transaction: %w", err)
	}
	return nil
}

func (r *jobBatchRepo) GetByID(ctx context.Context, jobBatchID uuid.UUID) (*models.JobBatch, error) {
	var batch models.JobBatch
	err := r.db.GetContext(ctx, &batch,
		`SELECT `+jobBatchColumns+` FROM job_batches WHERE job_batch_id = $1`, jobBatchID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job batch %s not found", jobBatchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job batch: %w", err)
	}
	return &batch, nil
}

func (r *jobBatchRepo) UpdateStatus(ctx context.Context, jobBatchID uuid.UUID, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE job_batches SET status = $2, updated_at = NOW() WHERE job_batch_id = $1`,
		jobBatchID, status)
	if err != nil {
		return fmt.Errorf("failed to update job batch status: %w", err)
	}
	return nil
}

func (r *jobBatchRepo) IncrementCompleted(ctx context.Context, jobBatchID uuid.UUID) (*models.JobBatch, error) {
	return r.increment(ctx, jobBatchID, "completed_batches")
}

func (r *jobBatchRepo) IncrementFailed(ctx context.Context, jobBatchID uuid.UUID) (*models.JobBatch, error) {
	return r.increment(ctx, jobBatchID, "failed_batches")
}

// increment is the compare-and-check primitive: a single UPDATE ... RETURNING
// keeps the counter bump and the read of the new value atomic.
func (r *jobBatchRepo) increment(ctx context.Context, jobBatchID uuid.UUID, column string) (*models.JobBatch, error) {
	var batch models.JobBatch
	query := fmt.Sprintf(`UPDATE job_batches
		SET %s = %s + 1, updated_at = NOW()
		WHERE job_batch_id = $1
		RETURNING `+jobBatchColumns, column, column)
	err := r.db.GetContext(ctx, &batch, query, jobBatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to increment %s: %w", column, err)
	}
	return &batch, nil
}

func (r *jobBatchRepo) SetTerminal(ctx context.Context, jobBatchID uuid.UUID, status string, completedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE job_batches SET status = $2, completed_at = $3, updated_at = NOW() WHERE job_batch_id = $1`,
		jobBatchID, status, completedAt)
	if err != nil {
		return fmt.Errorf("failed to set terminal status: %w", err)
	}
	return nil
}

func (r *jobBatchRepo) SetError(ctx context.Context, jobBatchID uuid.UUID, message string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE job_batches SET error_message = $2, updated_at = NOW() WHERE job_batch_id = $1`,
		jobBatchID, message)
	if err != nil {
		return fmt.Errorf("failed to set error message: %w", err)
	}
	return nil
}
