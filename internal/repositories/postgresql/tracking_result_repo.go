// internal/repositories/postgresql/tracking_result_repo.go
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

type trackingResultRepo struct {
	db *sqlx.DB
}

func NewTrackingResultRepo(db *sqlx.DB) repositories.TrackingResultRepository {
	return &trackingResultRepo{db: db}
}

const trackingResultColumns = `tracking_result_id, prompt_id, prompt_text, project_id, user_id,
	job_batch_id, batch_number, external_task_id, status, is_present, is_domain_present,
	sentiment, salience, response, citations, mention_count, domain_mention_count, web_search,
	lcp, actionability, intent_classification, serp, ai_search_volume, ai_monthly_trends,
	ai_volume_fetched_at, ai_volume_location_code, timestamp, source`

func (r *trackingResultRepo) Create(ctx context.Context, result *models.TrackingResult) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO tracking_results (`+trackingResultColumns+`)
		VALUES (:tracking_result_id, :prompt_id, :prompt_text, :project_id, :user_id,
			:job_batch_id, :batch_number, :external_task_id, :status, :is_present, :is_domain_present,
			:sentiment, :salience, :response, :citations, :mention_count, :domain_mention_count, :web_search,
			:lcp, :actionability, :intent_classification, :serp, :ai_search_volume, :ai_monthly_trends,
			:ai_volume_fetched_at, :ai_volume_location_code, :timestamp, :source)`, result)
	if err != nil {
		return fmt.Errorf("failed to insert tracking result: %w", err)
	}
	return nil
}

func (r *trackingResultRepo) GetByID(ctx context.Context, trackingResultID uuid.UUID) (*models.TrackingResult, error) {
	var result models.TrackingResult
	err := r.db.GetContext(ctx, &result,
		`SELECT `+trackingResultColumns+` FROM tracking_results WHERE tracking_result_id = $1`,
		trackingResultID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tracking result %s not found", trackingResultID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking result: %w", err)
	}
	return &result, nil
}

func (r *trackingResultRepo) GetByTaskID(ctx context.Context, taskID string) (*models.TrackingResult, error) {
	var result models.TrackingResult
	err := r.db.GetContext(ctx, &result,
		`SELECT `+trackingResultColumns+` FROM tracking_results WHERE external_task_id = $1`,
		taskID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tracking result by task id: %w", err)
	}
	return &result, nil
}

func (r *trackingResultRepo) GetByShard(ctx context.Context, jobBatchID uuid.UUID, batchNumber int) ([]*models.TrackingResult, error) {
	var results []*models.TrackingResult
	err := r.db.SelectContext(ctx, &results,
		`SELECT `+trackingResultColumns+` FROM tracking_results
		WHERE job_batch_id = $1 AND batch_number = $2
		ORDER BY tracking_result_id`, jobBatchID, batchNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get shard results: %w", err)
	}
	return results, nil
}

func (r *trackingResultRepo) Update(ctx context.Context, result *models.TrackingResult) error {
	result.Timestamp = time.Now().UnixMilli()
	_, err := r.db.NamedExecContext(ctx, `
		UPDATE tracking_results SET
			external_task_id = :external_task_id,
			status = :status,
			is_present = :is_present,
			is_domain_present = :is_domain_present,
			sentiment = :sentiment,
			salience = :salience,
			response = :response,
			citations = :citations,
			mention_count = :mention_count,
			domain_mention_count = :domain_mention_count,
			web_search = :web_search,
			lcp = :lcp,
			actionability = :actionability,
			intent_classification = :intent_classification,
			serp = :serp,
			ai_search_volume = :ai_search_volume,
			ai_monthly_trends = :ai_monthly_trends,
			ai_volume_fetched_at = :ai_volume_fetched_at,
			ai_volume_location_code = :ai_volume_location_code,
			timestamp = :timestamp,
			source = :source
		WHERE tracking_result_id = :tracking_result_id`, result)
	if err != nil {
		return fmt.Errorf("failed to update tracking result: %w", err)
	}
	return nil
}

func (r *trackingResultRepo) SetTaskID(ctx context.Context, trackingResultID uuid.UUID, taskID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tracking_results
		SET external_task_id = $2, status = $3, timestamp = $4
		WHERE tracking_result_id = $1`,
		trackingResultID, taskID, models.ResultStatusProcessing, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to stamp task id: %w", err)
	}
	return nil
}

func (r *trackingResultRepo) MarkFailed(ctx context.Context, trackingResultID uuid.UUID, reason string) error {
	response := fmt.Sprintf(`{"error": %q}`, reason)
	_, err := r.db.ExecContext(ctx, `
		UPDATE tracking_results
		SET status = $2, response = $3, timestamp = $4
		WHERE tracking_result_id = $1 AND status != $5`,
		trackingResultID, models.ResultStatusFailed, response, time.Now().UnixMilli(),
		models.ResultStatusFulfilled)
	if err != nil {
		return fmt.Errorf("failed to mark tracking result failed: %w", err)
	}
	return nil
}

func (r *trackingResultRepo) MarkShardFailed(ctx context.Context, jobBatchID uuid.UUID, batchNumber int, reason string) error {
	response := fmt.Sprintf(`{"error": %q}`, reason)
	_, err := r.db.ExecContext(ctx, `
		UPDATE tracking_results
		SET status = $3, response = $4, timestamp = $5
		WHERE job_batch_id = $1 AND batch_number = $2 AND status != $6`,
		jobBatchID, batchNumber, models.ResultStatusFailed, response, time.Now().UnixMilli(),
		models.ResultStatusFulfilled)
	if err != nil {
		return fmt.Errorf("failed to mark shard failed: %w", err)
	}
	return nil
}

func (r *trackingResultRepo) ExistsForShard(ctx context.Context, userID, jobBatchID uuid.UUID, batchNumber int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM tracking_results
			WHERE user_id = $1 AND job_batch_id = $2 AND batch_number = $3
		)`, userID, jobBatchID, batchNumber)
	if err != nil {
		return false, fmt.Errorf("failed to check shard existence: %w", err)
	}
	return exists, nil
}
