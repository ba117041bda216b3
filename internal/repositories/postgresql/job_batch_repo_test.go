package postgresql

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/promptpulse/pulse-workflows/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

func batchRows(batch *models.JobBatch) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"job_batch_id", "user_id", "project_id", "email", "total_prompts", "total_batches",
		"completed_batches", "failed_batches", "status", "openai_key", "openai_model", "web_search",
		"country", "region", "city", "brand_mentions", "domain_mentions", "tags", "error_message",
		"created_at", "updated_at", "completed_at",
	}).AddRow(
		batch.JobBatchID, batch.UserID, batch.ProjectID, batch.Email, batch.TotalPrompts, batch.TotalBatches,
		batch.CompletedBatches, batch.FailedBatches, batch.Status, batch.OpenAIKey, batch.OpenAIModel, batch.WebSearch,
		batch.Country, batch.Region, batch.City, batch.BrandMentions, batch.DomainMentions, batch.Tags, batch.ErrorMessage,
		batch.CreatedAt, batch.UpdatedAt, batch.CompletedAt,
	)
}

func sampleBatch() *models.JobBatch {
	return &models.JobBatch{
		JobBatchID:   uuid.New(),
		UserID:       uuid.New(),
		ProjectID:    uuid.New(),
		TotalPrompts: 7,
		TotalBatches: 2,
		Status:       models.BatchStatusProcessing,
		OpenAIModel:  "gpt-4o-mini",
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func TestIncrementCompletedReturnsUpdatedRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobBatchRepo(db)

	batch := sampleBatch()
	batch.CompletedBatches = 1

	mock.ExpectQuery(`UPDATE job_batches\s+SET completed_batches = completed_batches \+ 1`).
		WithArgs(batch.JobBatchID).
		WillReturnRows(batchRows(batch))

	updated, err := repo.IncrementCompleted(context.Background(), batch.JobBatchID)
	if err != nil {
		t.Fatalf("IncrementCompleted returned error: %v", err)
	}
	if updated.CompletedBatches != 1 {
		t.Errorf("CompletedBatches = %d, want 1", updated.CompletedBatches)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestIncrementFailedReturnsUpdatedRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobBatchRepo(db)

	batch := sampleBatch()
	batch.FailedBatches = 2

	mock.ExpectQuery(`UPDATE job_batches\s+SET failed_batches = failed_batches \+ 1`).
		WithArgs(batch.JobBatchID).
		WillReturnRows(batchRows(batch))

	updated, err := repo.IncrementFailed(context.Background(), batch.JobBatchID)
	if err != nil {
		t.Fatalf("IncrementFailed returned error: %v", err)
	}
	if updated.FailedBatches != 2 {
		t.Errorf("FailedBatches = %d, want 2", updated.FailedBatches)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateWithResultsRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobBatchRepo(db)

	batch := sampleBatch()
	prompt := &models.Prompt{
		PromptID:  uuid.New(),
		ProjectID: batch.ProjectID,
		Text:      "best crm for startups",
		Enabled:   true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	result := &models.TrackingResult{
		TrackingResultID: uuid.New(),
		PromptID:         prompt.PromptID,
		PromptText:       prompt.Text,
		ProjectID:        batch.ProjectID,
		UserID:           batch.UserID,
		JobBatchID:       &batch.JobBatchID,
		Status:           models.ResultStatusPending,
		Timestamp:        time.Now().UnixMilli(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO job_batches`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO prompts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO tracking_results`).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := repo.CreateWithResults(context.Background(), batch,
		[]*models.Prompt{prompt}, []*models.TrackingResult{result})
	if err == nil {
		t.Fatal("CreateWithResults should fail when result insert fails")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateWithResultsCommits(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewJobBatchRepo(db)

	batch := sampleBatch()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO job_batches`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.CreateWithResults(context.Background(), batch, nil, nil); err != nil {
		t.Fatalf("CreateWithResults returned error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
