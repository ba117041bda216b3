// internal/repositories/postgresql/prompt_repo.go
package postgresql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/promptpulse/pulse-workflows/internal/models"
	"github.com/promptpulse/pulse-workflows/internal/repositories"
)

type promptRepo struct {
	db *sqlx.DB
}

func NewPromptRepo(db *sqlx.DB) repositories.PromptRepository {
	return &promptRepo{db: db}
}

const promptColumns = `prompt_id, project_id, text, enabled, brand_mentions, domain_mentions,
	country, region, city, created_at, updated_at`

func (r *promptRepo) GetByID(ctx context.Context, promptID uuid.UUID) (*models.Prompt, error) {
	var prompt models.Prompt
	err := r.db.GetContext(ctx, &prompt,
		`SELECT `+promptColumns+` FROM prompts WHERE prompt_id = $1`, promptID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("prompt %s not found", promptID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prompt: %w", err)
	}
	return &prompt, nil
}

func (r *promptRepo) GetEnabledByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Prompt, error) {
	var prompts []*models.Prompt
	err := r.db.SelectContext(ctx, &prompts,
		`SELECT `+promptColumns+` FROM prompts
		WHERE project_id = $1 AND enabled = TRUE
		ORDER BY created_at`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled prompts: %w", err)
	}
	return prompts, nil
}
