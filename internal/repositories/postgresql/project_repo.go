// internal/repositories/postgresql/project_repo.go
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

type projectRepo struct {
	db *sqlx.DB
}

func NewProjectRepo(db *sqlx.DB) repositories.ProjectRepository {
	return &projectRepo{db: db}
}

const projectColumns = `project_id, user_id, name, scheduler_frequency, last_nightly_run_at,
	created_at, updated_at`

func (r *projectRepo) GetByID(ctx context.Context, projectID uuid.UUID) (*models.Project, error) {
	var project models.Project
	err := r.db.GetContext(ctx, &project,
		`SELECT `+projectColumns+` FROM projects WHERE project_id = $1`, projectID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s not found", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &project, nil
}

func (r *projectRepo) GetScheduled(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	err := r.db.SelectContext(ctx, &projects,
		`SELECT `+projectColumns+` FROM projects
		WHERE scheduler_frequency IS NOT NULL
		ORDER BY user_id, project_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduled projects: %w", err)
	}
	return projects, nil
}

func (r *projectRepo) StampNightlyRun(ctx context.Context, projectID uuid.UUID, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE projects SET last_nightly_run_at = $2, updated_at = NOW() WHERE project_id = $1`,
		projectID, at)
	if err != nil {
		return fmt.Errorf("failed to stamp nightly run: %w", err)
	}
	return nil
}
