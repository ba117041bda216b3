// internal/repositories/postgresql/tag_repo.go
package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/promptpulse/pulse-workflows/internal/repositories"
)

const defaultTagColor = "#6B7280"

type tagRepo struct {
	db *sqlx.DB
}

func NewTagRepo(db *sqlx.DB) repositories.TagRepository {
	return &tagRepo{db: db}
}

func (r *tagRepo) Upsert(ctx context.Context, projectID uuid.UUID, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}

		var exists bool
		err := r.db.GetContext(ctx, &exists, `
			SELECT EXISTS (
				SELECT 1 FROM tags WHERE project_id = $1 AND LOWER(name) = LOWER($2)
			)`, projectID, name)
		if err != nil {
			return fmt.Errorf("failed to check tag %q: %w", name, err)
		}
		if exists {
			continue
		}

		_, err = r.db.ExecContext(ctx, `
			INSERT INTO tags (tag_id, project_id, name, color, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), projectID, name, defaultTagColor, time.Now())
		if err != nil {
			return fmt.Errorf("failed to insert tag %q: %w", name, err)
		}
	}
	return nil
}
