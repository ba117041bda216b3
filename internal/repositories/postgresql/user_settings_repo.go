// internal/repositories/postgresql/user_settings_repo.go
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

type userSettingsRepo struct {
	db *sqlx.DB
}

func NewUserSettingsRepo(db *sqlx.DB) repositories.UserSettingsRepository {
	return &userSettingsRepo{db: db}
}

func (r *userSettingsRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.UserSettings, error) {
	var settings models.UserSettings
	err := r.db.GetContext(ctx, &settings,
		`SELECT user_id, email, openai_key, openai_model FROM user_settings WHERE user_id = $1`,
		userID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user settings: %w", err)
	}
	return &settings, nil
}
