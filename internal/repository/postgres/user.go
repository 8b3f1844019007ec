package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/careflow-api/internal/model"
)

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.DirectoryUser, error) {
	query := `
		SELECT id, role, name, email, specialization, location,
			   created_at, updated_at
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	var user model.DirectoryUser
	if err := sqlx.GetContext(ctx, r.ext(ctx), &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}
