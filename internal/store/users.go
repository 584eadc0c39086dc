package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/safar/medtrade/internal/apperr"
	"github.com/safar/medtrade/internal/models"
)

func CreateUser(ctx context.Context, q sqlx.QueryerContext, walletAddress string) (*models.User, error) {
	user := &models.User{}

	query := `
		INSERT INTO users (id, wallet_address, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, wallet_address, created_at`

	if err := sqlx.GetContext(ctx, q, user, query, uuid.New(), walletAddress); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (*models.User, error) {
	user := &models.User{}

	query := `
		SELECT id, wallet_address, created_at
		FROM users
		WHERE id = $1`

	if err := sqlx.GetContext(ctx, q, user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}
