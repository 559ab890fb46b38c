package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ecofinds/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrAuthTokenNotFound = errors.New("auth token not found")
)

// AuthTokenRepository defines the interface for opaque bearer token data access.
// A user holds at most one live token; GetOrCreate reuses an existing row.
type AuthTokenRepository interface {
	GetOrCreate(ctx context.Context, token *domain.AuthToken) (*domain.AuthToken, error)
	FindByKey(ctx context.Context, key string) (*domain.AuthToken, error)
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type authTokenRepository struct {
	db *sql.DB
}

// NewAuthTokenRepository creates a new instance of AuthTokenRepository
func NewAuthTokenRepository(db *sql.DB) AuthTokenRepository {
	return &authTokenRepository{db: db}
}

// GetOrCreate returns the user's existing token or inserts the candidate.
// The unique constraint on user_id makes the insert race-safe: losers of the
// race fall through to the existing row via ON CONFLICT DO NOTHING.
func (r *authTokenRepository) GetOrCreate(ctx context.Context, token *domain.AuthToken) (*domain.AuthToken, error) {
	insert := `
		INSERT INTO auth_tokens (id, key, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, insert, token.ID, token.Key, token.UserID, token.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth token: %w", err)
	}

	query := `
		SELECT id, key, user_id, created_at
		FROM auth_tokens
		WHERE user_id = $1
	`

	existing := &domain.AuthToken{}
	err = r.db.QueryRowContext(ctx, query, token.UserID).Scan(
		&existing.ID,
		&existing.Key,
		&existing.UserID,
		&existing.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load auth token: %w", err)
	}

	return existing, nil
}

// FindByKey retrieves a token by its opaque key using parameterized queries
func (r *authTokenRepository) FindByKey(ctx context.Context, key string) (*domain.AuthToken, error) {
	query := `
		SELECT id, key, user_id, created_at
		FROM auth_tokens
		WHERE key = $1
	`

	token := &domain.AuthToken{}
	err := r.db.QueryRowContext(ctx, query, key).Scan(
		&token.ID,
		&token.Key,
		&token.UserID,
		&token.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrAuthTokenNotFound
		}
		return nil, fmt.Errorf("failed to find auth token: %w", err)
	}

	return token, nil
}

// DeleteByUserID removes the caller's token, logging them out everywhere
func (r *authTokenRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	query := `DELETE FROM auth_tokens WHERE user_id = $1`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to delete auth token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrAuthTokenNotFound
	}

	return nil
}
