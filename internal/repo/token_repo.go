package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lumen-im/server/internal/model"
)

// TokenRepo stores hashed access tokens bound to devices. Rows disappear
// when their device is deleted (see DeviceRepo.Delete), which is how device
// deletion invalidates credentials.
type TokenRepo interface {
	Create(ctx context.Context, userID uuid.UUID, deviceID, tokenHash string) (uuid.UUID, error)
	// FindLiveByHash returns the token row if it exists and is not revoked.
	FindLiveByHash(ctx context.Context, tokenHash string) (model.AccessToken, error)
	Revoke(ctx context.Context, tokenID uuid.UUID) error
}

type tokenRepo struct {
	db *sql.DB
}

// NewTokenRepo creates a new TokenRepo instance
func NewTokenRepo(db *sql.DB) TokenRepo {
	return &tokenRepo{db: db}
}

// Create inserts a new access token row
func (r *tokenRepo) Create(ctx context.Context, userID uuid.UUID, deviceID, tokenHash string) (uuid.UUID, error) {
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO access_tokens (user_id, device_id, token_hash)
		VALUES ($1, $2, $3)
		RETURNING id
	`, userID, deviceID, tokenHash).Scan(&idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert access token: %w", err)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse token ID: %w", err)
	}
	return id, nil
}

// FindLiveByHash returns the token row for the hash if it has not been revoked
func (r *tokenRepo) FindLiveByHash(ctx context.Context, tokenHash string) (model.AccessToken, error) {
	var t model.AccessToken
	var idStr, userIDStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, device_id, token_hash, created_at, revoked_at
		FROM access_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL
	`, tokenHash).Scan(&idStr, &userIDStr, &t.DeviceID, &t.TokenHash, &t.CreatedAt, &t.RevokedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.AccessToken{}, ErrNotFound
		}
		return model.AccessToken{}, fmt.Errorf("find access token: %w", err)
	}
	t.ID, _ = uuid.Parse(idStr)
	t.UserID, _ = uuid.Parse(userIDStr)
	return t, nil
}

// Revoke marks the token revoked without touching the device
func (r *tokenRepo) Revoke(ctx context.Context, tokenID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE access_tokens SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL
	`, tokenID)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
