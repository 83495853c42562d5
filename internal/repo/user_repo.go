package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lumen-im/server/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByUsername(ctx context.Context, username string) (model.User, error)
	Create(ctx context.Context, username string, passwordHash []byte, isGuest bool) (model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	user := model.User{ID: id}
	err := r.db.QueryRowContext(ctx, `
		SELECT username, password_hash, is_guest, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(&user.Username, &user.PasswordHash, &user.IsGuest, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	return user, nil
}

// GetByUsername retrieves a user by username
func (r *userRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var user model.User
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, is_guest, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&idStr, &user.Username, &user.PasswordHash, &user.IsGuest, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}

	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	return user, nil
}

// Create inserts a new user account
func (r *userRepo) Create(ctx context.Context, username string, passwordHash []byte, isGuest bool) (model.User, error) {
	user := model.User{
		Username:     username,
		PasswordHash: passwordHash,
		IsGuest:      isGuest,
	}
	var idStr string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash, is_guest)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, username, passwordHash, isGuest).Scan(&idStr, &user.CreatedAt)
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	user.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	return user, nil
}
