package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/lumen-im/server/internal/repo"
	"github.com/lumen-im/server/internal/uia"
)

// HashPassword returns the bcrypt hash of a password
func HashPassword(password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// CheckPassword reports whether the password matches the stored bcrypt hash
func CheckPassword(hash []byte, password string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// PasswordValidator is the UIA stage validator for m.login.password: it
// resolves the submitted username and checks the password against the stored
// hash. The identity it proves is the account's user id.
type PasswordValidator struct {
	users repo.UserRepo
}

// NewPasswordValidator creates a password stage validator backed by the user repo
func NewPasswordValidator(users repo.UserRepo) *PasswordValidator {
	return &PasswordValidator{users: users}
}

func (v *PasswordValidator) StageType() string { return uia.StagePassword }

func (v *PasswordValidator) Params() map[string]interface{} { return nil }

// Validate checks the submitted {user, password} proof. A wrong password and
// an unknown user are both a plain rejection, never an internal error.
func (v *PasswordValidator) Validate(ctx context.Context, auth map[string]interface{}) (string, bool, error) {
	username, _ := auth["user"].(string)
	password, _ := auth["password"].(string)
	if username == "" || password == "" {
		return "", false, nil
	}

	user, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return "", false, nil
	}
	return user.ID.String(), true, nil
}
