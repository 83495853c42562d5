package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumen-im/server/internal/model"
	"github.com/lumen-im/server/internal/repo"
)

// ErrInvalidCredentials is returned when a login's username or password is wrong
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService orchestrates logins: it verifies the password, registers the
// device, and issues a device-bound access token.
type AuthService struct {
	jwtService *JWTService
	userRepo   repo.UserRepo
	deviceRepo repo.DeviceRepo
	tokenRepo  repo.TokenRepo
}

// NewAuthService creates a new auth service
func NewAuthService(
	jwtService *JWTService,
	userRepo repo.UserRepo,
	deviceRepo repo.DeviceRepo,
	tokenRepo repo.TokenRepo,
) *AuthService {
	return &AuthService{
		jwtService: jwtService,
		userRepo:   userRepo,
		deviceRepo: deviceRepo,
		tokenRepo:  tokenRepo,
	}
}

// PasswordLogin verifies the password and creates a session: a device record
// (reusing deviceID if the client supplied one) and an access token bound to
// it. The token is returned once; only its hash is stored.
func (s *AuthService) PasswordLogin(
	ctx context.Context,
	username, password string,
	deviceID, displayName string,
) (*model.User, *model.Device, string, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, "", ErrInvalidCredentials
		}
		return nil, nil, "", fmt.Errorf("lookup user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		return nil, nil, "", ErrInvalidCredentials
	}

	device, err := s.deviceRepo.Create(ctx, user.ID, deviceID, displayName)
	if err != nil {
		return nil, nil, "", fmt.Errorf("register device: %w", err)
	}

	token, err := s.jwtService.SignAccessToken(user.ID, device.ID, user.IsGuest)
	if err != nil {
		return nil, nil, "", fmt.Errorf("sign access token: %w", err)
	}

	if _, err := s.tokenRepo.Create(ctx, user.ID, device.ID, HashAccessToken(token)); err != nil {
		return nil, nil, "", fmt.Errorf("store access token: %w", err)
	}

	return &user, &device, token, nil
}
