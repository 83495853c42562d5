package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account on this homeserver
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash []byte
	IsGuest      bool
	CreatedAt    time.Time
}

// Device represents one logged-in client session belonging to a user
type Device struct {
	ID          string
	UserID      uuid.UUID
	DisplayName string
	CreatedAt   time.Time
	LastSeenAt  *time.Time
	LastSeenIP  *string
}

// Requester is the identity resolved from the access token on a request.
// Read-only to everything downstream of the auth middleware.
type Requester struct {
	UserID   uuid.UUID
	DeviceID string
	IsGuest  bool
}

// AccessToken is a device-bound credential record. Only the SHA256 of the
// token is stored; deleting the owning device removes the row.
type AccessToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	DeviceID  string
	TokenHash string
	CreatedAt time.Time
	RevokedAt *time.Time
}
