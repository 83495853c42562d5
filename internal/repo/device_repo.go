package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/lumen-im/server/internal/model"
)

// DeviceUpdate holds the mutable device fields. Nil pointers leave the field
// untouched; unrecognized request fields never reach this struct.
type DeviceUpdate struct {
	DisplayName *string
}

// DeviceRepo is the device directory: pure data access over a user's
// registered devices, including the credential invalidation that device
// deletion implies.
type DeviceRepo interface {
	Create(ctx context.Context, userID uuid.UUID, deviceID, displayName string) (model.Device, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.Device, error)
	Get(ctx context.Context, userID uuid.UUID, deviceID string) (model.Device, error)
	Update(ctx context.Context, userID uuid.UUID, deviceID string, update DeviceUpdate) error
	// Delete removes the device and, atomically in the same transaction,
	// every access token bound to it. A second delete of the same device
	// returns ErrNotFound and touches nothing.
	Delete(ctx context.Context, userID uuid.UUID, deviceID string) error
	// DeleteMany removes the listed devices and their tokens. Ids the user
	// does not own are silently ignored so a client can resubmit a list
	// that includes already-removed devices.
	DeleteMany(ctx context.Context, userID uuid.UUID, deviceIDs []string) error
}

type deviceRepo struct {
	db *sql.DB
}

// NewDeviceRepo creates a new DeviceRepo instance
func NewDeviceRepo(db *sql.DB) DeviceRepo {
	return &deviceRepo{db: db}
}

// Create registers a device for a user. If deviceID is empty a fresh opaque
// id is generated; display name may be empty.
func (r *deviceRepo) Create(ctx context.Context, userID uuid.UUID, deviceID, displayName string) (model.Device, error) {
	if deviceID == "" {
		deviceID = strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
	}

	var device model.Device
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO devices (id, user_id, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, id) DO UPDATE SET display_name = EXCLUDED.display_name
		RETURNING id, created_at
	`, deviceID, userID, displayName).Scan(&device.ID, &device.CreatedAt)
	if err != nil {
		return model.Device{}, fmt.Errorf("create device: %w", err)
	}

	device.UserID = userID
	device.DisplayName = displayName
	return device, nil
}

// List returns the user's devices, newest first. The order is stable within
// a call.
func (r *deviceRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, display_name, created_at, last_seen_at, last_seen_ip
		FROM devices
		WHERE user_id = $1
		ORDER BY created_at DESC, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer rows.Close()

	var devices []model.Device
	for rows.Next() {
		d := model.Device{UserID: userID}
		if err := rows.Scan(&d.ID, &d.DisplayName, &d.CreatedAt, &d.LastSeenAt, &d.LastSeenIP); err != nil {
			return nil, fmt.Errorf("scan device: %w", err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// Get returns the device, or ErrNotFound if it is absent or owned by a
// different user.
func (r *deviceRepo) Get(ctx context.Context, userID uuid.UUID, deviceID string) (model.Device, error) {
	d := model.Device{UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, display_name, created_at, last_seen_at, last_seen_ip
		FROM devices
		WHERE user_id = $1 AND id = $2
	`, userID, deviceID).Scan(&d.ID, &d.DisplayName, &d.CreatedAt, &d.LastSeenAt, &d.LastSeenIP)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Device{}, ErrNotFound
		}
		return model.Device{}, fmt.Errorf("get device: %w", err)
	}
	return d, nil
}

// Update applies the recognized mutable fields. Resubmitting the same update
// is a no-op; an absent device is ErrNotFound.
func (r *deviceRepo) Update(ctx context.Context, userID uuid.UUID, deviceID string, update DeviceUpdate) error {
	if update.DisplayName == nil {
		// Nothing to change, but the NotFound contract still applies.
		_, err := r.Get(ctx, userID, deviceID)
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices SET display_name = $3
		WHERE user_id = $1 AND id = $2
	`, userID, deviceID, *update.DisplayName)
	if err != nil {
		return fmt.Errorf("update device: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the device and its access tokens in one transaction.
func (r *deviceRepo) Delete(ctx context.Context, userID uuid.UUID, deviceID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM access_tokens WHERE user_id = $1 AND device_id = $2
	`, userID, deviceID); err != nil {
		return fmt.Errorf("delete device tokens: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM devices WHERE user_id = $1 AND id = $2
	`, userID, deviceID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit device delete: %w", err)
	}
	return nil
}

// DeleteMany removes the listed devices and their tokens in one transaction,
// ignoring ids the user does not own.
func (r *deviceRepo) DeleteMany(ctx context.Context, userID uuid.UUID, deviceIDs []string) error {
	if len(deviceIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM access_tokens WHERE user_id = $1 AND device_id = ANY($2)
	`, userID, pq.Array(deviceIDs)); err != nil {
		return fmt.Errorf("delete device tokens: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM devices WHERE user_id = $1 AND id = ANY($2)
	`, userID, pq.Array(deviceIDs)); err != nil {
		return fmt.Errorf("delete devices: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk device delete: %w", err)
	}
	return nil
}
