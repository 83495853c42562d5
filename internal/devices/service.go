// Package devices orchestrates device management. Reads go straight to the
// directory; destructive operations are gated behind user-interactive auth
// and, for single deletes, an identity-binding check against the requester's
// own access token.
package devices

import (
	"context"
	"errors"
	"fmt"

	"github.com/lumen-im/server/internal/api"
	"github.com/lumen-im/server/internal/model"
	"github.com/lumen-im/server/internal/repo"
	"github.com/lumen-im/server/internal/uia"
)

// Service coordinates device operations between the auth gate and the
// device directory.
type Service struct {
	directory repo.DeviceRepo
	gate      *uia.Gate
}

// NewService creates a device service
func NewService(directory repo.DeviceRepo, gate *uia.Gate) *Service {
	return &Service{directory: directory, gate: gate}
}

// List returns the requester's devices.
func (s *Service) List(ctx context.Context, requester model.Requester) ([]model.Device, error) {
	devices, err := s.directory.List(ctx, requester.UserID)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// Get returns one of the requester's devices.
func (s *Service) Get(ctx context.Context, requester model.Requester, deviceID string) (model.Device, error) {
	device, err := s.directory.Get(ctx, requester.UserID, deviceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Device{}, api.NotFound("device not found")
		}
		return model.Device{}, fmt.Errorf("get device: %w", err)
	}
	return device, nil
}

// Update applies the recognized mutable fields from the request body to the
// device. Unrecognized fields are ignored.
func (s *Service) Update(ctx context.Context, requester model.Requester, deviceID string, body map[string]interface{}) error {
	var update repo.DeviceUpdate
	if raw, ok := body["display_name"]; ok {
		name, ok := raw.(string)
		if !ok {
			return api.BadJSON("display_name must be a string")
		}
		update.DisplayName = &name
	}

	if err := s.directory.Update(ctx, requester.UserID, deviceID, update); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return api.NotFound("device not found")
		}
		return fmt.Errorf("update device: %w", err)
	}
	return nil
}

// Delete removes one device after the gate is satisfied. The identity the
// credential stage proved must be the requester's own account: a UIA session
// opened under one account cannot be spent deleting another account's
// device. A non-nil Challenge means the caller must answer 401 with it and
// nothing was deleted.
func (s *Service) Delete(ctx context.Context, requester model.Requester, deviceID string, body map[string]interface{}, clientIP string) (*uia.Challenge, error) {
	result, err := s.checkGate(ctx, body, clientIP)
	if err != nil {
		return nil, err
	}
	if !result.Satisfied {
		return result.Challenge, nil
	}

	if result.Identities[uia.StagePassword] != requester.UserID.String() {
		return nil, api.Forbidden("proven credentials do not match the access token owner")
	}

	if err := s.directory.Delete(ctx, requester.UserID, deviceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, api.NotFound("device not found")
		}
		return nil, fmt.Errorf("delete device: %w", err)
	}
	return nil, nil
}

// DeleteMany removes the listed devices after the gate is satisfied. Device
// ids the requester does not own are ignored, so resubmitting a list that
// includes already-removed devices succeeds. The devices field is required
// and is checked before any authentication work.
func (s *Service) DeleteMany(ctx context.Context, requester model.Requester, body map[string]interface{}, clientIP string) (*uia.Challenge, error) {
	raw, ok := body["devices"]
	if !ok {
		return nil, api.MissingParam("no devices supplied")
	}
	deviceIDs, err := stringSlice(raw)
	if err != nil {
		return nil, api.BadJSON("devices must be a list of device ids")
	}

	result, err := s.checkGate(ctx, body, clientIP)
	if err != nil {
		return nil, err
	}
	if !result.Satisfied {
		return result.Challenge, nil
	}

	// No identity binding here: the password stage reproves the same
	// account the access token already resolves to.
	if err := s.directory.DeleteMany(ctx, requester.UserID, deviceIDs); err != nil {
		return nil, fmt.Errorf("delete devices: %w", err)
	}
	return nil, nil
}

// checkGate runs the interactive-auth gate with the destructive-operation
// flow, pulling the auth dict out of the request body.
func (s *Service) checkGate(ctx context.Context, body map[string]interface{}, clientIP string) (*uia.Result, error) {
	authDict, _ := body["auth"].(map[string]interface{})
	result, err := s.gate.Check(ctx, uia.PasswordFlow(), authDict, clientIP)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func stringSlice(raw interface{}) ([]string, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("not a list")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("not a string")
		}
		out = append(out, s)
	}
	return out, nil
}
