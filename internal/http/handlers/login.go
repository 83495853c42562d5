package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lumen-im/server/internal/api"
	"github.com/lumen-im/server/internal/auth"
	"github.com/lumen-im/server/internal/uia"
)

// LoginHandler handles POST /login
type LoginHandler struct {
	authService *auth.AuthService
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(authService *auth.AuthService) *LoginHandler {
	return &LoginHandler{authService: authService}
}

// loginRequest is the request body for POST /login
type loginRequest struct {
	Type                     string `json:"type"`
	User                     string `json:"user"`
	Password                 string `json:"password"`
	DeviceID                 string `json:"device_id"`
	InitialDeviceDisplayName string `json:"initial_device_display_name"`
}

// loginResponse is the JSON response for login
type loginResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
}

// HandleLogin handles POST /login. Logging in registers a device and issues
// an access token bound to it.
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	body, err := parseJSONObject(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	var req loginRequest
	req.Type, _ = body["type"].(string)
	req.User, _ = body["user"].(string)
	req.Password, _ = body["password"].(string)
	req.DeviceID, _ = body["device_id"].(string)
	req.InitialDeviceDisplayName, _ = body["initial_device_display_name"].(string)

	if req.Type != uia.StagePassword {
		api.WriteError(w, api.BadJSON("unsupported login type"))
		return
	}
	req.User = strings.TrimSpace(req.User)
	if req.User == "" || req.Password == "" {
		api.WriteError(w, api.MissingParam("user and password are required"))
		return
	}

	user, device, token, err := h.authService.PasswordLogin(
		r.Context(), req.User, req.Password, req.DeviceID, req.InitialDeviceDisplayName,
	)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			api.WriteError(w, api.Forbidden("invalid username or password"))
			return
		}
		api.WriteError(w, err)
		return
	}

	api.WriteJSON(w, http.StatusOK, loginResponse{
		UserID:      user.ID.String(),
		AccessToken: token,
		DeviceID:    device.ID,
	})
}
