package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lumen-im/server/internal/api"
	"github.com/lumen-im/server/internal/devices"
	"github.com/lumen-im/server/internal/middleware"
	"github.com/lumen-im/server/internal/model"
	"github.com/lumen-im/server/internal/uia"
)

// DevicesHandler handles the device management endpoints
type DevicesHandler struct {
	devices *devices.Service
}

// NewDevicesHandler creates a new devices handler
func NewDevicesHandler(deviceService *devices.Service) *DevicesHandler {
	return &DevicesHandler{devices: deviceService}
}

// deviceResponse is a device record in API responses
type deviceResponse struct {
	DeviceID    string  `json:"device_id"`
	DisplayName string  `json:"display_name,omitempty"`
	LastSeenIP  *string `json:"last_seen_ip,omitempty"`
	LastSeenTS  *int64  `json:"last_seen_ts,omitempty"`
}

func toDeviceResponse(d model.Device) deviceResponse {
	resp := deviceResponse{
		DeviceID:    d.ID,
		DisplayName: d.DisplayName,
		LastSeenIP:  d.LastSeenIP,
	}
	if d.LastSeenAt != nil {
		ts := d.LastSeenAt.UnixMilli()
		resp.LastSeenTS = &ts
	}
	return resp
}

// HandleList handles GET /devices
func (h *DevicesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.GetRequester(r.Context())
	if !ok {
		api.WriteError(w, api.MissingToken("missing access token"))
		return
	}

	deviceList, err := h.devices.List(r.Context(), requester)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	out := make([]deviceResponse, 0, len(deviceList))
	for _, d := range deviceList {
		out = append(out, toDeviceResponse(d))
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{"devices": out})
}

// HandleGet handles GET /devices/{deviceID}
func (h *DevicesHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.GetRequester(r.Context())
	if !ok {
		api.WriteError(w, api.MissingToken("missing access token"))
		return
	}

	device, err := h.devices.Get(r.Context(), requester, chi.URLParam(r, "deviceID"))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, toDeviceResponse(device))
}

// HandleUpdate handles PUT /devices/{deviceID}
func (h *DevicesHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.GetRequester(r.Context())
	if !ok {
		api.WriteError(w, api.MissingToken("missing access token"))
		return
	}

	body, err := parseJSONObject(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	if err := h.devices.Update(r.Context(), requester, chi.URLParam(r, "deviceID"), body); err != nil {
		api.WriteError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{})
}

// HandleDelete handles DELETE /devices/{deviceID}. The first request gets a
// 401 challenge; a retry carrying a completed auth stage deletes the device.
func (h *DevicesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.GetRequester(r.Context())
	if !ok {
		api.WriteError(w, api.MissingToken("missing access token"))
		return
	}

	body, err := parseJSONObjectLegacy(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	challenge, err := h.devices.Delete(r.Context(), requester, chi.URLParam(r, "deviceID"), body, clientIP(r))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if challenge != nil {
		writeChallenge(w, challenge)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{})
}

// HandleDeleteMany handles POST /delete_devices
func (h *DevicesHandler) HandleDeleteMany(w http.ResponseWriter, r *http.Request) {
	requester, ok := middleware.GetRequester(r.Context())
	if !ok {
		api.WriteError(w, api.MissingToken("missing access token"))
		return
	}

	body, err := parseJSONObjectLegacy(r)
	if err != nil {
		api.WriteError(w, err)
		return
	}

	challenge, err := h.devices.DeleteMany(r.Context(), requester, body, clientIP(r))
	if err != nil {
		api.WriteError(w, err)
		return
	}
	if challenge != nil {
		writeChallenge(w, challenge)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]interface{}{})
}

// writeChallenge sends a 401 carrying everything the client needs to finish
// the flow: session id, outstanding flows, and per-stage params.
func writeChallenge(w http.ResponseWriter, challenge *uia.Challenge) {
	api.WriteJSON(w, http.StatusUnauthorized, challenge)
}
