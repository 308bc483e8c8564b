package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	"github.com/wealthtrack/device-trust/pkg/authn"
	"github.com/wealthtrack/device-trust/pkg/registry"
)

// MsgTokenNotFound is the sentinel message clients key forced logout on.
const MsgTokenNotFound = "token not found"

// Envelope is the uniform response shape of the registry API.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Message    string      `json:"message,omitempty"`
	StatusCode int         `json:"statusCode,omitempty"`
}

// DeviceView is the client-facing representation of a device record.
type DeviceView struct {
	DeviceID        string     `json:"deviceId"`
	DeviceType      string     `json:"deviceType"`
	DeviceName      string     `json:"deviceName"`
	DeviceModel     string     `json:"deviceModel,omitempty"`
	OSVersion       string     `json:"osVersion,omitempty"`
	AppVersion      string     `json:"appVersion,omitempty"`
	IsTrusted       bool       `json:"isTrusted"`
	TrustedAt       *time.Time `json:"trustedAt,omitempty"`
	IsCurrentDevice bool       `json:"isCurrentDevice"`
	LastAccessAt    time.Time  `json:"lastAccessAt"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// DeviceListView is the payload of the device listing endpoint.
type DeviceListView struct {
	Devices                      []DeviceView `json:"devices"`
	CurrentDeviceCanLogoutOthers bool         `json:"currentDeviceCanLogoutOthers"`
}

// Handle handles HTTP requests for device session management.
type Handle struct {
	service *registry.Service
}

// NewHandle creates a new device session handler.
func NewHandle(service *registry.Service) *Handle {
	return &Handle{
		service: service,
	}
}

// Routes returns an http.Handler for the device session API.
func Routes(h *Handle) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.ListDevices)
	r.Get("/stats", h.GetStats)
	r.Post("/register", h.RegisterDevice)
	r.Post("/logout-all", h.RevokeAllDevices)
	r.Delete("/{device_id}", h.RevokeDevice)
	r.Post("/{device_id}/trust", h.TrustDevice)
	r.Delete("/{device_id}/trust", h.UntrustDevice)

	return r
}

// EnvelopeAuthenticator replaces jwtauth.Authenticator so that missing or
// invalid tokens are reported through the response envelope with the
// sentinel message clients rely on for forced logout.
func EnvelopeAuthenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			renderError(w, r, http.StatusUnauthorized, MsgTokenNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListDevices returns every active device session for the authenticated
// account, flagging the record belonging to the requesting device.
func (h *Handle) ListDevices(w http.ResponseWriter, r *http.Request) {
	authUser := authn.FromContext(r.Context())
	if authUser == nil {
		renderError(w, r, http.StatusUnauthorized, MsgTokenNotFound)
		return
	}

	listing, err := h.service.ListDevices(r.Context(), authUser.LoginID, authUser.DeviceId)
	if err != nil {
		slog.Error("Failed to list devices", "error", err, "user", authUser)
		renderError(w, r, http.StatusInternalServerError, "failed to list devices")
		return
	}

	view := DeviceListView{
		Devices:                      make([]DeviceView, len(listing.Devices)),
		CurrentDeviceCanLogoutOthers: listing.CurrentDeviceCanLogoutOthers,
	}
	for i, record := range listing.Devices {
		if err := copier.Copy(&view.Devices[i], &record); err != nil {
			slog.Error("Failed to map device record", "error", err)
			renderError(w, r, http.StatusInternalServerError, "failed to list devices")
			return
		}
		view.Devices[i].IsCurrentDevice = record.IsCurrentDevice
	}

	renderData(w, r, view)
}

// GetStats returns the aggregate counts over the account's active sessions.
func (h *Handle) GetStats(w http.ResponseWriter, r *http.Request) {
	authUser := authn.FromContext(r.Context())
	if authUser == nil {
		renderError(w, r, http.StatusUnauthorized, MsgTokenNotFound)
		return
	}

	stats, err := h.service.Stats(r.Context(), authUser.LoginID)
	if err != nil {
		slog.Error("Failed to compute device stats", "error", err, "user", authUser)
		renderError(w, r, http.StatusInternalServerError, "failed to compute device stats")
		return
	}

	renderData(w, r, stats)
}

// RegisterDevice records a login from the requesting device. Called by the
// login flow after credentials are verified.
func (h *Handle) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	authUser := authn.FromContext(r.Context())
	if authUser == nil {
		renderError(w, r, http.StatusUnauthorized, MsgTokenNotFound)
		return
	}

	var req registry.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	// The device may only register itself
	req.DeviceID = authUser.DeviceId

	session, err := h.service.RegisterDevice(r.Context(), authUser.LoginID, req)
	if err != nil {
		slog.Error("Failed to register device", "error", err, "user", authUser)
		renderError(w, r, http.StatusInternalServerError, "failed to register device")
		return
	}

	var view DeviceView
	if err := copier.Copy(&view, &session); err != nil {
		slog.Error("Failed to map device session", "error", err)
		renderError(w, r, http.StatusInternalServerError, "failed to register device")
		return
	}
	view.IsCurrentDevice = true

	renderData(w, r, view)
}

// RevokeDevice terminates the target device's session.
func (h *Handle) RevokeDevice(w http.ResponseWriter, r *http.Request) {
	authUser := authn.FromContext(r.Context())
	if authUser == nil {
		renderError(w, r, http.StatusUnauthorized, MsgTokenNotFound)
		return
	}

	deviceID := chi.URLParam(r, "device_id")
	if deviceID == "" {
		renderError(w, r, http.StatusBadRequest, "device_id is required")
		return
	}

	err := h.service.RevokeDevice(r.Context(), authUser.LoginID, authUser.DeviceId, deviceID)
	if err != nil {
		renderServiceError(w, r, err, authUser)
		return
	}

	renderData(w, r, nil)
}

// RevokeAllDevices terminates every session for the account, optionally
// including the requesting device's own.
func (h *Handle) RevokeAllDevices(w http.ResponseWriter, r *http.Request) {
	authUser := authn.FromContext(r.Context())
	if authUser == nil {
		renderError(w, r, http.StatusUnauthorized, MsgTokenNotFound)
		return
	}

	var req registry.RevokeAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.RevokeAllDevices(r.Context(), authUser.LoginID, authUser.DeviceId, req.IncludeCurrentDevice)
	if err != nil {
		renderServiceError(w, r, err, authUser)
		return
	}

	renderData(w, r, nil)
}

// TrustDevice grants trust to a device.
func (h *Handle) TrustDevice(w http.ResponseWriter, r *http.Request) {
	h.setTrust(w, r, true)
}

// UntrustDevice revokes a device's trust.
func (h *Handle) UntrustDevice(w http.ResponseWriter, r *http.Request) {
	h.setTrust(w, r, false)
}

func (h *Handle) setTrust(w http.ResponseWriter, r *http.Request, trusted bool) {
	authUser := authn.FromContext(r.Context())
	if authUser == nil {
		renderError(w, r, http.StatusUnauthorized, MsgTokenNotFound)
		return
	}

	deviceID := chi.URLParam(r, "device_id")
	if deviceID == "" {
		renderError(w, r, http.StatusBadRequest, "device_id is required")
		return
	}

	var session registry.DeviceSession
	var err error
	if trusted {
		session, err = h.service.TrustDevice(r.Context(), authUser.LoginID, deviceID)
	} else {
		session, err = h.service.UntrustDevice(r.Context(), authUser.LoginID, deviceID)
	}
	if err != nil {
		renderServiceError(w, r, err, authUser)
		return
	}

	var view DeviceView
	if err := copier.Copy(&view, &session); err != nil {
		slog.Error("Failed to map device session", "error", err)
		renderError(w, r, http.StatusInternalServerError, "failed to update device trust")
		return
	}
	view.IsCurrentDevice = session.DeviceID == authUser.DeviceId

	renderData(w, r, view)
}

func renderServiceError(w http.ResponseWriter, r *http.Request, err error, authUser *authn.AuthUser) {
	var notTrusted registry.ErrNotTrusted
	var notFound registry.ErrDeviceNotFound

	switch {
	case errors.As(err, &notTrusted):
		renderError(w, r, http.StatusForbidden, notTrusted.Error())
	case errors.As(err, &notFound):
		renderError(w, r, http.StatusNotFound, notFound.Error())
	default:
		slog.Error("Device session operation failed", "error", err, "user", authUser)
		renderError(w, r, http.StatusInternalServerError, "device session operation failed")
	}
}

func renderData(w http.ResponseWriter, r *http.Request, data interface{}) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, Envelope{
		Success: true,
		Data:    data,
	})
}

func renderError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, Envelope{
		Success:    false,
		Message:    message,
		StatusCode: statusCode,
	})
}
