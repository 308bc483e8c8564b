package registry

import (
	"time"

	"github.com/google/uuid"
)

// DeviceSession is the authoritative record of a device bound to a login.
// One record exists per (login, device) pair; it is created implicitly on the
// first successful login from an unseen device ID and soft-deleted on revoke.
type DeviceSession struct {
	DeviceID     string     `json:"device_id"`
	LoginID      uuid.UUID  `json:"login_id"`
	DeviceType   string     `json:"device_type"`
	DeviceName   string     `json:"device_name"`
	DeviceModel  string     `json:"device_model,omitempty"`
	OSVersion    string     `json:"os_version,omitempty"`
	AppVersion   string     `json:"app_version,omitempty"`
	IsTrusted    bool       `json:"is_trusted"`
	TrustedAt    *time.Time `json:"trusted_at,omitempty"`
	LastAccessAt time.Time  `json:"last_access_at"`
	CreatedAt    time.Time  `json:"created_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

// IsRevoked reports whether the session has been revoked.
func (d *DeviceSession) IsRevoked() bool {
	return d.RevokedAt != nil
}

// DeviceRecord is the client-facing view of a DeviceSession. IsCurrentDevice
// is computed per request by matching the session's device identifier and is
// true for exactly one record in a listing.
type DeviceRecord struct {
	DeviceSession
	IsCurrentDevice bool `json:"is_current_device"`
}

// DeviceListing is the result of listing the devices tied to a login.
type DeviceListing struct {
	Devices                      []DeviceRecord `json:"devices"`
	CurrentDeviceCanLogoutOthers bool           `json:"current_device_can_logout_others"`
}

// DeviceStats is a derived aggregate over a device listing.
type DeviceStats struct {
	Total     int `json:"total"`
	Trusted   int `json:"trusted"`
	Active    int `json:"active"`
	Untrusted int `json:"untrusted"`
}

// RegisterDeviceRequest carries the identity bundle presented at login time.
type RegisterDeviceRequest struct {
	DeviceID    string `json:"device_id"`
	DeviceType  string `json:"device_type"`
	DeviceName  string `json:"device_name"`
	DeviceModel string `json:"device_model,omitempty"`
	OSVersion   string `json:"os_version,omitempty"`
	AppVersion  string `json:"app_version,omitempty"`
}

// RevokeAllRequest is the request body for a bulk revoke.
type RevokeAllRequest struct {
	IncludeCurrentDevice bool `json:"include_current_device"`
}
