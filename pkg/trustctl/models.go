package trustctl

import (
	"context"
	"time"
)

// DeviceRecord is the controller's view of one device tied to the account.
// Field tags match the registry API wire shape.
type DeviceRecord struct {
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

// DeviceList is the result of fetching the account's devices.
type DeviceList struct {
	Devices                      []DeviceRecord `json:"devices"`
	CurrentDeviceCanLogoutOthers bool           `json:"currentDeviceCanLogoutOthers"`
}

// DeviceStats is a derived aggregate over the fetched device list.
type DeviceStats struct {
	Total     int `json:"total"`
	Trusted   int `json:"trusted"`
	Active    int `json:"active"`
	Untrusted int `json:"untrusted"`
}

// RegistryClient is the backend contract the controller mediates. The HTTP
// implementation lives in this package; tests substitute fakes.
type RegistryClient interface {
	ListDevices(ctx context.Context) (DeviceList, error)
	RevokeDevice(ctx context.Context, deviceID string) error
	RevokeAllDevices(ctx context.Context, includeCurrentDevice bool) error
	TrustDevice(ctx context.Context, deviceID string) error
	UntrustDevice(ctx context.Context, deviceID string) error
}

// SessionGuard is the capability through which the external authentication
// layer is consulted. The controller never recovers from authentication
// failures itself; it defers to ForceLogout.
type SessionGuard interface {
	IsAuthenticated() bool
	ForceLogout()
}

// NoopGuard is a SessionGuard that reports an authenticated session and
// ignores forced logout. Useful for tests and tooling.
type NoopGuard struct{}

func (NoopGuard) IsAuthenticated() bool { return true }
func (NoopGuard) ForceLogout()          {}
