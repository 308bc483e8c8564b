package trustctl

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrUnauthenticated is returned by a RegistryClient when the backend reports
// that the session token is missing or expired. The controller reacts by
// deferring to the SessionGuard's forced-logout path.
var ErrUnauthenticated = errors.New("session unauthenticated")

// ErrNotPermitted is the local policy rejection for managing other devices'
// sessions from an untrusted device. It is raised before any network call.
var ErrNotPermitted = errors.New("current device is not trusted to log out other devices")

// DefaultActiveWindow is how recently a device must have been accessed to
// count as active in DeviceStats.
const DefaultActiveWindow = 24 * time.Hour

// Controller is the client-side single source of truth for device session
// state. It fetches the device list from the registry, enforces the trust
// rule locally before issuing mutations, and reconciles local state from the
// outcome of each call without a full refetch.
//
// State is guarded by a mutex so late completions of concurrent calls cannot
// corrupt the list; the last write wins. Calls are not serialized, queued,
// cancelled or retried.
type Controller struct {
	client RegistryClient
	guard  SessionGuard

	mu              sync.Mutex
	devices         []DeviceRecord
	loading         bool
	lastError       string
	canLogoutOthers bool

	activeWindow time.Duration
}

// NewController creates a controller bound to a registry client and a session
// guard. Both are required.
func NewController(client RegistryClient, guard SessionGuard) *Controller {
	return &Controller{
		client:       client,
		guard:        guard,
		activeWindow: DefaultActiveWindow,
	}
}

// FetchDevices loads the full device list for the account. On success the
// local list is replaced and canLogoutOthers recomputed from the record
// flagged current; on failure the previous list is retained. Safe to call
// repeatedly.
func (c *Controller) FetchDevices(ctx context.Context) error {
	c.setLoading(true)
	defer c.setLoading(false)

	list, err := c.client.ListDevices(ctx)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = list.Devices
	c.canLogoutOthers = list.CurrentDeviceCanLogoutOthers
	// The server flag is authoritative at fetch time; any provisional local
	// flip from a trust/untrust call is reconciled here.
	for _, d := range list.Devices {
		if d.IsCurrentDevice {
			c.canLogoutOthers = d.IsTrusted
			break
		}
	}
	c.lastError = ""
	return nil
}

// LogoutDevice terminates the session of the given device. The current
// device may always log itself out; any other device may be logged out only
// while this device is trusted. A policy rejection fails before any network
// call. On success the device is removed from the local list without a
// refetch.
func (c *Controller) LogoutDevice(ctx context.Context, deviceID string) error {
	c.mu.Lock()
	target, found := c.findLocked(deviceID)
	isSelf := found && target.IsCurrentDevice
	permitted := isSelf || c.canLogoutOthers
	c.mu.Unlock()

	if !permitted {
		return c.fail(ErrNotPermitted)
	}

	c.setLoading(true)
	defer c.setLoading(false)

	if err := c.client.RevokeDevice(ctx, deviceID); err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(deviceID)
	c.lastError = ""
	return nil
}

// LogoutAllDevices terminates every session for the account. Requires the
// current device to be trusted even when it spares itself. On success the
// local list is cleared, or reduced to the current device's record when
// includeCurrentDevice is false.
func (c *Controller) LogoutAllDevices(ctx context.Context, includeCurrentDevice bool) error {
	c.mu.Lock()
	permitted := c.canLogoutOthers
	c.mu.Unlock()

	if !permitted {
		return c.fail(ErrNotPermitted)
	}

	c.setLoading(true)
	defer c.setLoading(false)

	if err := c.client.RevokeAllDevices(ctx, includeCurrentDevice); err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if includeCurrentDevice {
		c.devices = nil
	} else {
		remaining := make([]DeviceRecord, 0, 1)
		for _, d := range c.devices {
			if d.IsCurrentDevice {
				remaining = append(remaining, d)
			}
		}
		c.devices = remaining
	}
	c.lastError = ""
	return nil
}

// TrustDevice grants trust to the given device. There is no local
// precondition; the backend enforces who may grant trust. On success the
// local record is updated in place, and trusting the current device enables
// logging out others immediately.
func (c *Controller) TrustDevice(ctx context.Context, deviceID string) error {
	return c.setTrust(ctx, deviceID, true)
}

// UntrustDevice revokes trust from the given device. Untrusting the current
// device immediately removes its authority to manage other sessions.
func (c *Controller) UntrustDevice(ctx context.Context, deviceID string) error {
	return c.setTrust(ctx, deviceID, false)
}

func (c *Controller) setTrust(ctx context.Context, deviceID string, trusted bool) error {
	c.setLoading(true)
	defer c.setLoading(false)

	var err error
	if trusted {
		err = c.client.TrustDevice(ctx, deviceID)
	} else {
		err = c.client.UntrustDevice(ctx, deviceID)
	}
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// The record may have been removed by a concurrent revoke; the trust
	// state flip then simply no-ops.
	for i := range c.devices {
		if c.devices[i].DeviceID != deviceID {
			continue
		}
		c.devices[i].IsTrusted = trusted
		if trusted {
			now := time.Now().UTC()
			c.devices[i].TrustedAt = &now
		} else {
			c.devices[i].TrustedAt = nil
		}
		if c.devices[i].IsCurrentDevice {
			// Provisional until the next fetch; the backend remains the
			// final arbiter and will reject stale authority.
			c.canLogoutOthers = trusted
		}
		break
	}
	c.lastError = ""
	return nil
}

// GetDeviceStats derives the aggregate counts from the fetched list. Pure;
// never triggers network I/O.
func (c *Controller) GetDeviceStats() DeviceStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UTC()
	stats := DeviceStats{Total: len(c.devices)}
	for _, d := range c.devices {
		if d.IsTrusted {
			stats.Trusted++
		}
		if now.Sub(d.LastAccessAt) <= c.activeWindow {
			stats.Active++
		}
	}
	stats.Untrusted = stats.Total - stats.Trusted
	return stats
}

// GetCurrentDevice returns the record flagged as the current device, or
// false when the list has not loaded or the record is gone.
func (c *Controller) GetCurrentDevice() (DeviceRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, d := range c.devices {
		if d.IsCurrentDevice {
			return d, true
		}
	}
	return DeviceRecord{}, false
}

// Devices returns a copy of the fetched device list.
func (c *Controller) Devices() []DeviceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	devices := make([]DeviceRecord, len(c.devices))
	copy(devices, c.devices)
	return devices
}

// CanLogoutOthers reports whether the current device may manage other
// devices' sessions, per the latest known trust state.
func (c *Controller) CanLogoutOthers() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canLogoutOthers
}

// Loading reports whether a registry call is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// LastError returns the message of the most recent failed operation, local
// or remote, cleared by the next successful one.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// fail records the error on the shared error channel. Authentication
// failures are handed to the session guard; the controller performs no
// retry or recovery of its own for that class.
func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.lastError = err.Error()
	c.mu.Unlock()

	if errors.Is(err, ErrUnauthenticated) {
		slog.Warn("Session unauthenticated, deferring to forced logout")
		c.guard.ForceLogout()
	}
	return err
}

func (c *Controller) setLoading(v bool) {
	c.mu.Lock()
	c.loading = v
	c.mu.Unlock()
}

func (c *Controller) findLocked(deviceID string) (DeviceRecord, bool) {
	for _, d := range c.devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return DeviceRecord{}, false
}

func (c *Controller) removeLocked(deviceID string) {
	for i, d := range c.devices {
		if d.DeviceID == deviceID {
			c.devices = append(c.devices[:i], c.devices[i+1:]...)
			return
		}
	}
}
