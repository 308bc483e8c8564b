package registry

import "fmt"

// ErrDeviceNotFound is returned when no active device session matches the
// given device ID for the login.
type ErrDeviceNotFound struct {
	DeviceID string
}

func (e ErrDeviceNotFound) Error() string {
	return fmt.Sprintf("device not found: %s", e.DeviceID)
}

// ErrNotTrusted is returned when a device attempts to manage sessions
// belonging to other devices without being trusted itself.
type ErrNotTrusted struct {
	DeviceID string
}

func (e ErrNotTrusted) Error() string {
	return fmt.Sprintf("device is not trusted to manage other sessions: %s", e.DeviceID)
}
