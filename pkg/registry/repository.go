package registry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for device session storage operations.
// Implementations only ever return active (non-revoked) sessions from the
// lookup and listing methods; a revoked session must not reappear.
type Repository interface {
	// UpsertDevice creates the session on first login from an unseen device
	// or refreshes LastAccessAt and the descriptive metadata on a repeat login.
	UpsertDevice(ctx context.Context, session DeviceSession) (DeviceSession, error)
	GetDevice(ctx context.Context, loginID uuid.UUID, deviceID string) (DeviceSession, error)
	// FindDevicesByLogin returns the active sessions for a login ordered by
	// most recent access first.
	FindDevicesByLogin(ctx context.Context, loginID uuid.UUID) ([]DeviceSession, error)
	UpdateTrust(ctx context.Context, loginID uuid.UUID, deviceID string, trusted bool, trustedAt *time.Time) (DeviceSession, error)
	UpdateLastAccess(ctx context.Context, loginID uuid.UUID, deviceID string, at time.Time) error

	// Revoke operations soft-delete sessions. RevokeAllByLogin spares
	// exceptDeviceID when it is non-empty.
	RevokeDevice(ctx context.Context, loginID uuid.UUID, deviceID string) error
	RevokeAllByLogin(ctx context.Context, loginID uuid.UUID, exceptDeviceID string) error
}

// RepositoryOptions contains tunables shared by all repository implementations.
type RepositoryOptions struct {
	// ActiveWindow is how recently a device must have been accessed to count
	// as active in stats.
	ActiveWindow time.Duration
}

const DefaultActiveWindow = 24 * time.Hour

// DefaultRepositoryOptions returns the default repository options.
func DefaultRepositoryOptions() RepositoryOptions {
	return RepositoryOptions{
		ActiveWindow: DefaultActiveWindow,
	}
}
