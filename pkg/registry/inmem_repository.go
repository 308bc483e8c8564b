package registry

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemRepository implements Repository using an in-memory map.
// Intended for tests and the quick-start binary.
type InMemRepository struct {
	sessions map[string]DeviceSession // key: "loginID:deviceID"
	mu       sync.Mutex
	options  RepositoryOptions
}

// NewInMemRepository creates a new in-memory device session repository.
func NewInMemRepository() *InMemRepository {
	return NewInMemRepositoryWithOptions(DefaultRepositoryOptions())
}

// NewInMemRepositoryWithOptions creates a new in-memory repository with custom options.
func NewInMemRepositoryWithOptions(options RepositoryOptions) *InMemRepository {
	return &InMemRepository{
		sessions: make(map[string]DeviceSession),
		options:  options,
	}
}

func sessionKey(loginID uuid.UUID, deviceID string) string {
	return loginID.String() + ":" + deviceID
}

// UpsertDevice creates a new session or refreshes an existing one.
func (r *InMemRepository) UpsertDevice(ctx context.Context, session DeviceSession) (DeviceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(session.LoginID, session.DeviceID)
	now := time.Now().UTC()

	existing, exists := r.sessions[key]
	if exists && !existing.IsRevoked() {
		// Repeat login from a known device: refresh access time and metadata,
		// keep the trust state.
		existing.LastAccessAt = now
		existing.DeviceType = session.DeviceType
		existing.DeviceName = session.DeviceName
		existing.DeviceModel = session.DeviceModel
		existing.OSVersion = session.OSVersion
		existing.AppVersion = session.AppVersion
		r.sessions[key] = existing
		slog.Debug("Device session refreshed", "deviceID", session.DeviceID, "loginID", session.LoginID)
		return existing, nil
	}

	// First login, or a re-login after a revoke: a fresh untrusted session.
	session.IsTrusted = false
	session.TrustedAt = nil
	session.RevokedAt = nil
	session.CreatedAt = now
	session.LastAccessAt = now
	r.sessions[key] = session
	slog.Debug("Device session created", "deviceID", session.DeviceID, "loginID", session.LoginID)
	return session, nil
}

// GetDevice retrieves an active session by login and device ID.
func (r *InMemRepository) GetDevice(ctx context.Context, loginID uuid.UUID, deviceID string) (DeviceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[sessionKey(loginID, deviceID)]
	if !exists || session.IsRevoked() {
		slog.Debug("Device session not found", "deviceID", deviceID, "loginID", loginID)
		return DeviceSession{}, ErrDeviceNotFound{DeviceID: deviceID}
	}

	return session, nil
}

// FindDevicesByLogin returns all active sessions for a login, most recently
// accessed first.
func (r *InMemRepository) FindDevicesByLogin(ctx context.Context, loginID uuid.UUID) ([]DeviceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]DeviceSession, 0)
	for _, session := range r.sessions {
		if session.LoginID == loginID && !session.IsRevoked() {
			sessions = append(sessions, session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastAccessAt.After(sessions[j].LastAccessAt)
	})

	slog.Debug("Found device sessions for login", "loginID", loginID, "count", len(sessions))
	return sessions, nil
}

// UpdateTrust sets or clears the trust flag on an active session.
func (r *InMemRepository) UpdateTrust(ctx context.Context, loginID uuid.UUID, deviceID string, trusted bool, trustedAt *time.Time) (DeviceSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(loginID, deviceID)
	session, exists := r.sessions[key]
	if !exists || session.IsRevoked() {
		slog.Debug("Device session not found when updating trust", "deviceID", deviceID, "loginID", loginID)
		return DeviceSession{}, ErrDeviceNotFound{DeviceID: deviceID}
	}

	session.IsTrusted = trusted
	session.TrustedAt = trustedAt
	r.sessions[key] = session
	slog.Debug("Device trust updated", "deviceID", deviceID, "loginID", loginID, "trusted", trusted)
	return session, nil
}

// UpdateLastAccess refreshes the last access timestamp of an active session.
func (r *InMemRepository) UpdateLastAccess(ctx context.Context, loginID uuid.UUID, deviceID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(loginID, deviceID)
	session, exists := r.sessions[key]
	if !exists || session.IsRevoked() {
		return ErrDeviceNotFound{DeviceID: deviceID}
	}

	session.LastAccessAt = at
	r.sessions[key] = session
	return nil
}

// RevokeDevice soft-deletes a session.
func (r *InMemRepository) RevokeDevice(ctx context.Context, loginID uuid.UUID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(loginID, deviceID)
	session, exists := r.sessions[key]
	if !exists || session.IsRevoked() {
		slog.Debug("Device session not found when revoking", "deviceID", deviceID, "loginID", loginID)
		return ErrDeviceNotFound{DeviceID: deviceID}
	}

	now := time.Now().UTC()
	session.RevokedAt = &now
	r.sessions[key] = session
	slog.Debug("Device session revoked", "deviceID", deviceID, "loginID", loginID)
	return nil
}

// RevokeAllByLogin soft-deletes every active session for the login, sparing
// exceptDeviceID when non-empty.
func (r *InMemRepository) RevokeAllByLogin(ctx context.Context, loginID uuid.UUID, exceptDeviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	revoked := 0
	for key, session := range r.sessions {
		if session.LoginID != loginID || session.IsRevoked() {
			continue
		}
		if exceptDeviceID != "" && session.DeviceID == exceptDeviceID {
			continue
		}
		session.RevokedAt = &now
		r.sessions[key] = session
		revoked++
	}

	slog.Debug("Device sessions revoked for login", "loginID", loginID, "count", revoked)
	return nil
}
