package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRepository implements Repository using Redis. Sessions are stored as
// JSON values keyed per (login, device), with a per-login set acting as the
// listing index. Revoked sessions are deleted outright, so they can never
// reappear in a listing.
type RedisRepository struct {
	client  redis.UniversalClient
	options RepositoryOptions
}

// NewRedisRepository creates a new Redis-backed device session repository.
func NewRedisRepository(client redis.UniversalClient, options RepositoryOptions) *RedisRepository {
	if options.ActiveWindow == 0 {
		options.ActiveWindow = DefaultActiveWindow
	}
	return &RedisRepository{
		client:  client,
		options: options,
	}
}

func redisSessionKey(loginID uuid.UUID, deviceID string) string {
	return fmt.Sprintf("device_session:%s:%s", loginID, deviceID)
}

func redisIndexKey(loginID uuid.UUID) string {
	return fmt.Sprintf("device_sessions:%s", loginID)
}

// UpsertDevice creates a new session or refreshes an existing one.
func (r *RedisRepository) UpsertDevice(ctx context.Context, session DeviceSession) (DeviceSession, error) {
	now := time.Now().UTC()

	existing, err := r.getSession(ctx, session.LoginID, session.DeviceID)
	if err == nil {
		existing.LastAccessAt = now
		existing.DeviceType = session.DeviceType
		existing.DeviceName = session.DeviceName
		existing.DeviceModel = session.DeviceModel
		existing.OSVersion = session.OSVersion
		existing.AppVersion = session.AppVersion
		if err := r.putSession(ctx, existing); err != nil {
			return DeviceSession{}, err
		}
		return existing, nil
	}
	if !errors.As(err, &ErrDeviceNotFound{}) {
		return DeviceSession{}, err
	}

	session.IsTrusted = false
	session.TrustedAt = nil
	session.RevokedAt = nil
	session.CreatedAt = now
	session.LastAccessAt = now

	if err := r.putSession(ctx, session); err != nil {
		return DeviceSession{}, err
	}
	if err := r.client.SAdd(ctx, redisIndexKey(session.LoginID), session.DeviceID).Err(); err != nil {
		return DeviceSession{}, fmt.Errorf("failed to index device session: %w", err)
	}

	return session, nil
}

// GetDevice retrieves an active session by login and device ID.
func (r *RedisRepository) GetDevice(ctx context.Context, loginID uuid.UUID, deviceID string) (DeviceSession, error) {
	return r.getSession(ctx, loginID, deviceID)
}

// FindDevicesByLogin returns all active sessions for a login.
func (r *RedisRepository) FindDevicesByLogin(ctx context.Context, loginID uuid.UUID) ([]DeviceSession, error) {
	deviceIDs, err := r.client.SMembers(ctx, redisIndexKey(loginID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list device sessions: %w", err)
	}

	sessions := make([]DeviceSession, 0, len(deviceIDs))
	for _, deviceID := range deviceIDs {
		session, err := r.getSession(ctx, loginID, deviceID)
		if err != nil {
			if errors.As(err, &ErrDeviceNotFound{}) {
				// Stale index entry; drop it
				r.client.SRem(ctx, redisIndexKey(loginID), deviceID)
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastAccessAt.After(sessions[j].LastAccessAt)
	})

	return sessions, nil
}

// UpdateTrust sets or clears the trust flag on an active session.
func (r *RedisRepository) UpdateTrust(ctx context.Context, loginID uuid.UUID, deviceID string, trusted bool, trustedAt *time.Time) (DeviceSession, error) {
	session, err := r.getSession(ctx, loginID, deviceID)
	if err != nil {
		return DeviceSession{}, err
	}

	session.IsTrusted = trusted
	session.TrustedAt = trustedAt
	if err := r.putSession(ctx, session); err != nil {
		return DeviceSession{}, err
	}

	return session, nil
}

// UpdateLastAccess refreshes the last access timestamp of an active session.
func (r *RedisRepository) UpdateLastAccess(ctx context.Context, loginID uuid.UUID, deviceID string, at time.Time) error {
	session, err := r.getSession(ctx, loginID, deviceID)
	if err != nil {
		return err
	}

	session.LastAccessAt = at
	return r.putSession(ctx, session)
}

// RevokeDevice deletes a session and its index entry.
func (r *RedisRepository) RevokeDevice(ctx context.Context, loginID uuid.UUID, deviceID string) error {
	deleted, err := r.client.Del(ctx, redisSessionKey(loginID, deviceID)).Result()
	if err != nil {
		return fmt.Errorf("failed to revoke device session: %w", err)
	}
	if deleted == 0 {
		return ErrDeviceNotFound{DeviceID: deviceID}
	}

	if err := r.client.SRem(ctx, redisIndexKey(loginID), deviceID).Err(); err != nil {
		return fmt.Errorf("failed to unindex device session: %w", err)
	}

	return nil
}

// RevokeAllByLogin deletes every session for the login, sparing exceptDeviceID
// when non-empty.
func (r *RedisRepository) RevokeAllByLogin(ctx context.Context, loginID uuid.UUID, exceptDeviceID string) error {
	deviceIDs, err := r.client.SMembers(ctx, redisIndexKey(loginID)).Result()
	if err != nil {
		return fmt.Errorf("failed to list device sessions: %w", err)
	}

	for _, deviceID := range deviceIDs {
		if exceptDeviceID != "" && deviceID == exceptDeviceID {
			continue
		}
		if err := r.client.Del(ctx, redisSessionKey(loginID, deviceID)).Err(); err != nil {
			return fmt.Errorf("failed to revoke device session: %w", err)
		}
		if err := r.client.SRem(ctx, redisIndexKey(loginID), deviceID).Err(); err != nil {
			return fmt.Errorf("failed to unindex device session: %w", err)
		}
	}

	return nil
}

func (r *RedisRepository) getSession(ctx context.Context, loginID uuid.UUID, deviceID string) (DeviceSession, error) {
	data, err := r.client.Get(ctx, redisSessionKey(loginID, deviceID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DeviceSession{}, ErrDeviceNotFound{DeviceID: deviceID}
	}
	if err != nil {
		return DeviceSession{}, fmt.Errorf("failed to get device session: %w", err)
	}

	var session DeviceSession
	if err := json.Unmarshal(data, &session); err != nil {
		return DeviceSession{}, fmt.Errorf("failed to unmarshal device session: %w", err)
	}

	return session, nil
}

func (r *RedisRepository) putSession(ctx context.Context, session DeviceSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal device session: %w", err)
	}

	if err := r.client.Set(ctx, redisSessionKey(session.LoginID, session.DeviceID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store device session: %w", err)
	}

	return nil
}
