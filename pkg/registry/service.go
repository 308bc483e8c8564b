package registry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service handles device session management for the authenticated account.
// It is the final arbiter of the trust rule: a device may always terminate
// its own session, and may terminate other devices' sessions only while it
// is itself trusted.
type Service struct {
	repo    Repository
	options RepositoryOptions
}

// NewService creates a new device session service with the given repository.
func NewService(repo Repository) *Service {
	return NewServiceWithOptions(repo, DefaultRepositoryOptions())
}

// NewServiceWithOptions creates a new device session service with custom options.
func NewServiceWithOptions(repo Repository, options RepositoryOptions) *Service {
	if options.ActiveWindow == 0 {
		options.ActiveWindow = DefaultActiveWindow
	}
	return &Service{
		repo:    repo,
		options: options,
	}
}

// RegisterDevice records a login from the given device, creating the session
// on first contact or refreshing its last access time on a repeat login.
func (s *Service) RegisterDevice(ctx context.Context, loginID uuid.UUID, req RegisterDeviceRequest) (DeviceSession, error) {
	if req.DeviceID == "" {
		return DeviceSession{}, fmt.Errorf("device_id is required")
	}
	if loginID == uuid.Nil {
		return DeviceSession{}, fmt.Errorf("login_id is required")
	}

	session, err := s.repo.UpsertDevice(ctx, DeviceSession{
		DeviceID:    req.DeviceID,
		LoginID:     loginID,
		DeviceType:  req.DeviceType,
		DeviceName:  req.DeviceName,
		DeviceModel: req.DeviceModel,
		OSVersion:   req.OSVersion,
		AppVersion:  req.AppVersion,
	})
	if err != nil {
		return DeviceSession{}, fmt.Errorf("failed to register device: %w", err)
	}

	slog.Info("Device registered", "deviceID", session.DeviceID, "loginID", loginID, "deviceName", session.DeviceName)
	return session, nil
}

// ListDevices returns the active sessions for a login. The record matching
// currentDeviceID is flagged as the current device, and the listing carries
// whether that device may log out others.
func (s *Service) ListDevices(ctx context.Context, loginID uuid.UUID, currentDeviceID string) (DeviceListing, error) {
	sessions, err := s.repo.FindDevicesByLogin(ctx, loginID)
	if err != nil {
		return DeviceListing{}, fmt.Errorf("failed to find devices for login: %w", err)
	}

	listing := DeviceListing{
		Devices: make([]DeviceRecord, len(sessions)),
	}
	for i, session := range sessions {
		record := DeviceRecord{
			DeviceSession:   session,
			IsCurrentDevice: session.DeviceID == currentDeviceID,
		}
		if record.IsCurrentDevice {
			listing.CurrentDeviceCanLogoutOthers = session.IsTrusted
		}
		listing.Devices[i] = record
	}

	return listing, nil
}

// RevokeDevice terminates the target device's session. Self-revocation is
// always permitted; revoking another device requires the acting device to be
// trusted.
func (s *Service) RevokeDevice(ctx context.Context, loginID uuid.UUID, actingDeviceID, targetDeviceID string) error {
	if actingDeviceID != targetDeviceID {
		acting, err := s.repo.GetDevice(ctx, loginID, actingDeviceID)
		if err != nil {
			return fmt.Errorf("failed to look up acting device: %w", err)
		}
		if !acting.IsTrusted {
			slog.Warn("Untrusted device attempted to revoke another session",
				"actingDeviceID", actingDeviceID, "targetDeviceID", targetDeviceID, "loginID", loginID)
			return ErrNotTrusted{DeviceID: actingDeviceID}
		}
	}

	if err := s.repo.RevokeDevice(ctx, loginID, targetDeviceID); err != nil {
		return err
	}

	slog.Info("Device session revoked", "deviceID", targetDeviceID, "loginID", loginID, "actingDeviceID", actingDeviceID)
	return nil
}

// RevokeAllDevices terminates every session for the login, keeping the acting
// device's own session unless includeCurrent is set. The acting device must
// be trusted even when it spares itself.
func (s *Service) RevokeAllDevices(ctx context.Context, loginID uuid.UUID, actingDeviceID string, includeCurrent bool) error {
	acting, err := s.repo.GetDevice(ctx, loginID, actingDeviceID)
	if err != nil {
		return fmt.Errorf("failed to look up acting device: %w", err)
	}
	if !acting.IsTrusted {
		slog.Warn("Untrusted device attempted bulk revoke", "actingDeviceID", actingDeviceID, "loginID", loginID)
		return ErrNotTrusted{DeviceID: actingDeviceID}
	}

	exceptDeviceID := actingDeviceID
	if includeCurrent {
		exceptDeviceID = ""
	}

	if err := s.repo.RevokeAllByLogin(ctx, loginID, exceptDeviceID); err != nil {
		return fmt.Errorf("failed to revoke all devices: %w", err)
	}

	slog.Info("All device sessions revoked", "loginID", loginID, "includeCurrent", includeCurrent, "actingDeviceID", actingDeviceID)
	return nil
}

// TrustDevice marks a device as trusted, stamping the grant time.
func (s *Service) TrustDevice(ctx context.Context, loginID uuid.UUID, deviceID string) (DeviceSession, error) {
	now := time.Now().UTC()
	session, err := s.repo.UpdateTrust(ctx, loginID, deviceID, true, &now)
	if err != nil {
		return DeviceSession{}, err
	}

	slog.Info("Device trusted", "deviceID", deviceID, "loginID", loginID)
	return session, nil
}

// UntrustDevice clears a device's trust, removing its authority to manage
// other sessions.
func (s *Service) UntrustDevice(ctx context.Context, loginID uuid.UUID, deviceID string) (DeviceSession, error) {
	session, err := s.repo.UpdateTrust(ctx, loginID, deviceID, false, nil)
	if err != nil {
		return DeviceSession{}, err
	}

	slog.Info("Device untrusted", "deviceID", deviceID, "loginID", loginID)
	return session, nil
}

// Touch refreshes the last access time of a device, called on authenticated
// activity.
func (s *Service) Touch(ctx context.Context, loginID uuid.UUID, deviceID string) error {
	return s.repo.UpdateLastAccess(ctx, loginID, deviceID, time.Now().UTC())
}

// Stats computes the aggregate counts over the login's active sessions.
func (s *Service) Stats(ctx context.Context, loginID uuid.UUID) (DeviceStats, error) {
	sessions, err := s.repo.FindDevicesByLogin(ctx, loginID)
	if err != nil {
		return DeviceStats{}, fmt.Errorf("failed to find devices for login: %w", err)
	}

	return ComputeStats(sessions, time.Now().UTC(), s.options.ActiveWindow), nil
}

// ComputeStats derives the aggregate counts from a session list. Pure.
func ComputeStats(sessions []DeviceSession, now time.Time, activeWindow time.Duration) DeviceStats {
	stats := DeviceStats{Total: len(sessions)}
	for _, session := range sessions {
		if session.IsTrusted {
			stats.Trusted++
		}
		if now.Sub(session.LastAccessAt) <= activeWindow {
			stats.Active++
		}
	}
	stats.Untrusted = stats.Total - stats.Trusted
	return stats
}
