package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileRepository implements Repository using file-based JSON storage.
type FileRepository struct {
	dataDir  string
	sessions map[string]*DeviceSession // key: "loginID:deviceID"
	options  RepositoryOptions
	mutex    sync.RWMutex
}

// sessionData represents the structure of data stored in the JSON file
type sessionData struct {
	Sessions []*DeviceSession `json:"sessions"`
}

// NewFileRepository creates a new file-based device session repository.
func NewFileRepository(dataDir string, options RepositoryOptions) (*FileRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if options.ActiveWindow == 0 {
		options.ActiveWindow = DefaultActiveWindow
	}

	repo := &FileRepository{
		dataDir:  dataDir,
		sessions: make(map[string]*DeviceSession),
		options:  options,
	}

	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// UpsertDevice creates a new session or refreshes an existing one.
func (r *FileRepository) UpsertDevice(ctx context.Context, session DeviceSession) (DeviceSession, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	key := sessionKey(session.LoginID, session.DeviceID)
	now := time.Now().UTC()

	if existing, exists := r.sessions[key]; exists && !existing.IsRevoked() {
		existing.LastAccessAt = now
		existing.DeviceType = session.DeviceType
		existing.DeviceName = session.DeviceName
		existing.DeviceModel = session.DeviceModel
		existing.OSVersion = session.OSVersion
		existing.AppVersion = session.AppVersion

		if err := r.save(); err != nil {
			return DeviceSession{}, fmt.Errorf("failed to save: %w", err)
		}
		return *existing, nil
	}

	session.IsTrusted = false
	session.TrustedAt = nil
	session.RevokedAt = nil
	session.CreatedAt = now
	session.LastAccessAt = now

	sessionCopy := session
	r.sessions[key] = &sessionCopy

	if err := r.save(); err != nil {
		delete(r.sessions, key)
		return DeviceSession{}, fmt.Errorf("failed to save: %w", err)
	}

	return session, nil
}

// GetDevice retrieves an active session by login and device ID.
func (r *FileRepository) GetDevice(ctx context.Context, loginID uuid.UUID, deviceID string) (DeviceSession, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	session, exists := r.sessions[sessionKey(loginID, deviceID)]
	if !exists || session.IsRevoked() {
		return DeviceSession{}, ErrDeviceNotFound{DeviceID: deviceID}
	}

	return *session, nil
}

// FindDevicesByLogin returns all active sessions for a login.
func (r *FileRepository) FindDevicesByLogin(ctx context.Context, loginID uuid.UUID) ([]DeviceSession, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sessions := make([]DeviceSession, 0)
	for _, session := range r.sessions {
		if session.LoginID == loginID && !session.IsRevoked() {
			sessions = append(sessions, *session)
		}
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastAccessAt.After(sessions[j].LastAccessAt)
	})

	return sessions, nil
}

// UpdateTrust sets or clears the trust flag on an active session.
func (r *FileRepository) UpdateTrust(ctx context.Context, loginID uuid.UUID, deviceID string, trusted bool, trustedAt *time.Time) (DeviceSession, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	session, exists := r.sessions[sessionKey(loginID, deviceID)]
	if !exists || session.IsRevoked() {
		return DeviceSession{}, ErrDeviceNotFound{DeviceID: deviceID}
	}

	session.IsTrusted = trusted
	session.TrustedAt = trustedAt

	if err := r.save(); err != nil {
		return DeviceSession{}, fmt.Errorf("failed to save: %w", err)
	}

	return *session, nil
}

// UpdateLastAccess refreshes the last access timestamp of an active session.
func (r *FileRepository) UpdateLastAccess(ctx context.Context, loginID uuid.UUID, deviceID string, at time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	session, exists := r.sessions[sessionKey(loginID, deviceID)]
	if !exists || session.IsRevoked() {
		return ErrDeviceNotFound{DeviceID: deviceID}
	}

	session.LastAccessAt = at
	return r.save()
}

// RevokeDevice soft-deletes a session.
func (r *FileRepository) RevokeDevice(ctx context.Context, loginID uuid.UUID, deviceID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	session, exists := r.sessions[sessionKey(loginID, deviceID)]
	if !exists || session.IsRevoked() {
		return ErrDeviceNotFound{DeviceID: deviceID}
	}

	now := time.Now().UTC()
	session.RevokedAt = &now
	return r.save()
}

// RevokeAllByLogin soft-deletes every active session for the login, sparing
// exceptDeviceID when non-empty.
func (r *FileRepository) RevokeAllByLogin(ctx context.Context, loginID uuid.UUID, exceptDeviceID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().UTC()
	for _, session := range r.sessions {
		if session.LoginID != loginID || session.IsRevoked() {
			continue
		}
		if exceptDeviceID != "" && session.DeviceID == exceptDeviceID {
			continue
		}
		session.RevokedAt = &now
	}

	return r.save()
}

func (r *FileRepository) load() error {
	filePath := filepath.Join(r.dataDir, "device_sessions.json")

	// If file doesn't exist, start with an empty map
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var stored sessionData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.sessions = make(map[string]*DeviceSession)
	for _, session := range stored.Sessions {
		r.sessions[sessionKey(session.LoginID, session.DeviceID)] = session
	}

	return nil
}

func (r *FileRepository) save() error {
	sessions := make([]*DeviceSession, 0, len(r.sessions))
	for _, session := range r.sessions {
		sessions = append(sessions, session)
	}

	jsonData, err := json.MarshalIndent(sessionData{Sessions: sessions}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(r.dataDir, "device_sessions.json.tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	finalFile := filepath.Join(r.dataDir, "device_sessions.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
