package identity

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// deviceInfoFile is the well-known name the cached bundle is stored under.
const deviceInfoFile = "device_info.json"

// Store persists the generated DeviceInfo bundle so the same physical client
// presents the same device ID across process restarts. The bundle is written
// exactly once, on first generation; every later call is a pure read.
type Store struct {
	dataDir string
	mu      sync.Mutex
}

// NewStore creates a store rooted at dataDir, creating the directory if needed.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Store{dataDir: dataDir}, nil
}

// DefaultStore creates a store under the user's configuration directory.
func DefaultStore() (*Store, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		// No home directory; fall back to a temp-rooted cache so
		// fingerprinting still works (the ID just won't survive reboots).
		configDir = os.TempDir()
	}
	return NewStore(filepath.Join(configDir, "wealthtrack"))
}

// GetOrCreate returns the cached bundle when present and well-formed,
// otherwise generates a new bundle from the signals and persists it.
func (s *Store) GetOrCreate(sig Signals) (DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.load()
	if err == nil && info.Valid() {
		return info, nil
	}
	if err != nil {
		slog.Warn("Cached device info unreadable, regenerating", "error", err)
	}

	info = Generate(sig)
	if err := s.save(info); err != nil {
		// A failed write is not fatal: return the generated bundle so the
		// caller can still log in, it just won't be cached.
		slog.Error("Failed to persist device info", "error", err)
		return info, nil
	}

	slog.Info("Generated new device identity", "deviceType", info.DeviceType, "deviceName", info.DeviceName)
	return info, nil
}

func (s *Store) load() (DeviceInfo, error) {
	filePath := filepath.Join(s.dataDir, deviceInfoFile)

	data, err := os.ReadFile(filePath)
	if os.IsNotExist(err) {
		return DeviceInfo{}, nil
	}
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to read file: %w", err)
	}

	var info DeviceInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return DeviceInfo{}, fmt.Errorf("failed to unmarshal device info: %w", err)
	}

	return info, nil
}

func (s *Store) save(info DeviceInfo) error {
	jsonData, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal device info: %w", err)
	}

	// Write to temp file first, then rename for atomicity
	tempFile := filepath.Join(s.dataDir, deviceInfoFile+".tmp")
	if err := os.WriteFile(tempFile, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	finalFile := filepath.Join(s.dataDir, deviceInfoFile)
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}
