package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Device types reported in a DeviceInfo bundle.
const (
	DeviceTypeMobile  = "mobile"
	DeviceTypeTablet  = "tablet"
	DeviceTypeDesktop = "desktop"
	DeviceTypeWeb     = "web"
)

// DeviceInfo is the identity bundle presented by this client on every login.
// DeviceID is stable for an unchanged environment; the descriptive fields are
// best-effort and non-authoritative.
type DeviceInfo struct {
	DeviceID    string `json:"device_id"`
	DeviceType  string `json:"device_type"`
	DeviceName  string `json:"device_name"`
	DeviceModel string `json:"device_model"`
	OSVersion   string `json:"os_version"`
	AppVersion  string `json:"app_version"`
}

// Valid reports whether the bundle is well-formed enough to be reused.
func (d DeviceInfo) Valid() bool {
	return d.DeviceID != "" && d.DeviceType != ""
}

// Signals contains the stable environment characteristics a fingerprint is
// derived from. Zero values are acceptable; derivation never fails.
type Signals struct {
	UserAgent           string `json:"user_agent"`
	Platform            string `json:"platform"`
	Locale              string `json:"locale"`
	TimezoneOffsetMin   int    `json:"timezone_offset_min"`
	HardwareConcurrency int    `json:"hardware_concurrency"`
	ScreenWidth         int    `json:"screen_width"`
	ScreenHeight        int    `json:"screen_height"`
	AppVersion          string `json:"app_version"`
}

// CollectSignals gathers best-effort signals from the running process.
// Missing capabilities (no locale env, no hostname) degrade to empty values
// rather than errors so fingerprinting never blocks login.
func CollectSignals(userAgent, appVersion string) Signals {
	_, offsetSec := time.Now().Zone()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = ""
	}

	if userAgent == "" {
		userAgent = fmt.Sprintf("%s/%s (%s)", runtime.GOOS, runtime.GOARCH, hostname)
	}

	return Signals{
		UserAgent:           userAgent,
		Platform:            runtime.GOOS,
		Locale:              detectLocale(),
		TimezoneOffsetMin:   offsetSec / 60,
		HardwareConcurrency: runtime.NumCPU(),
		AppVersion:          appVersion,
	}
}

// GenerateFingerprint derives the stable device identifier from the signals.
// The fingerprint is a SHA-256 hash of the combined signal values; it is
// deterministic for an unchanged environment. Uniqueness across distinct
// physical devices is statistical, not guaranteed.
func GenerateFingerprint(sig Signals) string {
	combined := fmt.Sprintf("%s|%s|%s|%d|%d|%dx%d",
		sig.UserAgent,
		sig.Platform,
		sig.Locale,
		sig.TimezoneOffsetMin,
		sig.HardwareConcurrency,
		sig.ScreenWidth,
		sig.ScreenHeight,
	)

	hash := sha256.Sum256([]byte(combined))
	return hex.EncodeToString(hash[:])
}

// Generate derives a complete identity bundle from the signals. It is pure:
// the same signals always produce the same bundle.
func Generate(sig Signals) DeviceInfo {
	return DeviceInfo{
		DeviceID:    GenerateFingerprint(sig),
		DeviceType:  ClassifyDeviceType(sig),
		DeviceName:  ClassifyDeviceName(sig),
		DeviceModel: classifyModel(sig),
		OSVersion:   classifyOSVersion(sig),
		AppVersion:  sig.AppVersion,
	}
}

// detectLocale reads the locale from the usual POSIX environment variables.
func detectLocale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" {
			// Strip encoding suffix, e.g. "en_US.UTF-8" -> "en_US"
			if idx := strings.IndexByte(v, '.'); idx > 0 {
				v = v[:idx]
			}
			return v
		}
	}
	return ""
}
