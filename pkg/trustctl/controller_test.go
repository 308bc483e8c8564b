package trustctl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient records calls and serves a scripted device list.
type fakeClient struct {
	list    DeviceList
	listErr error
	err     error

	listCalls      int
	revokeCalls    []string
	revokeAllCalls []bool
	trustCalls     []string
	untrustCalls   []string
}

func (f *fakeClient) ListDevices(ctx context.Context) (DeviceList, error) {
	f.listCalls++
	if f.listErr != nil {
		return DeviceList{}, f.listErr
	}
	// Return a copy so the controller can't alias our fixture
	devices := make([]DeviceRecord, len(f.list.Devices))
	copy(devices, f.list.Devices)
	return DeviceList{Devices: devices, CurrentDeviceCanLogoutOthers: f.list.CurrentDeviceCanLogoutOthers}, nil
}

func (f *fakeClient) RevokeDevice(ctx context.Context, deviceID string) error {
	f.revokeCalls = append(f.revokeCalls, deviceID)
	return f.err
}

func (f *fakeClient) RevokeAllDevices(ctx context.Context, includeCurrentDevice bool) error {
	f.revokeAllCalls = append(f.revokeAllCalls, includeCurrentDevice)
	return f.err
}

func (f *fakeClient) TrustDevice(ctx context.Context, deviceID string) error {
	f.trustCalls = append(f.trustCalls, deviceID)
	return f.err
}

func (f *fakeClient) UntrustDevice(ctx context.Context, deviceID string) error {
	f.untrustCalls = append(f.untrustCalls, deviceID)
	return f.err
}

type recordingGuard struct {
	forcedLogouts int
}

func (g *recordingGuard) IsAuthenticated() bool { return true }
func (g *recordingGuard) ForceLogout()          { g.forcedLogouts++ }

func deviceFixture(currentTrusted bool) DeviceList {
	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	return DeviceList{
		Devices: []DeviceRecord{
			{DeviceID: "dev-current", DeviceName: "Mac", DeviceType: "desktop", IsCurrentDevice: true, IsTrusted: currentTrusted, LastAccessAt: now},
			{DeviceID: "dev-phone", DeviceName: "iPhone", DeviceType: "mobile", IsTrusted: true, LastAccessAt: now},
			{DeviceID: "dev-tablet", DeviceName: "iPad", DeviceType: "tablet", LastAccessAt: old},
		},
		CurrentDeviceCanLogoutOthers: currentTrusted,
	}
}

func setupController(t *testing.T, currentTrusted bool) (*Controller, *fakeClient, *recordingGuard) {
	client := &fakeClient{list: deviceFixture(currentTrusted)}
	guard := &recordingGuard{}
	ctl := NewController(client, guard)
	require.NoError(t, ctl.FetchDevices(context.Background()))
	return ctl, client, guard
}

func TestController_FetchDevices(t *testing.T) {
	ctl, client, _ := setupController(t, true)

	assert.Len(t, ctl.Devices(), 3)
	assert.True(t, ctl.CanLogoutOthers())
	assert.Empty(t, ctl.LastError())
	assert.Equal(t, 1, client.listCalls)

	// Idempotent refresh: same content both times
	before := ctl.Devices()
	require.NoError(t, ctl.FetchDevices(context.Background()))
	assert.Equal(t, before, ctl.Devices())
}

func TestController_FetchDevicesFailureRetainsList(t *testing.T) {
	ctl, client, _ := setupController(t, true)

	client.listErr = errors.New("connection refused")
	err := ctl.FetchDevices(context.Background())
	require.Error(t, err)

	// Prior devices intact, error surfaced
	assert.Len(t, ctl.Devices(), 3)
	assert.Contains(t, ctl.LastError(), "connection refused")
}

func TestController_SelfLogoutAlwaysPermitted(t *testing.T) {
	// Current device untrusted, canLogoutOthers false
	ctl, client, _ := setupController(t, false)
	require.False(t, ctl.CanLogoutOthers())

	err := ctl.LogoutDevice(context.Background(), "dev-current")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev-current"}, client.revokeCalls)

	// Optimistically removed without a refetch
	assert.Len(t, ctl.Devices(), 2)
	assert.Equal(t, 1, client.listCalls)
}

func TestController_OtherLogoutGatedByTrust(t *testing.T) {
	ctl, client, _ := setupController(t, false)

	err := ctl.LogoutDevice(context.Background(), "dev-phone")
	require.ErrorIs(t, err, ErrNotPermitted)

	// Rejected locally: no network call, list unchanged, error channel set
	assert.Empty(t, client.revokeCalls)
	assert.Len(t, ctl.Devices(), 3)
	assert.Equal(t, ErrNotPermitted.Error(), ctl.LastError())
}

func TestController_OtherLogoutPermittedWhenTrusted(t *testing.T) {
	ctl, client, _ := setupController(t, true)

	require.NoError(t, ctl.LogoutDevice(context.Background(), "dev-phone"))
	assert.Equal(t, []string{"dev-phone"}, client.revokeCalls)
	assert.Len(t, ctl.Devices(), 2)
}

func TestController_LogoutFailureLeavesListUntouched(t *testing.T) {
	ctl, client, _ := setupController(t, true)
	before := ctl.Devices()

	client.err = errors.New("backend unavailable")
	err := ctl.LogoutDevice(context.Background(), "dev-phone")
	require.Error(t, err)

	assert.Equal(t, before, ctl.Devices())
	assert.Contains(t, ctl.LastError(), "backend unavailable")
}

func TestController_LogoutAllRequiresTrust(t *testing.T) {
	ctl, client, _ := setupController(t, false)

	// Even excluding the current device, bulk revoke needs trust
	err := ctl.LogoutAllDevices(context.Background(), false)
	require.ErrorIs(t, err, ErrNotPermitted)
	assert.Empty(t, client.revokeAllCalls)
}

func TestController_LogoutAllHonorsIncludeCurrent(t *testing.T) {
	ctl, _, _ := setupController(t, true)

	require.NoError(t, ctl.LogoutAllDevices(context.Background(), false))
	devices := ctl.Devices()
	require.Len(t, devices, 1)
	assert.True(t, devices[0].IsCurrentDevice)

	require.NoError(t, ctl.FetchDevices(context.Background()))
	require.NoError(t, ctl.LogoutAllDevices(context.Background(), true))
	assert.Empty(t, ctl.Devices())
}

func TestController_TrustCurrentDeviceFlipsAuthority(t *testing.T) {
	ctl, client, _ := setupController(t, false)
	require.False(t, ctl.CanLogoutOthers())

	// Flips in the same update cycle, no refetch
	require.NoError(t, ctl.TrustDevice(context.Background(), "dev-current"))
	assert.True(t, ctl.CanLogoutOthers())
	assert.Equal(t, 1, client.listCalls)

	current, ok := ctl.GetCurrentDevice()
	require.True(t, ok)
	assert.True(t, current.IsTrusted)
	assert.NotNil(t, current.TrustedAt)
}

func TestController_UntrustCurrentDeviceRevokesAuthority(t *testing.T) {
	ctl, client, _ := setupController(t, true)

	require.NoError(t, ctl.UntrustDevice(context.Background(), "dev-current"))
	assert.False(t, ctl.CanLogoutOthers())

	current, ok := ctl.GetCurrentDevice()
	require.True(t, ok)
	assert.False(t, current.IsTrusted)
	assert.Nil(t, current.TrustedAt)

	// Re-checked against the latest state: bulk revoke now fails locally
	err := ctl.LogoutAllDevices(context.Background(), false)
	require.ErrorIs(t, err, ErrNotPermitted)
	assert.Empty(t, client.revokeAllCalls)
}

func TestController_TrustOtherDeviceKeepsAuthority(t *testing.T) {
	ctl, _, _ := setupController(t, false)

	require.NoError(t, ctl.TrustDevice(context.Background(), "dev-tablet"))
	assert.False(t, ctl.CanLogoutOthers())

	for _, d := range ctl.Devices() {
		if d.DeviceID == "dev-tablet" {
			assert.True(t, d.IsTrusted)
		}
	}
}

func TestController_TrustMissingDeviceNoOps(t *testing.T) {
	ctl, client, _ := setupController(t, true)

	// A concurrent revoke removed the record; the toggle must not corrupt state
	require.NoError(t, ctl.LogoutDevice(context.Background(), "dev-tablet"))
	require.NoError(t, ctl.TrustDevice(context.Background(), "dev-tablet"))

	assert.Len(t, ctl.Devices(), 2)
	assert.Equal(t, []string{"dev-tablet"}, client.trustCalls)
}

func TestController_StatsArePure(t *testing.T) {
	ctl, client, _ := setupController(t, true)
	callsBefore := client.listCalls

	stats := ctl.GetDeviceStats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Trusted)
	assert.Equal(t, 1, stats.Untrusted)
	assert.Equal(t, 2, stats.Active) // tablet last seen 48h ago
	assert.Equal(t, callsBefore, client.listCalls)
}

func TestController_GetCurrentDeviceBeforeFetch(t *testing.T) {
	ctl := NewController(&fakeClient{}, &recordingGuard{})

	_, ok := ctl.GetCurrentDevice()
	assert.False(t, ok)
	assert.Equal(t, DeviceStats{}, ctl.GetDeviceStats())
}

func TestController_UnauthenticatedDefersToGuard(t *testing.T) {
	ctl, client, guard := setupController(t, true)

	client.listErr = ErrUnauthenticated
	err := ctl.FetchDevices(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 1, guard.forcedLogouts)

	// No retry of its own: one failure, one call
	assert.Equal(t, 2, client.listCalls)
}
