package trustctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(env)
}

func TestHTTPClient_ListDevices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/devices/", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		data, _ := json.Marshal(DeviceList{
			Devices: []DeviceRecord{
				{DeviceID: "dev-1", DeviceName: "Mac", IsCurrentDevice: true, IsTrusted: true},
				{DeviceID: "dev-2", DeviceName: "iPhone"},
			},
			CurrentDeviceCanLogoutOthers: true,
		})
		writeEnvelope(w, http.StatusOK, envelope{Success: true, Data: data})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL+"/api/devices", StaticToken("test-token"), nil)
	list, err := client.ListDevices(context.Background())
	require.NoError(t, err)

	assert.Len(t, list.Devices, 2)
	assert.True(t, list.CurrentDeviceCanLogoutOthers)
	assert.Equal(t, "dev-1", list.Devices[0].DeviceID)
	assert.True(t, list.Devices[0].IsCurrentDevice)
}

func TestHTTPClient_RevokePaths(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		gotBody = nil
		json.NewDecoder(r.Body).Decode(&gotBody)
		writeEnvelope(w, http.StatusOK, envelope{Success: true})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, StaticToken("t"), nil)
	ctx := context.Background()

	require.NoError(t, client.RevokeDevice(ctx, "dev-2"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/dev-2", gotPath)

	require.NoError(t, client.RevokeAllDevices(ctx, true))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/logout-all", gotPath)
	assert.Equal(t, map[string]bool{"include_current_device": true}, gotBody)

	require.NoError(t, client.TrustDevice(ctx, "dev-2"))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/dev-2/trust", gotPath)

	require.NoError(t, client.UntrustDevice(ctx, "dev-2"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/dev-2/trust", gotPath)
}

func TestHTTPClient_TokenNotFoundSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Some deployments report the expired session with a 200 and the
		// sentinel message only; the client must still classify it.
		writeEnvelope(w, http.StatusOK, envelope{Success: false, Message: msgTokenNotFound})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, StaticToken(""), nil)
	_, err := client.ListDevices(context.Background())
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestHTTPClient_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, envelope{
			Success: false, Message: msgTokenNotFound, StatusCode: http.StatusUnauthorized,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, StaticToken("expired"), nil)
	err := client.RevokeDevice(context.Background(), "dev-1")
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestHTTPClient_BackendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusForbidden, envelope{
			Success: false, Message: "device is not trusted to manage other sessions: dev-1", StatusCode: http.StatusForbidden,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, StaticToken("t"), nil)
	err := client.RevokeDevice(context.Background(), "dev-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
	assert.Contains(t, err.Error(), "not trusted")
}
