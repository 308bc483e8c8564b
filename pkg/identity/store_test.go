package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetOrCreate(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	sig := browserSignals(uaMac)

	info1, err := store.GetOrCreate(sig)
	require.NoError(t, err)
	assert.True(t, info1.Valid())

	// Second call returns the identical cached bundle
	info2, err := store.GetOrCreate(sig)
	require.NoError(t, err)
	assert.Equal(t, info1, info2)
}

func TestStore_WriteOnce(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	info1, err := store.GetOrCreate(browserSignals(uaMac))
	require.NoError(t, err)

	// Changed signals must not regenerate: the cached bundle wins so the
	// device keeps its identity across environment drift
	info2, err := store.GetOrCreate(browserSignals(uaWindows))
	require.NoError(t, err)
	assert.Equal(t, info1.DeviceID, info2.DeviceID)
}

func TestStore_SurvivesRestart(t *testing.T) {
	dataDir := t.TempDir()
	sig := browserSignals(uaIPhone)

	store1, err := NewStore(dataDir)
	require.NoError(t, err)
	info1, err := store1.GetOrCreate(sig)
	require.NoError(t, err)

	store2, err := NewStore(dataDir)
	require.NoError(t, err)
	info2, err := store2.GetOrCreate(sig)
	require.NoError(t, err)

	assert.Equal(t, info1, info2)
}

func TestStore_RegeneratesOnCorruptCache(t *testing.T) {
	dataDir := t.TempDir()
	store, err := NewStore(dataDir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "device_info.json"), []byte("{not json"), 0644))

	info, err := store.GetOrCreate(browserSignals(uaMac))
	require.NoError(t, err)
	assert.True(t, info.Valid())

	// The regenerated bundle replaced the corrupt file
	again, err := store.GetOrCreate(browserSignals(uaMac))
	require.NoError(t, err)
	assert.Equal(t, info, again)
}

func TestStore_RegeneratesOnIncompleteCache(t *testing.T) {
	dataDir := t.TempDir()
	store, err := NewStore(dataDir)
	require.NoError(t, err)

	// Well-formed JSON but missing the device ID
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "device_info.json"), []byte(`{"device_type":"desktop"}`), 0644))

	info, err := store.GetOrCreate(browserSignals(uaMac))
	require.NoError(t, err)
	assert.NotEmpty(t, info.DeviceID)
}

func TestDefaultStore(t *testing.T) {
	store, err := DefaultStore()
	require.NoError(t, err)
	assert.NotNil(t, store)
}
