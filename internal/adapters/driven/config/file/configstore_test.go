package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreSetAndGet(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set(KeyAPIKey, "sk-test"))
	require.NoError(t, store.Set(KeyDimensions, 1536))

	assert.Equal(t, "sk-test", store.GetString(KeyAPIKey))
	assert.Equal(t, 1536, store.GetInt(KeyDimensions))

	_, ok := store.Get("unknown.key")
	assert.False(t, ok)
	assert.Empty(t, store.GetString("unknown.key"))
	assert.Zero(t, store.GetInt("unknown.key"))
}

func TestConfigStorePersistsAcrossLoads(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyPhotosDir, "/photos"))
	require.NoError(t, store.Set(KeyDimensions, 768))

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "/photos", reloaded.GetString(KeyPhotosDir))
	assert.Equal(t, 768, reloaded.GetInt(KeyDimensions))
}

func TestConfigStoreWritesNestedTOML(t *testing.T) {
	dir := t.TempDir()

	store, err := NewConfigStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Set(KeyAPIKey, "sk-test"))

	data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[openai]")
	assert.Contains(t, string(data), "api_key")
}

func TestConfigStoreMissingFileStartsEmpty(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, store.GetString(KeyAPIKey))
}
