package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotStorageProviderLocalFS(t *testing.T) {
	provider, err := NewSnapshotStorageProvider(&ProviderConfig{
		Type: ProviderTypeLocalFS,
		LocalFS: &LocalFSConfig{
			BasePath:   t.TempDir(),
			CreateDirs: true,
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, provider)
}

func TestNewSnapshotStorageProviderUnsupported(t *testing.T) {
	_, err := NewSnapshotStorageProvider(&ProviderConfig{Type: ProviderType("gcs")})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider type")
}
