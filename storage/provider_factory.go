package storage

import (
	"fmt"

	"github.com/podpah/channelstats/storage/provider"
)

// NewSnapshotStorageProvider creates a snapshot storage provider based on configuration
func NewSnapshotStorageProvider(config *ProviderConfig) (SnapshotStorageProvider, error) {
	switch config.Type {
	case provider.ProviderTypeS3:
		return provider.NewS3Provider(config)
	case provider.ProviderTypeOSS:
		return provider.NewOSSProvider(config)
	case provider.ProviderTypeAzure:
		return provider.NewAzureProvider(config)
	case provider.ProviderTypeLocalFS:
		return provider.NewLocalFSProvider(config)
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", config.Type)
	}
}
