package storage

import (
	"context"
	"io"

	"github.com/podpah/channelstats/storage/provider"
)

// SnapshotStorageProvider defines the object storage interface snapshot
// artifacts are written to. The store is append-only: providers expose no
// delete operation on purpose, persisted runs are the audit trail.
type SnapshotStorageProvider interface {
	// Upload uploads data to specified path
	Upload(ctx context.Context, path string, data io.Reader) error
	// Download downloads data from specified path
	Download(ctx context.Context, path string) (io.ReadCloser, error)
	// Exists checks if data exists at specified path
	Exists(ctx context.Context, path string) (bool, error)
	// List lists all objects under specified prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// Re-export types from provider package for external use
type (
	ProviderType   = provider.ProviderType
	ProviderConfig = provider.ProviderConfig
	AWSConfig      = provider.AWSConfig
	AzureConfig    = provider.AzureConfig
	OSSConfig      = provider.OSSConfig
	LocalFSConfig  = provider.LocalFSConfig
)

// Re-export constants
const (
	ProviderTypeS3      = provider.ProviderTypeS3
	ProviderTypeAzure   = provider.ProviderTypeAzure
	ProviderTypeOSS     = provider.ProviderTypeOSS
	ProviderTypeLocalFS = provider.ProviderTypeLocalFS
)
