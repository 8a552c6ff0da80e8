package reader

import (
	"context"
	"errors"
	"time"

	"github.com/podpah/channelstats/common"
)

// Error definitions
var (
	// ErrArtifactNotFound artifact not found error
	ErrArtifactNotFound = errors.New("snapshot artifact not found")
	// ErrInvalidFormat invalid artifact format error
	ErrInvalidFormat = errors.New("invalid artifact format")
)

// SnapshotReader snapshot artifact reader interface
type SnapshotReader interface {
	// ReadRun reassembles a full run snapshot from its artifact parts
	ReadRun(ctx context.Context, day time.Time, channelID, runID string) (*common.Snapshot, error)
	// List lists all artifact paths under the specified prefix
	List(ctx context.Context, prefix string) ([]string, error)
	// Close closes the reader and cleans up resources
	Close() error
}
