package writer

import (
	"context"
	"errors"

	"github.com/podpah/channelstats/common"
)

// Error definitions
var (
	// ErrArtifactExists error when a snapshot artifact already exists at the target path
	ErrArtifactExists = errors.New("snapshot artifact already exists")
)

// SnapshotWriter defines the snapshot writer interface
type SnapshotWriter interface {
	// Write persists one run's snapshot as immutable artifacts
	Write(ctx context.Context, snapshot *common.Snapshot) error
	// Close closes the writer and cleanup resources
	Close() error
}
