package snapshotreader

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/podpah/channelstats/common"
	"github.com/podpah/channelstats/config"
	"github.com/podpah/channelstats/internal/utils"
	"github.com/podpah/channelstats/reader"
	"github.com/podpah/channelstats/storage"
)

// ArtifactInfo is one artifact part's identity, parsed from its path
type ArtifactInfo struct {
	Path      string    `json:"path"`       // complete artifact path
	Day       time.Time `json:"day"`        // observation day
	ChannelID string    `json:"channel_id"` // channel the run extracted
	RunID     string    `json:"run_id"`     // run identifier
	Part      int       `json:"part"`       // part number
}

// DayRuns lists the artifact parts of one observation day, grouped by
// channel and run.
type DayRuns struct {
	Day   time.Time                      `json:"day"`
	Files map[string]map[string][]string `json:"files"` // channel_id -> run_id -> []paths
}

// pageSnapshot mirrors the writer's artifact page shape
type pageSnapshot struct {
	RunID     string                  `json:"run_id"`
	ChannelID string                  `json:"channel_id"`
	RunTime   time.Time               `json:"run_time"`
	Partial   bool                    `json:"partial,omitempty"`
	Part      int                     `json:"part"`
	Records   []common.SnapshotRecord `json:"records"`
}

// Artifact path format: snapshots/{day}/{channel_id}/{run_id}-{part}.json.gz
// Run IDs are UUIDs and contain dashes, so the part number anchors the
// match from the right.
var artifactPathRegex = regexp.MustCompile(`^snapshots/(\d{4}-\d{2}-\d{2})/([^/]+)/(.+)-(\d+)\.json\.gz$`)

// SnapshotReader reads snapshot artifacts back out of object storage,
// mainly to re-run the history merge from a persisted run.
type SnapshotReader struct {
	provider storage.SnapshotStorageProvider
	config   *config.Config
	logger   *zap.Logger
	mu       sync.RWMutex // protect concurrent reads
}

var _ reader.SnapshotReader = (*SnapshotReader)(nil)

// NewSnapshotReader creates a new snapshot artifact reader
func NewSnapshotReader(provider storage.SnapshotStorageProvider, cfg *config.Config) *SnapshotReader {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	return &SnapshotReader{
		provider: provider,
		config:   cfg,
		logger:   cfg.GetLogger(),
	}
}

// ParseArtifactPath parses an artifact path into its identity parts
func ParseArtifactPath(path string) (*ArtifactInfo, error) {
	matches := artifactPathRegex.FindStringSubmatch(path)
	if len(matches) != 5 {
		return nil, fmt.Errorf("invalid artifact path format: %s", path)
	}

	day, err := utils.ParseDay(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid day in path %s: %w", path, err)
	}
	part, err := strconv.Atoi(matches[4])
	if err != nil {
		return nil, fmt.Errorf("invalid part number in path %s: %w", path, err)
	}

	return &ArtifactInfo{
		Path:      path,
		Day:       day,
		ChannelID: matches[2],
		RunID:     matches[3],
		Part:      part,
	}, nil
}

// ListRuns lists all artifact parts persisted for one observation day
func (r *SnapshotReader) ListRuns(ctx context.Context, day time.Time) (*DayRuns, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	prefix := fmt.Sprintf("snapshots/%s/", utils.FormatDay(day))

	r.logger.Debug("Listing snapshot artifacts by day",
		zap.String("prefix", prefix),
	)

	files, err := r.provider.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts with prefix %s: %w", prefix, err)
	}

	result := &DayRuns{
		Day:   utils.DayKey(day),
		Files: make(map[string]map[string][]string),
	}

	for _, path := range files {
		info, err := ParseArtifactPath(path)
		if err != nil {
			r.logger.Warn("Invalid artifact path format, skipping",
				zap.String("path", path),
			)
			continue
		}

		if result.Files[info.ChannelID] == nil {
			result.Files[info.ChannelID] = make(map[string][]string)
		}
		result.Files[info.ChannelID][info.RunID] = append(
			result.Files[info.ChannelID][info.RunID],
			path,
		)
	}

	// Sort paths so part order is deterministic
	for _, runs := range result.Files {
		for runID := range runs {
			sort.Strings(runs[runID])
		}
	}

	r.logger.Info("Successfully listed snapshot artifacts",
		zap.String("day", utils.FormatDay(day)),
		zap.Int("channels_count", len(result.Files)),
		zap.Int("total_files", len(files)),
	)

	return result, nil
}

// ReadPage reads and parses one artifact part at the specified path
func (r *SnapshotReader) ReadPage(ctx context.Context, path string) (*common.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.logger.Debug("Reading snapshot artifact",
		zap.String("path", path),
	)

	exists, err := r.provider.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to check if artifact exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", reader.ErrArtifactNotFound, path)
	}

	readCloser, err := r.provider.Download(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact: %w", err)
	}
	defer readCloser.Close()

	data, err := r.decompressData(readCloser)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress artifact: %w", err)
	}

	var page pageSnapshot
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal snapshot page: %v", reader.ErrInvalidFormat, err)
	}

	return &common.Snapshot{
		RunID:     page.RunID,
		ChannelID: page.ChannelID,
		RunTime:   page.RunTime,
		Partial:   page.Partial,
		Records:   page.Records,
	}, nil
}

// ReadRun reassembles a full run snapshot from its artifact parts,
// concatenating records in part order.
func (r *SnapshotReader) ReadRun(ctx context.Context, day time.Time, channelID, runID string) (*common.Snapshot, error) {
	if err := utils.ValidateChannelID(channelID); err != nil {
		return nil, err
	}
	if err := utils.ValidateRunID(runID); err != nil {
		return nil, err
	}

	prefix := fmt.Sprintf("snapshots/%s/%s/%s-", utils.FormatDay(day), channelID, runID)
	paths, err := r.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no artifacts for run %s", reader.ErrArtifactNotFound, runID)
	}

	// Sort numerically by part so part 10 follows part 9
	parts := make([]*ArtifactInfo, 0, len(paths))
	for _, path := range paths {
		info, err := ParseArtifactPath(path)
		if err != nil {
			return nil, err
		}
		if info.RunID != runID {
			continue // a run ID sharing this one as prefix
		}
		parts = append(parts, info)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Part < parts[j].Part })
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no artifacts for run %s", reader.ErrArtifactNotFound, runID)
	}

	var snapshot *common.Snapshot
	for _, info := range parts {
		page, err := r.ReadPage(ctx, info.Path)
		if err != nil {
			return nil, err
		}
		if snapshot == nil {
			snapshot = page
			continue
		}
		snapshot.Records = append(snapshot.Records, page.Records...)
	}

	r.logger.Info("Successfully read run snapshot",
		zap.String("run_id", runID),
		zap.Int("parts", len(parts)),
		zap.Int("record_count", len(snapshot.Records)),
	)

	return snapshot, nil
}

// List implements SnapshotReader interface, lists all artifact paths under the specified prefix
func (r *SnapshotReader) List(ctx context.Context, prefix string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	files, err := r.provider.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}

	return files, nil
}

// Close implements SnapshotReader interface, closes the reader
func (r *SnapshotReader) Close() error {
	r.logger.Debug("Closing snapshot reader")
	// Snapshot reader has no resources to clean up
	return nil
}

// decompressData decompresses gzip data
func (r *SnapshotReader) decompressData(reader io.Reader) ([]byte, error) {
	gzipReader, err := gzip.NewReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzipReader.Close()

	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, gzipReader); err != nil {
		return nil, fmt.Errorf("failed to decompress data: %w", err)
	}

	return buffer.Bytes(), nil
}
