package snapshotwriter

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/podpah/channelstats/common"
	"github.com/podpah/channelstats/config"
	"github.com/podpah/channelstats/internal/utils"
	"github.com/podpah/channelstats/storage"
	"github.com/podpah/channelstats/writer"
)

// pageSnapshot is one artifact page of a run. Small runs fit in part 0;
// runs larger than the configured page size split over multiple parts
// sharing the run header.
type pageSnapshot struct {
	RunID     string                  `json:"run_id"`
	ChannelID string                  `json:"channel_id"`
	RunTime   time.Time               `json:"run_time"`
	Partial   bool                    `json:"partial,omitempty"`
	Part      int                     `json:"part"`
	Records   []common.SnapshotRecord `json:"records"`
}

// SnapshotWriter persists run snapshots as gzipped JSON artifacts in
// object storage. Artifacts are append-only: unless overwriting is
// explicitly enabled, a path collision is an error, never a replace.
type SnapshotWriter struct {
	provider   storage.SnapshotStorageProvider
	config     *config.Config
	logger     *zap.Logger
	gzipWriter *gzip.Writer
	buffer     *bytes.Buffer
	mu         sync.Mutex // protects gzipWriter and buffer from concurrent access
}

var _ writer.SnapshotWriter = (*SnapshotWriter)(nil)

// NewSnapshotWriter creates a new snapshot writer
func NewSnapshotWriter(provider storage.SnapshotStorageProvider, cfg *config.Config) *SnapshotWriter {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	buffer := &bytes.Buffer{}
	gzipWriter := gzip.NewWriter(buffer)

	return &SnapshotWriter{
		provider:   provider,
		config:     cfg,
		logger:     cfg.GetLogger(),
		gzipWriter: gzipWriter,
		buffer:     buffer,
	}
}

// ArtifactPath builds the storage path of one artifact part:
// snapshots/{day}/{channel_id}/{run_id}-{part}.json.gz
func ArtifactPath(day time.Time, channelID, runID string, part int) string {
	return fmt.Sprintf("snapshots/%s/%s/%s-%d.json.gz",
		utils.FormatDay(day),
		channelID,
		runID,
		part,
	)
}

// Write implements SnapshotWriter, persisting one run's snapshot. An
// empty snapshot still produces a part-0 artifact so the run remains
// auditable.
func (w *SnapshotWriter) Write(ctx context.Context, snapshot *common.Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if err := utils.ValidateRunID(snapshot.RunID); err != nil {
		return err
	}
	if err := utils.ValidateChannelID(snapshot.ChannelID); err != nil {
		return err
	}
	if snapshot.RunTime.IsZero() {
		return fmt.Errorf("snapshot run time cannot be zero")
	}

	w.logger.Debug("Writing snapshot",
		zap.String("run_id", snapshot.RunID),
		zap.String("channel_id", snapshot.ChannelID),
		zap.Int("record_count", len(snapshot.Records)),
		zap.Bool("partial", snapshot.Partial),
	)

	if w.config.PageSizeBytes > 0 {
		return w.writeWithPagination(ctx, snapshot)
	}
	return w.writeSinglePage(ctx, snapshot)
}

// writeWithPagination splits the record list over artifact parts so no
// serialized page exceeds the configured size.
func (w *SnapshotWriter) writeWithPagination(ctx context.Context, snapshot *common.Snapshot) error {
	currentPage := make([]common.SnapshotRecord, 0, 64)
	var currentSize int64
	pageNum := 0

	for _, record := range snapshot.Records {
		recordJSON, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot record: %w", err)
		}
		recordSize := int64(len(recordJSON))

		if len(currentPage) > 0 && currentSize+recordSize > w.config.PageSizeBytes {
			if err := w.writePage(ctx, snapshot, pageNum, currentPage); err != nil {
				return err
			}

			currentPage = currentPage[:0] // reuse underlying array
			currentSize = 0
			pageNum++
		}

		currentPage = append(currentPage, record)
		currentSize += recordSize
	}

	// last page is written even when empty, a run with no records still
	// leaves a part-0 artifact
	if len(currentPage) > 0 || pageNum == 0 {
		if err := w.writePage(ctx, snapshot, pageNum, currentPage); err != nil {
			return err
		}
	}

	w.logger.Info("Successfully wrote snapshot with pagination",
		zap.String("run_id", snapshot.RunID),
		zap.Int("total_pages", pageNum+1),
		zap.Int("total_records", len(snapshot.Records)),
	)

	return nil
}

// writeSinglePage writes the whole snapshot as one part-0 artifact
func (w *SnapshotWriter) writeSinglePage(ctx context.Context, snapshot *common.Snapshot) error {
	return w.writePage(ctx, snapshot, 0, snapshot.Records)
}

// writePage serializes, compresses and uploads one artifact part.
func (w *SnapshotWriter) writePage(ctx context.Context, snapshot *common.Snapshot, part int, records []common.SnapshotRecord) error {
	path := ArtifactPath(snapshot.ObservationDay(), snapshot.ChannelID, snapshot.RunID, part)

	w.logger.Debug("Writing snapshot page",
		zap.String("path", path),
		zap.Int("part", part),
		zap.Int("records_in_page", len(records)),
	)

	if !w.config.OverwriteExisting {
		exists, err := w.provider.Exists(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to check if artifact exists: %w", err)
		}
		if exists {
			w.logger.Warn("Artifact already exists, refusing to overwrite",
				zap.String("path", path),
			)
			return fmt.Errorf("%w: %s", writer.ErrArtifactExists, path)
		}
	}

	if records == nil {
		records = []common.SnapshotRecord{}
	}
	page := &pageSnapshot{
		RunID:     snapshot.RunID,
		ChannelID: snapshot.ChannelID,
		RunTime:   snapshot.RunTime,
		Partial:   snapshot.Partial,
		Part:      part,
		Records:   records,
	}

	jsonData, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot page: %w", err)
	}

	compressedData, err := w.compressDataReuse(jsonData)
	if err != nil {
		return fmt.Errorf("failed to compress snapshot page: %w", err)
	}

	if err := w.provider.Upload(ctx, path, bytes.NewReader(compressedData)); err != nil {
		return fmt.Errorf("failed to upload snapshot page: %w", err)
	}

	w.logger.Debug("Successfully wrote snapshot page",
		zap.String("path", path),
		zap.Int("size_bytes", len(compressedData)),
		zap.Int("records", len(records)),
	)

	return nil
}

func (w *SnapshotWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.gzipWriter != nil {
		err := w.gzipWriter.Close()
		w.gzipWriter = nil
		return err
	}
	return nil
}

// compressDataReuse uses reusable gzip writer to compress data
func (w *SnapshotWriter) compressDataReuse(data []byte) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer.Reset()
	w.gzipWriter.Reset(w.buffer)

	if _, err := w.gzipWriter.Write(data); err != nil {
		return nil, err
	}
	if err := w.gzipWriter.Close(); err != nil {
		return nil, err
	}

	result := make([]byte, w.buffer.Len())
	copy(result, w.buffer.Bytes())

	return result, nil
}
