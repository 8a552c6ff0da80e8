package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/podpah/channelstats/api"
	"github.com/podpah/channelstats/common"
	"github.com/podpah/channelstats/config"
)

// StatsAPI is the slice of the API client the extractor needs. It is an
// interface so tests can drive the run loop without a live endpoint.
type StatsAPI interface {
	FetchUploadsPlaylistID(ctx context.Context, channelID string) (string, error)
	FetchPlaylistItemIDs(ctx context.Context, playlistID, pageToken string) ([]string, string, error)
	FetchVideoStatistics(ctx context.Context, ids []string) (map[string]common.VideoStats, error)
}

// Extractor walks a channel's full upload listing and collects one
// statistics record per video. Quota exhaustion at any point truncates
// the run instead of failing it: whatever was fetched becomes a partial
// snapshot.
type Extractor struct {
	client    StatsAPI
	batchSize int
	logger    *zap.Logger
}

// New creates an extractor. batchSize bounds the IDs per statistics
// call; values outside (0, 50] are clamped to the API limit.
func New(client StatsAPI, batchSize int, cfg *config.Config) *Extractor {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if batchSize <= 0 || batchSize > api.MaxIDsPerStatsCall {
		batchSize = api.MaxIDsPerStatsCall
	}

	return &Extractor{
		client:    client,
		batchSize: batchSize,
		logger:    cfg.GetLogger(),
	}
}

// Run extracts one snapshot of the channel. The returned snapshot is
// always usable when err is nil; Partial marks runs truncated by quota
// exhaustion. Any other API failure aborts the run with no snapshot.
func (e *Extractor) Run(ctx context.Context, channelID string) (*common.Snapshot, error) {
	snapshot := &common.Snapshot{
		RunID:     uuid.NewString(),
		ChannelID: channelID,
		RunTime:   time.Now().UTC(),
		Records:   []common.SnapshotRecord{},
	}

	e.logger.Info("starting extraction run",
		zap.String("run_id", snapshot.RunID),
		zap.String("channel_id", channelID),
	)

	playlistID, err := e.client.FetchUploadsPlaylistID(ctx, channelID)
	if err != nil {
		if api.IsQuotaExceeded(err) {
			snapshot.Partial = true
			e.logger.Warn("quota exhausted before channel resolution",
				zap.String("run_id", snapshot.RunID),
			)
			return snapshot, nil
		}
		return nil, fmt.Errorf("failed to resolve uploads playlist: %w", err)
	}

	ids, partial, err := e.listVideoIDs(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	snapshot.Partial = partial

	e.logger.Info("channel listing collected",
		zap.String("run_id", snapshot.RunID),
		zap.Int("video_count", len(ids)),
		zap.Bool("partial", partial),
	)

	if err := e.collectStats(ctx, snapshot, ids); err != nil {
		return nil, err
	}

	e.logger.Info("extraction run finished",
		zap.String("run_id", snapshot.RunID),
		zap.Int("record_count", len(snapshot.Records)),
		zap.Bool("partial", snapshot.Partial),
	)
	return snapshot, nil
}

// listVideoIDs pages through the uploads playlist until the API stops
// returning a continuation token, deduplicating IDs in first-seen order.
// Quota exhaustion stops the listing and reports it partial.
func (e *Extractor) listVideoIDs(ctx context.Context, playlistID string) ([]string, bool, error) {
	var ids []string
	seen := make(map[string]bool)
	pageToken := ""

	for {
		pageIDs, nextToken, err := e.client.FetchPlaylistItemIDs(ctx, playlistID, pageToken)
		if err != nil {
			if api.IsQuotaExceeded(err) {
				return ids, true, nil
			}
			return nil, false, fmt.Errorf("failed to list playlist items: %w", err)
		}

		for _, id := range pageIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}

		if nextToken == "" {
			return ids, false, nil
		}
		pageToken = nextToken
	}
}

// collectStats fetches statistics in fixed-size batches and appends one
// record per ID. IDs the API omits from a fetched batch are recorded
// with the metrics-unavailable marker; IDs in batches never fetched
// because quota ran out are left out of the snapshot entirely.
func (e *Extractor) collectStats(ctx context.Context, snapshot *common.Snapshot, ids []string) error {
	for start := 0; start < len(ids); start += e.batchSize {
		end := start + e.batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]

		stats, err := e.client.FetchVideoStatistics(ctx, batch)
		if err != nil {
			if api.IsQuotaExceeded(err) {
				snapshot.Partial = true
				e.logger.Warn("quota exhausted during statistics collection",
					zap.String("run_id", snapshot.RunID),
					zap.Int("records_collected", len(snapshot.Records)),
					zap.Int("ids_remaining", len(ids)-start),
				)
				return nil
			}
			return fmt.Errorf("failed to fetch video statistics: %w", err)
		}

		for _, id := range batch {
			vs, ok := stats[id]
			if !ok {
				// listed by the channel but absent from the statistics
				// response, usually private or deleted since listing
				snapshot.Records = append(snapshot.Records, common.SnapshotRecord{
					VideoID:            id,
					MetricsUnavailable: true,
				})
				continue
			}
			snapshot.Records = append(snapshot.Records, common.SnapshotRecord{
				VideoID:         id,
				Title:           vs.Title,
				PublishedAt:     vs.PublishedAt,
				DurationSeconds: vs.DurationSeconds,
				ThumbnailURL:    vs.ThumbnailURL,
				Views:           vs.Views,
				Likes:           vs.Likes,
				Comments:        vs.Comments,
			})
		}
	}

	return nil
}
