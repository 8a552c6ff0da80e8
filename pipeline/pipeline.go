package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/podpah/channelstats/api"
	"github.com/podpah/channelstats/common"
	"github.com/podpah/channelstats/config"
	"github.com/podpah/channelstats/extract"
	"github.com/podpah/channelstats/history"
	"github.com/podpah/channelstats/quota"
	snapshotreader "github.com/podpah/channelstats/reader/snapshot"
	"github.com/podpah/channelstats/storage"
	snapshotwriter "github.com/podpah/channelstats/writer/snapshot"
)

// RunReport is the outcome of one pipeline run. RunID is set as soon as
// a snapshot exists, so a failed merge can be re-run from the persisted
// artifacts with ReMerge.
type RunReport struct {
	RunID     string             `json:"run_id"`
	ChannelID string             `json:"channel_id"`
	Status    common.RunStatus   `json:"status"`
	Records   int                `json:"records"`
	Merge     common.MergeResult `json:"merge"`
	Usage     quota.Usage        `json:"usage"`
}

// Pipeline wires the extraction run end to end: quota tracking, API
// extraction, snapshot persistence, and the history merge.
type Pipeline struct {
	cfg       *config.PipelineConfig
	tracker   *quota.Tracker
	extractor *extract.Extractor
	writer    *snapshotwriter.SnapshotWriter
	reader    *snapshotreader.SnapshotReader
	store     *history.Store
	logger    *zap.Logger
}

// New builds a pipeline from its declarative configuration. The caller
// owns the returned pipeline and must Close it.
func New(pc *config.PipelineConfig, cfg *config.Config) (*Pipeline, error) {
	if pc == nil {
		return nil, fmt.Errorf("pipeline config cannot be nil")
	}
	if err := pc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	provider, err := storage.NewSnapshotStorageProvider(pc.SnapshotStore.ToProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	store, err := history.Open(pc.HistoryDBPath, cfg)
	if err != nil {
		return nil, err
	}

	tracker := quota.New(pc.DailyQuota, quota.CostTable(pc.CallCosts), pc.ResetLocation())
	client := api.NewClient(pc.APIKey, tracker, pc.Retry, cfg)
	if pc.APIBaseURL != "" {
		client.WithBaseURL(pc.APIBaseURL)
	}

	return &Pipeline{
		cfg:       pc,
		tracker:   tracker,
		extractor: extract.New(client, pc.BatchSize, cfg),
		writer:    snapshotwriter.NewSnapshotWriter(provider, cfg),
		reader:    snapshotreader.NewSnapshotReader(provider, cfg),
		store:     store,
		logger:    cfg.GetLogger(),
	}, nil
}

// Tracker exposes the quota tracker, mainly for callers sharing one
// budget across several pipelines.
func (p *Pipeline) Tracker() *quota.Tracker {
	return p.tracker
}

// Run executes one extraction run: extract the channel, persist the
// snapshot, merge it into history, and log the outcome. The returned
// report is valid whenever its RunID is non-empty, even on error.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	p.tracker.ResetIfNewWindow(time.Now())

	report := &RunReport{
		ChannelID: p.cfg.ChannelID,
		Status:    common.RunStatusFailed,
	}

	snapshot, err := p.extractor.Run(ctx, p.cfg.ChannelID)
	if err != nil {
		report.Usage = p.tracker.Report()
		return report, fmt.Errorf("extraction failed: %w", err)
	}

	report.RunID = snapshot.RunID
	report.Records = len(snapshot.Records)

	if err := p.writer.Write(ctx, snapshot); err != nil {
		report.Usage = p.tracker.Report()
		return report, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	status := common.RunStatusCompleted
	if snapshot.Partial {
		status = common.RunStatusCompletedPartial
	}

	result, err := p.store.Merge(ctx, snapshot)
	report.Usage = p.tracker.Report()
	if err != nil {
		// the snapshot is persisted; ReMerge can retry from the artifacts
		if logErr := p.store.RecordRun(ctx, snapshot, common.RunStatusFailed, common.MergeResult{}, report.Usage, err); logErr != nil {
			p.logger.Error("failed to record run outcome", zap.Error(logErr))
		}
		return report, fmt.Errorf("history merge failed: %w", err)
	}

	report.Status = status
	report.Merge = result

	if err := p.store.RecordRun(ctx, snapshot, status, result, report.Usage, nil); err != nil {
		p.logger.Error("failed to record run outcome", zap.Error(err))
	}

	p.logger.Info("pipeline run finished",
		zap.String("run_id", report.RunID),
		zap.String("status", string(report.Status)),
		zap.Int("records", report.Records),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int64("quota_used", report.Usage.Used),
	)

	return report, nil
}

// ReMerge re-runs the history merge from a persisted snapshot, used to
// recover a run whose merge failed. The merge is idempotent, so
// re-merging an already merged run is harmless.
func (p *Pipeline) ReMerge(ctx context.Context, day time.Time, channelID, runID string) (*RunReport, error) {
	snapshot, err := p.reader.ReadRun(ctx, day, channelID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read persisted snapshot: %w", err)
	}

	result, err := p.store.Merge(ctx, snapshot)
	if err != nil {
		return nil, fmt.Errorf("history merge failed: %w", err)
	}

	status := common.RunStatusCompleted
	if snapshot.Partial {
		status = common.RunStatusCompletedPartial
	}

	usage := p.tracker.Report()
	if err := p.store.RecordRun(ctx, snapshot, status, result, usage, nil); err != nil {
		p.logger.Error("failed to record run outcome", zap.Error(err))
	}

	p.logger.Info("re-merge finished",
		zap.String("run_id", runID),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
	)

	return &RunReport{
		RunID:     snapshot.RunID,
		ChannelID: snapshot.ChannelID,
		Status:    status,
		Records:   len(snapshot.Records),
		Merge:     result,
		Usage:     usage,
	}, nil
}

// Close releases the pipeline's resources
func (p *Pipeline) Close() error {
	var firstErr error
	if err := p.writer.Close(); err != nil {
		firstErr = err
	}
	if err := p.reader.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := p.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
