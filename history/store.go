package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/podpah/channelstats/common"
	"github.com/podpah/channelstats/config"
	"github.com/podpah/channelstats/internal/utils"
	"github.com/podpah/channelstats/quota"
)

// ErrEmptySnapshot is returned when a merge is attempted with a nil snapshot
var ErrEmptySnapshot = errors.New("snapshot cannot be nil")

const schema = `
CREATE TABLE IF NOT EXISTS videos (
	video_id         TEXT PRIMARY KEY,
	channel_id       TEXT NOT NULL,
	title            TEXT NOT NULL,
	published_at     TEXT NOT NULL,
	duration_seconds INTEGER NOT NULL,
	thumbnail_url    TEXT NOT NULL,
	updated_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS video_history (
	video_id          TEXT NOT NULL,
	obs_date          TEXT NOT NULL,
	views             INTEGER NOT NULL DEFAULT 0,
	likes             INTEGER NOT NULL DEFAULT 0,
	comments          INTEGER NOT NULL DEFAULT 0,
	metrics_available INTEGER NOT NULL DEFAULT 1,
	run_id            TEXT NOT NULL,
	recorded_at       TEXT NOT NULL,
	PRIMARY KEY (video_id, obs_date)
);

CREATE TABLE IF NOT EXISTS run_log (
	run_id       TEXT PRIMARY KEY,
	channel_id   TEXT NOT NULL,
	run_time     TEXT NOT NULL,
	status       TEXT NOT NULL,
	records      INTEGER NOT NULL,
	inserted     INTEGER NOT NULL,
	updated      INTEGER NOT NULL,
	unchanged    INTEGER NOT NULL,
	quota_used   INTEGER NOT NULL,
	quota_budget INTEGER NOT NULL,
	api_calls    INTEGER NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL
);
`

// Store is the cumulative history database. One row per (video,
// observation day) pair holds that day's last observed counters; video
// metadata lives in its own table so title changes do not touch the
// counter history.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if necessary) the history database at path and
// applies the schema.
func Open(path string, cfg *config.Config) (*Store, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// a single writer keeps the merge transaction semantics simple
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure history database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: cfg.GetLogger(),
	}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Merge folds one snapshot into the history in a single transaction.
// The merge key is (video_id, observation day): a re-run on the same day
// updates the day's row instead of adding another. Records whose metrics
// were unavailable never overwrite a row holding real counters. Merging
// the same snapshot twice is a no-op reported as all-unchanged.
func (s *Store) Merge(ctx context.Context, snapshot *common.Snapshot) (common.MergeResult, error) {
	var result common.MergeResult
	if snapshot == nil {
		return result, ErrEmptySnapshot
	}

	day := utils.FormatDay(snapshot.ObservationDay())
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	for _, record := range snapshot.Records {
		action, err := s.mergeRecord(ctx, tx, snapshot, record, day, now)
		if err != nil {
			return common.MergeResult{}, err
		}
		switch action {
		case mergeInserted:
			result.Inserted++
		case mergeUpdated:
			result.Updated++
		case mergeUnchanged:
			result.Unchanged++
		}

		if !record.MetricsUnavailable {
			if err := s.upsertMetadata(ctx, tx, snapshot.ChannelID, record, now); err != nil {
				return common.MergeResult{}, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return common.MergeResult{}, fmt.Errorf("failed to commit merge transaction: %w", err)
	}

	s.logger.Info("merged snapshot into history",
		zap.String("run_id", snapshot.RunID),
		zap.String("obs_date", day),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
	)

	return result, nil
}

type mergeAction int

const (
	mergeInserted mergeAction = iota
	mergeUpdated
	mergeUnchanged
)

// mergeRecord applies one record to its (video, day) history row.
func (s *Store) mergeRecord(ctx context.Context, tx *sql.Tx, snapshot *common.Snapshot, record common.SnapshotRecord, day, now string) (mergeAction, error) {
	var (
		views, likes, comments int64
		available              bool
	)
	err := tx.QueryRowContext(ctx,
		`SELECT views, likes, comments, metrics_available FROM video_history WHERE video_id = ? AND obs_date = ?`,
		record.VideoID, day,
	).Scan(&views, &likes, &comments, &available)

	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO video_history (video_id, obs_date, views, likes, comments, metrics_available, run_id, recorded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.VideoID, day, record.Views, record.Likes, record.Comments,
			!record.MetricsUnavailable, snapshot.RunID, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert history row for %s: %w", record.VideoID, err)
		}
		return mergeInserted, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query history row for %s: %w", record.VideoID, err)
	}

	// a marker record never degrades a row holding real counters
	if record.MetricsUnavailable {
		return mergeUnchanged, nil
	}

	if available && views == record.Views && likes == record.Likes && comments == record.Comments {
		return mergeUnchanged, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE video_history SET views = ?, likes = ?, comments = ?, metrics_available = 1, run_id = ?, recorded_at = ?
		 WHERE video_id = ? AND obs_date = ?`,
		record.Views, record.Likes, record.Comments, snapshot.RunID, now,
		record.VideoID, day,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update history row for %s: %w", record.VideoID, err)
	}
	return mergeUpdated, nil
}

// upsertMetadata refreshes the video's descriptive fields.
func (s *Store) upsertMetadata(ctx context.Context, tx *sql.Tx, channelID string, record common.SnapshotRecord, now string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO videos (video_id, channel_id, title, published_at, duration_seconds, thumbnail_url, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(video_id) DO UPDATE SET
			channel_id = excluded.channel_id,
			title = excluded.title,
			published_at = excluded.published_at,
			duration_seconds = excluded.duration_seconds,
			thumbnail_url = excluded.thumbnail_url,
			updated_at = excluded.updated_at`,
		record.VideoID, channelID, record.Title,
		record.PublishedAt.UTC().Format(time.RFC3339), record.DurationSeconds,
		record.ThumbnailURL, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert video metadata for %s: %w", record.VideoID, err)
	}
	return nil
}

// RecordRun logs one run's outcome for auditing. Re-recording a run ID
// replaces its row, a re-merge updates the outcome in place.
func (s *Store) RecordRun(ctx context.Context, snapshot *common.Snapshot, status common.RunStatus, result common.MergeResult, usage quota.Usage, runErr error) error {
	if snapshot == nil {
		return ErrEmptySnapshot
	}

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO run_log (run_id, channel_id, run_time, status, records, inserted, updated, unchanged, quota_used, quota_budget, api_calls, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snapshot.RunID, snapshot.ChannelID,
		snapshot.RunTime.UTC().Format(time.RFC3339), string(status),
		len(snapshot.Records), result.Inserted, result.Updated, result.Unchanged,
		usage.Used, usage.Budget, usage.Calls, errMsg,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// HistoryRow is one (video, day) observation read back from the store
type HistoryRow struct {
	VideoID          string
	ObsDate          string
	Views            int64
	Likes            int64
	Comments         int64
	MetricsAvailable bool
	RunID            string
}

// VideoHistory returns a video's day-by-day counter history in date order
func (s *Store) VideoHistory(ctx context.Context, videoID string) ([]HistoryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, obs_date, views, likes, comments, metrics_available, run_id
		 FROM video_history WHERE video_id = ? ORDER BY obs_date`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query video history: %w", err)
	}
	defer rows.Close()

	var result []HistoryRow
	for rows.Next() {
		var row HistoryRow
		if err := rows.Scan(&row.VideoID, &row.ObsDate, &row.Views, &row.Likes, &row.Comments, &row.MetricsAvailable, &row.RunID); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
