package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podpah/channelstats/common"
	"github.com/podpah/channelstats/config"
	"github.com/podpah/channelstats/quota"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"), config.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testSnapshot(runID string, runTime time.Time, records ...common.SnapshotRecord) *common.Snapshot {
	return &common.Snapshot{
		RunID:     runID,
		ChannelID: "UCtest",
		RunTime:   runTime,
		Records:   records,
	}
}

func record(videoID string, views, likes, comments int64) common.SnapshotRecord {
	return common.SnapshotRecord{
		VideoID:     videoID,
		Title:       "Video " + videoID,
		PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Views:       views,
		Likes:       likes,
		Comments:    comments,
	}
}

var day1 = time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)

func TestMergeInsertsNewObservations(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snapshot := testSnapshot("run001", day1,
		record("vid1", 100, 10, 1),
		record("vid2", 200, 20, 2),
	)

	result, err := store.Merge(ctx, snapshot)
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{Inserted: 2}, result)

	rows, err := store.VideoHistory(ctx, "vid1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026-08-29", rows[0].ObsDate)
	assert.Equal(t, int64(100), rows[0].Views)
	assert.Equal(t, "run001", rows[0].RunID)
	assert.True(t, rows[0].MetricsAvailable)
}

func TestMergeIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snapshot := testSnapshot("run001", day1,
		record("vid1", 100, 10, 1),
		record("vid2", 200, 20, 2),
	)

	first, err := store.Merge(ctx, snapshot)
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{Inserted: 2}, first)

	// merging the same snapshot again changes nothing
	second, err := store.Merge(ctx, snapshot)
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{Unchanged: 2}, second)

	rows, err := store.VideoHistory(ctx, "vid1")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestMergeSameDayRevisionUpdatesInPlace(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Merge(ctx, testSnapshot("run001", day1, record("vid1", 100, 10, 1)))
	require.NoError(t, err)

	// later run on the same day with fresher counters
	later := testSnapshot("run002", day1.Add(6*time.Hour), record("vid1", 150, 12, 1))
	result, err := store.Merge(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{Updated: 1}, result)

	rows, err := store.VideoHistory(ctx, "vid1")
	require.NoError(t, err)
	require.Len(t, rows, 1, "same-day revision must not add a second row")
	assert.Equal(t, int64(150), rows[0].Views)
	assert.Equal(t, "run002", rows[0].RunID)
}

func TestMergeNewDayAddsRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Merge(ctx, testSnapshot("run001", day1, record("vid1", 100, 10, 1)))
	require.NoError(t, err)

	day2 := day1.AddDate(0, 0, 1)
	result, err := store.Merge(ctx, testSnapshot("run002", day2, record("vid1", 180, 15, 3)))
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{Inserted: 1}, result)

	rows, err := store.VideoHistory(ctx, "vid1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2026-08-29", rows[0].ObsDate)
	assert.Equal(t, "2026-08-30", rows[1].ObsDate)
	assert.Equal(t, int64(180), rows[1].Views)
}

func TestMergeMarkerNeverOverwritesMetrics(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Merge(ctx, testSnapshot("run001", day1, record("vid1", 100, 10, 1)))
	require.NoError(t, err)

	// a later run the same day saw the video but not its metrics
	marker := testSnapshot("run002", day1.Add(time.Hour), common.SnapshotRecord{
		VideoID:            "vid1",
		MetricsUnavailable: true,
	})
	result, err := store.Merge(ctx, marker)
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{Unchanged: 1}, result)

	rows, err := store.VideoHistory(ctx, "vid1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(100), rows[0].Views, "real counters survive the marker")
	assert.True(t, rows[0].MetricsAvailable)
	assert.Equal(t, "run001", rows[0].RunID)
}

func TestMergeMetricsReplaceMarker(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	marker := testSnapshot("run001", day1, common.SnapshotRecord{
		VideoID:            "vid1",
		MetricsUnavailable: true,
	})
	result, err := store.Merge(ctx, marker)
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{Inserted: 1}, result)

	rows, err := store.VideoHistory(ctx, "vid1")
	require.NoError(t, err)
	assert.False(t, rows[0].MetricsAvailable)

	// real counters arriving later the same day upgrade the marker row
	real := testSnapshot("run002", day1.Add(time.Hour), record("vid1", 50, 5, 0))
	result, err = store.Merge(ctx, real)
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{Updated: 1}, result)

	rows, err = store.VideoHistory(ctx, "vid1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].MetricsAvailable)
	assert.Equal(t, int64(50), rows[0].Views)
}

func TestMergeMetadataUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Merge(ctx, testSnapshot("run001", day1, record("vid1", 100, 10, 1)))
	require.NoError(t, err)

	// a retitle flows into the metadata table even when counters are unchanged
	renamed := record("vid1", 100, 10, 1)
	renamed.Title = "New title"
	result, err := store.Merge(ctx, testSnapshot("run002", day1.Add(time.Hour), renamed))
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{Unchanged: 1}, result)

	var title string
	err = store.db.QueryRowContext(ctx, `SELECT title FROM videos WHERE video_id = ?`, "vid1").Scan(&title)
	require.NoError(t, err)
	assert.Equal(t, "New title", title)
}

func TestMergeNilSnapshot(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Merge(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestMergeEmptySnapshot(t *testing.T) {
	store := openTestStore(t)
	result, err := store.Merge(context.Background(), testSnapshot("run001", day1))
	require.NoError(t, err)
	assert.Equal(t, common.MergeResult{}, result)
}

func TestRecordRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	snapshot := testSnapshot("run001", day1, record("vid1", 100, 10, 1))
	usage := quota.Usage{Used: 42, Budget: 10000, Calls: 7}

	require.NoError(t, store.RecordRun(ctx, snapshot, common.RunStatusCompleted, common.MergeResult{Inserted: 1}, usage, nil))

	var status string
	var inserted, quotaUsed int64
	err := store.db.QueryRowContext(ctx,
		`SELECT status, inserted, quota_used FROM run_log WHERE run_id = ?`, "run001",
	).Scan(&status, &inserted, &quotaUsed)
	require.NoError(t, err)
	assert.Equal(t, "completed", status)
	assert.Equal(t, int64(1), inserted)
	assert.Equal(t, int64(42), quotaUsed)

	// re-recording the same run replaces its row
	require.NoError(t, store.RecordRun(ctx, snapshot, common.RunStatusCompletedPartial, common.MergeResult{}, usage, assert.AnError))

	var count int
	var errMsg string
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM run_log`).Scan(&count))
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT error FROM run_log WHERE run_id = ?`, "run001").Scan(&errMsg))
	assert.Equal(t, 1, count)
	assert.NotEmpty(t, errMsg)
}
