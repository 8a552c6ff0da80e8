package extract

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podpah/channelstats/api"
	"github.com/podpah/channelstats/common"
	"github.com/podpah/channelstats/config"
)

// fakeStatsAPI scripts the API surface the extractor drives
type fakeStatsAPI struct {
	uploadsID  string
	uploadsErr error

	pages    [][]string
	pagesErr map[int]error // page index -> error
	pageCall int

	stats    map[string]common.VideoStats
	statsErr map[int]error // batch index -> error
	batches  [][]string
}

func (f *fakeStatsAPI) FetchUploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	if f.uploadsErr != nil {
		return "", f.uploadsErr
	}
	return f.uploadsID, nil
}

func (f *fakeStatsAPI) FetchPlaylistItemIDs(ctx context.Context, playlistID, pageToken string) ([]string, string, error) {
	idx := f.pageCall
	f.pageCall++
	if err, ok := f.pagesErr[idx]; ok {
		return nil, "", err
	}
	if idx >= len(f.pages) {
		return nil, "", nil
	}
	next := ""
	if idx < len(f.pages)-1 {
		next = fmt.Sprintf("page%d", idx+1)
	}
	return f.pages[idx], next, nil
}

func (f *fakeStatsAPI) FetchVideoStatistics(ctx context.Context, ids []string) (map[string]common.VideoStats, error) {
	idx := len(f.batches)
	f.batches = append(f.batches, ids)
	if err, ok := f.statsErr[idx]; ok {
		return nil, err
	}
	result := make(map[string]common.VideoStats)
	for _, id := range ids {
		if vs, ok := f.stats[id]; ok {
			result[id] = vs
		}
	}
	return result, nil
}

func makeIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s%03d", prefix, i)
	}
	return ids
}

func makeStats(ids []string) map[string]common.VideoStats {
	stats := make(map[string]common.VideoStats, len(ids))
	for i, id := range ids {
		stats[id] = common.VideoStats{
			Title:       "Video " + id,
			PublishedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
			Views:       int64(100 * (i + 1)),
			Likes:       int64(10 * (i + 1)),
			Comments:    int64(i + 1),
		}
	}
	return stats
}

func TestExtractorFullRun(t *testing.T) {
	ids := makeIDs("vid", 30)
	fake := &fakeStatsAPI{
		uploadsID: "UUtest",
		pages:     [][]string{ids[:10], ids[10:20], ids[20:]},
		stats:     makeStats(ids),
	}
	extractor := New(fake, 50, config.DefaultConfig())

	snapshot, err := extractor.Run(context.Background(), "UCtest")
	require.NoError(t, err)

	assert.NotEmpty(t, snapshot.RunID)
	assert.Equal(t, "UCtest", snapshot.ChannelID)
	assert.False(t, snapshot.Partial)
	assert.WithinDuration(t, time.Now().UTC(), snapshot.RunTime, time.Minute)
	require.Len(t, snapshot.Records, 30)

	// records keep first-seen listing order
	for i, record := range snapshot.Records {
		assert.Equal(t, ids[i], record.VideoID)
		assert.False(t, record.MetricsUnavailable)
		assert.Equal(t, "Video "+ids[i], record.Title)
	}
}

func TestExtractorBatchesStatsCalls(t *testing.T) {
	ids := makeIDs("vid", 120)
	fake := &fakeStatsAPI{
		uploadsID: "UUtest",
		pages:     [][]string{ids[:50], ids[50:100], ids[100:]},
		stats:     makeStats(ids),
	}
	extractor := New(fake, 50, config.DefaultConfig())

	snapshot, err := extractor.Run(context.Background(), "UCtest")
	require.NoError(t, err)
	assert.Len(t, snapshot.Records, 120)

	require.Len(t, fake.batches, 3)
	assert.Len(t, fake.batches[0], 50)
	assert.Len(t, fake.batches[1], 50)
	assert.Len(t, fake.batches[2], 20)
}

func TestExtractorDeduplicatesListing(t *testing.T) {
	fake := &fakeStatsAPI{
		uploadsID: "UUtest",
		pages: [][]string{
			{"vid1", "vid2", "vid3"},
			{"vid3", "vid4", "vid1"}, // overlap across pages
		},
		stats: makeStats([]string{"vid1", "vid2", "vid3", "vid4"}),
	}
	extractor := New(fake, 50, config.DefaultConfig())

	snapshot, err := extractor.Run(context.Background(), "UCtest")
	require.NoError(t, err)

	var got []string
	for _, record := range snapshot.Records {
		got = append(got, record.VideoID)
	}
	assert.Equal(t, []string{"vid1", "vid2", "vid3", "vid4"}, got)
}

func TestExtractorMarksMissingMetrics(t *testing.T) {
	fake := &fakeStatsAPI{
		uploadsID: "UUtest",
		pages:     [][]string{{"vid1", "vid2", "vid3"}},
		stats:     makeStats([]string{"vid1", "vid3"}), // vid2 vanished after listing
	}
	extractor := New(fake, 50, config.DefaultConfig())

	snapshot, err := extractor.Run(context.Background(), "UCtest")
	require.NoError(t, err)
	require.Len(t, snapshot.Records, 3)

	assert.False(t, snapshot.Records[0].MetricsUnavailable)
	assert.True(t, snapshot.Records[1].MetricsUnavailable)
	assert.Equal(t, "vid2", snapshot.Records[1].VideoID)
	assert.Empty(t, snapshot.Records[1].Title)
	assert.False(t, snapshot.Records[2].MetricsUnavailable)
}

func TestExtractorPartialOnQuotaDuringListing(t *testing.T) {
	fake := &fakeStatsAPI{
		uploadsID: "UUtest",
		pages:     [][]string{{"vid1", "vid2"}, {"vid3", "vid4"}},
		pagesErr:  map[int]error{1: fmt.Errorf("playlistItems.list: %w", api.ErrQuotaExceeded)},
		stats:     makeStats([]string{"vid1", "vid2"}),
	}
	extractor := New(fake, 50, config.DefaultConfig())

	snapshot, err := extractor.Run(context.Background(), "UCtest")
	require.NoError(t, err)

	assert.True(t, snapshot.Partial)
	// what was listed before exhaustion still gets its statistics
	require.Len(t, snapshot.Records, 2)
	assert.Equal(t, "vid1", snapshot.Records[0].VideoID)
}

func TestExtractorPartialOnQuotaDuringStats(t *testing.T) {
	ids := makeIDs("vid", 100)
	fake := &fakeStatsAPI{
		uploadsID: "UUtest",
		pages:     [][]string{ids[:50], ids[50:]},
		stats:     makeStats(ids),
		statsErr:  map[int]error{1: api.ErrQuotaExceeded},
	}
	extractor := New(fake, 50, config.DefaultConfig())

	snapshot, err := extractor.Run(context.Background(), "UCtest")
	require.NoError(t, err)

	assert.True(t, snapshot.Partial)
	assert.Len(t, snapshot.Records, 50, "only the batches fetched before exhaustion are recorded")
}

func TestExtractorPartialOnQuotaBeforeResolution(t *testing.T) {
	fake := &fakeStatsAPI{
		uploadsErr: fmt.Errorf("channels.list: %w", api.ErrQuotaExceeded),
	}
	extractor := New(fake, 50, config.DefaultConfig())

	snapshot, err := extractor.Run(context.Background(), "UCtest")
	require.NoError(t, err)

	assert.True(t, snapshot.Partial)
	assert.Empty(t, snapshot.Records)
	assert.NotEmpty(t, snapshot.RunID)
}

func TestExtractorAbortsOnFatalError(t *testing.T) {
	fatal := &api.APIError{Category: api.CategoryAuth, StatusCode: 401}

	tests := []struct {
		name string
		fake *fakeStatsAPI
	}{
		{
			name: "resolution fails",
			fake: &fakeStatsAPI{uploadsErr: fatal},
		},
		{
			name: "listing fails",
			fake: &fakeStatsAPI{
				uploadsID: "UUtest",
				pages:     [][]string{{"vid1"}},
				pagesErr:  map[int]error{0: fatal},
			},
		},
		{
			name: "statistics fail",
			fake: &fakeStatsAPI{
				uploadsID: "UUtest",
				pages:     [][]string{{"vid1"}},
				statsErr:  map[int]error{0: fatal},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := New(tt.fake, 50, config.DefaultConfig())
			snapshot, err := extractor.Run(context.Background(), "UCtest")
			assert.Error(t, err)
			assert.Nil(t, snapshot)
		})
	}
}

func TestExtractorEmptyChannel(t *testing.T) {
	fake := &fakeStatsAPI{
		uploadsID: "UUtest",
		pages:     [][]string{{}},
	}
	extractor := New(fake, 50, config.DefaultConfig())

	snapshot, err := extractor.Run(context.Background(), "UCtest")
	require.NoError(t, err)
	assert.False(t, snapshot.Partial)
	assert.Empty(t, snapshot.Records)
	assert.Empty(t, fake.batches, "no statistics calls for an empty channel")
}
