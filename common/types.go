package common

import "time"

// RunStatus is the terminal status of one pipeline run.
type RunStatus string

const (
	// RunStatusCompleted all videos were extracted and merged
	RunStatusCompleted RunStatus = "completed"
	// RunStatusCompletedPartial the run was truncated by quota exhaustion
	RunStatusCompletedPartial RunStatus = "completed-partial"
	// RunStatusFailed the run aborted with a non-quota fatal error
	RunStatusFailed RunStatus = "failed"
)

// ValidRunStatuses contains all valid run statuses
var ValidRunStatuses = map[RunStatus]bool{
	RunStatusCompleted:        true,
	RunStatusCompletedPartial: true,
	RunStatusFailed:           true,
}

// VideoStats is one video's metadata and public counters as reported by
// the API at fetch time.
type VideoStats struct {
	Title           string    `json:"title"`
	PublishedAt     time.Time `json:"published_at"`
	DurationSeconds int64     `json:"duration_seconds"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	Views           int64     `json:"views"`
	Likes           int64     `json:"likes"`
	Comments        int64     `json:"comments"`
}

// SnapshotRecord is one (run, video, observation) triple inside a
// snapshot artifact. MetricsUnavailable marks a video that appeared in
// the channel listing but was missing from the statistics response.
type SnapshotRecord struct {
	VideoID            string    `json:"video_id"`
	Title              string    `json:"title"`
	PublishedAt        time.Time `json:"published_at"`
	DurationSeconds    int64     `json:"duration_seconds"`
	ThumbnailURL       string    `json:"thumbnail_url"`
	Views              int64     `json:"views"`
	Likes              int64     `json:"likes"`
	Comments           int64     `json:"comments"`
	MetricsUnavailable bool      `json:"metrics_unavailable,omitempty"`
}

// Snapshot is the immutable output of one extraction run.
type Snapshot struct {
	RunID     string           `json:"run_id"`     // unique run identifier
	ChannelID string           `json:"channel_id"` // channel the run extracted
	RunTime   time.Time        `json:"run_time"`   // UTC start of the run
	Partial   bool             `json:"partial,omitempty"`
	Records   []SnapshotRecord `json:"records"`
}

// ObservationDay returns the UTC calendar day the snapshot's
// observations belong to. It is the merge key's time component.
func (s *Snapshot) ObservationDay() time.Time {
	return s.RunTime.UTC().Truncate(24 * time.Hour)
}

// MergeResult reports what one merge did to the history store.
type MergeResult struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

// Total returns the number of records the merge examined.
func (r MergeResult) Total() int {
	return r.Inserted + r.Updated + r.Unchanged
}
