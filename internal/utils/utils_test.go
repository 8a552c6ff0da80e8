package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayKey(t *testing.T) {
	// a late-evening timestamp in UTC-5 is already the next UTC day
	loc := time.FixedZone("UTC-5", -5*3600)
	local := time.Date(2026, 8, 28, 22, 30, 0, 0, loc)

	day := DayKey(local)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), day)
	assert.Equal(t, "2026-08-29", FormatDay(local))
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2026-08-29")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseDay("29/08/2026")
	assert.Error(t, err)
}

func TestValidateRunID(t *testing.T) {
	tests := []struct {
		name        string
		runID       string
		expectError bool
	}{
		{
			name:        "valid UUID run ID",
			runID:       "5f1c9b4e-8a6d-4a2f-9a1b-3c7d2e8f0a4b",
			expectError: false,
		},
		{
			name:        "empty run ID",
			runID:       "",
			expectError: true,
		},
		{
			name:        "run ID with path separator",
			runID:       "run/001",
			expectError: true,
		},
		{
			name:        "run ID with wildcard",
			runID:       "run*001",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRunID(tt.runID)
			if tt.expectError {
				assert.Error(t, err, "expected error but got none")
			} else {
				assert.NoError(t, err, "unexpected error")
			}
		})
	}
}

func TestValidateChannelID(t *testing.T) {
	assert.NoError(t, ValidateChannelID("UC1234567890abcdefghijkl"))
	assert.Error(t, ValidateChannelID(""))
	assert.Error(t, ValidateChannelID("UC/evil"))
}

func TestFormatPath(t *testing.T) {
	assert.Equal(t, "snapshots/2026-08-29/UC123", FormatPath("snapshots", "2026-08-29", "UC123"))
	assert.Equal(t, "a/b", FormatPath("/a/", "", "b/"))
	assert.Equal(t, "", FormatPath("", "/"))
}

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		name        string
		iso         string
		want        int64
		expectError bool
	}{
		{
			name: "minutes and seconds",
			iso:  "PT4M13S",
			want: 4*60 + 13,
		},
		{
			name: "hours minutes seconds",
			iso:  "PT1H23M45S",
			want: 3600 + 23*60 + 45,
		},
		{
			name: "seconds only",
			iso:  "PT58S",
			want: 58,
		},
		{
			name: "zero duration",
			iso:  "PT0S",
			want: 0,
		},
		{
			name: "days and time",
			iso:  "P1DT2H",
			want: 86400 + 2*3600,
		},
		{
			name: "weeks",
			iso:  "P2W",
			want: 2 * 7 * 86400,
		},
		{
			name:        "month designator rejected",
			iso:         "P1M",
			expectError: true,
		},
		{
			name:        "missing P prefix",
			iso:         "T1H",
			expectError: true,
		},
		{
			name:        "trailing number",
			iso:         "PT15",
			expectError: true,
		},
		{
			name:        "empty string",
			iso:         "",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseISODuration(tt.iso)
			if tt.expectError {
				assert.Error(t, err, "expected error but got none")
				return
			}
			assert.NoError(t, err, "unexpected error")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThumbnailURL(t *testing.T) {
	tests := []struct {
		name   string
		thumbs map[string]string
		want   string
	}{
		{
			name: "prefers maxres",
			thumbs: map[string]string{
				"default": "https://example.com/default.jpg",
				"maxres":  "https://example.com/maxres.jpg",
				"high":    "https://example.com/high.jpg",
			},
			want: "https://example.com/maxres.jpg",
		},
		{
			name: "falls through to medium",
			thumbs: map[string]string{
				"medium":  "https://example.com/medium.jpg",
				"default": "https://example.com/default.jpg",
			},
			want: "https://example.com/medium.jpg",
		},
		{
			name:   "no thumbnails uses public fallback",
			thumbs: nil,
			want:   "https://img.youtube.com/vi/abc123/hqdefault.jpg",
		},
		{
			name:   "empty URL is skipped",
			thumbs: map[string]string{"maxres": ""},
			want:   "https://img.youtube.com/vi/abc123/hqdefault.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ThumbnailURL(tt.thumbs, "abc123"))
		})
	}
}
