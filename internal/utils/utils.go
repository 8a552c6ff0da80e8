package utils

import (
	"fmt"
	"strings"
	"time"
)

// DayLayout is the observation-day format used in artifact paths and the
// history merge key.
const DayLayout = "2006-01-02"

// DayKey truncates a timestamp to its UTC calendar day. The merge key and
// the budget window both use UTC midnight boundaries.
func DayKey(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// FormatDay renders a timestamp's UTC day as YYYY-MM-DD
func FormatDay(t time.Time) string {
	return DayKey(t).Format(DayLayout)
}

// ParseDay parses a YYYY-MM-DD day string back to UTC midnight
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(DayLayout, day, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse day %q: %w", day, err)
	}
	return t, nil
}

// ValidateRunID validates a run identifier for use in artifact paths
func ValidateRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}

	if strings.ContainsAny(runID, "/\\:*?\"<>|") {
		return fmt.Errorf("run ID contains invalid characters: %s", runID)
	}

	return nil
}

// ValidateChannelID validates a channel identifier
func ValidateChannelID(channelID string) error {
	if channelID == "" {
		return fmt.Errorf("channel ID cannot be empty")
	}

	if strings.ContainsAny(channelID, "/\\:*?\"<>|") {
		return fmt.Errorf("channel ID contains invalid characters: %s", channelID)
	}

	return nil
}

// FormatPath formats storage path segments to ensure path consistency
func FormatPath(parts ...string) string {
	var cleanParts []string
	for _, part := range parts {
		if part != "" {
			part = strings.Trim(part, "/")
			if part != "" {
				cleanParts = append(cleanParts, part)
			}
		}
	}
	return strings.Join(cleanParts, "/")
}

// ParseISODuration parses an ISO-8601 duration like PT1H23M45S into total
// seconds. Supports weeks, days and the time components; year and month
// designators are rejected since the API never reports them for videos.
func ParseISODuration(iso string) (int64, error) {
	if !strings.HasPrefix(iso, "P") {
		return 0, fmt.Errorf("invalid ISO-8601 duration: %q", iso)
	}

	var total int64
	value := int64(-1) // -1 means no pending number
	inTime := false

	for i := 1; i < len(iso); i++ {
		c := iso[i]
		switch {
		case c == 'T':
			if inTime {
				return 0, fmt.Errorf("invalid ISO-8601 duration: %q", iso)
			}
			inTime = true
		case c >= '0' && c <= '9':
			if value < 0 {
				value = 0
			}
			value = value*10 + int64(c-'0')
		default:
			if value < 0 {
				return 0, fmt.Errorf("invalid ISO-8601 duration: %q", iso)
			}
			var mult int64
			switch c {
			case 'W':
				mult = 7 * 86400
			case 'D':
				mult = 86400
			case 'H':
				if !inTime {
					return 0, fmt.Errorf("invalid ISO-8601 duration: %q", iso)
				}
				mult = 3600
			case 'M':
				if !inTime {
					return 0, fmt.Errorf("unsupported month designator in duration: %q", iso)
				}
				mult = 60
			case 'S':
				if !inTime {
					return 0, fmt.Errorf("invalid ISO-8601 duration: %q", iso)
				}
				mult = 1
			default:
				return 0, fmt.Errorf("invalid ISO-8601 duration designator %q in %q", string(c), iso)
			}
			total += value * mult
			value = -1
		}
	}

	if value >= 0 {
		// trailing number without a designator
		return 0, fmt.Errorf("invalid ISO-8601 duration: %q", iso)
	}

	return total, nil
}

// ThumbnailURL picks the best available thumbnail from the API's
// resolution map, falling back to the predictable public URL.
func ThumbnailURL(thumbs map[string]string, videoID string) string {
	for _, quality := range []string{"maxres", "high", "medium", "default"} {
		if u, ok := thumbs[quality]; ok && u != "" {
			return u
		}
	}
	return fmt.Sprintf("https://img.youtube.com/vi/%s/hqdefault.jpg", videoID)
}
