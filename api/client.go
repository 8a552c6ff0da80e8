package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/podpah/channelstats/common"
	"github.com/podpah/channelstats/config"
	"github.com/podpah/channelstats/internal/utils"
	"github.com/podpah/channelstats/quota"
)

const (
	// DefaultBaseURL is the production YouTube Data API v3 endpoint
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"
	// MaxIDsPerStatsCall is the API's hard limit on IDs per videos.list call
	MaxIDsPerStatsCall = 50
	// playlistPageSize is the maxResults value for playlist paging
	playlistPageSize = 50
)

// Client talks to the YouTube Data API v3 under a quota budget. Every
// attempt, including retries, reserves its cost before the request goes
// out; a refused reservation surfaces ErrQuotaExceeded without touching
// the network.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	tracker    *quota.Tracker
	retry      config.RetryConfig
	logger     *zap.Logger
}

// NewClient creates an API client. A nil cfg falls back to defaults.
func NewClient(apiKey string, tracker *quota.Tracker, retry config.RetryConfig, cfg *config.Config) *Client {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = config.DefaultMaxAttempts
	}
	if retry.BackoffBase <= 0 {
		retry.BackoffBase = config.DefaultBackoffBase
	}

	return &Client{
		httpClient: http.DefaultClient,
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		tracker:    tracker,
		retry:      retry,
		logger:     cfg.GetLogger(),
	}
}

// WithBaseURL overrides the API endpoint, used by tests against httptest servers
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.baseURL = strings.TrimSuffix(baseURL, "/")
	return c
}

// WithHTTPClient overrides the underlying HTTP client
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

// channelListResponse mirrors the channels.list response shape
type channelListResponse struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// playlistItemsResponse mirrors the playlistItems.list response shape
type playlistItemsResponse struct {
	Items []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// videoListResponse mirrors the videos.list response shape. The API
// reports the counters as decimal strings.
type videoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			PublishedAt time.Time `json:"publishedAt"`
			Thumbnails  map[string]struct {
				URL string `json:"url"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		Statistics struct {
			ViewCount    string `json:"viewCount"`
			LikeCount    string `json:"likeCount"`
			CommentCount string `json:"commentCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// apiErrorResponse mirrors the API's error envelope
type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// FetchUploadsPlaylistID resolves the channel's uploads playlist via
// channels.list. A channel the API does not know is a fatal not-found.
func (c *Client) FetchUploadsPlaylistID(ctx context.Context, channelID string) (string, error) {
	if err := utils.ValidateChannelID(channelID); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", channelID)

	var resp channelListResponse
	if err := c.call(ctx, quota.OpChannelsList, "channels", params, &resp); err != nil {
		return "", err
	}

	if len(resp.Items) == 0 {
		return "", &APIError{
			Category:   CategoryNotFound,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("channel not found: %s", channelID),
		}
	}

	uploads := resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
	if uploads == "" {
		return "", &APIError{
			Category:   CategoryMalformed,
			StatusCode: http.StatusOK,
			Message:    fmt.Sprintf("channel %s has no uploads playlist", channelID),
		}
	}

	return uploads, nil
}

// FetchPlaylistItemIDs fetches one page of video IDs from a playlist.
// An empty nextPageToken return means the listing is complete.
func (c *Client) FetchPlaylistItemIDs(ctx context.Context, playlistID, pageToken string) ([]string, string, error) {
	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("playlistId", playlistID)
	params.Set("maxResults", strconv.Itoa(playlistPageSize))
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	var resp playlistItemsResponse
	if err := c.call(ctx, quota.OpPlaylistItemsList, "playlistItems", params, &resp); err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ContentDetails.VideoID != "" {
			ids = append(ids, item.ContentDetails.VideoID)
		}
	}

	return ids, resp.NextPageToken, nil
}

// FetchVideoStatistics fetches metadata and counters for up to 50 videos
// in one videos.list call. IDs missing from the response are simply
// absent from the returned map; the extractor marks them unavailable.
func (c *Client) FetchVideoStatistics(ctx context.Context, ids []string) (map[string]common.VideoStats, error) {
	if len(ids) == 0 {
		return map[string]common.VideoStats{}, nil
	}
	if len(ids) > MaxIDsPerStatsCall {
		return nil, fmt.Errorf("too many IDs for one statistics call: %d > %d", len(ids), MaxIDsPerStatsCall)
	}

	params := url.Values{}
	params.Set("part", "snippet,statistics,contentDetails")
	params.Set("id", strings.Join(ids, ","))

	var resp videoListResponse
	if err := c.call(ctx, quota.OpVideosList, "videos", params, &resp); err != nil {
		return nil, err
	}

	stats := make(map[string]common.VideoStats, len(resp.Items))
	for _, item := range resp.Items {
		duration, err := utils.ParseISODuration(item.ContentDetails.Duration)
		if err != nil {
			// unparseable durations are recorded as zero, not dropped
			c.logger.Warn("failed to parse video duration",
				zap.String("video_id", item.ID),
				zap.String("duration", item.ContentDetails.Duration),
			)
			duration = 0
		}

		thumbs := make(map[string]string, len(item.Snippet.Thumbnails))
		for quality, t := range item.Snippet.Thumbnails {
			thumbs[quality] = t.URL
		}

		stats[item.ID] = common.VideoStats{
			Title:           item.Snippet.Title,
			PublishedAt:     item.Snippet.PublishedAt,
			DurationSeconds: duration,
			ThumbnailURL:    utils.ThumbnailURL(thumbs, item.ID),
			Views:           parseCount(item.Statistics.ViewCount),
			Likes:           parseCount(item.Statistics.LikeCount),
			Comments:        parseCount(item.Statistics.CommentCount),
		}
	}

	return stats, nil
}

// parseCount parses a decimal counter string, treating absent or hidden
// counters (e.g. likes disabled) as zero.
func parseCount(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// call runs one API operation as a plain state machine over the outcome
// variants: success, quota refusal, fatal rejection, transient failure.
// Transient failures retry with exponential backoff until the attempt
// budget runs out, then escalate to a fatal APIError.
func (c *Client) call(ctx context.Context, op, resource string, params url.Values, out interface{}) error {
	var lastTransient error

	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if !c.tracker.Reserve(op) {
			c.logger.Warn("quota refused API call",
				zap.String("op", op),
				zap.Int64("remaining", c.tracker.Remaining()),
			)
			return fmt.Errorf("%s: %w", op, ErrQuotaExceeded)
		}

		err := c.doOnce(ctx, resource, params, out)
		if err == nil {
			c.logger.Debug("API call succeeded",
				zap.String("op", op),
				zap.Int("attempt", attempt),
			)
			return nil
		}

		var transient *transientError
		if !errors.As(err, &transient) {
			return err
		}
		lastTransient = transient.err

		if attempt == c.retry.MaxAttempts {
			break
		}

		delay := c.backoffDelay(attempt)
		c.logger.Warn("transient API failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.retry.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(transient.err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return &APIError{
		Category: CategoryTransient,
		Attempts: c.retry.MaxAttempts,
		Err:      lastTransient,
	}
}

// backoffDelay computes the delay before the next attempt: base doubled
// per attempt, optionally spread with full jitter.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.retry.BackoffBase << (attempt - 1)
	if c.retry.Jitter && delay > 0 {
		delay = time.Duration(rand.Int63n(int64(delay))) + delay/2
	}
	return delay
}

// doOnce issues a single HTTP request and classifies the outcome.
func (c *Client) doOnce(ctx context.Context, resource string, params url.Values, out interface{}) error {
	query := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}
	query.Set("key", c.apiKey)

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, resource, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &APIError{Category: CategoryBadRequest, Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transientError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{
				Category:   CategoryMalformed,
				StatusCode: resp.StatusCode,
				Message:    fmt.Sprintf("failed to decode %s response: %v", resource, err),
			}
		}
		return nil
	}

	return c.classifyFailure(resource, resp)
}

// classifyFailure maps a non-200 response onto the error taxonomy.
func (c *Client) classifyFailure(resource string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	reason := ""
	message := strings.TrimSpace(string(body))
	var envelope apiErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Code != 0 {
		message = envelope.Error.Message
		if len(envelope.Error.Errors) > 0 {
			reason = envelope.Error.Errors[0].Reason
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return &transientError{err: fmt.Errorf("%s returned status %d: %s", resource, resp.StatusCode, message)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &transientError{err: fmt.Errorf("%s rate limited: %s", resource, message)}
	case resp.StatusCode == http.StatusForbidden:
		switch reason {
		case "quotaExceeded", "dailyLimitExceeded":
			return fmt.Errorf("%s: %w", resource, ErrQuotaExceeded)
		case "rateLimitExceeded", "userRateLimitExceeded":
			return &transientError{err: fmt.Errorf("%s rate limited: %s", resource, message)}
		default:
			return &APIError{Category: CategoryAuth, StatusCode: resp.StatusCode, Message: message}
		}
	case resp.StatusCode == http.StatusUnauthorized:
		return &APIError{Category: CategoryAuth, StatusCode: resp.StatusCode, Message: message}
	case resp.StatusCode == http.StatusNotFound:
		return &APIError{Category: CategoryNotFound, StatusCode: resp.StatusCode, Message: message}
	default:
		return &APIError{Category: CategoryBadRequest, StatusCode: resp.StatusCode, Message: message}
	}
}
