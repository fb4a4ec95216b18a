// Package youtube implements the provider contract for the YouTube Data API.
//
// YouTube is primarily a music-video source. Track searches return the same
// music-category results so video URLs can still enrich track composites.
package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/medley/internal/match"
	"github.com/sydlexius/medley/internal/media"
	"github.com/sydlexius/medley/internal/provider"
)

const (
	defaultBaseURL  = "https://www.googleapis.com/youtube/v3"
	musicCategoryID = "10"
	watchURLPrefix  = "https://www.youtube.com/watch?v="
)

// Adapter implements provider.Provider and VideoProvider for YouTube.
type Adapter struct {
	client   *http.Client
	limiter  *provider.RateLimiterMap
	settings *provider.SettingsService
	logger   *slog.Logger
	baseURL  string
}

// New creates a YouTube adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, logger, defaultBaseURL)
}

// NewWithBaseURL creates a YouTube adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		settings: settings,
		logger:   logger.With(slog.String("provider", "youtube")),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the service identifier.
func (a *Adapter) Name() media.ServiceName { return media.ServiceYouTube }

// RequiresAuth returns true; the Data API needs an API key.
func (a *Adapter) RequiresAuth() bool { return true }

// SearchTracks searches the music category. YouTube has no separate track
// entity, so the results are the same music videos SearchVideos returns.
func (a *Adapter) SearchTracks(ctx context.Context, query media.Query) ([]*media.Record, error) {
	return a.search(ctx, query, media.KindTrack)
}

// SearchVideos searches the music category for matching videos.
func (a *Adapter) SearchVideos(ctx context.Context, query media.Query) ([]*media.Record, error) {
	return a.search(ctx, query, media.KindMusicVideo)
}

func (a *Adapter) search(ctx context.Context, query media.Query, kind media.Kind) ([]*media.Record, error) {
	term := buildTerm(query)
	if term == "" {
		return nil, nil
	}

	apiKey, err := a.getAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"part":            {"snippet"},
		"type":            {"video"},
		"videoCategoryId": {musicCategoryID},
		"q":               {term},
		"maxResults":      {"10"},
		"key":             {apiKey},
	}
	if query.Country != "" {
		params.Set("regionCode", query.Country)
	}

	body, err := a.doRequest(ctx, a.baseURL+"/search?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	records := make([]*media.Record, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		records = append(records, recordFromSnippet(item.ID.VideoID, item.Snippet, kind, 0))
	}
	return records, nil
}

// LookupTrack fetches one video by ID; see SearchTracks for why tracks
// and videos share records here.
func (a *Adapter) LookupTrack(ctx context.Context, id, country string) (*media.Record, error) {
	return a.lookup(ctx, id, media.KindTrack)
}

// LookupVideo fetches one music video by its YouTube video ID.
func (a *Adapter) LookupVideo(ctx context.Context, id, country string) (*media.Record, error) {
	return a.lookup(ctx, id, media.KindMusicVideo)
}

func (a *Adapter) lookup(ctx context.Context, id string, kind media.Kind) (*media.Record, error) {
	apiKey, err := a.getAPIKey(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"part": {"snippet,contentDetails"},
		"id":   {id},
		"key":  {apiKey},
	}

	body, err := a.doRequest(ctx, a.baseURL+"/videos?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var resp videosResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing video response: %w", err)
	}
	if len(resp.Items) == 0 {
		return nil, &provider.ErrNotFound{Service: media.ServiceYouTube, ID: id}
	}

	item := resp.Items[0]
	durationMS := 0
	if item.ContentDetails != nil {
		durationMS = parseISODurationMS(item.ContentDetails.Duration)
	}
	return recordFromSnippet(item.ID, item.Snippet, kind, durationMS), nil
}

// TestConnection verifies the stored API key is accepted.
func (a *Adapter) TestConnection(ctx context.Context) error {
	apiKey, err := a.getAPIKey(ctx)
	if err != nil {
		return err
	}
	params := url.Values{
		"part":       {"snippet"},
		"type":       {"video"},
		"q":          {"test"},
		"maxResults": {"1"},
		"key":        {apiKey},
	}
	_, err = a.doRequest(ctx, a.baseURL+"/search?"+params.Encode())
	return err
}

func (a *Adapter) getAPIKey(ctx context.Context) (string, error) {
	apiKey, err := a.settings.GetAPIKey(ctx, media.ServiceYouTube)
	if err != nil {
		return "", fmt.Errorf("getting API key: %w", err)
	}
	if apiKey == "" {
		return "", &provider.ErrAuthRequired{Service: media.ServiceYouTube}
	}
	return apiKey, nil
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	if err := a.limiter.Wait(ctx, media.ServiceYouTube); err != nil {
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceYouTube,
			Cause:   fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceYouTube,
			Cause:   err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))

	switch resp.StatusCode {
	case http.StatusOK:
		return body, readErr
	case http.StatusUnauthorized, http.StatusForbidden:
		// quota exhaustion also arrives as 403; surface the API message
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && strings.Contains(apiErr.Error.Message, "quota") {
			return nil, &provider.ErrServiceUnavailable{
				Service: media.ServiceYouTube,
				Cause:   fmt.Errorf("quota exceeded: %s", apiErr.Error.Message),
			}
		}
		return nil, &provider.ErrAuthRequired{Service: media.ServiceYouTube}
	case http.StatusNotFound:
		return nil, &provider.ErrNotFound{Service: media.ServiceYouTube, ID: reqURL}
	default:
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceYouTube,
			Cause:   fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}

func buildTerm(query media.Query) string {
	var parts []string
	if a := query.PrimaryArtist(); a != "" {
		parts = append(parts, a)
	}
	if query.Title != "" {
		parts = append(parts, query.Title)
	}
	return strings.Join(parts, " ")
}

func recordFromSnippet(id string, sn snippet, kind media.Kind, durationMS int) *media.Record {
	rec := &media.Record{
		OriginService: media.ServiceYouTube,
		Kind:          kind,
		Title:         sn.Title,
		Description:   sn.Description,
		ReleaseDate:   sn.PublishedAt,
		ReleaseYear:   yearFromDate(sn.PublishedAt),
		DurationMS:    durationMS,
	}
	rec.NormalizedTitle = match.Normalize(match.StripFeaturing(rec.Title))
	rec.SetID(media.ServiceYouTube, id)
	rec.SetURL(media.ServiceYouTube, watchURLPrefix+id)

	if sn.ChannelTitle != "" {
		// channels often append " - Topic" or "VEVO" suffixes
		rec.Artists = []media.Artist{{Name: cleanChannelTitle(sn.ChannelTitle)}}
	}

	if high := bestThumbnail(sn.Thumbnails); high != "" {
		rec.Cover = &media.Cover{
			High: map[media.ServiceName]string{media.ServiceYouTube: high},
		}
		if sn.Thumbnails.Default != nil && sn.Thumbnails.Default.URL != "" {
			rec.Cover.Low = map[media.ServiceName]string{media.ServiceYouTube: sn.Thumbnails.Default.URL}
		}
	}
	return rec
}

func cleanChannelTitle(title string) string {
	title = strings.TrimSuffix(title, " - Topic")
	title = strings.TrimSuffix(title, "VEVO")
	return strings.TrimSpace(title)
}

func bestThumbnail(th thumbnails) string {
	switch {
	case th.Maxres != nil && th.Maxres.URL != "":
		return th.Maxres.URL
	case th.High != nil && th.High.URL != "":
		return th.High.URL
	case th.Default != nil && th.Default.URL != "":
		return th.Default.URL
	}
	return ""
}

var isoDurationPattern = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseISODurationMS converts an ISO 8601 duration like PT4M13S to
// milliseconds. Returns 0 for anything it cannot parse.
func parseISODurationMS(s string) int {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	hours, _ := strconv.Atoi(zeroIfEmpty(m[1]))
	mins, _ := strconv.Atoi(zeroIfEmpty(m[2]))
	secs, _ := strconv.Atoi(zeroIfEmpty(m[3]))
	return ((hours*60+mins)*60 + secs) * 1000
}

func zeroIfEmpty(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}
