// Package genius implements the provider contract for the Genius API.
//
// Genius contributes editorial metadata: descriptions, precise release
// dates, artist imagery. Search hits carry no description, so knowledge
// searches fetch song details for the leading hits.
package genius

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/medley/internal/match"
	"github.com/sydlexius/medley/internal/media"
	"github.com/sydlexius/medley/internal/provider"
)

const (
	defaultBaseURL = "https://api.genius.com"

	// detailFetchLimit caps per-search song detail requests.
	detailFetchLimit = 3
)

// Adapter implements provider.Provider and KnowledgeProvider for Genius.
type Adapter struct {
	client   *http.Client
	limiter  *provider.RateLimiterMap
	settings *provider.SettingsService
	logger   *slog.Logger
	baseURL  string
}

// New creates a Genius adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, logger, defaultBaseURL)
}

// NewWithBaseURL creates a Genius adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		settings: settings,
		logger:   logger.With(slog.String("provider", "genius")),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the service identifier.
func (a *Adapter) Name() media.ServiceName { return media.ServiceGenius }

// RequiresAuth returns true; Genius needs a client access token.
func (a *Adapter) RequiresAuth() bool { return true }

// SearchTracks searches Genius songs matching the query. Results carry
// titles, artists and URLs but no description; use SearchKnowledge when
// editorial fields are wanted.
func (a *Adapter) SearchTracks(ctx context.Context, query media.Query) ([]*media.Record, error) {
	hits, err := a.searchHits(ctx, query)
	if err != nil {
		return nil, err
	}

	records := make([]*media.Record, 0, len(hits))
	for i := range hits {
		records = append(records, recordFromResult(&hits[i].Result))
	}
	return records, nil
}

// SearchKnowledge searches Genius and enriches the leading hits with song
// details (plain-text description, exact release date, album name).
func (a *Adapter) SearchKnowledge(ctx context.Context, query media.Query) ([]*media.Record, error) {
	hits, err := a.searchHits(ctx, query)
	if err != nil {
		return nil, err
	}

	records := make([]*media.Record, 0, len(hits))
	for i := range hits {
		if i < detailFetchLimit {
			detail, err := a.fetchSong(ctx, strconv.FormatInt(hits[i].Result.ID, 10))
			if err == nil {
				records = append(records, recordFromDetail(detail))
				continue
			}
			a.logger.Debug("song detail fetch failed",
				slog.Int64("song_id", hits[i].Result.ID),
				slog.String("error", err.Error()))
		}
		records = append(records, recordFromResult(&hits[i].Result))
	}
	return records, nil
}

// LookupTrack fetches one song by its Genius ID, including the description.
func (a *Adapter) LookupTrack(ctx context.Context, id, country string) (*media.Record, error) {
	detail, err := a.fetchSong(ctx, id)
	if err != nil {
		return nil, err
	}
	return recordFromDetail(detail), nil
}

// TestConnection verifies the stored access token is accepted.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.doRequest(ctx, a.baseURL+"/search?q=test")
	return err
}

func (a *Adapter) searchHits(ctx context.Context, query media.Query) ([]hit, error) {
	term := buildTerm(query)
	if term == "" {
		return nil, nil
	}

	body, err := a.doRequest(ctx, a.baseURL+"/search?q="+url.QueryEscape(term))
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	hits := make([]hit, 0, len(resp.Response.Hits))
	for _, h := range resp.Response.Hits {
		if h.Type == "" || h.Type == "song" {
			hits = append(hits, h)
		}
	}
	return hits, nil
}

func (a *Adapter) fetchSong(ctx context.Context, id string) (*songDetail, error) {
	body, err := a.doRequest(ctx, a.baseURL+"/songs/"+url.PathEscape(id)+"?text_format=plain")
	if err != nil {
		return nil, err
	}

	var resp songResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing song response: %w", err)
	}
	if resp.Response.Song.ID == 0 {
		return nil, &provider.ErrNotFound{Service: media.ServiceGenius, ID: id}
	}
	return &resp.Response.Song, nil
}

func (a *Adapter) getAccessToken(ctx context.Context) (string, error) {
	token, err := a.settings.GetAPIKey(ctx, media.ServiceGenius)
	if err != nil {
		return "", fmt.Errorf("getting access token: %w", err)
	}
	if token == "" {
		return "", &provider.ErrAuthRequired{Service: media.ServiceGenius}
	}
	return token, nil
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	token, err := a.getAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx, media.ServiceGenius); err != nil {
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceGenius,
			Cause:   fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceGenius,
			Cause:   err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &provider.ErrAuthRequired{Service: media.ServiceGenius}
	case http.StatusNotFound:
		return nil, &provider.ErrNotFound{Service: media.ServiceGenius, ID: reqURL}
	case http.StatusTooManyRequests:
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceGenius,
			Cause:   fmt.Errorf("rate limited by server"),
		}
	default:
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceGenius,
			Cause:   fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
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

func recordFromResult(res *songResult) *media.Record {
	rec := &media.Record{
		OriginService: media.ServiceGenius,
		Kind:          media.KindTrack,
		Title:         res.Title,
	}
	rec.NormalizedTitle = match.Normalize(match.StripFeaturing(rec.Title))
	rec.SetID(media.ServiceGenius, strconv.FormatInt(res.ID, 10))
	rec.SetURL(media.ServiceGenius, res.URL)

	if res.ReleaseDateComponents != nil {
		rec.ReleaseYear = res.ReleaseDateComponents.Year
		rec.ReleaseDate = formatDateComponents(res.ReleaseDateComponents)
	}

	if res.PrimaryArtist.Name != "" {
		artist := media.Artist{
			Name:     res.PrimaryArtist.Name,
			ImageURL: res.PrimaryArtist.ImageURL,
		}
		if res.PrimaryArtist.ID != 0 {
			artist.IDs = map[media.ServiceName]string{media.ServiceGenius: strconv.FormatInt(res.PrimaryArtist.ID, 10)}
		}
		if res.PrimaryArtist.URL != "" {
			artist.URLs = map[media.ServiceName]string{media.ServiceGenius: res.PrimaryArtist.URL}
		}
		rec.Artists = []media.Artist{artist}
	}

	if res.SongArtImageURL != "" {
		rec.Cover = &media.Cover{
			High: map[media.ServiceName]string{media.ServiceGenius: res.SongArtImageURL},
		}
		if res.SongArtImageThumbnailURL != "" {
			rec.Cover.Low = map[media.ServiceName]string{media.ServiceGenius: res.SongArtImageThumbnailURL}
		}
	}
	return rec
}

func recordFromDetail(detail *songDetail) *media.Record {
	rec := recordFromResult(&detail.songResult)
	if detail.ReleaseDate != "" {
		rec.ReleaseDate = detail.ReleaseDate
		if y := yearFromDate(detail.ReleaseDate); y != 0 {
			rec.ReleaseYear = y
		}
	}
	if detail.Description != nil {
		desc := strings.TrimSpace(detail.Description.Plain)
		if desc != "" && desc != "?" {
			rec.Description = desc
		}
	}
	if detail.Album != nil && detail.Album.Name != "" {
		coll := &media.Record{
			OriginService: media.ServiceGenius,
			Kind:          media.KindAlbum,
			Title:         detail.Album.Name,
		}
		coll.SetID(media.ServiceGenius, strconv.FormatInt(detail.Album.ID, 10))
		coll.SetURL(media.ServiceGenius, detail.Album.URL)
		rec.Collection = coll
	}
	return rec
}

func formatDateComponents(dc *dateComponent) string {
	if dc.Year == 0 {
		return ""
	}
	if dc.Month == 0 {
		return strconv.Itoa(dc.Year)
	}
	if dc.Day == 0 {
		return fmt.Sprintf("%04d-%02d", dc.Year, dc.Month)
	}
	return fmt.Sprintf("%04d-%02d-%02d", dc.Year, dc.Month, dc.Day)
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
