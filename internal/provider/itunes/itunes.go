// Package itunes implements the provider contract for the iTunes Search API.
package itunes

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

const defaultBaseURL = "https://itunes.apple.com"

// Adapter implements provider.Provider, AlbumProvider and VideoProvider for
// the iTunes Search API. No authentication is required.
type Adapter struct {
	client  *http.Client
	limiter *provider.RateLimiterMap
	logger  *slog.Logger
	baseURL string
}

// New creates an iTunes adapter with the default base URL.
func New(limiter *provider.RateLimiterMap, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, logger, defaultBaseURL)
}

// NewWithBaseURL creates an iTunes adapter with a custom base URL (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, logger *slog.Logger, baseURL string) *Adapter {
	return &Adapter{
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: limiter,
		logger:  logger.With(slog.String("provider", "itunes")),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name returns the service identifier.
func (a *Adapter) Name() media.ServiceName { return media.ServiceITunes }

// RequiresAuth returns false since the iTunes Search API needs no key.
func (a *Adapter) RequiresAuth() bool { return false }

// SearchTracks searches for songs matching the query.
func (a *Adapter) SearchTracks(ctx context.Context, query media.Query) ([]*media.Record, error) {
	return a.search(ctx, query, "song")
}

// SearchVideos searches for music videos matching the query.
func (a *Adapter) SearchVideos(ctx context.Context, query media.Query) ([]*media.Record, error) {
	return a.search(ctx, query, "musicVideo")
}

// SearchAlbums searches for albums matching the query.
func (a *Adapter) SearchAlbums(ctx context.Context, query media.Query) ([]*media.Record, error) {
	return a.search(ctx, query, "album")
}

func (a *Adapter) search(ctx context.Context, query media.Query, entity string) ([]*media.Record, error) {
	term := buildTerm(query)
	if term == "" {
		return nil, nil
	}

	if err := a.limiter.Wait(ctx, media.ServiceITunes); err != nil {
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceITunes,
			Cause:   fmt.Errorf("rate limiter: %w", err),
		}
	}

	params := url.Values{
		"term":   {term},
		"media":  {"music"},
		"entity": {entity},
		"limit":  {"10"},
	}
	if query.Country != "" {
		params.Set("country", query.Country)
	}
	reqURL := a.baseURL + "/search?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	records := make([]*media.Record, 0, len(resp.Results))
	for _, item := range resp.Results {
		records = append(records, recordFromItem(item))
	}

	a.logger.Debug("search completed",
		slog.String("entity", entity),
		slog.String("term", term),
		slog.Int("results", len(records)))

	return records, nil
}

// LookupTrack fetches one track by its numeric iTunes ID.
func (a *Adapter) LookupTrack(ctx context.Context, id, country string) (*media.Record, error) {
	return a.lookup(ctx, id, country)
}

// LookupVideo fetches one music video by its numeric iTunes ID.
func (a *Adapter) LookupVideo(ctx context.Context, id, country string) (*media.Record, error) {
	return a.lookup(ctx, id, country)
}

// LookupAlbum fetches one album by its numeric iTunes collection ID.
func (a *Adapter) LookupAlbum(ctx context.Context, id, country string) (*media.Record, error) {
	return a.lookup(ctx, id, country)
}

func (a *Adapter) lookup(ctx context.Context, id, country string) (*media.Record, error) {
	if !isNumericID(id) {
		return nil, &provider.ErrNotFound{Service: media.ServiceITunes, ID: id}
	}

	if err := a.limiter.Wait(ctx, media.ServiceITunes); err != nil {
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceITunes,
			Cause:   fmt.Errorf("rate limiter: %w", err),
		}
	}

	params := url.Values{"id": {id}}
	if country != "" {
		params.Set("country", country)
	}
	reqURL := a.baseURL + "/lookup?" + params.Encode()

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing lookup response: %w", err)
	}
	if resp.ResultCount == 0 || len(resp.Results) == 0 {
		return nil, &provider.ErrNotFound{Service: media.ServiceITunes, ID: id}
	}

	return recordFromItem(resp.Results[0]), nil
}

// TestConnection verifies the service answers a trivial search.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.doRequest(ctx, a.baseURL+"/search?term=test&media=music&entity=song&limit=1")
	return err
}

// doRequest executes a GET request and returns the response body.
func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceITunes,
			Cause:   err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound:
		return nil, &provider.ErrNotFound{Service: media.ServiceITunes, ID: reqURL}
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceITunes,
			Cause:   fmt.Errorf("rate limited by server"),
		}
	default:
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceITunes,
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

func isNumericID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// recordFromItem converts one iTunes result into the normalized record shape.
func recordFromItem(item resultItem) *media.Record {
	rec := &media.Record{
		OriginService: media.ServiceITunes,
		Kind:          kindFromItem(item),
		Genre:         item.PrimaryGenreName,
		ReleaseDate:   item.ReleaseDate,
		ReleaseYear:   yearFromDate(item.ReleaseDate),
		DurationMS:    item.TrackTimeMillis,
	}

	switch rec.Kind {
	case media.KindAlbum:
		rec.Title = item.CollectionName
		rec.Explicit = explicitFlag(item.CollectionExplicitness)
		rec.SetID(media.ServiceITunes, strconv.FormatInt(item.CollectionID, 10))
		rec.SetURL(media.ServiceITunes, item.CollectionViewURL)
	default:
		rec.Title = item.TrackName
		rec.Explicit = explicitFlag(item.TrackExplicitness)
		rec.SetID(media.ServiceITunes, strconv.FormatInt(item.TrackID, 10))
		rec.SetURL(media.ServiceITunes, item.TrackViewURL)
		if item.CollectionName != "" {
			coll := &media.Record{
				OriginService: media.ServiceITunes,
				Kind:          media.KindAlbum,
				Title:         item.CollectionName,
				ReleaseYear:   yearFromDate(item.ReleaseDate),
			}
			coll.SetID(media.ServiceITunes, strconv.FormatInt(item.CollectionID, 10))
			coll.SetURL(media.ServiceITunes, item.CollectionViewURL)
			rec.Collection = coll
		}
	}
	rec.NormalizedTitle = match.Normalize(match.StripFeaturing(rec.Title))

	if item.ArtistName != "" {
		artist := media.Artist{Name: item.ArtistName}
		if item.ArtistID != 0 {
			artist.IDs = map[media.ServiceName]string{media.ServiceITunes: strconv.FormatInt(item.ArtistID, 10)}
		}
		if item.ArtistViewURL != "" {
			artist.URLs = map[media.ServiceName]string{media.ServiceITunes: item.ArtistViewURL}
		}
		rec.Artists = []media.Artist{artist}
	}

	if item.ArtworkURL100 != "" {
		rec.Cover = &media.Cover{
			Low:  map[media.ServiceName]string{media.ServiceITunes: item.ArtworkURL100},
			High: map[media.ServiceName]string{media.ServiceITunes: strings.Replace(item.ArtworkURL100, "100x100", "600x600", 1)},
		}
	}

	return rec
}

func kindFromItem(item resultItem) media.Kind {
	switch {
	case item.Kind == "music-video":
		return media.KindMusicVideo
	case item.WrapperType == "collection":
		return media.KindAlbum
	default:
		return media.KindTrack
	}
}

// explicitFlag maps iTunes explicitness strings to the tri-state flag.
// "cleaned" counts as not explicit; an empty value stays unknown.
func explicitFlag(s string) *bool {
	switch s {
	case "explicit":
		return media.Bool(true)
	case "notExplicit", "cleaned":
		return media.Bool(false)
	default:
		return nil
	}
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
