// Package spotify implements the provider contract for the Spotify Web API.
//
// Authentication uses the client-credentials flow. The stored credential is
// "client_id:client_secret" in a single settings slot; the adapter exchanges
// it for a bearer token and refreshes transparently.
package spotify

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
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sydlexius/medley/internal/match"
	"github.com/sydlexius/medley/internal/media"
	"github.com/sydlexius/medley/internal/provider"
)

const (
	defaultBaseURL  = "https://api.spotify.com/v1"
	defaultTokenURL = "https://accounts.spotify.com/api/token"
)

// Adapter implements provider.Provider and AlbumProvider for Spotify.
type Adapter struct {
	client   *http.Client
	limiter  *provider.RateLimiterMap
	settings *provider.SettingsService
	logger   *slog.Logger
	baseURL  string
	tokenURL string

	mu         sync.Mutex
	cachedCred string
	cachedTS   oauth2.TokenSource
}

// New creates a Spotify adapter with the default API and token endpoints.
func New(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger) *Adapter {
	return NewWithBaseURL(limiter, settings, logger, defaultBaseURL, defaultTokenURL)
}

// NewWithBaseURL creates a Spotify adapter with custom endpoints (for testing).
func NewWithBaseURL(limiter *provider.RateLimiterMap, settings *provider.SettingsService, logger *slog.Logger, baseURL, tokenURL string) *Adapter {
	return &Adapter{
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  limiter,
		settings: settings,
		logger:   logger.With(slog.String("provider", "spotify")),
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenURL: tokenURL,
	}
}

// Name returns the service identifier.
func (a *Adapter) Name() media.ServiceName { return media.ServiceSpotify }

// RequiresAuth returns true; Spotify needs client credentials.
func (a *Adapter) RequiresAuth() bool { return true }

// SearchTracks searches for tracks matching the query.
func (a *Adapter) SearchTracks(ctx context.Context, query media.Query) ([]*media.Record, error) {
	body, err := a.search(ctx, query, "track")
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if resp.Tracks == nil {
		return nil, nil
	}

	records := make([]*media.Record, 0, len(resp.Tracks.Items))
	for i := range resp.Tracks.Items {
		records = append(records, recordFromTrack(&resp.Tracks.Items[i]))
	}
	return records, nil
}

// SearchAlbums searches for albums matching the query.
func (a *Adapter) SearchAlbums(ctx context.Context, query media.Query) ([]*media.Record, error) {
	body, err := a.search(ctx, query, "album")
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	if resp.Albums == nil {
		return nil, nil
	}

	records := make([]*media.Record, 0, len(resp.Albums.Items))
	for i := range resp.Albums.Items {
		records = append(records, recordFromAlbum(&resp.Albums.Items[i]))
	}
	return records, nil
}

func (a *Adapter) search(ctx context.Context, query media.Query, entity string) ([]byte, error) {
	term := buildTerm(query)
	if term == "" {
		return nil, nil
	}

	params := url.Values{
		"q":     {term},
		"type":  {entity},
		"limit": {"10"},
	}
	if query.Country != "" {
		params.Set("market", query.Country)
	}

	return a.doRequest(ctx, a.baseURL+"/search?"+params.Encode())
}

// LookupTrack fetches one track by its Spotify ID.
func (a *Adapter) LookupTrack(ctx context.Context, id, country string) (*media.Record, error) {
	reqURL := a.baseURL + "/tracks/" + url.PathEscape(id)
	if country != "" {
		reqURL += "?market=" + url.QueryEscape(country)
	}

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var item trackItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("parsing track response: %w", err)
	}
	if item.ID == "" {
		return nil, &provider.ErrNotFound{Service: media.ServiceSpotify, ID: id}
	}
	return recordFromTrack(&item), nil
}

// LookupAlbum fetches one album by its Spotify ID.
func (a *Adapter) LookupAlbum(ctx context.Context, id, country string) (*media.Record, error) {
	reqURL := a.baseURL + "/albums/" + url.PathEscape(id)
	if country != "" {
		reqURL += "?market=" + url.QueryEscape(country)
	}

	body, err := a.doRequest(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var item albumItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("parsing album response: %w", err)
	}
	if item.ID == "" {
		return nil, &provider.ErrNotFound{Service: media.ServiceSpotify, ID: id}
	}
	return recordFromAlbum(&item), nil
}

// TestConnection verifies the stored credentials can obtain a token and
// reach the search endpoint.
func (a *Adapter) TestConnection(ctx context.Context) error {
	_, err := a.doRequest(ctx, a.baseURL+"/search?q=test&type=track&limit=1")
	return err
}

// tokenSource returns a cached token source for the current credential.
// The cache is invalidated when the stored credential changes.
func (a *Adapter) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cred, err := a.settings.GetAPIKey(ctx, media.ServiceSpotify)
	if err != nil {
		return nil, fmt.Errorf("getting credentials: %w", err)
	}
	if cred == "" {
		return nil, &provider.ErrAuthRequired{Service: media.ServiceSpotify}
	}
	clientID, clientSecret, ok := strings.Cut(cred, ":")
	if !ok || clientID == "" || clientSecret == "" {
		return nil, &provider.ErrAuthRequired{Service: media.ServiceSpotify}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cachedTS != nil && a.cachedCred == cred {
		return a.cachedTS, nil
	}

	conf := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     a.tokenURL,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, a.client)
	a.cachedTS = conf.TokenSource(tokenCtx)
	a.cachedCred = cred
	return a.cachedTS, nil
}

func (a *Adapter) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	ts, err := a.tokenSource(ctx)
	if err != nil {
		return nil, err
	}
	token, err := ts.Token()
	if err != nil {
		return nil, &provider.ErrAuthRequired{Service: media.ServiceSpotify}
	}

	if err := a.limiter.Wait(ctx, media.ServiceSpotify); err != nil {
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceSpotify,
			Cause:   fmt.Errorf("rate limiter: %w", err),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	token.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceSpotify,
			Cause:   err,
		}
	}
	defer resp.Body.Close() //nolint:errcheck

	switch resp.StatusCode {
	case http.StatusOK:
		// continue
	case http.StatusNotFound, http.StatusBadRequest:
		return nil, &provider.ErrNotFound{Service: media.ServiceSpotify, ID: reqURL}
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &provider.ErrAuthRequired{Service: media.ServiceSpotify}
	case http.StatusTooManyRequests:
		return nil, &provider.ErrServiceUnavailable{
			Service:    media.ServiceSpotify,
			Cause:      fmt.Errorf("rate limited by server"),
			RetryAfter: retryAfter(resp),
		}
	default:
		return nil, &provider.ErrServiceUnavailable{
			Service: media.ServiceSpotify,
			Cause:   fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	return io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
}

func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func buildTerm(query media.Query) string {
	var parts []string
	if a := query.PrimaryArtist(); a != "" {
		parts = append(parts, "artist:"+a)
	}
	if query.Title != "" {
		parts = append(parts, query.Title)
	}
	return strings.Join(parts, " ")
}

func recordFromTrack(item *trackItem) *media.Record {
	rec := &media.Record{
		OriginService: media.ServiceSpotify,
		Kind:          media.KindTrack,
		Title:         item.Name,
		Explicit:      media.Bool(item.Explicit),
		DurationMS:    item.DurationMS,
	}
	rec.NormalizedTitle = match.Normalize(match.StripFeaturing(rec.Title))
	rec.SetID(media.ServiceSpotify, item.ID)
	rec.SetURL(media.ServiceSpotify, item.ExternalURLs.Spotify)
	rec.Artists = artistsFromItems(item.Artists)

	if item.Album != nil {
		rec.Collection = recordFromAlbum(item.Album)
		rec.ReleaseDate = item.Album.ReleaseDate
		rec.ReleaseYear = yearFromDate(item.Album.ReleaseDate)
		rec.Cover = coverFromImages(item.Album.Images)
	}
	return rec
}

func recordFromAlbum(item *albumItem) *media.Record {
	rec := &media.Record{
		OriginService: media.ServiceSpotify,
		Kind:          albumKind(item),
		Title:         item.Name,
		ReleaseDate:   item.ReleaseDate,
		ReleaseYear:   yearFromDate(item.ReleaseDate),
		Cover:         coverFromImages(item.Images),
	}
	rec.NormalizedTitle = match.Normalize(match.StripFeaturing(rec.Title))
	rec.SetID(media.ServiceSpotify, item.ID)
	rec.SetURL(media.ServiceSpotify, item.ExternalURLs.Spotify)
	rec.Artists = artistsFromItems(item.Artists)
	if len(item.Genres) > 0 {
		rec.Genre = item.Genres[0]
	}
	return rec
}

func albumKind(item *albumItem) media.Kind {
	switch item.AlbumType {
	case "single":
		if item.TotalTracks > 3 {
			return media.KindEP
		}
		return media.KindSingle
	default:
		return media.KindAlbum
	}
}

func artistsFromItems(items []artistItem) []media.Artist {
	if len(items) == 0 {
		return nil
	}
	artists := make([]media.Artist, 0, len(items))
	for _, it := range items {
		artist := media.Artist{Name: it.Name}
		if it.ID != "" {
			artist.IDs = map[media.ServiceName]string{media.ServiceSpotify: it.ID}
		}
		if it.ExternalURLs.Spotify != "" {
			artist.URLs = map[media.ServiceName]string{media.ServiceSpotify: it.ExternalURLs.Spotify}
		}
		artists = append(artists, artist)
	}
	return artists
}

// coverFromImages picks the largest image as high and the smallest as low.
func coverFromImages(images []imageItem) *media.Cover {
	if len(images) == 0 {
		return nil
	}
	high, low := images[0], images[0]
	for _, img := range images[1:] {
		if img.Width > high.Width {
			high = img
		}
		if img.Width < low.Width {
			low = img
		}
	}
	return &media.Cover{
		High: map[media.ServiceName]string{media.ServiceSpotify: high.URL},
		Low:  map[media.ServiceName]string{media.ServiceSpotify: low.URL},
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
