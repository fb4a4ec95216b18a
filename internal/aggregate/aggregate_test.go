package aggregate

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/sydlexius/medley/internal/composite"
	"github.com/sydlexius/medley/internal/match"
	"github.com/sydlexius/medley/internal/media"
	"github.com/sydlexius/medley/internal/provider"
)

// fakeProvider is a canned-response track provider for orchestration tests.
type fakeProvider struct {
	name         media.ServiceName
	searchResult []*media.Record
	searchErr    error
	lookupResult *media.Record
	lookupErr    error
	searchCalls  int
}

func (f *fakeProvider) Name() media.ServiceName { return f.name }
func (f *fakeProvider) RequiresAuth() bool      { return false }

func (f *fakeProvider) SearchTracks(ctx context.Context, query media.Query) ([]*media.Record, error) {
	f.searchCalls++
	return f.searchResult, f.searchErr
}

func (f *fakeProvider) LookupTrack(ctx context.Context, id, country string) (*media.Record, error) {
	return f.lookupResult, f.lookupErr
}

func trackRecord(svc media.ServiceName, title string, artists ...string) *media.Record {
	rec := &media.Record{
		OriginService:   svc,
		Kind:            media.KindTrack,
		Title:           title,
		NormalizedTitle: match.Normalize(match.StripFeaturing(title)),
	}
	for _, a := range artists {
		rec.Artists = append(rec.Artists, media.Artist{Name: a})
	}
	rec.SetID(svc, "id-"+string(svc))
	rec.SetURL(svc, "https://"+string(svc)+".example/track")
	return rec
}

func newTestAggregator(t *testing.T, providers ...provider.Provider) *Aggregator {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	registry := provider.NewRegistry()
	for _, p := range providers {
		registry.Register(p)
	}
	filter := match.NewFilter(logger, nil)
	composer := composite.NewComposer(composite.DefaultPriorities(), logger, nil)
	return New(registry, filter, composer, nil, logger)
}

func TestTracksComposesAcrossProviders(t *testing.T) {
	spotify := &fakeProvider{
		name:         media.ServiceSpotify,
		searchResult: []*media.Record{trackRecord(media.ServiceSpotify, "Karma Police", "Radiohead")},
	}
	itunes := &fakeProvider{
		name:         media.ServiceITunes,
		searchResult: []*media.Record{trackRecord(media.ServiceITunes, "Karma Police", "Radiohead")},
	}
	agg := newTestAggregator(t, spotify, itunes)

	result, err := agg.Tracks(context.Background(), media.Query{
		Artists: []string{"Radiohead"},
		Title:   "Karma Police",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched() {
		t.Fatal("expected a composite record")
	}

	rec := result.Record
	if rec.OriginService != media.ServiceGlobal {
		t.Errorf("expected global origin, got %q", rec.OriginService)
	}
	if rec.Title != "Karma Police" {
		t.Errorf("unexpected title %q", rec.Title)
	}
	if rec.URLs[media.ServiceSpotify] == "" || rec.URLs[media.ServiceITunes] == "" {
		t.Errorf("expected URLs from both providers, got %v", rec.URLs)
	}
	if result.Confidence <= 30 {
		t.Errorf("expected confidence above threshold, got %v", result.Confidence)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestTracksOmittedKindAddsNoScoreTerm(t *testing.T) {
	single := trackRecord(media.ServiceSpotify, "Karma Police", "Radiohead")
	single.Kind = media.KindSingle
	spotify := &fakeProvider{
		name:         media.ServiceSpotify,
		searchResult: []*media.Record{single},
	}
	agg := newTestAggregator(t, spotify)

	// No kind hint: a perfect artist and title match scores full
	// confidence regardless of the candidate's kind.
	result, err := agg.Tracks(context.Background(), media.Query{
		Artists: []string{"Radiohead"},
		Title:   "Karma Police",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched() {
		t.Fatal("expected a composite record")
	}
	if result.Confidence != 100 {
		t.Errorf("expected confidence 100 without a kind term, got %v", result.Confidence)
	}
	if result.Record.Kind != media.KindSingle {
		t.Errorf("expected candidate kind kept, got %q", result.Record.Kind)
	}
}

func TestTracksProviderFailureBecomesWarning(t *testing.T) {
	spotify := &fakeProvider{
		name:         media.ServiceSpotify,
		searchResult: []*media.Record{trackRecord(media.ServiceSpotify, "Karma Police", "Radiohead")},
	}
	itunes := &fakeProvider{
		name:      media.ServiceITunes,
		searchErr: &provider.ErrServiceUnavailable{Service: media.ServiceITunes, Cause: errors.New("boom")},
	}
	agg := newTestAggregator(t, spotify, itunes)

	result, err := agg.Tracks(context.Background(), media.Query{
		Artists: []string{"Radiohead"},
		Title:   "Karma Police",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched() {
		t.Fatal("expected a composite record from the surviving provider")
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Service != media.ServiceITunes {
		t.Fatalf("expected one itunes warning, got %v", result.Warnings)
	}
}

func TestTracksUnconfiguredProviderIsQuiet(t *testing.T) {
	spotify := &fakeProvider{
		name:         media.ServiceSpotify,
		searchResult: []*media.Record{trackRecord(media.ServiceSpotify, "Karma Police", "Radiohead")},
	}
	genius := &fakeProvider{
		name:      media.ServiceGenius,
		searchErr: &provider.ErrAuthRequired{Service: media.ServiceGenius},
	}
	agg := newTestAggregator(t, spotify, genius)

	result, err := agg.Tracks(context.Background(), media.Query{
		Artists: []string{"Radiohead"},
		Title:   "Karma Police",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("missing credentials should not warn, got %v", result.Warnings)
	}
}

func TestTracksNoMatch(t *testing.T) {
	spotify := &fakeProvider{
		name:         media.ServiceSpotify,
		searchResult: []*media.Record{trackRecord(media.ServiceSpotify, "Completely Unrelated Song", "Someone Else")},
	}
	agg := newTestAggregator(t, spotify)

	result, err := agg.Tracks(context.Background(), media.Query{
		Artists: []string{"Radiohead"},
		Title:   "Karma Police",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched() {
		t.Fatalf("expected no match, got %+v", result.Record)
	}
	if result.Confidence != 0 {
		t.Errorf("expected confidence 0, got %v", result.Confidence)
	}
}

func TestTracksNoProviders(t *testing.T) {
	agg := newTestAggregator(t)

	result, err := agg.Tracks(context.Background(), media.Query{
		Artists: []string{"Radiohead"},
		Title:   "Karma Police",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Matched() {
		t.Fatal("expected no match with no providers")
	}
}

func TestCrossReferenceTrackExcludesOrigin(t *testing.T) {
	origin := trackRecord(media.ServiceSpotify, "Karma Police", "Radiohead")
	spotify := &fakeProvider{
		name:         media.ServiceSpotify,
		lookupResult: origin,
		searchErr:    errors.New("origin must not be searched"),
	}
	itunes := &fakeProvider{
		name:         media.ServiceITunes,
		searchResult: []*media.Record{trackRecord(media.ServiceITunes, "Karma Police", "Radiohead")},
	}
	agg := newTestAggregator(t, spotify, itunes)

	result, err := agg.CrossReferenceTrack(context.Background(), media.ServiceSpotify, "id-spotify", "US")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Matched() {
		t.Fatal("expected a composite record")
	}
	if spotify.searchCalls != 0 {
		t.Errorf("origin provider was searched %d times", spotify.searchCalls)
	}

	rec := result.Record
	if rec.URLs[media.ServiceSpotify] == "" {
		t.Error("expected origin record to contribute its URL")
	}
	if rec.URLs[media.ServiceITunes] == "" {
		t.Error("expected searched provider to contribute its URL")
	}
	// exact-ID origin carries full confidence into the mean
	if prov, ok := rec.Provenance[media.ServiceSpotify]; !ok || prov.Confidence != 100 {
		t.Errorf("expected origin provenance confidence 100, got %+v", prov)
	}
}

func TestCrossReferenceTrackLookupFails(t *testing.T) {
	spotify := &fakeProvider{
		name:      media.ServiceSpotify,
		lookupErr: &provider.ErrNotFound{Service: media.ServiceSpotify, ID: "nope"},
	}
	agg := newTestAggregator(t, spotify)

	_, err := agg.CrossReferenceTrack(context.Background(), media.ServiceSpotify, "nope", "")
	var notFound *provider.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCrossReferenceUnknownService(t *testing.T) {
	agg := newTestAggregator(t)

	_, err := agg.CrossReferenceTrack(context.Background(), "napster", "123", "")
	if err == nil {
		t.Fatal("expected error for unknown service")
	}
}
