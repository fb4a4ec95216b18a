// Package aggregate orchestrates provider searches into composite records.
//
// One aggregation queries every capable provider concurrently, reduces each
// provider's raw result list to its best match, then hands the survivors to
// the field compositor. Provider failures never fail the aggregation; the
// provider simply drops out of the request and is reported as a warning.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sydlexius/medley/internal/composite"
	"github.com/sydlexius/medley/internal/event"
	"github.com/sydlexius/medley/internal/match"
	"github.com/sydlexius/medley/internal/media"
	"github.com/sydlexius/medley/internal/provider"
)

// Warning describes a provider that dropped out of an aggregation.
type Warning struct {
	Service media.ServiceName `json:"service"`
	Message string            `json:"message"`
}

// Result is the outcome of one aggregation. Record is nil when nothing
// matched; Confidence and Elapsed are populated either way.
type Result struct {
	Record     *media.Record `json:"record"`
	Confidence float64       `json:"confidence"`
	Elapsed    time.Duration `json:"elapsed"`
	Warnings   []Warning     `json:"warnings,omitempty"`
}

// Matched reports whether the aggregation produced a composite record.
func (r *Result) Matched() bool { return r != nil && r.Record != nil }

// Aggregator wires the registry, filter and compositor together.
type Aggregator struct {
	registry *provider.Registry
	filter   *match.Filter
	composer *composite.Composer
	bus      *event.Bus
	logger   *slog.Logger
}

// New creates an Aggregator. bus may be nil to disable diagnostics.
func New(registry *provider.Registry, filter *match.Filter, composer *composite.Composer, bus *event.Bus, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		filter:   filter,
		composer: composer,
		bus:      bus,
		logger:   logger.With(slog.String("component", "aggregate")),
	}
}

// task is one provider search bound to a concrete search function.
type task struct {
	service media.ServiceName
	search  func(context.Context) ([]*media.Record, error)
}

// outcome is what one provider search produced.
type outcome struct {
	service media.ServiceName
	records []*media.Record
	elapsed time.Duration
	err     error
}

// Tracks aggregates a song across all track-capable providers.
func (a *Aggregator) Tracks(ctx context.Context, query media.Query) (*Result, error) {
	return a.tracks(ctx, query, nil, nil)
}

func (a *Aggregator) tracks(ctx context.Context, query media.Query, premade []*media.Record, exclude []media.ServiceName) (*Result, error) {
	// Kind stays as the caller supplied it: an absent hint must not add a
	// kind term to the filter's score ceiling.
	var tasks []task
	for _, p := range a.registry.All() {
		if excluded(p.Name(), exclude) {
			continue
		}
		p := p
		search := p.SearchTracks
		// knowledge providers return enriched records for the same search
		if kp, ok := p.(provider.KnowledgeProvider); ok {
			search = kp.SearchKnowledge
		}
		tasks = append(tasks, task{service: p.Name(), search: func(ctx context.Context) ([]*media.Record, error) {
			return search(ctx, query)
		}})
	}

	return a.run(ctx, media.KindTrack, query, tasks, premade, exclude, a.filter.BestTrack)
}

// Videos aggregates a music video across all video-capable providers.
func (a *Aggregator) Videos(ctx context.Context, query media.Query) (*Result, error) {
	return a.videos(ctx, query, nil, nil)
}

func (a *Aggregator) videos(ctx context.Context, query media.Query, premade []*media.Record, exclude []media.ServiceName) (*Result, error) {
	query.Kind = media.KindMusicVideo

	var tasks []task
	for _, p := range a.registry.Videos() {
		if excluded(p.Name(), exclude) {
			continue
		}
		p := p
		tasks = append(tasks, task{service: p.Name(), search: func(ctx context.Context) ([]*media.Record, error) {
			return p.SearchVideos(ctx, query)
		}})
	}

	return a.run(ctx, media.KindMusicVideo, query, tasks, premade, exclude, a.filter.BestVideo)
}

// Albums aggregates a collection across all album-capable providers.
func (a *Aggregator) Albums(ctx context.Context, query media.Query) (*Result, error) {
	return a.albums(ctx, query, nil, nil)
}

func (a *Aggregator) albums(ctx context.Context, query media.Query, premade []*media.Record, exclude []media.ServiceName) (*Result, error) {
	query.Kind = media.KindAlbum

	var tasks []task
	for _, p := range a.registry.Albums() {
		if excluded(p.Name(), exclude) {
			continue
		}
		p := p
		tasks = append(tasks, task{service: p.Name(), search: func(ctx context.Context) ([]*media.Record, error) {
			return p.SearchAlbums(ctx, query)
		}})
	}

	return a.run(ctx, media.KindAlbum, query, tasks, premade, exclude, a.filter.BestAlbum)
}

// CrossReferenceTrack fetches a track by one provider's ID, derives a query
// from it, and aggregates the remaining providers around it. The origin
// record participates as a contributor without being re-searched.
func (a *Aggregator) CrossReferenceTrack(ctx context.Context, service media.ServiceName, id, country string) (*Result, error) {
	origin, elapsed, err := a.lookupOrigin(ctx, service, func(p provider.Provider) (*media.Record, error) {
		return p.LookupTrack(ctx, id, country)
	})
	if err != nil {
		return nil, err
	}
	return a.tracks(ctx, queryFromRecord(origin, country), []*media.Record{stampOrigin(origin, elapsed)}, []media.ServiceName{service})
}

// CrossReferenceVideo is the cross-reference path for music videos.
func (a *Aggregator) CrossReferenceVideo(ctx context.Context, service media.ServiceName, id, country string) (*Result, error) {
	origin, elapsed, err := a.lookupOrigin(ctx, service, func(p provider.Provider) (*media.Record, error) {
		vp, ok := p.(provider.VideoProvider)
		if !ok {
			return nil, &provider.ErrNotFound{Service: service, ID: id}
		}
		return vp.LookupVideo(ctx, id, country)
	})
	if err != nil {
		return nil, err
	}
	return a.videos(ctx, queryFromRecord(origin, country), []*media.Record{stampOrigin(origin, elapsed)}, []media.ServiceName{service})
}

// CrossReferenceAlbum is the cross-reference path for collections.
func (a *Aggregator) CrossReferenceAlbum(ctx context.Context, service media.ServiceName, id, country string) (*Result, error) {
	origin, elapsed, err := a.lookupOrigin(ctx, service, func(p provider.Provider) (*media.Record, error) {
		ap, ok := p.(provider.AlbumProvider)
		if !ok {
			return nil, &provider.ErrNotFound{Service: service, ID: id}
		}
		return ap.LookupAlbum(ctx, id, country)
	})
	if err != nil {
		return nil, err
	}
	return a.albums(ctx, queryFromRecord(origin, country), []*media.Record{stampOrigin(origin, elapsed)}, []media.ServiceName{service})
}

func (a *Aggregator) lookupOrigin(ctx context.Context, service media.ServiceName, lookup func(provider.Provider) (*media.Record, error)) (*media.Record, time.Duration, error) {
	p := a.registry.Get(service)
	if p == nil {
		return nil, 0, fmt.Errorf("unknown service %q", service)
	}
	start := time.Now()
	rec, err := lookup(p)
	if err != nil {
		return nil, 0, err
	}
	return rec, time.Since(start), nil
}

// run executes the fan-out, filters each provider's candidates, and
// composes the survivors.
func (a *Aggregator) run(ctx context.Context, kind media.Kind, query media.Query, tasks []task, premade []*media.Record, exclude []media.ServiceName, best func(media.Query, []*media.Record) *match.Match) (*Result, error) {
	start := time.Now()

	outcomes := a.fanOut(ctx, tasks)

	contributors := make([]*media.Record, 0, len(outcomes)+len(premade))
	contributors = append(contributors, premade...)
	absent := append([]media.ServiceName(nil), exclude...)
	var warnings []Warning

	for _, out := range outcomes {
		if out.err != nil {
			absent = append(absent, out.service)
			warnings = a.noteFailure(warnings, out)
			continue
		}
		m := best(query, out.records)
		if !m.Matched() {
			continue
		}
		prov := m.Record.Provenance[out.service]
		prov.ProcessingTime = out.elapsed
		prov.HTTPStatus = http.StatusOK
		m.Record.SetProvenance(out.service, prov)
		contributors = append(contributors, m.Record)
	}

	rec, err := a.composer.Compose(ctx, kind, contributors, absent)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Record:   rec,
		Elapsed:  time.Since(start),
		Warnings: warnings,
	}
	if rec != nil {
		result.Confidence = rec.Provenance[media.ServiceGlobal].Confidence
	}
	return result, nil
}

// fanOut runs every task concurrently and joins all results.
func (a *Aggregator) fanOut(ctx context.Context, tasks []task) []outcome {
	results := make(chan outcome, len(tasks))
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t task) {
			defer wg.Done()
			started := time.Now()
			records, err := t.search(ctx)
			results <- outcome{
				service: t.service,
				records: records,
				elapsed: time.Since(started),
				err:     err,
			}
		}(t)
	}
	wg.Wait()
	close(results)

	outcomes := make([]outcome, 0, len(tasks))
	for out := range results {
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// noteFailure records a provider failure. Unconfigured providers drop out
// quietly; real failures become warnings and diagnostic events.
func (a *Aggregator) noteFailure(warnings []Warning, out outcome) []Warning {
	var authErr *provider.ErrAuthRequired
	if errors.As(out.err, &authErr) {
		a.logger.Debug("provider not configured", slog.String("service", string(out.service)))
		return warnings
	}

	a.logger.Warn("provider failed",
		slog.String("service", string(out.service)),
		slog.String("error", out.err.Error()))
	if a.bus != nil {
		a.bus.Publish(event.Event{
			Type: event.ProviderError,
			Data: map[string]any{
				"service": string(out.service),
				"error":   out.err.Error(),
			},
		})
	}
	return append(warnings, Warning{Service: out.service, Message: out.err.Error()})
}

func excluded(name media.ServiceName, exclude []media.ServiceName) bool {
	for _, e := range exclude {
		if e == name {
			return true
		}
	}
	return false
}

// stampOrigin marks a premade record with lookup provenance. An exact-ID
// fetch is a certain match.
func stampOrigin(rec *media.Record, elapsed time.Duration) *media.Record {
	rec.SetProvenance(rec.OriginService, media.Provenance{
		ProcessingTime: elapsed,
		HTTPStatus:     http.StatusOK,
		Confidence:     100,
	})
	return rec
}

// queryFromRecord derives a search query from a looked-up record so the
// remaining providers can be searched for the same media.
func queryFromRecord(rec *media.Record, country string) media.Query {
	q := media.Query{
		Title:    rec.Title,
		Kind:     rec.Kind,
		Explicit: rec.Explicit,
		Year:     rec.ReleaseYear,
		Country:  country,
	}
	for _, artist := range rec.Artists {
		q.Artists = append(q.Artists, artist.Name)
	}
	if rec.Collection != nil {
		q.Collection = rec.Collection.Title
	}
	return q
}
