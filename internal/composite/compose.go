// Package composite merges per-service matched records for one logical
// entity into a single canonical record, choosing each field independently
// by walking a per-field service priority order.
package composite

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sydlexius/medley/internal/event"
	"github.com/sydlexius/medley/internal/media"
)

// Composer builds canonical records from per-service contributors.
type Composer struct {
	source PrioritySource
	logger *slog.Logger
	bus    *event.Bus
}

// NewComposer creates a Composer. bus may be nil to disable diagnostics.
func NewComposer(source PrioritySource, logger *slog.Logger, bus *event.Bus) *Composer {
	return &Composer{
		source: source,
		logger: logger.With(slog.String("component", "composer")),
		bus:    bus,
	}
}

// Compose merges contributors (at most one per service, same kind, same
// real-world entity) into one canonical record. A nil, nil return means no
// usable contributor was present; an error return indicates a defect in the
// contributor shape or in this package, never a normal outcome.
//
// exclude lists services deliberately not queried for this request (a
// premade record already represents them); it only suppresses absence
// diagnostics.
func (c *Composer) Compose(ctx context.Context, kind media.Kind, contributors []*media.Record, exclude []media.ServiceName) (rec *media.Record, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("composition defect",
				slog.String("kind", string(kind)),
				slog.Any("panic", r))
			rec, err = nil, fmt.Errorf("composing %s: internal defect: %v", kind, r)
		}
	}()

	pri, err := c.source.Priorities(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("loading priorities for %s: %w", kind, err)
	}

	labeled := make(map[media.ServiceName]*media.Record, len(contributors))
	for _, r := range contributors {
		if r == nil {
			continue
		}
		if r.OriginService == "" {
			return nil, fmt.Errorf("composing %s: contributor without origin service", kind)
		}
		labeled[r.OriginService] = r
	}

	c.logAbsent(kind, labeled, exclude)

	// A composite with no resolvable kind is no composite at all.
	kindSource := pick(pri.Order("kind"), labeled, func(r *media.Record) bool { return r.Kind != "" })
	if kindSource == nil {
		if c.bus != nil {
			c.bus.Publish(event.Event{
				Type: event.CompositeEmpty,
				Data: map[string]any{"kind": string(kind), "contributors": len(labeled)},
			})
		}
		return nil, nil
	}

	out := &media.Record{
		OriginService: media.ServiceGlobal,
		Kind:          kindSource.Kind,
	}

	if r := pick(pri.Order("title"), labeled, func(r *media.Record) bool { return r.Title != "" }); r != nil {
		out.Title = r.Title
		out.NormalizedTitle = r.NormalizedTitle
	}
	if r := pick(pri.Order("explicit"), labeled, func(r *media.Record) bool { return r.Explicit != nil }); r != nil {
		v := *r.Explicit
		out.Explicit = &v
	}
	if r := pick(pri.Order("release_year"), labeled, func(r *media.Record) bool { return r.ReleaseYear != 0 }); r != nil {
		out.ReleaseYear = r.ReleaseYear
	}
	if r := pick(pri.Order("release_date"), labeled, func(r *media.Record) bool { return r.ReleaseDate != "" }); r != nil {
		out.ReleaseDate = r.ReleaseDate
	}
	if r := pick(pri.Order("genre"), labeled, func(r *media.Record) bool { return r.Genre != "" }); r != nil {
		out.Genre = r.Genre
	}
	if r := pick(pri.Order("description"), labeled, func(r *media.Record) bool { return r.Description != "" }); r != nil {
		out.Description = r.Description
	}
	if r := pick(pri.Order("bpm"), labeled, func(r *media.Record) bool { return r.BPM != 0 }); r != nil {
		out.BPM = r.BPM
	}
	if r := pick(pri.Order("musical_key"), labeled, func(r *media.Record) bool { return r.MusicalKey != "" }); r != nil {
		out.MusicalKey = r.MusicalKey
	}
	if r := pick(pri.Order("duration_ms"), labeled, func(r *media.Record) bool { return r.DurationMS != 0 }); r != nil {
		out.DurationMS = r.DurationMS
	}

	out.Artists = c.composeArtists(pri, labeled)

	if coll, collErr := c.composeCollection(ctx, labeled, exclude); collErr != nil {
		return nil, collErr
	} else if coll != nil {
		out.Collection = coll
	}

	out.Cover = composeCover(pri, labeled)

	for _, svc := range accumulationOrder(pri, labeled) {
		r := labeled[svc]
		for k, v := range r.URLs {
			if _, taken := out.URLs[k]; !taken {
				out.SetURL(k, v)
			}
		}
		for k, v := range r.IDs {
			if _, taken := out.IDs[k]; !taken {
				out.SetID(k, v)
			}
		}
		for k, p := range r.Provenance {
			if _, taken := out.Provenance[k]; !taken {
				out.SetProvenance(k, p)
			}
		}
	}

	out.SetProvenance(media.ServiceGlobal, media.Provenance{
		ProcessingTime: time.Since(start),
		Confidence:     meanConfidence(labeled),
	})

	return out, nil
}

// pick returns the first service in order whose record satisfies ok.
// Services absent from labeled are skipped, which is the "remove then walk"
// step of the per-field resolution.
func pick(order []media.ServiceName, labeled map[media.ServiceName]*media.Record, ok func(*media.Record) bool) *media.Record {
	for _, svc := range order {
		if r, present := labeled[svc]; present && ok(r) {
			return r
		}
	}
	return nil
}

// composeArtists merges artist lists positionally: the i-th artist from each
// contributor is assumed to be the same person. The name and image come from
// the highest-priority contributor that has them; IDs and URLs are unioned.
func (c *Composer) composeArtists(pri Priorities, labeled map[media.ServiceName]*media.Record) []media.Artist {
	order := pri.Order("artists")

	maxN := 0
	for _, r := range labeled {
		if len(r.Artists) > maxN {
			maxN = len(r.Artists)
		}
	}

	var artists []media.Artist
	for i := 0; i < maxN; i++ {
		var comp media.Artist
		for _, svc := range order {
			r, present := labeled[svc]
			if !present || i >= len(r.Artists) {
				continue
			}
			a := r.Artists[i]
			if comp.Name == "" && a.Name != "" {
				comp.Name = a.Name
			}
			if comp.ImageURL == "" && a.ImageURL != "" {
				comp.ImageURL = a.ImageURL
			}
			for k, v := range a.IDs {
				if comp.IDs == nil {
					comp.IDs = make(map[media.ServiceName]string)
				}
				if _, taken := comp.IDs[k]; !taken {
					comp.IDs[k] = v
				}
			}
			for k, v := range a.URLs {
				if comp.URLs == nil {
					comp.URLs = make(map[media.ServiceName]string)
				}
				if _, taken := comp.URLs[k]; !taken {
					comp.URLs[k] = v
				}
			}
		}
		if comp.Name == "" && len(comp.IDs) == 0 && len(comp.URLs) == 0 {
			continue
		}
		artists = append(artists, comp)
	}
	return artists
}

// composeCollection recursively composes the contributors' parent collection
// records. Contributors without a collection simply do not take part.
func (c *Composer) composeCollection(ctx context.Context, labeled map[media.ServiceName]*media.Record, exclude []media.ServiceName) (*media.Record, error) {
	var colls []*media.Record
	for svc, r := range labeled {
		if r.Collection == nil {
			continue
		}
		coll := *r.Collection
		if coll.OriginService == "" {
			coll.OriginService = svc
		}
		colls = append(colls, &coll)
	}
	if len(colls) == 0 {
		return nil, nil
	}
	return c.Compose(ctx, media.KindAlbum, colls, exclude)
}

// composeCover unions artwork URL maps from every contributor. Per-key
// conflicts go to the higher-priority service.
func composeCover(pri Priorities, labeled map[media.ServiceName]*media.Record) *media.Cover {
	var cover *media.Cover
	for _, svc := range accumulationOrder(pri, labeled) {
		src := labeled[svc].Cover
		if src == nil {
			continue
		}
		if cover == nil {
			cover = &media.Cover{}
		}
		for k, v := range src.High {
			if cover.High == nil {
				cover.High = make(map[media.ServiceName]string)
			}
			if _, taken := cover.High[k]; !taken {
				cover.High[k] = v
			}
		}
		for k, v := range src.Low {
			if cover.Low == nil {
				cover.Low = make(map[media.ServiceName]string)
			}
			if _, taken := cover.Low[k]; !taken {
				cover.Low[k] = v
			}
		}
	}
	return cover
}

// accumulationOrder returns the contributing services in general priority
// order, with any services outside the table appended in name order so the
// walk stays deterministic.
func accumulationOrder(pri Priorities, labeled map[media.ServiceName]*media.Record) []media.ServiceName {
	seen := make(map[media.ServiceName]bool, len(labeled))
	var order []media.ServiceName
	for _, svc := range pri.General {
		if _, present := labeled[svc]; present {
			order = append(order, svc)
			seen[svc] = true
		}
	}
	var rest []media.ServiceName
	for svc := range labeled {
		if !seen[svc] {
			rest = append(rest, svc)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(order, rest...)
}

// meanConfidence averages each contributor's own-origin match confidence.
func meanConfidence(labeled map[media.ServiceName]*media.Record) float64 {
	if len(labeled) == 0 {
		return 0.0
	}
	var sum float64
	for svc, r := range labeled {
		sum += r.Provenance[svc].Confidence
	}
	return sum / float64(len(labeled))
}

func (c *Composer) logAbsent(kind media.Kind, labeled map[media.ServiceName]*media.Record, exclude []media.ServiceName) {
	excluded := make(map[media.ServiceName]bool, len(exclude))
	for _, svc := range exclude {
		excluded[svc] = true
	}
	for _, svc := range media.AllServiceNames() {
		if _, present := labeled[svc]; !present && !excluded[svc] {
			c.logger.Debug("service absent from composition",
				slog.String("kind", string(kind)),
				slog.String("service", string(svc)))
		}
	}
}
