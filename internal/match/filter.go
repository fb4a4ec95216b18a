// Package match selects the single best candidate from a provider's raw
// result list by scoring each candidate against the caller's query.
package match

import (
	"log/slog"
	"sort"
	"time"

	"github.com/sydlexius/medley/internal/event"
	"github.com/sydlexius/medley/internal/media"
)

const (
	// artistCutoff is the hard floor for the best single-artist similarity.
	// A candidate at or below it is discarded outright; this keeps covers,
	// tributes and bootlegs out regardless of how well the title matches.
	artistCutoff = 500

	// acceptPercent is the confidence a top candidate must strictly exceed.
	acceptPercent = 30.0

	// baseMaxScore is the ceiling with only artist and title contributing.
	baseMaxScore = 2000

	// exactBonus rewards agreement on a boolean or enum attribute;
	// fullRatio is the ceiling of one similarity term and doubles as the
	// release-year bonus for collection queries.
	exactBonus = 500
	fullRatio  = 1000
)

// Match is the outcome of one filter invocation. Record is nil when no
// candidate cleared the confidence threshold; Confidence and Elapsed are
// populated either way.
type Match struct {
	Record     *media.Record `json:"record,omitempty"`
	Confidence float64       `json:"confidence"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Matched reports whether a concrete candidate was selected.
func (m *Match) Matched() bool { return m != nil && m.Record != nil }

// Filter scores raw provider candidates against a query and picks the best.
type Filter struct {
	logger *slog.Logger
	bus    *event.Bus
}

// NewFilter creates a Filter. bus may be nil to disable diagnostics.
func NewFilter(logger *slog.Logger, bus *event.Bus) *Filter {
	return &Filter{
		logger: logger.With(slog.String("component", "filter")),
		bus:    bus,
	}
}

type scored struct {
	record *media.Record
	score  int
}

// BestTrack selects the best song candidate. Optional query attributes
// (collection title, explicitness, song kind) contribute bonus terms and
// raise the score ceiling whether or not any candidate matches them.
func (f *Filter) BestTrack(query media.Query, candidates []*media.Record) *Match {
	return f.best(query, candidates, func(q media.Query, c *media.Record, s *int, max *int) {
		if q.Collection != "" {
			*max += fullRatio
			if c.Collection != nil {
				*s += Ratio(Normalize(q.Collection), Normalize(c.Collection.Title))
			}
		}
		if q.Explicit != nil {
			*max += exactBonus
			if c.Explicit != nil && *q.Explicit == *c.Explicit {
				*s += exactBonus
			}
		}
		if q.Kind != "" {
			*max += exactBonus
			if c.Kind != "" && q.Kind == c.Kind {
				*s += exactBonus
			}
		}
	})
}

// BestVideo selects the best music video candidate. Only explicitness
// contributes a bonus term beyond artist and title.
func (f *Filter) BestVideo(query media.Query, candidates []*media.Record) *Match {
	return f.best(query, candidates, func(q media.Query, c *media.Record, s *int, max *int) {
		if q.Explicit != nil {
			*max += exactBonus
			if c.Explicit != nil && *q.Explicit == *c.Explicit {
				*s += exactBonus
			}
		}
	})
}

// BestAlbum selects the best collection candidate. A supplied release year
// contributes an exact-match bonus.
func (f *Filter) BestAlbum(query media.Query, candidates []*media.Record) *Match {
	return f.best(query, candidates, func(q media.Query, c *media.Record, s *int, max *int) {
		if q.Collection != "" {
			*max += fullRatio
			if c.Collection != nil {
				*s += Ratio(Normalize(q.Collection), Normalize(c.Collection.Title))
			}
		}
		if q.Year != 0 {
			*max += fullRatio
			if c.ReleaseYear != 0 && q.Year == c.ReleaseYear {
				*s += fullRatio
			}
		}
	})
}

// best runs the shared scoring loop. extra adds kind-specific bonus terms;
// the max-score ceiling it computes depends only on the query, so it is
// identical across candidates within one invocation.
func (f *Filter) best(query media.Query, candidates []*media.Record, extra func(media.Query, *media.Record, *int, *int)) *Match {
	start := time.Now()

	if len(candidates) == 0 {
		return f.noMatch(query, 0.0, start)
	}

	queryArtist := Normalize(query.PrimaryArtist())
	queryTitle := Normalize(query.Title)

	maxScore := baseMaxScore
	// Resolve the ceiling once from the query alone; a discarded candidate
	// must not change it.
	{
		probe := candidates[0]
		dummy := 0
		extra(query, probe, &dummy, &maxScore)
	}

	var survivors []scored
	for _, c := range candidates {
		artistBest := 0
		for _, a := range c.Artists {
			if r := Ratio(queryArtist, Normalize(a.Name)); r > artistBest {
				artistBest = r
			}
		}
		if artistBest <= artistCutoff {
			continue
		}

		score := artistBest
		score += Ratio(queryTitle, Normalize(StripFeaturing(c.Title)))

		ceiling := 0 // ceiling already resolved above; discard this copy
		extra(query, c, &score, &ceiling)

		survivors = append(survivors, scored{record: c, score: score})
	}

	if len(survivors) == 0 {
		return f.noMatch(query, 0.0, start)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].score > survivors[j].score
	})

	top := survivors[0]
	confidence := 100 * float64(top.score) / float64(maxScore)
	if confidence <= acceptPercent {
		return f.noMatch(query, confidence, start)
	}

	elapsed := time.Since(start)
	prov := top.record.Provenance[top.record.OriginService]
	prov.Confidence = confidence
	if prov.ProcessingTime == 0 {
		prov.ProcessingTime = elapsed
	}
	top.record.SetProvenance(top.record.OriginService, prov)

	return &Match{Record: top.record, Confidence: confidence, Elapsed: elapsed}
}

// noMatch builds the explicit no-confident-match outcome and emits a
// diagnostic event carrying the query and the achieved confidence.
func (f *Filter) noMatch(query media.Query, confidence float64, start time.Time) *Match {
	elapsed := time.Since(start)

	f.logger.Debug("no confident match",
		slog.String("artist", query.PrimaryArtist()),
		slog.String("title", query.Title),
		slog.Float64("confidence", confidence))

	if f.bus != nil {
		f.bus.Publish(event.Event{
			Type: event.MatchRejected,
			Data: map[string]any{
				"artist":     query.PrimaryArtist(),
				"title":      query.Title,
				"confidence": confidence,
			},
		})
	}

	return &Match{Confidence: confidence, Elapsed: elapsed}
}
