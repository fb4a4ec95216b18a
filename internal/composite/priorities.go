package composite

import (
	"context"

	"github.com/sydlexius/medley/internal/media"
)

// FieldOrder maps a field name to its service priority order,
// most-trusted first.
type FieldOrder map[string][]media.ServiceName

// Priorities holds the per-field service orders for one entity kind.
// Fields without an explicit entry fall back to the General order.
type Priorities struct {
	General []media.ServiceName `json:"general"`
	Fields  FieldOrder          `json:"fields,omitempty"`
}

// Order returns the service order for a field.
func (p Priorities) Order(field string) []media.ServiceName {
	if o, ok := p.Fields[field]; ok {
		return o
	}
	return p.General
}

// PrioritySource supplies priority tables to the Composer. The tables are
// product configuration, not behavior; they must be loadable before the
// first composition runs.
type PrioritySource interface {
	Priorities(ctx context.Context, kind media.Kind) (Priorities, error)
}

// StaticPriorities is a PrioritySource backed by a fixed in-memory table.
type StaticPriorities map[media.Kind]Priorities

// Priorities returns the table for kind, falling back to the track table.
func (s StaticPriorities) Priorities(_ context.Context, kind media.Kind) (Priorities, error) {
	if p, ok := s[kind]; ok {
		return p, nil
	}
	return s[media.KindTrack], nil
}

// DefaultPriorities returns the shipped priority tables. The streaming
// service leads for audio analysis fields (bpm, key, duration), the retail
// store for genre, the knowledge service for editorial fields (description,
// release date), and the video platform for music videos.
func DefaultPriorities() StaticPriorities {
	return StaticPriorities{
		media.KindTrack: {
			General: []media.ServiceName{media.ServiceSpotify, media.ServiceITunes, media.ServiceYouTube, media.ServiceGenius},
			Fields: FieldOrder{
				"genre":        {media.ServiceITunes, media.ServiceSpotify, media.ServiceGenius},
				"description":  {media.ServiceGenius, media.ServiceYouTube},
				"release_date": {media.ServiceGenius, media.ServiceSpotify, media.ServiceITunes},
				"bpm":          {media.ServiceSpotify, media.ServiceGenius},
				"musical_key":  {media.ServiceSpotify, media.ServiceGenius},
				"duration_ms":  {media.ServiceSpotify, media.ServiceITunes, media.ServiceYouTube},
				"explicit":     {media.ServiceSpotify, media.ServiceITunes, media.ServiceYouTube},
			},
		},
		media.KindMusicVideo: {
			General: []media.ServiceName{media.ServiceYouTube, media.ServiceSpotify, media.ServiceITunes},
			Fields: FieldOrder{
				"explicit":    {media.ServiceITunes, media.ServiceSpotify, media.ServiceYouTube},
				"description": {media.ServiceYouTube, media.ServiceGenius},
				"genre":       {media.ServiceITunes, media.ServiceSpotify},
			},
		},
		media.KindAlbum: {
			General: []media.ServiceName{media.ServiceSpotify, media.ServiceITunes, media.ServiceGenius},
			Fields: FieldOrder{
				"genre":        {media.ServiceITunes, media.ServiceSpotify},
				"description":  {media.ServiceGenius},
				"release_date": {media.ServiceGenius, media.ServiceSpotify, media.ServiceITunes},
			},
		},
		media.KindArtist: {
			General: []media.ServiceName{media.ServiceSpotify, media.ServiceITunes, media.ServiceYouTube, media.ServiceGenius},
		},
		media.KindKnowledge: {
			General: []media.ServiceName{media.ServiceGenius, media.ServiceSpotify, media.ServiceITunes},
		},
	}
}
