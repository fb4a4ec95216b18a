// Package media defines the canonical record shapes exchanged between
// provider adapters, the candidate filter, and the field compositor.
package media

import "time"

// ServiceName uniquely identifies a catalog service.
type ServiceName string

// Known services. ServiceGlobal is the synthetic origin of composite records.
const (
	ServiceSpotify ServiceName = "spotify"
	ServiceITunes  ServiceName = "itunes"
	ServiceYouTube ServiceName = "youtube"
	ServiceGenius  ServiceName = "genius"
	ServiceGlobal  ServiceName = "medley"
)

// Kind discriminates the media entity a Record describes.
type Kind string

// Known record kinds.
const (
	KindTrack      Kind = "track"
	KindSingle     Kind = "single"
	KindMusicVideo Kind = "music_video"
	KindAlbum      Kind = "album"
	KindEP         Kind = "ep"
	KindArtist     Kind = "artist"
	KindKnowledge  Kind = "knowledge"
)

// Artist is one credited artist on a record.
type Artist struct {
	Name     string                 `json:"name"`
	IDs      map[ServiceName]string `json:"ids,omitempty"`
	URLs     map[ServiceName]string `json:"urls,omitempty"`
	ImageURL string                 `json:"image_url,omitempty"`
}

// Cover holds artwork URLs per service, split by quality.
type Cover struct {
	High map[ServiceName]string `json:"high,omitempty"`
	Low  map[ServiceName]string `json:"low,omitempty"`
}

// Provenance records how one service's contribution was obtained.
type Provenance struct {
	ProcessingTime time.Duration `json:"processing_time"`
	HTTPStatus     int           `json:"http_status,omitempty"`
	Confidence     float64       `json:"confidence"`
}

// Record is a service-sourced description of one piece of media.
// Fresh instances are created per request; nothing is cached or persisted.
type Record struct {
	OriginService   ServiceName                `json:"origin_service"`
	Kind            Kind                       `json:"kind"`
	Title           string                     `json:"title,omitempty"`
	NormalizedTitle string                     `json:"normalized_title,omitempty"`
	Artists         []Artist                   `json:"artists,omitempty"`
	Collection      *Record                    `json:"collection,omitempty"`
	Cover           *Cover                     `json:"cover,omitempty"`
	Explicit        *bool                      `json:"explicit,omitempty"`
	ReleaseYear     int                        `json:"release_year,omitempty"`
	ReleaseDate     string                     `json:"release_date,omitempty"`
	Genre           string                     `json:"genre,omitempty"`
	Description     string                     `json:"description,omitempty"`
	BPM             int                        `json:"bpm,omitempty"`
	MusicalKey      string                     `json:"musical_key,omitempty"`
	DurationMS      int                        `json:"duration_ms,omitempty"`
	URLs            map[ServiceName]string     `json:"external_urls,omitempty"`
	IDs             map[ServiceName]string     `json:"external_ids,omitempty"`
	Provenance      map[ServiceName]Provenance `json:"provenance,omitempty"`
}

// Query is the caller-supplied search intent. It is never mutated by the
// filter or the compositor.
type Query struct {
	Artists    []string `json:"artists"`
	Title      string   `json:"title"`
	Kind       Kind     `json:"kind,omitempty"`
	Collection string   `json:"collection,omitempty"`
	Explicit   *bool    `json:"explicit,omitempty"`
	Year       int      `json:"year,omitempty"`
	Country    string   `json:"country,omitempty"`
}

// PrimaryArtist returns the first artist name, the main match signal.
func (q Query) PrimaryArtist() string {
	if len(q.Artists) == 0 {
		return ""
	}
	return q.Artists[0]
}

// SetProvenance records provenance for a service, allocating the map if needed.
func (r *Record) SetProvenance(svc ServiceName, p Provenance) {
	if r.Provenance == nil {
		r.Provenance = make(map[ServiceName]Provenance, 1)
	}
	r.Provenance[svc] = p
}

// SetURL records an external URL for a service, allocating the map if needed.
func (r *Record) SetURL(svc ServiceName, u string) {
	if u == "" {
		return
	}
	if r.URLs == nil {
		r.URLs = make(map[ServiceName]string, 1)
	}
	r.URLs[svc] = u
}

// SetID records an external ID for a service, allocating the map if needed.
func (r *Record) SetID(svc ServiceName, id string) {
	if id == "" {
		return
	}
	if r.IDs == nil {
		r.IDs = make(map[ServiceName]string, 1)
	}
	r.IDs[svc] = id
}

// Bool returns a pointer to b, for filling tri-state explicit flags.
func Bool(b bool) *bool { return &b }

// AllServiceNames returns all real catalog services in display order.
func AllServiceNames() []ServiceName {
	return []ServiceName{ServiceSpotify, ServiceITunes, ServiceYouTube, ServiceGenius}
}

// DisplayName returns a human-readable name for the service.
func (n ServiceName) DisplayName() string {
	switch n {
	case ServiceSpotify:
		return "Spotify"
	case ServiceITunes:
		return "iTunes"
	case ServiceYouTube:
		return "YouTube"
	case ServiceGenius:
		return "Genius"
	case ServiceGlobal:
		return "Medley"
	default:
		return string(n)
	}
}
