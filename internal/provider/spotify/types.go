package spotify

type searchResponse struct {
	Tracks *trackPage `json:"tracks"`
	Albums *albumPage `json:"albums"`
}

type trackPage struct {
	Items []trackItem `json:"items"`
}

type albumPage struct {
	Items []albumItem `json:"items"`
}

type trackItem struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Explicit     bool         `json:"explicit"`
	DurationMS   int          `json:"duration_ms"`
	ExternalURLs externalURLs `json:"external_urls"`
	Artists      []artistItem `json:"artists"`
	Album        *albumItem   `json:"album"`
}

type albumItem struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name"`
	AlbumType            string       `json:"album_type"`
	ReleaseDate          string       `json:"release_date"`
	ReleaseDatePrecision string       `json:"release_date_precision"`
	TotalTracks          int          `json:"total_tracks"`
	Genres               []string     `json:"genres"`
	ExternalURLs         externalURLs `json:"external_urls"`
	Images               []imageItem  `json:"images"`
	Artists              []artistItem `json:"artists"`
}

type artistItem struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	ExternalURLs externalURLs `json:"external_urls"`
}

type imageItem struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}
