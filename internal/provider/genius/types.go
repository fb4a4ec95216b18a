package genius

type searchResponse struct {
	Response struct {
		Hits []hit `json:"hits"`
	} `json:"response"`
}

type hit struct {
	Type   string     `json:"type"`
	Result songResult `json:"result"`
}

type songResponse struct {
	Response struct {
		Song songDetail `json:"song"`
	} `json:"response"`
}

type songResult struct {
	ID                       int64          `json:"id"`
	Title                    string         `json:"title"`
	FullTitle                string         `json:"full_title"`
	URL                      string         `json:"url"`
	SongArtImageURL          string         `json:"song_art_image_url"`
	SongArtImageThumbnailURL string         `json:"song_art_image_thumbnail_url"`
	ReleaseDateComponents    *dateComponent `json:"release_date_components"`
	PrimaryArtist            artistResult   `json:"primary_artist"`
}

type songDetail struct {
	songResult
	ReleaseDate string `json:"release_date"`
	Description *struct {
		Plain string `json:"plain"`
	} `json:"description"`
	Album *struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"album"`
}

type artistResult struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	ImageURL string `json:"image_url"`
}

type dateComponent struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}
