package itunes

// searchResponse is the envelope for both /search and /lookup calls.
type searchResponse struct {
	ResultCount int          `json:"resultCount"`
	Results     []resultItem `json:"results"`
}

type resultItem struct {
	WrapperType            string `json:"wrapperType"`
	Kind                   string `json:"kind"`
	TrackID                int64  `json:"trackId"`
	TrackName              string `json:"trackName"`
	TrackViewURL           string `json:"trackViewUrl"`
	TrackExplicitness      string `json:"trackExplicitness"`
	TrackTimeMillis        int    `json:"trackTimeMillis"`
	ArtistID               int64  `json:"artistId"`
	ArtistName             string `json:"artistName"`
	ArtistViewURL          string `json:"artistViewUrl"`
	CollectionID           int64  `json:"collectionId"`
	CollectionName         string `json:"collectionName"`
	CollectionViewURL      string `json:"collectionViewUrl"`
	CollectionExplicitness string `json:"collectionExplicitness"`
	ArtworkURL100          string `json:"artworkUrl100"`
	ReleaseDate            string `json:"releaseDate"`
	PrimaryGenreName       string `json:"primaryGenreName"`
}
