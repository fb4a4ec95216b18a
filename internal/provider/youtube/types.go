package youtube

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ID      videoID `json:"id"`
	Snippet snippet `json:"snippet"`
}

type videoID struct {
	VideoID string `json:"videoId"`
}

type videosResponse struct {
	Items []videoItem `json:"items"`
}

type videoItem struct {
	ID             string          `json:"id"`
	Snippet        snippet         `json:"snippet"`
	ContentDetails *contentDetails `json:"contentDetails"`
}

type snippet struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ChannelTitle string     `json:"channelTitle"`
	PublishedAt  string     `json:"publishedAt"`
	Thumbnails   thumbnails `json:"thumbnails"`
}

type thumbnails struct {
	Default *thumbnail `json:"default"`
	High    *thumbnail `json:"high"`
	Maxres  *thumbnail `json:"maxres"`
}

type thumbnail struct {
	URL string `json:"url"`
}

type contentDetails struct {
	Duration string `json:"duration"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
