package domain

type SearchRequest struct {
	Keyword string
	Page    int
	Limit   int
}

type SearchResult struct {
	ID              VideoID `json:"id"`
	Title           string  `json:"title"`
	Channel         string  `json:"channel"`
	Views           int64   `json:"views"`
	UploadDate      string  `json:"uploadDate"`
	Thumbnail       string  `json:"thumbnail"`
	DurationSeconds int64   `json:"durationSeconds"`
}
