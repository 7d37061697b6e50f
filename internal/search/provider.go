package search

import (
	"context"
	"fmt"

	"github.com/raitonoberu/ytsearch"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

// pageFetcher returns the videos of one result page. Successive calls walk
// the continuation pages.
type pageFetcher func() ([]domain.SearchResult, error)

// YouTubeProvider searches the platform through its web search endpoint.
type YouTubeProvider struct {
	retry   RetryConfig
	newPage func(query string) pageFetcher
}

func NewYouTubeProvider() *YouTubeProvider {
	return &YouTubeProvider{retry: DefaultRetryConfig(), newPage: ytsearchPages}
}

func (p *YouTubeProvider) Name() string { return "youtube" }

// Search returns up to request.Limit videos of page request.Page (1-based).
func (p *YouTubeProvider) Search(ctx context.Context, request domain.SearchRequest) ([]domain.SearchResult, error) {
	page := request.Page
	if page < 1 {
		page = 1
	}
	next := p.newPage(request.Keyword)

	var results []domain.SearchResult
	for i := 0; i < page; i++ {
		var pageResults []domain.SearchResult
		err := RetryWithBackoff(ctx, p.retry, func() error {
			var fetchErr error
			pageResults, fetchErr = fetchWithContext(ctx, next)
			return fetchErr
		})
		if err != nil {
			return nil, fmt.Errorf("search page %d: %w", i+1, err)
		}
		if len(pageResults) == 0 {
			return []domain.SearchResult{}, nil
		}
		results = pageResults
	}

	if request.Limit > 0 && len(results) > request.Limit {
		results = results[:request.Limit]
	}
	return results, nil
}

// fetchWithContext runs a fetch that cannot itself be cancelled and stops
// waiting for it when ctx ends.
func fetchWithContext(ctx context.Context, fetch pageFetcher) ([]domain.SearchResult, error) {
	type outcome struct {
		results []domain.SearchResult
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := fetch()
		done <- outcome{results: results, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.results, out.err
	}
}

func ytsearchPages(query string) pageFetcher {
	search := ytsearch.VideoSearch(query)
	started := false
	return func() ([]domain.SearchResult, error) {
		if started && !search.NextExists() {
			return nil, nil
		}
		started = true
		page, err := search.Next()
		if err != nil {
			return nil, err
		}
		items := make([]domain.SearchResult, 0, len(page.Videos))
		for _, video := range page.Videos {
			if video == nil || video.ID == "" {
				continue
			}
			items = append(items, toSearchResult(video))
		}
		return items, nil
	}
}

func toSearchResult(video *ytsearch.VideoItem) domain.SearchResult {
	thumbnail := ""
	if len(video.Thumbnails) > 0 {
		thumbnail = video.Thumbnails[0].URL
	}
	return domain.SearchResult{
		ID:              domain.VideoID(video.ID),
		Title:           video.Title,
		Channel:         video.Channel.Title,
		Thumbnail:       thumbnail,
		DurationSeconds: int64(video.Duration),
		Views:           int64(video.ViewCount),
		UploadDate:      video.PublishedTime,
	}
}
