package watchpage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

const maxPageBytes = 8 << 20

// HTTPProbe fetches the watch page directly, without a browser.
type HTTPProbe struct {
	client    *http.Client
	userAgent string
	pageURL   func(domain.VideoID) string
}

func NewHTTPProbe(client *http.Client, userAgent string) *HTTPProbe {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPProbe{client: client, userAgent: strings.TrimSpace(userAgent), pageURL: domain.VideoID.WatchURL}
}

func (p *HTTPProbe) Name() string { return "watchpage" }

func (p *HTTPProbe) ProbeDuration(ctx context.Context, id domain.VideoID) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pageURL(id), nil)
	if err != nil {
		return 0, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// Skips the EU consent interstitial.
	req.AddCookie(&http.Cookie{Name: "CONSENT", Value: "YES+1"})

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, fmt.Errorf("%w: watch page status 404", domain.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("watch page status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return 0, err
	}
	return ParseDuration(string(body))
}
