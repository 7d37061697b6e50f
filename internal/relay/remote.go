package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	platformOrigin   = "https://www.youtube.com"
)

// HTTPSource reads byte windows from a remote locator with ranged GETs.
type HTTPSource struct {
	client    *http.Client
	userAgent string
}

type HTTPSourceOption func(*HTTPSource)

func WithHTTPClient(client *http.Client) HTTPSourceOption {
	return func(s *HTTPSource) {
		if client != nil {
			s.client = client
		}
	}
}

func WithUserAgent(ua string) HTTPSourceOption {
	return func(s *HTTPSource) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

func NewHTTPSource(opts ...HTTPSourceOption) *HTTPSource {
	s := &HTTPSource{
		client: &http.Client{
			Transport: otelhttp.NewTransport(&http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConnsPerHost:   16,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: 15 * time.Second,
			}),
		},
		userAgent: DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Open(ctx context.Context, desc domain.MediaSourceDescriptor, window domain.ByteRange) (*Opened, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.Locator, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Origin", platformOrigin)
	req.Header.Set("Referer", platformOrigin+"/")
	req.Header.Set("Range", window.String())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return openPartial(resp, window)
	case http.StatusOK:
		return openFull(resp, window)
	case http.StatusRequestedRangeNotSatisfiable:
		drain(resp.Body)
		_, _, total, perr := parseContentRange(resp.Header.Get("Content-Range"))
		if perr == nil && total > 0 {
			return nil, &UnsatisfiableError{Total: total}
		}
		return nil, ErrRangeNotSatisfiable
	case http.StatusForbidden, http.StatusGone, http.StatusNotFound:
		drain(resp.Body)
		return nil, fmt.Errorf("%w: upstream status %d", ErrSourceExpired, resp.StatusCode)
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("%w: upstream status %d", ErrSourceUnavailable, resp.StatusCode)
	}
}

func openPartial(resp *http.Response, window domain.ByteRange) (*Opened, error) {
	header := resp.Header.Get("Content-Range")
	if header == "" {
		return openUnframed(resp, window)
	}
	start, end, total, err := parseContentRange(header)
	if err != nil || start < 0 || start != window.Start {
		drain(resp.Body)
		return nil, fmt.Errorf("%w: unexpected content-range %q", ErrSourceUnavailable, header)
	}
	if !window.OpenEnded() && end > window.End {
		end = window.End
	}
	return &Opened{
		Body:  limitBody(resp.Body, end-start+1),
		Start: start,
		End:   end,
		Total: total,
		Exact: true,
	}, nil
}

// openFull handles an upstream that ignored the Range header. Only a window
// starting at zero can be served from a full body.
func openFull(resp *http.Response, window domain.ByteRange) (*Opened, error) {
	if window.Start != 0 {
		drain(resp.Body)
		return nil, fmt.Errorf("%w: upstream ignored range", ErrSourceUnavailable)
	}
	total := resp.ContentLength
	if total <= 0 {
		return openUnframed(resp, window)
	}
	end := total - 1
	if !window.OpenEnded() && window.End < end {
		end = window.End
	}
	return &Opened{
		Body:  limitBody(resp.Body, end+1),
		Start: 0,
		End:   end,
		Total: total,
		Exact: true,
	}, nil
}

// openUnframed serves a body with no usable framing. The requested window is
// the upper bound and the actual length is only known once the body ends.
func openUnframed(resp *http.Response, window domain.ByteRange) (*Opened, error) {
	if window.OpenEnded() {
		drain(resp.Body)
		return nil, fmt.Errorf("%w: unbounded response without framing", ErrSourceUnavailable)
	}
	if resp.ContentLength > 0 {
		end := window.Start + resp.ContentLength - 1
		if end > window.End {
			end = window.End
		}
		return &Opened{
			Body:  limitBody(resp.Body, end-window.Start+1),
			Start: window.Start,
			End:   end,
			Exact: true,
		}, nil
	}
	return &Opened{
		Body:  limitBody(resp.Body, window.Len()),
		Start: window.Start,
		End:   window.End,
	}, nil
}

func limitBody(body io.ReadCloser, n int64) io.ReadCloser {
	return readCloser{Reader: io.LimitReader(body, n), Closer: body}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4<<10))
	_ = body.Close()
}
