package watchpage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/metrics"
)

const (
	defaultMaxTimeout = 60 * time.Second
	destroyTimeout    = 5 * time.Second
	maxSolverResponse = 16 << 20
)

// BrowserProbe renders the watch page in a FlareSolverr browser session and
// reads the duration from it. Every call owns its own session, which is
// destroyed on all exit paths.
type BrowserProbe struct {
	baseURL    string
	client     *http.Client
	maxTimeout time.Duration
	logger     *slog.Logger
}

type BrowserConfig struct {
	BaseURL    string
	Client     *http.Client
	MaxTimeout time.Duration
	Logger     *slog.Logger
}

func NewBrowserProbe(cfg BrowserConfig) *BrowserProbe {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL != "" && !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	maxTimeout := cfg.MaxTimeout
	if maxTimeout <= 0 {
		maxTimeout = defaultMaxTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserProbe{baseURL: baseURL, client: client, maxTimeout: maxTimeout, logger: logger}
}

func (p *BrowserProbe) Name() string { return "browser" }

func (p *BrowserProbe) Enabled() bool { return p.baseURL != "" }

type solverRequest struct {
	Cmd        string `json:"cmd"`
	Session    string `json:"session,omitempty"`
	URL        string `json:"url,omitempty"`
	MaxTimeout int64  `json:"maxTimeout,omitempty"`
}

type solverResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Session  string `json:"session"`
	Solution struct {
		URL      string `json:"url"`
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

func (p *BrowserProbe) ProbeDuration(ctx context.Context, id domain.VideoID) (int64, error) {
	html, err := p.FetchPage(ctx, id.WatchURL())
	if err != nil {
		return 0, err
	}
	return ParseDuration(html)
}

// FetchPage loads pageURL in a fresh browser session and returns the
// rendered HTML.
func (p *BrowserProbe) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if !p.Enabled() {
		return "", errors.New("flaresolverr is not configured")
	}
	started := time.Now()
	defer func() {
		metrics.BrowserSessionDuration.Observe(time.Since(started).Seconds())
	}()

	sessionID, err := p.createSession(ctx)
	if err != nil {
		return "", err
	}
	defer p.destroySession(ctx, sessionID)

	timeout := p.maxTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	resp, err := p.call(ctx, solverRequest{
		Cmd:        "request.get",
		Session:    sessionID,
		URL:        pageURL,
		MaxTimeout: timeout.Milliseconds(),
	})
	if err != nil {
		return "", err
	}
	if resp.Solution.Status >= http.StatusBadRequest {
		return "", fmt.Errorf("watch page returned status %d", resp.Solution.Status)
	}
	return resp.Solution.Response, nil
}

func (p *BrowserProbe) createSession(ctx context.Context) (string, error) {
	name := "ytlinks-" + uuid.NewString()
	resp, err := p.call(ctx, solverRequest{Cmd: "sessions.create", Session: name})
	if err != nil {
		return "", fmt.Errorf("create browser session: %w", err)
	}
	if resp.Session != "" {
		return resp.Session, nil
	}
	return name, nil
}

func (p *BrowserProbe) destroySession(ctx context.Context, sessionID string) {
	destroyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), destroyTimeout)
	defer cancel()
	if _, err := p.call(destroyCtx, solverRequest{Cmd: "sessions.destroy", Session: sessionID}); err != nil {
		p.logger.Warn("browser session destroy failed",
			slog.String("session", sessionID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *BrowserProbe) call(ctx context.Context, payload solverRequest) (solverResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return solverResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"v1", bytes.NewReader(body))
	if err != nil {
		return solverResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return solverResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return solverResponse{}, fmt.Errorf("flaresolverr %s failed (status %d): %s", payload.Cmd, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	var out solverResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSolverResponse)).Decode(&out); err != nil {
		return solverResponse{}, fmt.Errorf("decode flaresolverr response: %w", err)
	}
	if !strings.EqualFold(out.Status, "ok") {
		return solverResponse{}, fmt.Errorf("flaresolverr %s: %s", payload.Cmd, strings.TrimSpace(out.Message))
	}
	return out, nil
}
