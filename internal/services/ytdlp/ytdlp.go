package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

const (
	defaultInfoTimeout     = 30 * time.Second
	defaultDownloadTimeout = 10 * time.Minute
	waitDelay              = 5 * time.Second
)

// Client wraps the yt-dlp executable. It serves both as the metadata
// provider and as the local cache materializer.
type Client struct {
	binary          string
	infoTimeout     time.Duration
	downloadTimeout time.Duration
	extraArgs       []string
}

type Config struct {
	Binary          string
	InfoTimeout     time.Duration
	DownloadTimeout time.Duration
	// ExtraArgs are appended to every invocation (proxy, cookies file).
	ExtraArgs []string
}

func New(cfg Config) *Client {
	bin := strings.TrimSpace(cfg.Binary)
	if bin == "" {
		bin = "yt-dlp"
	}
	infoTimeout := cfg.InfoTimeout
	if infoTimeout <= 0 {
		infoTimeout = defaultInfoTimeout
	}
	downloadTimeout := cfg.DownloadTimeout
	if downloadTimeout <= 0 {
		downloadTimeout = defaultDownloadTimeout
	}
	return &Client{
		binary:          bin,
		infoTimeout:     infoTimeout,
		downloadTimeout: downloadTimeout,
		extraArgs:       append([]string(nil), cfg.ExtraArgs...),
	}
}

// VideoInfo runs `yt-dlp -J` and parses the video's metadata and formats.
func (c *Client) VideoInfo(ctx context.Context, id domain.VideoID) (domain.VideoMetadata, error) {
	args := []string{
		"-J",
		"--no-playlist",
		"--no-warnings",
		"--no-cache-dir",
	}
	args = append(args, c.extraArgs...)
	args = append(args, id.WatchURL())

	stdout, stderr, err := c.run(ctx, c.infoTimeout, args)
	if err != nil {
		return domain.VideoMetadata{}, classify(err, stderr, domain.ErrResolutionFailed)
	}
	meta, err := parseInfo(stdout)
	if err != nil {
		return domain.VideoMetadata{}, fmt.Errorf("%w: yt-dlp output parse failed: %v", domain.ErrResolutionFailed, err)
	}
	if meta.ID == "" {
		meta.ID = id
	}
	meta.FetchedAt = time.Now().UTC()
	return meta, nil
}

// Download materializes the best muxed format at or below qualityCeiling into
// destPath. destPath is removed when the download fails.
func (c *Client) Download(ctx context.Context, id domain.VideoID, qualityCeiling int, destPath string) error {
	path := strings.TrimSpace(destPath)
	if path == "" {
		return errors.New("destination path is required")
	}
	args := []string{
		"-f", FormatSelector(qualityCeiling),
		"--no-playlist",
		"--no-part",
		"--no-warnings",
		"--quiet",
		"--no-cache-dir",
		"--force-overwrites",
		"-o", path,
	}
	args = append(args, c.extraArgs...)
	args = append(args, id.WatchURL())

	_, stderr, err := c.run(ctx, c.downloadTimeout, args)
	if err != nil {
		_ = os.Remove(path)
		return classify(err, stderr, domain.ErrDownloadFailed)
	}
	info, statErr := os.Stat(path)
	if statErr != nil || info.Size() == 0 {
		_ = os.Remove(path)
		return fmt.Errorf("%w: yt-dlp produced no output", domain.ErrDownloadFailed)
	}
	return nil
}

// FormatSelector prefers a single-file mp4 with both tracks, then any
// single-file format with both tracks, within the height ceiling.
func FormatSelector(qualityCeiling int) string {
	if qualityCeiling <= 0 {
		qualityCeiling = domain.DefaultQualityCeiling
	}
	h := strconv.Itoa(qualityCeiling)
	return "best[height<=" + h + "][ext=mp4][vcodec!=none][acodec!=none]" +
		"/best[height<=" + h + "][vcodec!=none][acodec!=none]" +
		"/best[height<=" + h + "]"
}

func (c *Client) run(ctx context.Context, timeout time.Duration, args []string) ([]byte, string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.binary, args...)
	cmd.WaitDelay = waitDelay

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("yt-dlp timed out: %w", ctx.Err())
	}
	return stdout.Bytes(), strings.TrimSpace(stderr.String()), err
}

// classify maps yt-dlp's failure text onto the platform verdicts; anything
// else is reported as fallback.
func classify(runErr error, stderr string, fallback error) error {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "private video"),
		strings.Contains(lower, "video is private"):
		return fmt.Errorf("%w: %s", domain.ErrForbidden, lastLine(stderr))
	case strings.Contains(lower, "confirm your age"),
		strings.Contains(lower, "age-restricted"),
		strings.Contains(lower, "age restricted"):
		return fmt.Errorf("%w: %s", domain.ErrForbidden, lastLine(stderr))
	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "not available"),
		strings.Contains(lower, "has been removed"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "not found"):
		return fmt.Errorf("%w: %s", domain.ErrNotFound, lastLine(stderr))
	}
	if stderr == "" {
		return fmt.Errorf("%w: %v", fallback, runErr)
	}
	return fmt.Errorf("%w: %v: %s", fallback, runErr, lastLine(stderr))
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndex(s, "\n"); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
