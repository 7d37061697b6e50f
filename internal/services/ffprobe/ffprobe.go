package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

// Locator finds the materialized local copy of a video.
type Locator interface {
	Lookup(id domain.VideoID) (string, bool)
}

// Prober measures durations of locally cached videos with ffprobe. It only
// answers for videos that already have a local copy.
type Prober struct {
	binary  string
	locator Locator
}

func New(binary string, locator Locator) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	return &Prober{binary: bin, locator: locator}
}

func (p *Prober) Name() string { return "ffprobe" }

func (p *Prober) ProbeDuration(ctx context.Context, id domain.VideoID) (int64, error) {
	if p.locator == nil {
		return 0, fmt.Errorf("%w: no local cache configured", domain.ErrProbeFailed)
	}
	path, ok := p.locator.Lookup(id)
	if !ok {
		return 0, fmt.Errorf("%w: no local copy of %s", domain.ErrProbeFailed, id)
	}
	return p.ProbeFile(ctx, path)
}

// ProbeFile returns the container duration of the file at filePath in whole
// seconds.
func (p *Prober) ProbeFile(ctx context.Context, filePath string) (int64, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return 0, errors.New("file path is required")
	}
	return p.runProbe(ctx, []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	})
}

const maxProbeTimeout = 30 * time.Second

func (p *Prober) runProbe(ctx context.Context, args []string) (int64, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, maxProbeTimeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, p.binary, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return 0, fmt.Errorf("%w: ffprobe failed: %v", domain.ErrProbeFailed, err)
		}
		return 0, fmt.Errorf("%w: ffprobe failed: %v: %s", domain.ErrProbeFailed, err, msg)
	}

	seconds, err := parseDuration(stdout.Bytes())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrProbeFailed, err)
	}
	return seconds, nil
}

type probePayload struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseDuration(data []byte) (int64, error) {
	var payload probePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("ffprobe output parse failed: %w", err)
	}
	raw := strings.TrimSpace(payload.Format.Duration)
	if raw == "" || raw == "N/A" {
		return 0, errors.New("ffprobe reported no duration")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 || math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	return int64(math.Round(value)), nil
}
