package ffprobe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

type mapLocator map[domain.VideoID]string

func (m mapLocator) Lookup(id domain.VideoID) (string, bool) {
	path, ok := m[id]
	return path, ok
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{"rounds down", `{"format":{"duration":"212.40"}}`, 212, false},
		{"rounds up", `{"format":{"duration":"59.6"}}`, 60, false},
		{"missing", `{"format":{}}`, 0, true},
		{"not available", `{"format":{"duration":"N/A"}}`, 0, true},
		{"zero", `{"format":{"duration":"0"}}`, 0, true},
		{"garbage", `not json`, 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDuration([]byte(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestProbeDurationWithoutLocalCopy(t *testing.T) {
	p := New("", mapLocator{})
	_, err := p.ProbeDuration(context.Background(), "dQw4w9WgXcQ")
	if !errors.Is(err, domain.ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}
	if p.Name() != "ffprobe" {
		t.Fatalf("Name = %q", p.Name())
	}
}

func TestProbeFileEmptyPath(t *testing.T) {
	p := New("", nil)
	if _, err := p.ProbeFile(context.Background(), "  "); err == nil || err.Error() != "file path is required" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProbeDurationRunsBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\necho '{\"format\":{\"duration\":\"125.2\"}}'\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	media := filepath.Join(dir, "dQw4w9WgXcQ.mp4")
	if err := os.WriteFile(media, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New(bin, mapLocator{"dQw4w9WgXcQ": media})
	got, err := p.ProbeDuration(context.Background(), "dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("ProbeDuration: %v", err)
	}
	if got != 125 {
		t.Fatalf("got %d, want 125", got)
	}
}

func TestProbeBinaryFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes require a POSIX shell")
	}
	bin := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	p := New(bin, nil)
	if _, err := p.ProbeFile(context.Background(), "/tmp/whatever.mp4"); !errors.Is(err, domain.ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}
}
