package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

var (
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceExpired marks a remote locator the platform no longer honors.
	// The descriptor should be invalidated and resolved again.
	ErrSourceExpired = errors.New("source locator expired")
)

// Opened is a source bound to a concrete byte window.
type Opened struct {
	Body io.ReadCloser
	// Start and End are the inclusive window the body covers.
	Start int64
	End   int64
	// Total is 0 when the full size is unknown.
	Total int64
	// Exact is false when End is only the requested bound and the body may
	// be shorter.
	Exact bool
}

func (o *Opened) Len() int64 {
	return o.End - o.Start + 1
}

// Source opens a byte window of a resolved media source.
type Source interface {
	Open(ctx context.Context, desc domain.MediaSourceDescriptor, window domain.ByteRange) (*Opened, error)
}

// FileSource serves fully materialized local copies.
type FileSource struct{}

func (FileSource) Open(_ context.Context, desc domain.MediaSourceDescriptor, window domain.ByteRange) (*Opened, error) {
	file, err := os.Open(desc.Locator)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	total := info.Size()
	if total <= 0 {
		_ = file.Close()
		return nil, fmt.Errorf("%w: empty file", ErrSourceUnavailable)
	}

	bounded, err := Window(window, total, window.Len())
	if err != nil {
		_ = file.Close()
		return nil, err
	}
	if _, err := file.Seek(bounded.Start, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: seek: %v", ErrSourceUnavailable, err)
	}

	return &Opened{
		Body: readCloser{
			Reader: io.LimitReader(file, bounded.Len()),
			Closer: file,
		},
		Start: bounded.Start,
		End:   bounded.End,
		Total: total,
		Exact: true,
	}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
