package relay

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

var (
	ErrRangeRequired       = errors.New("range header is required")
	ErrInvalidRange        = errors.New("invalid range")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// UnsatisfiableError reports a start offset past the end of a source of
// known size.
type UnsatisfiableError struct {
	Total int64
}

func (e *UnsatisfiableError) Error() string {
	return fmt.Sprintf("range not satisfiable for size %d", e.Total)
}

func (e *UnsatisfiableError) Is(target error) bool {
	return target == ErrRangeNotSatisfiable
}

// ParseRange parses a single "bytes=<start>-[<end>]" window. Multi-range and
// suffix forms are rejected.
func ParseRange(header string) (domain.ByteRange, error) {
	value := strings.TrimSpace(header)
	if value == "" {
		return domain.ByteRange{}, ErrRangeRequired
	}
	if len(value) < len("bytes=") || !strings.EqualFold(value[:len("bytes=")], "bytes=") {
		return domain.ByteRange{}, ErrInvalidRange
	}
	rangeSet := strings.TrimSpace(value[len("bytes="):])
	if rangeSet == "" || strings.Contains(rangeSet, ",") {
		return domain.ByteRange{}, ErrInvalidRange
	}

	startStr, endStr, found := strings.Cut(rangeSet, "-")
	if !found {
		return domain.ByteRange{}, ErrInvalidRange
	}
	startStr = strings.TrimSpace(startStr)
	endStr = strings.TrimSpace(endStr)
	if startStr == "" {
		return domain.ByteRange{}, ErrInvalidRange
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return domain.ByteRange{}, ErrInvalidRange
	}
	if endStr == "" {
		return domain.ByteRange{Start: start, End: -1}, nil
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return domain.ByteRange{}, ErrInvalidRange
	}
	return domain.ByteRange{Start: start, End: end}, nil
}

// Window bounds r against a source. With a known total the end is clamped
// to the last byte and an open end covers at most chunk bytes. With an
// unknown total an open end is bounded to chunk bytes as well; the source
// may still report a shorter window.
func Window(r domain.ByteRange, total, chunk int64) (domain.ByteRange, error) {
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	if total > 0 {
		if r.Start >= total {
			return domain.ByteRange{}, &UnsatisfiableError{Total: total}
		}
		end := r.End
		if r.OpenEnded() {
			end = chunkEnd(r.Start, chunk)
		}
		if end > total-1 {
			end = total - 1
		}
		return domain.ByteRange{Start: r.Start, End: end}, nil
	}
	if r.OpenEnded() {
		return domain.ByteRange{Start: r.Start, End: chunkEnd(r.Start, chunk)}, nil
	}
	return r, nil
}

// chunkEnd is the last offset of a chunk starting at start, saturating at
// math.MaxInt64.
func chunkEnd(start, chunk int64) int64 {
	if start > math.MaxInt64-chunk+1 {
		return math.MaxInt64
	}
	return start + chunk - 1
}

// parseContentRange reads "bytes <start>-<end>/<total|*>" or "bytes */<total>".
// total is 0 when reported as "*".
func parseContentRange(value string) (start, end, total int64, err error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(strings.ToLower(value), "bytes ") {
		return 0, 0, 0, ErrInvalidRange
	}
	rangeSet := strings.TrimSpace(value[len("bytes "):])
	window, size, found := strings.Cut(rangeSet, "/")
	if !found {
		return 0, 0, 0, ErrInvalidRange
	}
	size = strings.TrimSpace(size)
	if size != "*" {
		total, err = strconv.ParseInt(size, 10, 64)
		if err != nil || total < 0 {
			return 0, 0, 0, ErrInvalidRange
		}
	}
	window = strings.TrimSpace(window)
	if window == "*" {
		return -1, -1, total, nil
	}
	startStr, endStr, found := strings.Cut(window, "-")
	if !found {
		return 0, 0, 0, ErrInvalidRange
	}
	start, err = strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 {
		return 0, 0, 0, ErrInvalidRange
	}
	end, err = strconv.ParseInt(strings.TrimSpace(endStr), 10, 64)
	if err != nil || end < start {
		return 0, 0, 0, ErrInvalidRange
	}
	if total > 0 && end >= total {
		return 0, 0, 0, ErrInvalidRange
	}
	return start, end, total, nil
}

func formatContentRange(start, end, total int64) string {
	size := "*"
	if total > 0 {
		size = strconv.FormatInt(total, 10)
	}
	return "bytes " + strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10) + "/" + size
}
