package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
	"github.com/o-sallam/ytlinks-backend/internal/domain/ports"
	"github.com/o-sallam/ytlinks-backend/internal/metrics"
	"github.com/o-sallam/ytlinks-backend/internal/telemetry"
)

const (
	DefaultChunkSize = 1 << 20
	copyBufferSize   = 64 << 10
	defaultMimeType  = "video/mp4"
)

var (
	// ErrClientGone ends a session whose client stopped receiving.
	ErrClientGone = errors.New("client disconnected")
	// ErrStreamFailed ends a session whose source broke after the response
	// headers were sent. The connection must be torn down by the caller.
	ErrStreamFailed = errors.New("stream failed after commit")
)

// Request is one inbound stream request against a resolved source.
type Request struct {
	Source domain.MediaSourceDescriptor
	Range  domain.ByteRange
	// Header carries extra response headers, e.g. X-Video-Duration.
	Header http.Header
}

// Result summarizes a finished session.
type Result struct {
	SessionID string
	State     State
	Start     int64
	End       int64
	Total     int64
	Bytes     int64
	// Committed is true once the 206 status line was written.
	Committed bool
}

// Relay pipes byte windows from resolved sources to HTTP clients.
type Relay struct {
	sources map[domain.SourceKind]Source
	chunk   int64
	events  ports.EventPublisher
	logger  *slog.Logger
}

type Option func(*Relay)

func WithSource(kind domain.SourceKind, source Source) Option {
	return func(r *Relay) {
		if source != nil {
			r.sources[kind] = source
		}
	}
}

func WithChunkSize(n int64) Option {
	return func(r *Relay) {
		if n > 0 {
			r.chunk = n
		}
	}
}

func WithEvents(events ports.EventPublisher) Option {
	return func(r *Relay) { r.events = events }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(opts ...Option) *Relay {
	r := &Relay{
		sources: map[domain.SourceKind]Source{
			domain.SourceLocalFile:    FileSource{},
			domain.SourceRemoteDirect: NewHTTPSource(),
		},
		chunk:  DefaultChunkSize,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) ChunkSize() int64 { return r.chunk }

// Stream serves req to w as a single 206 response. Errors returned with
// Result.Committed false leave w untouched so the caller can write an error
// response. Once committed, ErrClientGone and ErrStreamFailed report how the
// session ended.
func (r *Relay) Stream(ctx context.Context, w http.ResponseWriter, req Request) (Result, error) {
	session := newSession()
	result := Result{SessionID: session.ID, Start: -1, End: -1}
	kind := string(req.Source.Kind)

	ctx, span := telemetry.Tracer().Start(ctx, "relay.stream")
	span.SetAttributes(
		attribute.String("video.id", string(req.Source.VideoID)),
		attribute.String("source.kind", kind),
		attribute.String("session.id", session.ID),
	)
	defer span.End()

	logger := r.logger.With(
		slog.String("videoId", string(req.Source.VideoID)),
		slog.String("sessionId", session.ID),
		slog.String("kind", kind),
	)

	fail := func(err error) (Result, error) {
		_ = session.transition(StateFailed)
		result.State = session.State()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.StreamSessionsTotal.WithLabelValues(kind, result.State.String()).Inc()
		return result, err
	}

	source, ok := r.sources[req.Source.Kind]
	if !ok {
		return fail(fmt.Errorf("%w: no reader for kind %q", ErrSourceUnavailable, kind))
	}

	window, err := Window(req.Range, req.Source.TotalSize, r.chunk)
	if err != nil {
		return fail(err)
	}
	if err := session.transition(StateRangeValidated); err != nil {
		return fail(err)
	}

	opened, err := source.Open(ctx, req.Source, window)
	if err != nil {
		return fail(err)
	}
	defer opened.Body.Close()
	if err := session.transition(StateSourceBound); err != nil {
		return fail(err)
	}
	result.Start, result.End, result.Total = opened.Start, opened.End, opened.Total

	// Closing the body unblocks a pending upstream read on disconnect.
	stop := context.AfterFunc(ctx, func() { _ = opened.Body.Close() })
	defer stop()

	writeHeaders(w.Header(), req, opened)
	if err := session.transition(StateStreaming); err != nil {
		return fail(err)
	}
	w.WriteHeader(http.StatusPartialContent)
	result.Committed = true

	metrics.StreamSessionsActive.Inc()
	defer metrics.StreamSessionsActive.Dec()
	r.publish(domain.Event{
		Type:      domain.EventStreamStarted,
		VideoID:   req.Source.VideoID,
		SessionID: session.ID,
		At:        time.Now().UTC(),
	})
	logger.Debug("stream started",
		slog.Int64("start", opened.Start),
		slog.Int64("end", opened.End),
		slog.Int64("total", opened.Total),
	)

	written, copyErr := copyWindow(ctx, w, opened)
	result.Bytes = written
	metrics.StreamBytesTotal.WithLabelValues(kind).Add(float64(written))

	final := StateCompleted
	switch {
	case copyErr == nil:
	case errors.Is(copyErr, ErrClientGone):
		final = StateAborted
	default:
		final = StateFailed
		span.RecordError(copyErr)
		span.SetStatus(codes.Error, copyErr.Error())
	}
	_ = session.transition(final)
	result.State = session.State()
	span.SetAttributes(attribute.Int64("stream.bytes", written), attribute.String("stream.outcome", result.State.String()))
	metrics.StreamSessionsTotal.WithLabelValues(kind, result.State.String()).Inc()

	finished := domain.Event{
		Type:      domain.EventStreamFinished,
		VideoID:   req.Source.VideoID,
		SessionID: session.ID,
		Outcome:   result.State.String(),
		Bytes:     written,
		At:        time.Now().UTC(),
	}
	if copyErr != nil {
		finished.Error = copyErr.Error()
	}
	r.publish(finished)

	switch final {
	case StateAborted:
		logger.Debug("stream aborted by client", slog.Int64("bytes", written))
	case StateFailed:
		logger.Warn("stream failed", slog.Int64("bytes", written), slog.String("error", copyErr.Error()))
	default:
		logger.Debug("stream completed", slog.Int64("bytes", written))
	}
	return result, copyErr
}

func writeHeaders(h http.Header, req Request, opened *Opened) {
	for key, values := range req.Header {
		for _, v := range values {
			h.Add(key, v)
		}
	}
	mime := req.Source.MimeType
	if mime == "" {
		mime = defaultMimeType
	}
	h.Set("Content-Type", mime)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-cache")
	h.Set("Content-Range", formatContentRange(opened.Start, opened.End, opened.Total))
	if opened.Exact {
		h.Set("Content-Length", strconv.FormatInt(opened.Len(), 10))
	} else {
		h.Del("Content-Length")
	}
}

// copyWindow moves the opened window to w in fixed-size chunks. A short body
// on an exact window is a source failure.
func copyWindow(ctx context.Context, w io.Writer, opened *Opened) (int64, error) {
	buf := make([]byte, copyBufferSize)
	flusher, _ := w.(http.Flusher)
	var written int64
	for {
		if ctx.Err() != nil {
			return written, ErrClientGone
		}
		n, readErr := opened.Body.Read(buf)
		if n > 0 {
			m, writeErr := w.Write(buf[:n])
			written += int64(m)
			if writeErr != nil {
				return written, fmt.Errorf("%w: %v", ErrClientGone, writeErr)
			}
			if m < n {
				return written, fmt.Errorf("%w: %v", ErrClientGone, io.ErrShortWrite)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == nil {
			continue
		}
		if ctx.Err() != nil {
			return written, ErrClientGone
		}
		if !errors.Is(readErr, io.EOF) {
			return written, fmt.Errorf("%w: %v", ErrStreamFailed, readErr)
		}
		if opened.Exact && written < opened.Len() {
			return written, fmt.Errorf("%w: source ended after %d of %d bytes", ErrStreamFailed, written, opened.Len())
		}
		return written, nil
	}
}

func (r *Relay) publish(event domain.Event) {
	if r.events != nil {
		r.events.Publish(event)
	}
}
