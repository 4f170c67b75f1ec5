package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"kepler-recorder-go/internal/services/demux"
)

// StreamOpener opens the continuous byte stream of one camera.
type StreamOpener interface {
	OpenStream(ctx context.Context, camera string, processed bool) (io.ReadCloser, error)
}

// StreamOptions configures a StreamSource.
type StreamOptions struct {
	Processed     bool
	ChunkSize     int
	ReadTimeout   time.Duration // 0 disables the per-read watchdog
	MaxFrameBytes int           // 0 means unbounded
}

// StreamSource reads a concatenated-JPEG stream and demultiplexes it.
type StreamSource struct {
	camera  string
	opener  StreamOpener
	decoder Decoder
	opts    StreamOptions
	logger  zerolog.Logger

	demux   *demux.Demuxer
	chunk   []byte
	body    io.ReadCloser
	cancel  context.CancelFunc
	readErr error
	timeout bool

	decodeErrors int64
}

// NewStreamSource creates a streaming-pull source for one camera.
func NewStreamSource(camera string, opener StreamOpener, decoder Decoder, opts StreamOptions, logger zerolog.Logger) *StreamSource {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 8192
	}
	return &StreamSource{
		camera:  camera,
		opener:  opener,
		decoder: decoder,
		opts:    opts,
		logger:  logger,
		demux:   demux.New(),
		chunk:   make([]byte, opts.ChunkSize),
	}
}

func (s *StreamSource) Open(ctx context.Context) error {
	sctx, cancel := context.WithCancel(ctx)
	body, err := s.opener.OpenStream(sctx, s.camera, s.opts.Processed)
	if err != nil {
		cancel()
		return err
	}
	s.body = body
	s.cancel = cancel
	return nil
}

// Next returns at most one frame per call and performs at most one read,
// so the caller sees its stop conditions at least once per chunk.
func (s *StreamSource) Next(ctx context.Context) Result {
	if res, ok := s.pending(); ok {
		return res
	}
	if s.readErr != nil {
		return s.terminal(ctx)
	}
	if s.opts.MaxFrameBytes > 0 && s.demux.Buffered() > s.opts.MaxFrameBytes {
		return Result{Kind: TransportError, Err: fmt.Errorf("no end of image within %d bytes", s.opts.MaxFrameBytes)}
	}

	s.read()

	if res, ok := s.pending(); ok {
		return res
	}
	if s.readErr != nil {
		return s.terminal(ctx)
	}
	return Result{Kind: NoFrameYet}
}

// read pulls one chunk into the demuxer, bounded by the read watchdog.
func (s *StreamSource) read() {
	var watchdog *time.Timer
	if s.opts.ReadTimeout > 0 {
		watchdog = time.AfterFunc(s.opts.ReadTimeout, s.cancel)
	}

	n, err := s.body.Read(s.chunk)

	if watchdog != nil && !watchdog.Stop() {
		s.timeout = true
	}
	if n > 0 {
		_, _ = s.demux.Write(s.chunk[:n])
	}
	if err != nil {
		s.readErr = err
	}
}

// pending decodes buffered payloads until one decodes or none are left.
func (s *StreamSource) pending() (Result, bool) {
	for {
		payload, ok := s.demux.Next()
		if !ok {
			return Result{}, false
		}

		img, err := s.decoder.Decode(payload)
		if err != nil {
			s.decodeErrors++
			s.logger.Debug().
				Err(err).
				Int("bytes", len(payload)).
				Int64("decode_errors", s.decodeErrors).
				Msg("Skipping frame that failed to decode")
			continue
		}
		return Result{Kind: Frame, Image: img}, true
	}
}

func (s *StreamSource) terminal(ctx context.Context) Result {
	switch {
	case s.timeout:
		return Result{Kind: TransportError, Err: fmt.Errorf("no data for %s", s.opts.ReadTimeout)}
	case errors.Is(s.readErr, io.EOF):
		return Result{Kind: StreamEnded}
	case ctx.Err() != nil:
		return Result{Kind: StreamEnded, Err: ctx.Err()}
	default:
		return Result{Kind: TransportError, Err: s.readErr}
	}
}

func (s *StreamSource) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.demux.Reset()
	if s.body == nil {
		return nil
	}
	return s.body.Close()
}

func (s *StreamSource) DecodeErrors() int64 {
	return s.decodeErrors
}

func (s *StreamSource) Discarded() int64 {
	return s.demux.Discarded()
}
