package capture

import (
	"context"
	"time"

	"github.com/juju/ratelimit"
	"github.com/rs/zerolog"

	"kepler-recorder-go/internal/services/upstream"
)

// ImageFetcher returns the current image of one camera.
type ImageFetcher interface {
	GetImage(ctx context.Context, camera string, opts upstream.ImageOptions) ([]byte, error)
}

// PollSource issues one get_image request per frame, paced to a target rate.
type PollSource struct {
	camera  string
	fetcher ImageFetcher
	decoder Decoder
	opts    upstream.ImageOptions
	bucket  *ratelimit.Bucket
	stop    *StopSignal
	logger  zerolog.Logger

	decodeErrors int64
}

// NewPollSource creates a polling source. A non-positive fps polls as fast
// as the upstream answers.
func NewPollSource(camera string, fetcher ImageFetcher, decoder Decoder, opts upstream.ImageOptions, fps float64, stop *StopSignal, logger zerolog.Logger) *PollSource {
	var bucket *ratelimit.Bucket
	if fps > 0 {
		bucket = ratelimit.NewBucketWithRate(fps, 1)
	}
	return &PollSource{
		camera:  camera,
		fetcher: fetcher,
		decoder: decoder,
		opts:    opts,
		bucket:  bucket,
		stop:    stop,
		logger:  logger,
	}
}

// Open has nothing to establish: every poll is its own request.
func (p *PollSource) Open(ctx context.Context) error {
	return ctx.Err()
}

func (p *PollSource) Next(ctx context.Context) Result {
	if p.bucket != nil {
		if wait := p.bucket.Take(1); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-p.stop.Done():
				timer.Stop()
				return Result{Kind: StreamEnded}
			case <-ctx.Done():
				timer.Stop()
				return Result{Kind: StreamEnded, Err: ctx.Err()}
			}
		}
	}

	data, err := p.fetcher.GetImage(ctx, p.camera, p.opts)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Kind: StreamEnded, Err: ctx.Err()}
		}
		return Result{Kind: TransportError, Err: err}
	}

	img, err := p.decoder.Decode(data)
	if err != nil {
		p.decodeErrors++
		p.logger.Debug().
			Err(err).
			Int("bytes", len(data)).
			Msg("Skipping polled image that failed to decode")
		return Result{Kind: NoFrameYet}
	}
	return Result{Kind: Frame, Image: img}
}

func (p *PollSource) Close() error {
	return nil
}

func (p *PollSource) DecodeErrors() int64 {
	return p.decodeErrors
}

// Discarded is always zero: every poll response is one whole image.
func (p *PollSource) Discarded() int64 {
	return 0
}
