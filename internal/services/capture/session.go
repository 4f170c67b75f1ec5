package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"kepler-recorder-go/internal/models"
)

// ErrNoFrames is the outcome error of a camera that never produced a frame.
var ErrNoFrames = errors.New("no frame received")

// SessionConfig holds the per-camera run parameters.
type SessionConfig struct {
	Camera         string
	OutputPath     string
	Duration       time.Duration
	TargetFPS      float64
	ProvisionalFPS float64 // writer rate when > 0, otherwise TargetFPS
	FrameBudget    int64   // 0 disables
	ProgressEvery  int64
	AbortOnError   bool // raise the shared StopSignal on open or transport errors
}

// Session drives one camera through Opening, Streaming, Finalizing and Done.
// Any failure that leaves nothing to finalize ends in Errored.
type Session struct {
	cfg        SessionConfig
	source     Source
	sinks      SinkFactory
	reconciler Reconciler
	stop       *StopSignal
	logger     zerolog.Logger
	now        func() time.Time

	mu     sync.RWMutex
	state  models.CameraState
	frames atomic.Int64
	sink   Sink
}

// NewSession builds a camera session. reconciler may be nil.
func NewSession(cfg SessionConfig, source Source, sinks SinkFactory, reconciler Reconciler, stop *StopSignal, logger zerolog.Logger) *Session {
	return &Session{
		cfg:        cfg,
		source:     source,
		sinks:      sinks,
		reconciler: reconciler,
		stop:       stop,
		logger:     logger,
		now:        time.Now,
		state:      models.CameraStateOpening,
	}
}

// Camera returns the camera name.
func (s *Session) Camera() string {
	return s.cfg.Camera
}

// State returns the current state.
func (s *Session) State() models.CameraState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// FrameCount returns the number of frames written so far.
func (s *Session) FrameCount() int64 {
	return s.frames.Load()
}

func (s *Session) setState(state models.CameraState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// AverageFPS returns frames/elapsed. ok is false when elapsed is not
// positive, in which case the rate is unknown and must not be used.
func AverageFPS(frames int64, elapsed time.Duration) (fps float64, ok bool) {
	secs := elapsed.Seconds()
	if secs <= 0 {
		return 0, false
	}
	return float64(frames) / secs, true
}

// Run executes the session to completion. It never returns an error; the
// outcome carries the final state and, when Errored, the reason.
func (s *Session) Run(ctx context.Context) (out models.CameraOutcome) {
	start := s.now()
	out = models.CameraOutcome{
		Camera:    s.cfg.Camera,
		State:     models.CameraStateOpening,
		StartedAt: start,
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Msg("Camera session panicked")
			if s.sink != nil {
				_ = s.sink.Close()
			}
			out.State = models.CameraStateErrored
			out.Error = fmt.Sprintf("panic: %v", r)
		}
		out.FrameCount = s.frames.Load()
		out.FinishedAt = s.now()
		s.setState(out.State)
	}()

	s.logger.Info().
		Str("output", s.cfg.OutputPath).
		Dur("duration", s.cfg.Duration).
		Msg("Camera session opening")

	if err := s.source.Open(ctx); err != nil {
		s.abortSiblings()
		return s.fail(out, fmt.Errorf("open: %w", err))
	}
	defer func() {
		if err := s.source.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Error closing source")
		}
	}()

	s.setState(models.CameraStateStreaming)
	streamErr := s.stream(ctx, start)

	out.Elapsed = s.now().Sub(start)
	out.DecodeErrors = s.source.DecodeErrors()
	out.Discarded = s.source.Discarded()

	if s.sink == nil {
		if streamErr == nil {
			streamErr = ErrNoFrames
		}
		return s.fail(out, streamErr)
	}

	s.setState(models.CameraStateFinalizing)
	out.State = models.CameraStateFinalizing
	out.OutputPath = s.cfg.OutputPath
	out.WriterFPS = s.writerFPS()

	err := s.sink.Close()
	s.sink = nil
	if err != nil {
		return s.fail(out, fmt.Errorf("close output: %w", err))
	}

	frames := s.frames.Load()
	fps, ok := AverageFPS(frames, out.Elapsed)
	out.AverageFPS = fps

	switch {
	case !ok:
		s.logger.Warn().Msg("Elapsed time is zero; skipping rate reconciliation")
	case s.reconciler != nil:
		if err := s.reconciler.Remux(ctx, s.cfg.OutputPath, fps); err != nil {
			s.logger.Warn().
				Err(err).
				Float64("average_fps", fps).
				Msg("Rate reconciliation failed; keeping original file")
		} else {
			out.Reconciled = true
		}
	}

	out.State = models.CameraStateDone
	s.logger.Info().
		Int64("frames", frames).
		Dur("elapsed", out.Elapsed).
		Float64("average_fps", fps).
		Float64("writer_fps", out.WriterFPS).
		Int64("decode_errors", out.DecodeErrors).
		Int64("discarded", out.Discarded).
		Bool("reconciled", out.Reconciled).
		Msg("Camera session finished")
	return out
}

// stream runs the Streaming state. It returns the transport error that
// ended it, if any; every other exit returns nil.
func (s *Session) stream(ctx context.Context, start time.Time) error {
	for {
		switch {
		case s.stop.IsSet():
			s.logger.Debug().Msg("Stop signal set")
			return nil
		case ctx.Err() != nil:
			return nil
		case s.cfg.Duration > 0 && s.now().Sub(start) >= s.cfg.Duration:
			return nil
		case s.cfg.FrameBudget > 0 && s.frames.Load() >= s.cfg.FrameBudget:
			s.logger.Debug().Int64("budget", s.cfg.FrameBudget).Msg("Frame budget reached")
			return nil
		}

		res := s.source.Next(ctx)
		switch res.Kind {
		case NoFrameYet:
			continue
		case StreamEnded:
			s.logger.Info().Msg("Stream ended")
			return nil
		case TransportError:
			s.logger.Warn().Err(res.Err).Int64("frames", s.frames.Load()).Msg("Stream transport error")
			s.abortSiblings()
			return res.Err
		case Frame:
			if err := s.write(res.Image); err != nil {
				return err
			}
		}
	}
}

func (s *Session) write(img Image) error {
	defer img.Close()

	if s.sink == nil {
		sink, err := s.sinks.Open(s.cfg.OutputPath, s.writerFPS(), img.Width(), img.Height())
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		s.sink = sink
		s.logger.Info().
			Int("width", img.Width()).
			Int("height", img.Height()).
			Float64("fps", s.writerFPS()).
			Msg("Output opened")
	}

	if err := s.sink.Write(img); err != nil {
		s.logger.Error().Err(err).Msg("Failed to write frame")
		return fmt.Errorf("write frame: %w", err)
	}

	n := s.frames.Add(1)
	if s.cfg.ProgressEvery > 0 && n%s.cfg.ProgressEvery == 0 {
		s.logger.Info().Int64("frames", n).Msg("Recording progress")
	}
	return nil
}

func (s *Session) writerFPS() float64 {
	if s.cfg.ProvisionalFPS > 0 {
		return s.cfg.ProvisionalFPS
	}
	return s.cfg.TargetFPS
}

func (s *Session) abortSiblings() {
	if s.cfg.AbortOnError {
		s.logger.Warn().Msg("Camera error; stopping all cameras")
		s.stop.Set()
	}
}

func (s *Session) fail(out models.CameraOutcome, err error) models.CameraOutcome {
	s.logger.Error().Err(err).Msg("Camera session failed")
	out.State = models.CameraStateErrored
	out.Error = err.Error()
	return out
}
