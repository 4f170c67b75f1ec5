package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"kepler-recorder-go/internal/models"
)

func newTestSession(cfg SessionConfig, src Source, sinks *fakeSinks, rec Reconciler, stop *StopSignal) *Session {
	if cfg.Camera == "" {
		cfg.Camera = "cam1"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = "/out/cam1.mp4"
	}
	if cfg.TargetFPS == 0 {
		cfg.TargetFPS = 30
	}
	if stop == nil {
		stop = NewStopSignal()
	}
	return NewSession(cfg, src, sinks, rec, stop, zerolog.Nop())
}

func TestAverageFPS(t *testing.T) {
	fps, ok := AverageFPS(150, 5*time.Second)
	require.True(t, ok)
	require.Equal(t, 30.0, fps)

	fps, ok = AverageFPS(150, 0)
	require.False(t, ok)
	require.Zero(t, fps)
}

func TestSessionRecordsAndReconciles(t *testing.T) {
	src := &scriptedSource{results: append(frames(3), Result{Kind: StreamEnded})}
	sinks := &fakeSinks{}
	rec := &fakeReconciler{}

	s := newTestSession(SessionConfig{Duration: time.Hour, ProgressEvery: 2}, src, sinks, rec, nil)
	s.now = stepClock(100 * time.Millisecond)

	out := s.Run(context.Background())

	require.Equal(t, models.CameraStateDone, out.State)
	require.Equal(t, models.CameraStateDone, s.State())
	require.Equal(t, int64(3), out.FrameCount)
	require.Equal(t, "/out/cam1.mp4", out.OutputPath)
	require.True(t, out.Reconciled)
	require.True(t, out.Recorded())
	require.True(t, src.closed)

	require.Len(t, sinks.opens, 1)
	sink := sinks.opens[0]
	require.Equal(t, 3, sink.frames)
	require.True(t, sink.closed)
	require.Equal(t, 4, sink.w)
	require.Equal(t, 3, sink.h)
	require.Equal(t, 30.0, sink.fps)

	require.Len(t, rec.calls, 1)
	require.Equal(t, "/out/cam1.mp4", rec.calls[0].path)
	require.InDelta(t, out.AverageFPS, rec.calls[0].fps, 1e-9)
	require.Greater(t, out.AverageFPS, 0.0)
}

func TestSessionReportsSourceCounters(t *testing.T) {
	src := &scriptedSource{results: frames(2), decodeErrors: 3, discarded: 1}

	s := newTestSession(SessionConfig{Duration: time.Hour}, src, &fakeSinks{}, nil, nil)
	s.now = stepClock(100 * time.Millisecond)

	out := s.Run(context.Background())

	require.Equal(t, models.CameraStateDone, out.State)
	require.Equal(t, int64(3), out.DecodeErrors)
	require.Equal(t, int64(1), out.Discarded)
}

func TestSessionZeroElapsedSkipsReconcile(t *testing.T) {
	src := &scriptedSource{results: frames(2)}
	sinks := &fakeSinks{}
	rec := &fakeReconciler{}

	s := newTestSession(SessionConfig{Duration: time.Hour}, src, sinks, rec, nil)
	s.now = stepClock(0)

	out := s.Run(context.Background())

	require.Equal(t, models.CameraStateDone, out.State)
	require.Equal(t, int64(2), out.FrameCount)
	require.Zero(t, out.AverageFPS)
	require.False(t, out.Reconciled)
	require.Empty(t, rec.calls)
}

func TestSessionProvisionalRate(t *testing.T) {
	sinks := &fakeSinks{}
	s := newTestSession(SessionConfig{ProvisionalFPS: 12.5}, &scriptedSource{results: frames(1)}, sinks, nil, nil)

	out := s.Run(context.Background())

	require.Equal(t, models.CameraStateDone, out.State)
	require.Equal(t, 12.5, out.WriterFPS)
	require.Equal(t, 12.5, sinks.opens[0].fps)
}

func TestSessionOpenFailure(t *testing.T) {
	stop := NewStopSignal()
	sinks := &fakeSinks{}
	src := &scriptedSource{openErr: errors.New("connection refused")}

	out := newTestSession(SessionConfig{}, src, sinks, nil, stop).Run(context.Background())

	require.Equal(t, models.CameraStateErrored, out.State)
	require.Contains(t, out.Error, "connection refused")
	require.Empty(t, out.OutputPath)
	require.Empty(t, sinks.opens)
	require.False(t, stop.IsSet())
}

func TestSessionOpenFailureAbortsSiblingsWhenConfigured(t *testing.T) {
	stop := NewStopSignal()
	src := &scriptedSource{openErr: errors.New("connection refused")}

	out := newTestSession(SessionConfig{AbortOnError: true}, src, &fakeSinks{}, nil, stop).Run(context.Background())

	require.Equal(t, models.CameraStateErrored, out.State)
	require.True(t, stop.IsSet())
}

func TestSessionTransportErrorFinalizesPartialFile(t *testing.T) {
	src := &scriptedSource{results: append(frames(2), Result{Kind: TransportError, Err: errors.New("chunked encoding truncated")})}
	sinks := &fakeSinks{}
	stop := NewStopSignal()

	out := newTestSession(SessionConfig{}, src, sinks, nil, stop).Run(context.Background())

	require.Equal(t, models.CameraStateDone, out.State)
	require.Equal(t, int64(2), out.FrameCount)
	require.True(t, sinks.opens[0].closed)
	require.False(t, stop.IsSet())
}

func TestSessionTransportErrorBeforeFirstFrame(t *testing.T) {
	src := &scriptedSource{results: []Result{{Kind: TransportError, Err: errors.New("reset by peer")}}}

	out := newTestSession(SessionConfig{}, src, &fakeSinks{}, nil, nil).Run(context.Background())

	require.Equal(t, models.CameraStateErrored, out.State)
	require.Contains(t, out.Error, "reset by peer")
	require.False(t, out.Recorded())
}

func TestSessionStreamEndsWithoutFrames(t *testing.T) {
	out := newTestSession(SessionConfig{}, &scriptedSource{}, &fakeSinks{}, nil, nil).Run(context.Background())

	require.Equal(t, models.CameraStateErrored, out.State)
	require.Equal(t, ErrNoFrames.Error(), out.Error)
}

func TestSessionSinkOpenFailure(t *testing.T) {
	sinks := &fakeSinks{err: errors.New("codec not available")}

	out := newTestSession(SessionConfig{}, &scriptedSource{results: frames(3)}, sinks, nil, nil).Run(context.Background())

	require.Equal(t, models.CameraStateErrored, out.State)
	require.Contains(t, out.Error, "codec not available")
	require.Zero(t, out.FrameCount)
}

func TestSessionReconcileFailureKeepsFile(t *testing.T) {
	rec := &fakeReconciler{err: errors.New("ffmpeg exited 1")}
	s := newTestSession(SessionConfig{}, &scriptedSource{results: frames(5)}, &fakeSinks{}, rec, nil)
	s.now = stepClock(time.Second)

	out := s.Run(context.Background())

	require.Equal(t, models.CameraStateDone, out.State)
	require.False(t, out.Reconciled)
	require.Len(t, rec.calls, 1)
	require.True(t, out.Recorded())
}

func TestSessionFrameBudget(t *testing.T) {
	sinks := &fakeSinks{}
	s := newTestSession(SessionConfig{FrameBudget: 5}, &scriptedSource{results: frames(20)}, sinks, nil, nil)

	out := s.Run(context.Background())

	require.Equal(t, models.CameraStateDone, out.State)
	require.Equal(t, int64(5), out.FrameCount)
	require.Equal(t, 5, sinks.opens[0].frames)
}

func TestSessionDurationElapses(t *testing.T) {
	s := newTestSession(SessionConfig{Duration: 50 * time.Millisecond}, &endlessSource{period: time.Millisecond}, &fakeSinks{}, nil, nil)

	done := make(chan models.CameraOutcome, 1)
	go func() { done <- s.Run(context.Background()) }()

	select {
	case out := <-done:
		require.Equal(t, models.CameraStateDone, out.State)
		require.Positive(t, out.FrameCount)
		require.GreaterOrEqual(t, out.Elapsed, 50*time.Millisecond)
	case <-time.After(5 * time.Second):
		t.Fatal("session did not stop at its duration")
	}
}

func TestSessionStopSignal(t *testing.T) {
	stop := NewStopSignal()
	sessions := []*Session{
		newTestSession(SessionConfig{Camera: "a", Duration: time.Hour}, &endlessSource{period: 2 * time.Millisecond}, &fakeSinks{}, nil, stop),
		newTestSession(SessionConfig{Camera: "b", Duration: time.Hour}, &endlessSource{period: 3 * time.Millisecond}, &fakeSinks{}, nil, stop),
	}

	done := make(chan models.CameraOutcome, len(sessions))
	for _, s := range sessions {
		go func(s *Session) { done <- s.Run(context.Background()) }(s)
	}

	require.Eventually(t, func() bool {
		return sessions[0].FrameCount() > 0 && sessions[1].FrameCount() > 0
	}, 5*time.Second, time.Millisecond)
	require.Equal(t, models.CameraStateStreaming, sessions[0].State())

	stop.Set()
	stop.Set()

	for range sessions {
		select {
		case out := <-done:
			require.Equal(t, models.CameraStateDone, out.State)
		case <-time.After(time.Second):
			t.Fatal("session stuck in streaming after stop signal")
		}
	}
}

func TestSessionContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestSession(SessionConfig{Duration: time.Hour}, &endlessSource{period: time.Millisecond}, &fakeSinks{}, nil, nil)

	done := make(chan models.CameraOutcome, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.FrameCount() > 0 }, 5*time.Second, time.Millisecond)
	cancel()

	select {
	case out := <-done:
		require.Equal(t, models.CameraStateDone, out.State)
	case <-time.After(time.Second):
		t.Fatal("session ignored context cancellation")
	}
}

type panicSource struct{ scriptedSource }

func (p *panicSource) Next(context.Context) Result { panic("boom") }

func TestSessionRecoversPanic(t *testing.T) {
	out := newTestSession(SessionConfig{}, &panicSource{}, &fakeSinks{}, nil, nil).Run(context.Background())

	require.Equal(t, models.CameraStateErrored, out.State)
	require.Contains(t, out.Error, "boom")
}
