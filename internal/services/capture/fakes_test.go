package capture

import (
	"context"
	"errors"
	"sync"
	"time"
)

type fakeImage struct {
	w, h int
}

func (i *fakeImage) Width() int   { return i.w }
func (i *fakeImage) Height() int  { return i.h }
func (i *fakeImage) Close() error { return nil }

// fakeDecoder reads width and height from the two bytes after SOI and
// rejects payloads too short to carry them.
type fakeDecoder struct{}

func (fakeDecoder) Decode(payload []byte) (Image, error) {
	if len(payload) < 6 {
		return nil, errors.New("truncated jpeg")
	}
	return &fakeImage{w: int(payload[2]), h: int(payload[3])}, nil
}

func jpegLike(w, h byte) []byte {
	return []byte{0xFF, 0xD8, w, h, 0xFF, 0xD9}
}

type fakeSink struct {
	mu     sync.Mutex
	path   string
	fps    float64
	w, h   int
	frames int
	closed bool
}

func (s *fakeSink) Write(Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeSinks struct {
	mu    sync.Mutex
	err   error
	opens []*fakeSink
}

func (f *fakeSinks) Open(path string, fps float64, w, h int) (Sink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSink{path: path, fps: fps, w: w, h: h}
	f.opens = append(f.opens, s)
	return s, nil
}

type remuxCall struct {
	path string
	fps  float64
}

type fakeReconciler struct {
	mu    sync.Mutex
	err   error
	calls []remuxCall
}

func (r *fakeReconciler) Remux(_ context.Context, path string, fps float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, remuxCall{path: path, fps: fps})
	return r.err
}

// scriptedSource replays results in order, then StreamEnded forever.
type scriptedSource struct {
	openErr      error
	results      []Result
	closed       bool
	decodeErrors int64
	discarded    int64
}

func (s *scriptedSource) Open(context.Context) error { return s.openErr }

func (s *scriptedSource) Next(context.Context) Result {
	if len(s.results) == 0 {
		return Result{Kind: StreamEnded}
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r
}

func (s *scriptedSource) Close() error {
	s.closed = true
	return nil
}

func (s *scriptedSource) DecodeErrors() int64 { return s.decodeErrors }
func (s *scriptedSource) Discarded() int64    { return s.discarded }

// endlessSource yields a frame every period until the context ends.
type endlessSource struct {
	period time.Duration
}

func (s *endlessSource) Open(context.Context) error { return nil }

func (s *endlessSource) Next(ctx context.Context) Result {
	select {
	case <-time.After(s.period):
		return Result{Kind: Frame, Image: &fakeImage{w: 4, h: 3}}
	case <-ctx.Done():
		return Result{Kind: StreamEnded}
	}
}

func (s *endlessSource) Close() error        { return nil }
func (s *endlessSource) DecodeErrors() int64 { return 0 }
func (s *endlessSource) Discarded() int64    { return 0 }

func frames(n int) []Result {
	out := make([]Result, n)
	for i := range out {
		out[i] = Result{Kind: Frame, Image: &fakeImage{w: 4, h: 3}}
	}
	return out
}

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(step)
		return t
	}
}
