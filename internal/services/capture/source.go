package capture

import (
	"context"
)

// Image is a decoded frame. Whoever receives it in a Frame result owns it
// and must Close it.
type Image interface {
	Width() int
	Height() int
	Close() error
}

// Decoder turns an encoded JPEG payload into an Image.
type Decoder interface {
	Decode(payload []byte) (Image, error)
}

// Sink is an open output video file.
type Sink interface {
	Write(img Image) error
	Close() error
}

// SinkFactory opens output files sized from the first frame.
type SinkFactory interface {
	Open(path string, fps float64, width, height int) (Sink, error)
}

// Reconciler rewrites a finished file so its nominal rate matches fps.
type Reconciler interface {
	Remux(ctx context.Context, path string, fps float64) error
}

// ResultKind tells a camera session what a Source produced.
type ResultKind int

const (
	// Frame carries a decoded image.
	Frame ResultKind = iota
	// NoFrameYet means more input is needed; the caller should check its
	// exit conditions and call Next again.
	NoFrameYet
	// StreamEnded means the source is exhausted or was stopped.
	StreamEnded
	// TransportError means the source failed mid-stream.
	TransportError
)

func (k ResultKind) String() string {
	switch k {
	case Frame:
		return "frame"
	case NoFrameYet:
		return "no_frame_yet"
	case StreamEnded:
		return "stream_ended"
	case TransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// Result is one step of a Source.
type Result struct {
	Kind  ResultKind
	Image Image
	Err   error
}

// Source is a frame acquisition strategy. Sessions call Open once, then
// Next until it stops returning Frame or NoFrameYet, then Close.
type Source interface {
	Open(ctx context.Context) error
	Next(ctx context.Context) Result
	Close() error
	// DecodeErrors counts payloads that were skipped because they did not decode.
	DecodeErrors() int64
	// Discarded counts stream regions dropped because they held no start marker.
	Discarded() int64
}
