// Package demux splits a continuous MJPEG byte stream into JPEG payloads.
//
// The stream carries no length prefix and no multipart boundary we can rely
// on, so frames are delimited by the JPEG start-of-image and end-of-image
// markers alone.
package demux

import (
	"bytes"
)

var (
	// StartOfImage is the JPEG SOI marker.
	StartOfImage = []byte{0xFF, 0xD8}
	// EndOfImage is the JPEG EOI marker.
	EndOfImage = []byte{0xFF, 0xD9}
)

// Demuxer accumulates stream bytes and hands out complete frames in the
// order their end markers close. It is not safe for concurrent use; each
// camera session owns its own.
type Demuxer struct {
	start []byte
	end   []byte
	buf   []byte

	orphans int64
}

// New returns a Demuxer using the JPEG SOI/EOI markers.
func New() *Demuxer {
	return NewWithMarkers(StartOfImage, EndOfImage)
}

// NewWithMarkers returns a Demuxer for arbitrary start/end markers.
func NewWithMarkers(start, end []byte) *Demuxer {
	return &Demuxer{
		start: append([]byte(nil), start...),
		end:   append([]byte(nil), end...),
	}
}

// Write appends a chunk to the buffer. It never fails.
func (d *Demuxer) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next extracts the next complete frame. It returns false when the buffer
// holds no end marker yet, in which case the buffer is left untouched.
//
// An end marker with no start marker before it cannot be recovered: the
// bytes up to and including it are dropped and scanning continues.
func (d *Demuxer) Next() ([]byte, bool) {
	for {
		e := bytes.Index(d.buf, d.end)
		if e < 0 {
			return nil, false
		}
		stop := e + len(d.end)

		s := bytes.Index(d.buf[:e], d.start)
		if s < 0 {
			d.orphans++
			d.consume(stop)
			continue
		}

		frame := make([]byte, stop-s)
		copy(frame, d.buf[s:stop])
		d.consume(stop)
		return frame, true
	}
}

// consume drops the first n bytes, reusing the backing array.
func (d *Demuxer) consume(n int) {
	rest := copy(d.buf, d.buf[n:])
	d.buf = d.buf[:rest]
}

// Buffered returns the number of bytes not yet resolved into frames.
func (d *Demuxer) Buffered() int {
	return len(d.buf)
}

// Discarded returns how many end markers were dropped for lack of a start marker.
func (d *Demuxer) Discarded() int64 {
	return d.orphans
}

// Reset empties the buffer.
func (d *Demuxer) Reset() {
	d.buf = d.buf[:0]
}
