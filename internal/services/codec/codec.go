// Package codec binds frame decoding and video encoding to OpenCV.
package codec

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"kepler-recorder-go/internal/services/capture"
)

// Frame is a decoded image backed by an OpenCV Mat.
type Frame struct {
	mat gocv.Mat
}

func (f *Frame) Width() int  { return f.mat.Cols() }
func (f *Frame) Height() int { return f.mat.Rows() }

func (f *Frame) Close() error {
	return f.mat.Close()
}

// Decoder decodes JPEG payloads with IMDecode.
type Decoder struct{}

func (Decoder) Decode(payload []byte) (capture.Image, error) {
	mat, err := gocv.IMDecode(payload, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, errors.New("decode jpeg: empty image")
	}
	return &Frame{mat: mat}, nil
}

// WriterFactory opens gocv video writers with a fixed fourcc codec.
type WriterFactory struct {
	Codec string
}

func (w WriterFactory) Open(path string, fps float64, width, height int) (capture.Sink, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid writer fps %.2f", fps)
	}

	vw, err := gocv.VideoWriterFile(path, w.Codec, fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("open video writer %s: %w", path, err)
	}
	if !vw.IsOpened() {
		vw.Close()
		return nil, fmt.Errorf("video writer %s not opened (codec %s)", path, w.Codec)
	}

	return &writer{vw: vw, size: image.Pt(width, height), scratch: gocv.NewMat()}, nil
}

// writer resizes frames that do not match the size fixed at open time.
type writer struct {
	vw      *gocv.VideoWriter
	size    image.Point
	scratch gocv.Mat
}

func (w *writer) Write(img capture.Image) error {
	f, ok := img.(*Frame)
	if !ok {
		return fmt.Errorf("unsupported image type %T", img)
	}

	mat := f.mat
	if mat.Cols() != w.size.X || mat.Rows() != w.size.Y {
		gocv.Resize(mat, &w.scratch, w.size, 0, 0, gocv.InterpolationLinear)
		mat = w.scratch
	}
	return w.vw.Write(mat)
}

func (w *writer) Close() error {
	err := w.vw.Close()
	if cerr := w.scratch.Close(); err == nil {
		err = cerr
	}
	return err
}
