package sink

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"beecam/video/source"
)

// Video provides a sink that wraps opencv's VideoWriter.
type Video struct {
	writer *gocv.VideoWriter
	size   image.Point

	once sync.Once
	err  error
}

func NewVideo(path string, codec Codec, fps float64, size image.Point) (*Video, error) {
	w, err := gocv.VideoWriterFile(path, codec.FourCC(), fps, size.X, size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("%w %v: %v", ErrInvalidOutput, path, err)
	}
	if !w.IsOpened() {
		w.Close()
		return nil, fmt.Errorf("%w %v", ErrInvalidOutput, path)
	}
	return &Video{
		writer: w,
		size:   size,
	}, nil
}

func (v *Video) Put(f source.Frame) error {
	if f.Empty() {
		return fmt.Errorf("%w: empty frame", source.ErrFrameDropped)
	}
	// VideoWriter silently discards frames of the wrong size.
	if f.Mat.Cols() != v.size.X || f.Mat.Rows() != v.size.Y {
		return fmt.Errorf("%w: frame is %dx%d, writer expects %dx%d",
			source.ErrFrameDropped, f.Mat.Cols(), f.Mat.Rows(), v.size.X, v.size.Y)
	}
	if err := v.writer.Write(f.Mat); err != nil {
		return fmt.Errorf("%w: %v", source.ErrFrameDropped, err)
	}
	return nil
}

func (v *Video) Close() error {
	v.once.Do(func() {
		v.err = v.writer.Close()
	})
	return v.err
}
