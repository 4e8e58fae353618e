package source

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrInvalidCameraIndex is returned when a capture device cannot be opened.
	ErrInvalidCameraIndex = errors.New("unable to open camera by index")
	// ErrInvalidVideoFile is returned when a video file cannot be opened.
	ErrInvalidVideoFile = errors.New("unable to open video file")
	// ErrFrameDropped marks a single failed read or write. The stream is still
	// live and the caller should carry on.
	ErrFrameDropped = errors.New("frame dropped")
	// ErrEmptyFrame marks the end of a stream.
	ErrEmptyFrame = errors.New("empty video frame")
)

// Frame is a captured image and the wall-clock time it was grabbed. Whoever
// holds a Frame owns its Mat and must Close it or hand it on.
type Frame struct {
	Mat  gocv.Mat
	Time time.Time
}

// Empty reports whether the frame carries no pixels.
func (f *Frame) Empty() bool {
	return f.Mat.Empty()
}

func (f *Frame) Close() {
	f.Mat.Close()
}

// Source defines a stream of frames, such as a camera or a video file.
type Source interface {
	// Grab returns the next frame. ErrFrameDropped is transient;
	// ErrEmptyFrame means the stream is over and Grab should not be called
	// again.
	Grab() (Frame, error)

	// Size returns the negotiated frame size, which may differ from the one
	// requested when the source was opened.
	Size() image.Point

	// FPS returns the negotiated frame rate.
	FPS() float64

	// Release frees the capture handle. It is safe to call more than once.
	Release()
}
