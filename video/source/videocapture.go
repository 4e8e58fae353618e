package source

import (
	"fmt"
	"image"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

const (
	// MaxConsecutiveDrops is the number of failed camera reads in a row after
	// which the device is considered gone.
	MaxConsecutiveDrops = 100

	retryDelay = time.Millisecond
)

// VideoCapture is a Source backed by an OpenCV capture handle, either a
// camera device or a video file.
type VideoCapture struct {
	cap  *gocv.VideoCapture
	live bool

	size image.Point
	fps  float64

	drops   int
	release sync.Once
}

// NewCamera opens /dev/video<index>. The requested size and frame rate are
// advisory: OpenCV substitutes the closest supported values, and Size / FPS
// report what was actually negotiated.
func NewCamera(index, width, height int, fps float64) (*VideoCapture, error) {
	cap, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, fmt.Errorf("%w %d: %v", ErrInvalidCameraIndex, index, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w %d", ErrInvalidCameraIndex, index)
	}
	cap.Set(gocv.VideoCaptureFrameWidth, float64(width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(height))
	cap.Set(gocv.VideoCaptureFPS, fps)

	v := newVideoCapture(cap, true)
	if v.size.X != width || v.size.Y != height || v.fps != fps {
		log.Infof("Camera %d negotiated %dx%d@%.2f (requested %dx%d@%.2f)",
			index, v.size.X, v.size.Y, v.fps, width, height, fps)
	}
	return v, nil
}

// NewFile opens a pre-recorded video.
func NewFile(path string) (*VideoCapture, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w %v: %v", ErrInvalidVideoFile, path, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w %v", ErrInvalidVideoFile, path)
	}
	return newVideoCapture(cap, false), nil
}

func newVideoCapture(cap *gocv.VideoCapture, live bool) *VideoCapture {
	return &VideoCapture{
		cap:  cap,
		live: live,
		size: image.Point{
			X: int(cap.Get(gocv.VideoCaptureFrameWidth)),
			Y: int(cap.Get(gocv.VideoCaptureFrameHeight)),
		},
		fps: cap.Get(gocv.VideoCaptureFPS),
	}
}

func (v *VideoCapture) Size() image.Point {
	return v.size
}

func (v *VideoCapture) FPS() float64 {
	return v.fps
}

// Grab reads the next frame. A failed read on a camera is ErrFrameDropped
// until MaxConsecutiveDrops is reached; on a file it is the end of the
// stream.
func (v *VideoCapture) Grab() (Frame, error) {
	f := Frame{
		Mat: gocv.NewMat(),
	}
	ok := v.cap.Read(&f.Mat)
	f.Time = time.Now()
	if ok && !f.Empty() {
		v.drops = 0
		return f, nil
	}
	f.Close()

	if !v.live {
		return Frame{}, ErrEmptyFrame
	}
	v.drops++
	if v.drops >= MaxConsecutiveDrops {
		return Frame{}, fmt.Errorf("%w: %d consecutive camera read failures", ErrEmptyFrame, v.drops)
	}
	time.Sleep(retryDelay)
	return Frame{}, ErrFrameDropped
}

// Release closes the capture handle once.
func (v *VideoCapture) Release() {
	v.release.Do(func() {
		if err := v.cap.Close(); err != nil {
			log.Errorf("Failed to release video capture: %v", err)
		}
	})
}
