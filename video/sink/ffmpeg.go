package sink

import (
	"fmt"
	"image"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"beecam/video/source"
)

// FFmpeg pipes raw BGR frames into an ffmpeg process, which does the
// encoding. Useful when the OpenCV build lacks an encoder or is too slow.
type FFmpeg struct {
	size image.Point

	b     chan []byte
	ack   chan error
	close chan chan error
	// done is closed once stdin has been closed.
	done chan struct{}

	once sync.Once
	err  error
}

func ffmpegArgs(path string, codec Codec, fps float64, size image.Point) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		// Read raw frames from stdin, in OpenCV's native layout.
		"-f", "rawvideo",
		"-pixel_format", "bgr24",
		"-video_size", fmt.Sprintf("%dx%d", size.X, size.Y),
		"-framerate", fmt.Sprintf("%g", fps),
		"-i", "-",
		"-c:v", codec.FFmpegEncoder(),
	}
	if codec == H264 {
		// "preset" can be adjusted if the system is too slow to handle encoding.
		args = append(args, "-preset", "superfast", "-crf", "23")
	}
	if strings.EqualFold(filepath.Ext(path), ".mp4") {
		// Playable before full download.
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, path)
}

func NewFFmpeg(binary, path string, codec Codec, fps float64, size image.Point) (*FFmpeg, error) {
	if binary == "" {
		return nil, fmt.Errorf("%w: no ffmpeg binary", ErrInvalidOutput)
	}
	c := exec.Command(binary, ffmpegArgs(path, codec, fps, size)...)

	stderr := log.WithField("ffmpeg", filepath.Base(path)).WriterLevel(log.WarnLevel)
	c.Stderr = stderr

	pipe, err := c.StdinPipe()
	if err != nil {
		stderr.Close()
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := c.Start(); err != nil {
		stderr.Close()
		return nil, fmt.Errorf("%w: starting ffmpeg: %v", ErrInvalidOutput, err)
	}

	f := &FFmpeg{
		size:  size,
		b:     make(chan []byte),
		ack:   make(chan error),
		close: make(chan chan error),
		done:  make(chan struct{}),
	}
	go func() {
		var closer chan error
	loop:
		for {
			select {
			case closer = <-f.close:
				pipe.Close()
				close(f.done)
				break loop
			case b := <-f.b:
				_, err := pipe.Write(b)
				f.ack <- err
			}
		}

		log.Debugf("Waiting for ffmpeg shutdown.")
		err := c.Wait()
		stderr.Close()
		if err != nil {
			log.Errorf("ffmpeg exited with status %v", err)
		}
		closer <- err
	}()
	return f, nil
}

func (f *FFmpeg) Put(input source.Frame) error {
	if input.Empty() {
		return fmt.Errorf("%w: empty frame", source.ErrFrameDropped)
	}
	if input.Mat.Cols() != f.size.X || input.Mat.Rows() != f.size.Y {
		return fmt.Errorf("%w: frame is %dx%d, encoder expects %dx%d",
			source.ErrFrameDropped, input.Mat.Cols(), input.Mat.Rows(), f.size.X, f.size.Y)
	}
	select {
	case f.b <- input.Mat.ToBytes():
	case <-f.done:
		return fmt.Errorf("%w: ffmpeg input already closed", source.ErrFrameDropped)
	}
	if err := <-f.ack; err != nil {
		return fmt.Errorf("%w: writing to ffmpeg: %v", source.ErrFrameDropped, err)
	}
	return nil
}

// Close ends the input stream and waits for ffmpeg to finalize the file.
func (f *FFmpeg) Close() error {
	f.once.Do(func() {
		c := make(chan error)
		f.close <- c
		f.err = <-c
	})
	return f.err
}
