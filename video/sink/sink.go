package sink

import (
	"errors"
	"fmt"
	"image"

	"beecam/video/source"
)

var (
	// ErrInvalidOutput is returned when the output file cannot be opened.
	ErrInvalidOutput = errors.New("unable to open video output file")
	// ErrTextOverlay is returned when the timestamp could not be drawn. The
	// frame has still been written, unstamped.
	ErrTextOverlay = errors.New("unable to print text overlay")
)

// Sink defines a destination for a stream of frames, such as a video file.
type Sink interface {
	// Put appends a frame. The sink may draw on the frame but does not keep
	// it; the caller still owns the Mat. A write failure wraps
	// source.ErrFrameDropped and is not fatal.
	Put(f source.Frame) error

	// Close finalizes the sink. It is safe to call more than once.
	Close() error
}

// Codec identifies the output video codec.
type Codec string

const (
	MJPG Codec = "mjpg"
	XVID Codec = "xvid"
	MP4V Codec = "mp4v"
	H264 Codec = "h264"
)

var codecs = map[Codec]struct {
	fourcc string
	ffmpeg string
}{
	MJPG: {"MJPG", "mjpeg"},
	XVID: {"XVID", "libxvid"},
	MP4V: {"mp4v", "mpeg4"},
	H264: {"h264", "libx264"},
}

func ParseCodec(s string) (Codec, error) {
	c := Codec(s)
	if _, ok := codecs[c]; !ok {
		return "", fmt.Errorf("unknown codec %q", s)
	}
	return c, nil
}

// FourCC returns the OpenCV fourcc string for the codec.
func (c Codec) FourCC() string {
	return codecs[c].fourcc
}

// FFmpegEncoder returns the ffmpeg encoder name for the codec.
func (c Codec) FFmpegEncoder() string {
	return codecs[c].ffmpeg
}

const (
	EncoderOpenCV = "opencv"
	EncoderFFmpeg = "ffmpeg"
)

type Options struct {
	Path    string
	Codec   Codec
	FPS     float64
	Size    image.Point
	Overlay bool

	// Encoder selects the backend, EncoderOpenCV or EncoderFFmpeg.
	Encoder string
	// FFmpegPath is the ffmpeg binary, required for EncoderFFmpeg.
	FFmpegPath string
}

// Open creates the output sink described by o, wrapped in an Overlay when
// timestamps are enabled.
func Open(o Options) (Sink, error) {
	if _, ok := codecs[o.Codec]; !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrInvalidOutput, o.Codec)
	}
	if o.FPS <= 0 || o.Size.X <= 0 || o.Size.Y <= 0 {
		return nil, fmt.Errorf("%w: invalid geometry %dx%d@%.2f", ErrInvalidOutput, o.Size.X, o.Size.Y, o.FPS)
	}

	var s Sink
	var err error
	switch o.Encoder {
	case EncoderOpenCV, "":
		s, err = NewVideo(o.Path, o.Codec, o.FPS, o.Size)
	case EncoderFFmpeg:
		s, err = NewFFmpeg(o.FFmpegPath, o.Path, o.Codec, o.FPS, o.Size)
	default:
		return nil, fmt.Errorf("%w: unknown encoder %q", ErrInvalidOutput, o.Encoder)
	}
	if err != nil {
		return nil, err
	}

	if o.Overlay {
		s = NewOverlay(s)
	}
	return s, nil
}
