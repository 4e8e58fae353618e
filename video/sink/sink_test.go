package sink

import (
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"beecam/video/source"
)

func newFrame(t *testing.T, size image.Point) source.Frame {
	t.Helper()
	f := source.Frame{
		Mat:  gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8UC3),
		Time: time.Date(2022, 6, 1, 14, 30, 5, 0, time.Local),
	}
	t.Cleanup(f.Close)
	return f
}

// recorder is a Sink that remembers what it was given.
type recorder struct {
	puts   int
	bytes  [][]byte
	err    error
	closed int
}

func (r *recorder) Put(f source.Frame) error {
	r.puts++
	r.bytes = append(r.bytes, f.Mat.ToBytes())
	return r.err
}

func (r *recorder) Close() error {
	r.closed++
	return nil
}

func TestParseCodec(t *testing.T) {
	for _, s := range []string{"mjpg", "xvid", "mp4v", "h264"} {
		c, err := ParseCodec(s)
		require.NoError(t, err)
		assert.Len(t, c.FourCC(), 4)
		assert.NotEmpty(t, c.FFmpegEncoder())
	}
	_, err := ParseCodec("divx")
	assert.Error(t, err)
}

func TestOpenRejectsBadOptions(t *testing.T) {
	base := Options{
		Path:  filepath.Join(t.TempDir(), "out.avi"),
		Codec: MJPG,
		FPS:   10,
		Size:  image.Point{X: 320, Y: 240},
	}

	o := base
	o.Codec = "divx"
	_, err := Open(o)
	assert.ErrorIs(t, err, ErrInvalidOutput)

	o = base
	o.FPS = 0
	_, err = Open(o)
	assert.ErrorIs(t, err, ErrInvalidOutput)

	o = base
	o.Encoder = "gstreamer"
	_, err = Open(o)
	assert.ErrorIs(t, err, ErrInvalidOutput)

	o = base
	o.Encoder = EncoderFFmpeg
	_, err = Open(o)
	assert.ErrorIs(t, err, ErrInvalidOutput, "ffmpeg needs a binary")

	o = base
	o.Path = filepath.Join(t.TempDir(), "missing", "dir", "out.avi")
	_, err = Open(o)
	assert.ErrorIs(t, err, ErrInvalidOutput)
}

func TestVideoRoundTrip(t *testing.T) {
	// Wide enough for the timestamp.
	size := image.Point{X: 640, Y: 480}
	path := filepath.Join(t.TempDir(), "out.avi")

	s, err := Open(Options{Path: path, Codec: MJPG, FPS: 10, Size: size, Overlay: true})
	require.NoError(t, err)
	require.IsType(t, &Overlay{}, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Put(newFrame(t, size)))
	}

	// Wrong geometry is a dropped frame, not a fatal error.
	err = s.Put(newFrame(t, image.Point{X: 64, Y: 48}))
	assert.ErrorIs(t, err, source.ErrFrameDropped)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	v, err := source.NewFile(path)
	require.NoError(t, err)
	defer v.Release()
	var n int
	for {
		f, err := v.Grab()
		if err != nil {
			break
		}
		f.Close()
		n++
	}
	assert.Equal(t, 3, n)
}

func TestOverlayStampsFrame(t *testing.T) {
	r := &recorder{}
	o := NewOverlay(r)

	f := newFrame(t, image.Point{X: 854, Y: 480})
	require.NoError(t, o.Put(f))
	require.Equal(t, 1, r.puts)

	plain := newFrame(t, image.Point{X: 854, Y: 480})
	assert.NotEqual(t, plain.Mat.ToBytes(), r.bytes[0])

	require.NoError(t, o.Close())
	assert.Equal(t, 1, r.closed)
}

func TestOverlayFailureStillWrites(t *testing.T) {
	r := &recorder{}
	o := NewOverlay(r)

	f := newFrame(t, image.Point{X: 64, Y: 32})
	err := o.Put(f)
	assert.ErrorIs(t, err, ErrTextOverlay)
	assert.Equal(t, 1, r.puts, "unstamped frame is still written")
}

func TestOverlayWriteFailure(t *testing.T) {
	r := &recorder{err: errors.New("disk full")}
	o := NewOverlay(r)

	err := o.Put(newFrame(t, image.Point{X: 854, Y: 480}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTextOverlay)
}

func TestFFmpegArgs(t *testing.T) {
	args := ffmpegArgs("/tmp/out.mp4", H264, 29.97, image.Point{X: 1280, Y: 720})
	assert.Contains(t, args, "1280x720")
	assert.Contains(t, args, "29.97")
	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "+faststart")
	assert.Equal(t, "/tmp/out.mp4", args[len(args)-1])

	args = ffmpegArgs("/tmp/out.mkv", XVID, 60, image.Point{X: 854, Y: 480})
	assert.Contains(t, args, "libxvid")
	assert.NotContains(t, args, "+faststart")
	assert.NotContains(t, args, "-preset")
}
