package process

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"beecam/video/source"
)

func solidFrame(t *testing.T, size image.Point, c gocv.Scalar) source.Frame {
	t.Helper()
	f := source.Frame{
		Mat:  gocv.NewMatWithSizeFromScalar(c, size.Y, size.X, gocv.MatTypeCV8UC3),
		Time: time.Now(),
	}
	t.Cleanup(f.Close)
	return f
}

func noiseFrame(t *testing.T, size image.Point) source.Frame {
	t.Helper()
	f := solidFrame(t, size, gocv.NewScalar(0, 0, 0, 0))
	gocv.RandU(&f.Mat, gocv.NewScalar(0, 0, 0, 0), gocv.NewScalar(255, 255, 255, 0))
	return f
}

// clone deep-copies a frame, closing the copy when the test ends.
func clone(t *testing.T, f source.Frame) source.Frame {
	t.Helper()
	c := source.Frame{Mat: f.Mat.Clone(), Time: f.Time}
	t.Cleanup(c.Close)
	return c
}

var black = gocv.NewScalar(0, 0, 0, 0)

func TestMotionFirstFrameIsMotion(t *testing.T) {
	m := NewMotion(DefaultMotionOptions())
	defer m.Close()

	found, err := m.Detect(solidFrame(t, AnalysisSize, black))
	require.NoError(t, err)
	assert.True(t, found, "first frame should register as motion")
}

func TestMotionSameFrameTwice(t *testing.T) {
	m := NewMotion(DefaultMotionOptions())
	defer m.Close()

	f := solidFrame(t, AnalysisSize, black)
	_, err := m.Detect(f)
	require.NoError(t, err)

	found, err := m.Detect(f)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMotionIdenticalNoiseIsStill(t *testing.T) {
	m := NewMotion(DefaultMotionOptions())
	defer m.Close()

	f := noiseFrame(t, image.Point{X: 1280, Y: 720})
	_, err := m.Detect(f)
	require.NoError(t, err)

	g := clone(t, f)
	found, err := m.Detect(g)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMotionEmptyFrame(t *testing.T) {
	m := NewMotion(DefaultMotionOptions())
	defer m.Close()

	empty := source.Frame{Mat: gocv.NewMat(), Time: time.Now()}
	defer empty.Close()

	var found bool
	var err error
	require.NotPanics(t, func() {
		found, err = m.Detect(empty)
	})
	assert.ErrorIs(t, err, source.ErrEmptyFrame)
	assert.False(t, found)
	assert.False(t, m.primed, "an empty frame must not advance the detector")
}

func TestMotionRetainsDownscaledFrame(t *testing.T) {
	m := NewMotion(DefaultMotionOptions())
	defer m.Close()

	hd := noiseFrame(t, image.Point{X: 1920, Y: 1080})
	vga := noiseFrame(t, AnalysisSize)
	frames := []source.Frame{
		hd,
		vga,
		// Repeated content: no motion, but the state still advances.
		vga,
		solidFrame(t, image.Point{X: 320, Y: 240}, gocv.NewScalar(40, 80, 120, 0)),
		hd,
	}
	for i, f := range frames {
		_, err := m.Detect(f)
		require.NoError(t, err)

		want := gocv.NewMat()
		gocv.Resize(f.Mat, &want, AnalysisSize, 0, 0, gocv.InterpolationLinear)
		assert.Equal(t, want.ToBytes(), m.prev.ToBytes(), "call %d", i)
		assert.Equal(t, AnalysisSize.X, m.prev.Cols())
		assert.Equal(t, AnalysisSize.Y, m.prev.Rows())
		want.Close()
	}
}

func TestMotionDetectsNewObject(t *testing.T) {
	m := NewMotion(DefaultMotionOptions())
	defer m.Close()

	size := image.Point{X: 1280, Y: 720}
	bg := solidFrame(t, size, black)
	_, err := m.Detect(bg)
	require.NoError(t, err)

	obj := clone(t, bg)
	gocv.Rectangle(&obj.Mat, image.Rect(600, 300, 680, 380), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)

	found, err := m.Detect(obj)
	require.NoError(t, err)
	assert.True(t, found)

	// The frame itself is untouched; only the analysis copy is downscaled.
	assert.Equal(t, size.X, obj.Mat.Cols())
	assert.Equal(t, size.Y, obj.Mat.Rows())

	// The object stays put: no further motion.
	still := clone(t, obj)
	found, err = m.Detect(still)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMotionIgnoresSmallChanges(t *testing.T) {
	m := NewMotion(DefaultMotionOptions())
	defer m.Close()

	_, err := m.Detect(solidFrame(t, AnalysisSize, gocv.NewScalar(100, 100, 100, 0)))
	require.NoError(t, err)

	// A uniform shift below the threshold is lighting, not motion.
	found, err := m.Detect(solidFrame(t, AnalysisSize, gocv.NewScalar(110, 110, 110, 0)))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMotionSuppressWarmup(t *testing.T) {
	opts := DefaultMotionOptions()
	opts.SuppressWarmup = true
	m := NewMotion(opts)
	defer m.Close()

	found, err := m.Detect(noiseFrame(t, AnalysisSize))
	require.NoError(t, err)
	assert.False(t, found)

	found, err = m.Detect(noiseFrame(t, AnalysisSize))
	require.NoError(t, err)
	assert.True(t, found)
}
