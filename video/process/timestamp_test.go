package process

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"beecam/video/source"
)

func TestDrawTimestamp(t *testing.T) {
	f := solidFrame(t, image.Point{X: 854, Y: 480}, black)
	f.Time = time.Date(2022, 6, 1, 14, 30, 5, 0, time.Local)

	require.NoError(t, DrawTimestamp(&f))

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(f.Mat, &gray, gocv.ColorBGRToGray)
	assert.Greater(t, gocv.CountNonZero(gray), 0, "text should have been drawn")

	// Only the top left corner is touched.
	bottom := gray.Region(image.Rect(0, 100, 854, 480))
	defer bottom.Close()
	assert.Equal(t, 0, gocv.CountNonZero(bottom))
}

func TestDrawTimestampNoRoom(t *testing.T) {
	f := solidFrame(t, image.Point{X: 64, Y: 32}, black)
	assert.ErrorIs(t, DrawTimestamp(&f), ErrNoRoom)
}

func TestDrawTimestampEmpty(t *testing.T) {
	f := source.Frame{Mat: gocv.NewMat(), Time: time.Now()}
	defer f.Close()
	assert.ErrorIs(t, DrawTimestamp(&f), source.ErrEmptyFrame)
}
