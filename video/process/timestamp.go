package process

import (
	"errors"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"beecam/video/source"
)

// TimestampLayout is the date/time format burned into output frames.
const TimestampLayout = "2006-01-02 15:04:05"

var (
	colorTime = color.RGBA{R: 255, G: 255, B: 255, A: 255}

	// ErrNoRoom is returned when the frame is too small to hold the text.
	ErrNoRoom = errors.New("frame too small for timestamp")
)

var timestampOrigin = image.Point{X: 10, Y: 40}

const (
	timestampFont      = gocv.FontHersheyDuplex
	timestampScale     = 1.0
	timestampThickness = 2
)

// DrawTimestamp draws the frame's capture time in the top left corner.
func DrawTimestamp(f *source.Frame) error {
	if f.Empty() {
		return source.ErrEmptyFrame
	}

	text := f.Time.Format(TimestampLayout)
	sz := gocv.GetTextSize(text, timestampFont, timestampScale, timestampThickness)
	if timestampOrigin.X+sz.X > f.Mat.Cols() || timestampOrigin.Y > f.Mat.Rows() {
		return ErrNoRoom
	}

	gocv.PutText(&f.Mat, text, timestampOrigin, timestampFont, timestampScale, colorTime, timestampThickness)
	return nil
}
