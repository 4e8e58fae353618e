package process

import (
	"image"

	"gocv.io/x/gocv"

	"beecam/video/source"
)

// AnalysisSize is the resolution motion differencing runs at, regardless of
// the capture resolution.
var AnalysisSize = image.Point{X: 640, Y: 480}

type MotionOptions struct {
	// Thresh is the grayscale intensity cutoff for the foreground mask.
	Thresh float32
	// Dilate is the number of dilation passes over the mask.
	Dilate int
	// BlurSize and BlurSigma configure the gaussian smoothing step.
	BlurSize  int
	BlurSigma float64

	// SuppressWarmup reports the first frame as still. Otherwise the first
	// frame is always reported as motion, since there is nothing to compare
	// it against.
	SuppressWarmup bool
}

func DefaultMotionOptions() MotionOptions {
	return MotionOptions{
		Thresh:    30,
		Dilate:    3,
		BlurSize:  3,
		BlurSigma: 21,
	}
}

// Motion classifies frames by differencing each one against the previous
// frame at AnalysisSize. It is not safe for concurrent use; one pipeline
// owns one Motion.
type Motion struct {
	opts MotionOptions

	// prev holds the previous frame, downscaled.
	prev   gocv.Mat
	primed bool

	small, m1, m2 gocv.Mat
	kernel        gocv.Mat
}

func NewMotion(opts MotionOptions) *Motion {
	return &Motion{
		opts:   opts,
		prev:   gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), AnalysisSize.Y, AnalysisSize.X, gocv.MatTypeCV8UC3),
		small:  gocv.NewMat(),
		m1:     gocv.NewMat(),
		m2:     gocv.NewMat(),
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3}),
	}
}

// Detect reports whether f contains motion. The retained frame is replaced by
// f's downscaled copy on every call, whatever the outcome. An empty frame
// returns source.ErrEmptyFrame and leaves the state untouched.
func (m *Motion) Detect(f source.Frame) (bool, error) {
	if f.Empty() {
		return false, source.ErrEmptyFrame
	}

	gocv.Resize(f.Mat, &m.small, AnalysisSize, 0, 0, gocv.InterpolationLinear)
	gocv.AbsDiff(m.prev, m.small, &m.m1)

	// Swap rather than copy; small is overwritten on the next call.
	m.prev, m.small = m.small, m.prev

	gocv.CvtColor(m.m1, &m.m2, gocv.ColorBGRToGray)
	ksize := image.Point{X: m.opts.BlurSize, Y: m.opts.BlurSize}
	gocv.GaussianBlur(m.m2, &m.m1, ksize, m.opts.BlurSigma, m.opts.BlurSigma, gocv.BorderDefault)
	gocv.Threshold(m.m1, &m.m2, m.opts.Thresh, 255, gocv.ThresholdBinary)
	for i := 0; i < m.opts.Dilate; i++ {
		gocv.Dilate(m.m2, &m.m1, m.kernel)
		m.m1, m.m2 = m.m2, m.m1
	}

	contours := gocv.FindContours(m.m2, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	found := contours.Size() > 0
	contours.Close()

	if !m.primed {
		m.primed = true
		return !m.opts.SuppressWarmup, nil
	}
	return found, nil
}

func (m *Motion) Close() {
	m.prev.Close()
	m.small.Close()
	m.m1.Close()
	m.m2.Close()
	m.kernel.Close()
}
