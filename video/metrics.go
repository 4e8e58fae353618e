package video

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the prometheus collectors updated by a Pipeline.
type Metrics struct {
	Grabbed         prometheus.Counter
	Dropped         *prometheus.CounterVec
	Motion          prometheus.Counter
	Written         prometheus.Counter
	OverlayFailures prometheus.Counter
	QueueDepth      *prometheus.GaugeVec
	DetectSeconds   prometheus.Histogram
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Grabbed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "beecam",
			Name:      "frames_grabbed_total",
			Help:      "Frames read from the capture source.",
		}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "beecam",
			Name:      "frames_dropped_total",
			Help:      "Frames lost to transient failures, by stage.",
		}, []string{"stage"}),
		Motion: f.NewCounter(prometheus.CounterOpts{
			Namespace: "beecam",
			Name:      "frames_motion_total",
			Help:      "Frames classified as containing motion.",
		}),
		Written: f.NewCounter(prometheus.CounterOpts{
			Namespace: "beecam",
			Name:      "frames_written_total",
			Help:      "Frames appended to the output video.",
		}),
		OverlayFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: "beecam",
			Name:      "overlay_failures_total",
			Help:      "Frames written without their timestamp overlay.",
		}),
		QueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "beecam",
			Name:      "queue_depth",
			Help:      "Frames waiting in a hand-off queue.",
		}, []string{"queue"}),
		DetectSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "beecam",
			Name:      "detect_seconds",
			Help:      "Time spent classifying one frame.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
	}
}
