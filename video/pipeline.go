package video

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"beecam/util"
	"beecam/video/sink"
	"beecam/video/source"
)

// DefaultQueueSize is the capacity of each hand-off queue.
const DefaultQueueSize = 100

// Detector decides whether a frame contains motion. ErrEmptyFrame from
// Detect ends the stream.
type Detector interface {
	Detect(f source.Frame) (bool, error)
}

// MotionListener receives every frame after it has been written. It is
// called on the sink goroutine and must not keep the frame's Mat.
type MotionListener interface {
	MotionFrame(f source.Frame)
}

type PipelineOptions struct {
	// ID identifies the run in logs. A random one is used if empty.
	ID        string
	QueueSize int
	Metrics   *Metrics
	Listeners []MotionListener
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	ID              string
	Grabbed         uint64
	Dropped         uint64
	Motion          uint64
	Written         uint64
	WriteFailures   uint64
	OverlayFailures uint64
	RawQueue        int
	MotionQueue     int
}

// Pipeline moves frames from a Source through a Detector into a Sink. Each
// stage runs on its own goroutine; stages only share the two bounded queues.
// The source and sink handles are owned by the pipeline once it is created
// and are released by their stage when it exits.
type Pipeline struct {
	id        string
	src       source.Source
	det       Detector
	out       sink.Sink
	metrics   *Metrics
	listeners []MotionListener
	log       *log.Entry

	raw    chan source.Frame
	motion chan source.Frame

	grabbed, dropped, motionN, written, writeFailures, overlayFailures atomic.Uint64

	started atomic.Bool
}

func NewPipeline(src source.Source, det Detector, out sink.Sink, o *PipelineOptions) *Pipeline {
	if o == nil {
		o = &PipelineOptions{}
	}
	id := o.ID
	if id == "" {
		id = uuid.NewString()
	}
	qs := o.QueueSize
	if qs <= 0 {
		qs = DefaultQueueSize
	}
	m := o.Metrics
	if m == nil {
		m = NewMetrics(prometheus.NewRegistry())
	}
	return &Pipeline{
		id:        id,
		src:       src,
		det:       det,
		out:       out,
		metrics:   m,
		listeners: o.Listeners,
		log:       log.WithField("run", id),
		raw:       make(chan source.Frame, qs),
		motion:    make(chan source.Frame, qs),
	}
}

func (p *Pipeline) ID() string {
	return p.id
}

// Stats returns the current counters. It is safe to call while running.
func (p *Pipeline) Stats() Stats {
	return Stats{
		ID:              p.id,
		Grabbed:         p.grabbed.Load(),
		Dropped:         p.dropped.Load(),
		Motion:          p.motionN.Load(),
		Written:         p.written.Load(),
		WriteFailures:   p.writeFailures.Load(),
		OverlayFailures: p.overlayFailures.Load(),
		RawQueue:        len(p.raw),
		MotionQueue:     len(p.motion),
	}
}

// Run processes frames until the source ends or shutdown is notified, then
// waits for queued frames to drain through the detector and sink. Both
// handles have been released when Run returns. Run may only be called once.
func (p *Pipeline) Run(shutdown *util.Event) Stats {
	if !p.started.CompareAndSwap(false, true) {
		panic("pipeline already run")
	}

	p.log.Info("Pipeline started")
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		p.acquire(shutdown)
	}()
	go func() {
		defer wg.Done()
		p.detect(shutdown)
	}()
	go func() {
		defer wg.Done()
		p.persist()
	}()
	wg.Wait()

	s := p.Stats()
	p.log.WithFields(log.Fields{
		"elapsed": time.Since(start).Round(time.Millisecond),
		"grabbed": s.Grabbed,
		"dropped": s.Dropped,
		"motion":  s.Motion,
		"written": s.Written,
	}).Info("Pipeline stopped")
	return s
}

func (p *Pipeline) depth(name string, c chan source.Frame) {
	p.metrics.QueueDepth.WithLabelValues(name).Set(float64(len(c)))
}

// acquire is the only stage that watches shutdown. Closing raw is how the
// rest of the pipeline learns the stream is over.
func (p *Pipeline) acquire(shutdown *util.Event) {
	l := p.log.WithField("stage", "source")
	defer close(p.raw)
	defer p.src.Release()

	for !shutdown.HasBeenNotified() {
		f, err := p.src.Grab()
		if err != nil {
			if errors.Is(err, source.ErrFrameDropped) {
				p.dropped.Add(1)
				p.metrics.Dropped.WithLabelValues("source").Inc()
				l.Debugf("Frame dropped: %v", err)
				continue
			}
			if errors.Is(err, source.ErrEmptyFrame) {
				l.Infof("End of stream: %v", err)
			} else {
				l.Errorf("Acquisition failed: %v", err)
			}
			return
		}
		p.grabbed.Add(1)
		p.metrics.Grabbed.Inc()

		// Blocks while the detector is behind.
		p.raw <- f
		p.depth("raw", p.raw)
	}
	l.Info("Shutdown requested, acquisition stopped")
}

func (p *Pipeline) detect(shutdown *util.Event) {
	l := p.log.WithField("stage", "detector")

	ended := p.classify(l)
	close(p.motion)

	if ended {
		// Stop acquisition and discard what is left so the source is never
		// stuck on a full queue.
		shutdown.Notify()
		for f := range p.raw {
			f.Close()
		}
	}
}

// classify feeds raw frames to the detector, forwarding motion frames. It
// reports whether the detector ended the stream before raw was closed.
func (p *Pipeline) classify(l *log.Entry) bool {
	for f := range p.raw {
		p.depth("raw", p.raw)

		start := time.Now()
		found, err := p.det.Detect(f)
		p.metrics.DetectSeconds.Observe(time.Since(start).Seconds())

		if err != nil {
			f.Close()
			if errors.Is(err, source.ErrEmptyFrame) {
				l.Warnf("Detector received an empty frame, stopping: %v", err)
				return true
			}
			p.dropped.Add(1)
			p.metrics.Dropped.WithLabelValues("detector").Inc()
			l.Warnf("Detection failed: %v", err)
			continue
		}
		if !found {
			f.Close()
			continue
		}

		p.motionN.Add(1)
		p.metrics.Motion.Inc()
		p.motion <- f
		p.depth("motion", p.motion)
	}
	return false
}

func (p *Pipeline) persist() {
	l := p.log.WithField("stage", "sink")
	defer func() {
		if err := p.out.Close(); err != nil {
			l.Errorf("Failed to finalize output: %v", err)
		}
	}()

	for f := range p.motion {
		p.depth("motion", p.motion)
		p.write(l, f)
		f.Close()
	}
}

func (p *Pipeline) write(l *log.Entry, f source.Frame) {
	err := p.out.Put(f)
	switch {
	case err == nil:
	case errors.Is(err, sink.ErrTextOverlay):
		p.overlayFailures.Add(1)
		p.metrics.OverlayFailures.Inc()
		l.Warnf("Frame written without timestamp: %v", err)
	default:
		p.writeFailures.Add(1)
		p.dropped.Add(1)
		p.metrics.Dropped.WithLabelValues("sink").Inc()
		l.Warnf("Failed to write frame: %v", err)
		return
	}

	p.written.Add(1)
	p.metrics.Written.Inc()
	for _, ml := range p.listeners {
		ml.MotionFrame(f)
	}
}
