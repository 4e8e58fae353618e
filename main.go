package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"beecam/config"
	"beecam/serve"
	"beecam/util"
	"beecam/video"
	"beecam/video/process"
	"beecam/video/sink"
	"beecam/video/source"
)

var flags = config.RegisterFlags(flag.CommandLine)

func setupLogging(c *config.Config, debug bool) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
		DisableColors: c != nil && c.NoColor,
	})
	switch {
	case debug:
		log.SetLevel(log.DebugLevel)
	case c != nil && c.Quiet:
		log.SetLevel(log.WarnLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

func loadConfig(path string) (*config.Config, error) {
	c := config.Load(path)
	if err := flags.Apply(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// station holds what outlives a single pipeline run.
type station struct {
	metrics *video.Metrics
	status  *serve.StatusServer
	events  *serve.EventStream
	preview *sink.MJPEGStream
}

func openSource(c *config.Config) (source.Source, string, error) {
	if c.Video != "" {
		src, err := source.NewFile(c.Video)
		return src, c.Video, err
	}
	sz := c.Size()
	src, err := source.NewCamera(c.Index, sz.X, sz.Y, c.Framerate)
	return src, fmt.Sprintf("/dev/video%d", c.Index), err
}

// run records one output file. Only setup failures are returned; by then
// nothing is left open.
func (s *station) run(c *config.Config, stop *util.Event) error {
	src, input, err := openSource(c)
	if err != nil {
		return err
	}

	fs, err := video.NewFilesystem(config.ExpandHome(c.Directory), c.Format, c.Container)
	if err != nil {
		src.Release()
		return err
	}
	output, err := fs.OutputPath(time.Now())
	if err != nil {
		src.Release()
		return err
	}

	fps := src.FPS()
	if fps <= 0 {
		log.Warnf("Source did not report a frame rate, using %v", c.Framerate)
		fps = c.Framerate
	}
	opts := c.SinkOptions(output, src.Size(), fps)
	if opts.Encoder == sink.EncoderFFmpeg {
		if opts.FFmpegPath, err = util.LocateFFmpeg(); err != nil {
			src.Release()
			return fmt.Errorf("unable to locate ffmpeg binary (set $FFMPEG or add it to $PATH): %w", err)
		}
	}
	out, err := sink.Open(opts)
	if err != nil {
		src.Release()
		return err
	}

	det := process.NewMotion(c.MotionOptions())
	defer det.Close()

	p := video.NewPipeline(src, det, out, &video.PipelineOptions{
		QueueSize: c.QueueSize,
		Metrics:   s.metrics,
		Listeners: []video.MotionListener{s.preview, s.events},
	})
	log.WithField("run", p.ID()).Infof("Recording motion from %v (%dx%d@%.2f) to %v",
		input, opts.Size.X, opts.Size.Y, opts.FPS, output)

	s.status.SetRun(serve.RunInfo{
		ID:        p.ID(),
		Input:     input,
		Output:    output,
		StartedAt: time.Now(),
	}, p.Stats)
	defer s.status.SetRun(serve.RunInfo{}, nil)

	st := p.Run(stop)

	rlog := log.WithField("run", p.ID())
	if st.Written == 0 {
		rlog.Infof("No motion recorded in %v", output)
	}
	if d, err := video.VideoDuration(output); err == nil {
		rlog.Infof("Wrote %d frames (%v) to %v", st.Written, d, output)
	} else {
		rlog.Infof("Wrote %d frames to %v", st.Written, output)
	}
	return nil
}

func main() {
	flag.Parse()
	setupLogging(nil, flags.Debug)

	path, err := config.Path(flags.ConfigPath)
	if err != nil {
		log.Warnf("%v, using defaults", err)
	}
	c, err := loadConfig(path)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	setupLogging(c, flags.Debug)

	interrupted := util.NewEvent()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("Caught signal %v, finishing queued frames", sig)
		interrupted.Notify()
	}()

	mjpeg := sink.NewMJPEGServer()
	preview := mjpeg.NewStream("motion")
	s := &station{
		metrics: video.NewMetrics(prometheus.DefaultRegisterer),
		status:  &serve.StatusServer{Viewers: preview.Listeners},
		events:  serve.NewEventStream(),
		preview: preview,
	}
	defer s.preview.Close()

	if c.HTTP != "" {
		srv := &serve.Server{
			Status:   s.status,
			Events:   s.events,
			Preview:  mjpeg,
			Gatherer: prometheus.DefaultGatherer,
		}
		go func() {
			log.Infof("Serving status on %v", c.HTTP)
			log.Errorln(http.ListenAndServe(c.HTTP, srv.Handler()))
		}()
	}

	for {
		stop := util.NewEvent()
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			select {
			case <-interrupted.Done():
				stop.Notify()
			case <-ctx.Done():
			}
		}()

		var reload atomic.Bool
		if flags.Watch && path != "" {
			go func() {
				err := config.WaitForChange(ctx, path)
				if ctx.Err() != nil {
					return
				}
				if err != nil {
					log.Warnf("Not watching config file: %v", err)
					return
				}
				log.Infof("Config file %v changed, starting a new recording", path)
				reload.Store(true)
				stop.Notify()
			}()
		}

		err := s.run(c, stop)
		cancel()
		if err != nil {
			log.Fatalf("%v", err)
		}
		if !reload.Load() || interrupted.HasBeenNotified() {
			return
		}

		nc, err := loadConfig(path)
		if err != nil {
			log.Errorf("Keeping previous configuration: %v", err)
			continue
		}
		c = nc
		setupLogging(c, flags.Debug)
	}
}
