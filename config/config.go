package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"beecam/video"
	"beecam/video/process"
	"beecam/video/sink"
)

// Config holds every user-tunable setting. Zero values are filled in from
// Default when a file is loaded.
type Config struct {
	// Index selects /dev/video<Index>. Ignored when Video is set.
	Index int    `json:"index"`
	Video string `json:"video"`

	Framerate  float64 `json:"framerate"`
	Resolution string  `json:"resolution"`

	Directory string `json:"directory"`
	// Format is a Go time layout for output file names.
	Format    string `json:"format"`
	Container string `json:"container"`
	Codec     string `json:"codec"`
	Encoder   string `json:"encoder"`
	Overlay   bool   `json:"overlay"`

	Quiet   bool `json:"quiet"`
	NoColor bool `json:"no_color"`

	QueueSize      int     `json:"queue_size"`
	MotionThresh   float64 `json:"motion_thresh"`
	MotionDilate   int     `json:"motion_dilate"`
	SuppressWarmup bool    `json:"suppress_warmup"`

	// HTTP is the listen address of the status server; empty disables it.
	HTTP string `json:"http"`
}

// Resolutions maps the supported 16:9 resolution names to frame sizes.
var Resolutions = map[string]image.Point{
	"480p":  {X: 854, Y: 480},
	"576p":  {X: 1024, Y: 576},
	"720p":  {X: 1280, Y: 720},
	"768p":  {X: 1366, Y: 768},
	"900p":  {X: 1600, Y: 900},
	"1080p": {X: 1920, Y: 1080},
	"1440p": {X: 2560, Y: 1440},
	"2160p": {X: 3840, Y: 2160},
}

// ResolutionNames lists the keys of Resolutions, smallest first.
func ResolutionNames() []string {
	names := make([]string, 0, len(Resolutions))
	for k := range Resolutions {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		return Resolutions[names[i]].Y < Resolutions[names[j]].Y
	})
	return names
}

func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	m := process.DefaultMotionOptions()
	return &Config{
		Framerate:    60,
		Resolution:   "480p",
		Directory:    home,
		Format:       video.DefaultFileTimeLayout,
		Container:    "mkv",
		Codec:        string(sink.XVID),
		Encoder:      sink.EncoderOpenCV,
		QueueSize:    video.DefaultQueueSize,
		MotionThresh: float64(m.Thresh),
		MotionDilate: m.Dilate,
	}
}

// Size returns the frame size for the configured resolution.
func (c *Config) Size() image.Point {
	return Resolutions[c.Resolution]
}

// Validate checks the configuration, naming each offending field.
func (c *Config) Validate() error {
	var errs []error
	if c.Video == "" && c.Index < 0 {
		errs = append(errs, fmt.Errorf("index: must not be negative"))
	}
	if c.Video != "" {
		if st, err := os.Stat(ExpandHome(c.Video)); err != nil || st.IsDir() {
			errs = append(errs, fmt.Errorf("video: %v is not a file", c.Video))
		}
	}
	if c.Framerate < 1 {
		errs = append(errs, fmt.Errorf("framerate: invalid framerate %v (must be >= 1)", c.Framerate))
	}
	if _, ok := Resolutions[c.Resolution]; !ok {
		errs = append(errs, fmt.Errorf("resolution: %q is not one of %v", c.Resolution, strings.Join(ResolutionNames(), ", ")))
	}
	if st, err := os.Stat(ExpandHome(c.Directory)); err != nil || !st.IsDir() {
		errs = append(errs, fmt.Errorf("directory: %v is not a directory", c.Directory))
	}
	if c.Format == "" {
		errs = append(errs, fmt.Errorf("format: must not be empty"))
	}
	if c.Container == "" {
		errs = append(errs, fmt.Errorf("container: must not be empty"))
	}
	if _, err := sink.ParseCodec(c.Codec); err != nil {
		errs = append(errs, fmt.Errorf("codec: %v", err))
	}
	if c.Encoder != sink.EncoderOpenCV && c.Encoder != sink.EncoderFFmpeg {
		errs = append(errs, fmt.Errorf("encoder: %q is not %q or %q", c.Encoder, sink.EncoderOpenCV, sink.EncoderFFmpeg))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue_size: must be at least 1"))
	}
	if c.MotionThresh <= 0 || c.MotionThresh >= 255 {
		errs = append(errs, fmt.Errorf("motion_thresh: must be between 0 and 255"))
	}
	if c.MotionDilate < 0 {
		errs = append(errs, fmt.Errorf("motion_dilate: must not be negative"))
	}
	return errors.Join(errs...)
}

// MotionOptions returns the detector settings.
func (c *Config) MotionOptions() process.MotionOptions {
	m := process.DefaultMotionOptions()
	m.Thresh = float32(c.MotionThresh)
	m.Dilate = c.MotionDilate
	m.SuppressWarmup = c.SuppressWarmup
	return m
}

// SinkOptions returns the output settings for a source negotiated at the
// given size and frame rate.
func (c *Config) SinkOptions(path string, size image.Point, fps float64) sink.Options {
	return sink.Options{
		Path:    path,
		Codec:   sink.Codec(c.Codec),
		FPS:     fps,
		Size:    size,
		Overlay: c.Overlay,
		Encoder: c.Encoder,
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
