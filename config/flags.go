package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Flags are the command line overrides. Only flags that were actually set
// replace file values.
type Flags struct {
	fs *flag.FlagSet

	ConfigPath string
	Watch      bool
	Debug      bool

	index      int
	video      string
	framerate  float64
	resolution string
	directory  string
	format     string
	codec      string
	encoder    string
	overlay    bool
	quiet      bool
	noColor    bool
	http       string
}

func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.ConfigPath, "config", "", "Config file (default $"+EnvPath+" or the user config dir).")
	fs.BoolVar(&f.Watch, "watch", false, "Restart into a new output file when the config file changes.")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging.")

	fs.IntVar(&f.index, "index", 0, "/dev/video<index> capture camera index.")
	fs.StringVar(&f.video, "video", "", "Video file as input.")
	fs.Float64Var(&f.framerate, "framerate", 0, "Video framerate.")
	fs.StringVar(&f.resolution, "resolution", "", "Video resolution ("+strings.Join(ResolutionNames(), ", ")+").")
	fs.StringVar(&f.directory, "directory", "", "Output video directory.")
	fs.StringVar(&f.format, "format", "", "Output file name, as a Go time layout.")
	fs.StringVar(&f.codec, "codec", "", "Output codec (mjpg, xvid, mp4v, h264).")
	fs.StringVar(&f.encoder, "encoder", "", "Encoder backend (opencv, ffmpeg).")
	fs.BoolVar(&f.overlay, "overlay", false, "Enable date & time video overlay.")
	fs.BoolVar(&f.quiet, "quiet", false, "Only log warnings and errors.")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored log output.")
	fs.StringVar(&f.http, "http", "", "Serve status, metrics and preview on this address.")
	return f
}

func (f *Flags) set() map[string]bool {
	m := make(map[string]bool)
	f.fs.Visit(func(fl *flag.Flag) {
		m[fl.Name] = true
	})
	return m
}

// Apply overrides c with the flags that were given on the command line and
// applies the input-file rules: with a video input the capture parameters
// come from the file and the overlay is disabled.
func (f *Flags) Apply(c *Config) error {
	set := f.set()
	if set["index"] && set["video"] {
		return errors.New("-index and -video are mutually exclusive")
	}

	if set["video"] {
		c.Video = f.video
	}
	if set["index"] {
		c.Index = f.index
		c.Video = ""
	}
	if set["directory"] {
		c.Directory = f.directory
	}
	if set["format"] {
		c.Format = f.format
	}
	if set["codec"] {
		c.Codec = f.codec
	}
	if set["encoder"] {
		c.Encoder = f.encoder
	}
	if set["quiet"] {
		c.Quiet = f.quiet
	}
	if set["no-color"] {
		c.NoColor = f.noColor
	}
	if set["http"] {
		c.HTTP = f.http
	}

	if c.Video != "" {
		for _, name := range []string{"framerate", "resolution", "overlay"} {
			if set[name] {
				return fmt.Errorf("-%v cannot be used with a video input", name)
			}
		}
		c.Video = ExpandHome(c.Video)
		if c.Overlay {
			log.Warn("Ignoring overlay while using a video input.")
			c.Overlay = false
		}
		return nil
	}

	if set["framerate"] {
		c.Framerate = f.framerate
	}
	if set["resolution"] {
		c.Resolution = f.resolution
	}
	if set["overlay"] {
		c.Overlay = f.overlay
	}
	return nil
}
