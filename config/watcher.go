package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// EnvPath names the environment variable holding a config file path.
const EnvPath = "BEECAM_CONFIG"

// ErrConfigNotFound is returned when no config file location can be
// determined.
var ErrConfigNotFound = errors.New("no valid config path found")

// Path returns the config file to use: explicit if set, then $BEECAM_CONFIG,
// then beecam/config.json in the user config directory.
func Path(explicit string) (string, error) {
	if explicit != "" {
		return ExpandHome(explicit), nil
	}
	if p := os.Getenv(EnvPath); p != "" {
		return ExpandHome(p), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConfigNotFound, err)
	}
	return filepath.Join(dir, "beecam", "config.json"), nil
}

func configFromFile(path string) (*Config, error) {
	config := Default()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p := json.NewDecoder(f)
	p.DisallowUnknownFields()
	if err := p.Decode(config); err != nil {
		return nil, fmt.Errorf("parsing %v: %w", path, err)
	}
	log.Debugf("Loaded configuration: %v", spew.Sdump(config))
	return config, nil
}

// Load reads the config file at path. A missing file yields the defaults;
// a broken one is reported and also yields the defaults, so a misedited file
// never keeps an unattended station from recording.
func Load(path string) *Config {
	config, err := configFromFile(path)
	switch {
	case err == nil:
		return config
	case errors.Is(err, os.ErrNotExist):
		log.Debugf("No config file at %v, using defaults", path)
	default:
		log.Errorf("Invalid config, using defaults: %v", err)
	}
	return Default()
}

// WaitForChange blocks until the file at path is modified or ctx is done.
func WaitForChange(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return err
	}
wait:
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-watcher.Errors:
			return err
		case ev := <-watcher.Events:
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				break wait
			}
		}
	}
	// Editors often write in several steps; let the file settle.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Second / 10):
	}
	return ctx.Err()
}
