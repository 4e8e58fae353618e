package video

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pillash/mp4util"
)

// DefaultFileTimeLayout defines the default format of output filenames.
// See https://golang.org/src/time/format.go.
const DefaultFileTimeLayout = "2006-01-02T15:04:05"

// Filesystem names output videos inside a base directory.
type Filesystem struct {
	BasePath string
	// Layout is the time layout used for file names.
	Layout string
	// Ext is the container extension, without the dot.
	Ext string
}

func NewFilesystem(path, layout, ext string) (*Filesystem, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%v is not a directory", path)
	}
	if layout == "" {
		layout = DefaultFileTimeLayout
	}
	return &Filesystem{
		BasePath: path,
		Layout:   layout,
		Ext:      strings.TrimPrefix(ext, "."),
	}, nil
}

// OutputPath returns the path of a new video started at t. An existing file
// is never reused; a numeric suffix is added instead. Any other stat failure,
// such as a name too long for the filesystem, is returned.
func (f *Filesystem) OutputPath(t time.Time) (string, error) {
	base := filepath.Join(f.BasePath, t.Format(f.Layout))
	p := base + "." + f.Ext
	for i := 1; ; i++ {
		_, err := os.Stat(p)
		if os.IsNotExist(err) {
			return p, nil
		}
		if err != nil {
			return "", fmt.Errorf("output path %v: %w", p, err)
		}
		p = fmt.Sprintf("%s-%d.%s", base, i, f.Ext)
	}
}

// VideoDuration reports the duration of a finalized mp4 file. Other
// containers are not supported.
func VideoDuration(path string) (time.Duration, error) {
	if !strings.EqualFold(filepath.Ext(path), ".mp4") {
		return 0, fmt.Errorf("duration of %v: not an mp4 file", path)
	}
	sec, err := mp4util.Duration(path)
	if err != nil {
		return 0, err
	}
	return time.Duration(sec) * time.Second, nil
}
