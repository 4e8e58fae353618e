package video

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPath(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFilesystem(dir, "", ".mkv")
	require.NoError(t, err)

	ts := time.Date(2022, 6, 1, 14, 30, 5, 0, time.UTC)
	p, err := fs.OutputPath(ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2022-06-01T14:30:05.mkv"), p)

	require.NoError(t, os.WriteFile(p, nil, 0644))
	p2, err := fs.OutputPath(ts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "2022-06-01T14:30:05-1.mkv"), p2)
}

func TestOutputPathNameTooLong(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir(), "2006-01-02"+strings.Repeat("x", 300), "mkv")
	require.NoError(t, err)

	done := make(chan error)
	go func() {
		_, err := fs.OutputPath(time.Now())
		done <- err
	}()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("OutputPath did not return")
	}
}

func TestNewFilesystemRequiresDirectory(t *testing.T) {
	_, err := NewFilesystem(filepath.Join(t.TempDir(), "missing"), "", "mkv")
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0644))
	_, err = NewFilesystem(f, "", "mkv")
	assert.Error(t, err)
}

func TestVideoDurationOnlyMP4(t *testing.T) {
	_, err := VideoDuration("/tmp/out.mkv")
	assert.Error(t, err)

	_, err = VideoDuration(filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}
