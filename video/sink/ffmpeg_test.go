package sink

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"beecam/video/source"
)

// fakeFFmpeg writes a shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return p
}

func TestFFmpegWritesRawFrames(t *testing.T) {
	// Copy stdin to the output path, the last argument.
	bin := fakeFFmpeg(t, `for a; do out="$a"; done; cat > "$out"`)
	size := image.Point{X: 64, Y: 48}
	path := filepath.Join(t.TempDir(), "out.mkv")

	s, err := Open(Options{
		Path:       path,
		Codec:      XVID,
		FPS:        10,
		Size:       size,
		Encoder:    EncoderFFmpeg,
		FFmpegPath: bin,
	})
	require.NoError(t, err)
	require.IsType(t, &FFmpeg{}, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Put(newFrame(t, size)))
	}
	err = s.Put(newFrame(t, image.Point{X: 32, Y: 24}))
	assert.ErrorIs(t, err, source.ErrFrameDropped)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	// Close waited for the process, so the file is complete.
	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.EqualValues(t, 3*size.X*size.Y*3, st.Size())

	// Writing after Close fails instead of blocking.
	assert.ErrorIs(t, s.Put(newFrame(t, size)), source.ErrFrameDropped)
}

func TestFFmpegProcessExited(t *testing.T) {
	bin := fakeFFmpeg(t, "exit 1")
	size := image.Point{X: 64, Y: 48}

	f, err := NewFFmpeg(bin, filepath.Join(t.TempDir(), "out.mkv"), XVID, 10, size)
	require.NoError(t, err)

	// Writes may land in the pipe buffer until the process is gone.
	deadline := time.Now().Add(10 * time.Second)
	for {
		err = f.Put(newFrame(t, size))
		if err != nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.ErrorIs(t, err, source.ErrFrameDropped)

	cerr := f.Close()
	assert.Error(t, cerr, "exit status is reported")
	assert.Equal(t, cerr, f.Close())
}
