package sink

import (
	"fmt"

	"beecam/video/process"
	"beecam/video/source"
)

// Overlay wraps another Sink, burning each frame's capture time into the
// image before passing it on. If the timestamp cannot be drawn the frame is
// written unstamped and Put reports ErrTextOverlay.
type Overlay struct {
	// sink is the wrapped Sink which will receive stamped frames.
	sink Sink
}

func NewOverlay(sink Sink) *Overlay {
	return &Overlay{
		sink: sink,
	}
}

func (o *Overlay) Put(f source.Frame) error {
	stampErr := process.DrawTimestamp(&f)
	if err := o.sink.Put(f); err != nil {
		return err
	}
	if stampErr != nil {
		return fmt.Errorf("%w: %v", ErrTextOverlay, stampErr)
	}
	return nil
}

func (o *Overlay) Close() error {
	return o.sink.Close()
}
