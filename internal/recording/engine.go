// Package recording implements the call recording controller.
//
// The [Controller] enforces the single-active-recording invariant: capture
// hardware is a singleton resource, so at most one recording runs at a time
// regardless of how many sessions the coordinator churns through. Start is
// idempotent while a recording is active; Stop finalizes the audio artifact
// and hands its path to the Analysis Bridge.
package recording

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrWong99/riskguard/pkg/audio"
)

// Engine performs the actual audio capture. The OS microphone stack is
// external; implementations adapt it. [NewWAVEngine] provides a file-backed
// engine fed by an [audio.Source].
type Engine interface {
	// Start begins capturing to the file at path. Returns an error if the
	// capture device is unavailable.
	Start(ctx context.Context, path string) error

	// Stop ends the capture and finalizes the file. Calling Stop when no
	// capture is running must be a no-op.
	Stop(ctx context.Context) error
}

// wavEngine drains PCM frames from an [audio.Source] into a WAV file.
type wavEngine struct {
	source audio.Source
	format audio.Format

	writer  *audio.Writer
	done    chan struct{}
	stopped chan struct{}
}

// NewWAVEngine creates an [Engine] that records the given source to WAV
// files at the capture profile in [audio.DefaultFormat].
func NewWAVEngine(source audio.Source) Engine {
	return &wavEngine{source: source, format: audio.DefaultFormat}
}

// Start implements [Engine]. It opens the WAV sink and begins draining the
// source in a background goroutine until Stop is called or the source
// closes its stream.
func (e *wavEngine) Start(_ context.Context, path string) error {
	w, err := audio.NewWriter(path, e.format)
	if err != nil {
		return fmt.Errorf("recording: open sink: %w", err)
	}
	e.writer = w
	e.done = make(chan struct{})
	e.stopped = make(chan struct{})

	go func(w *audio.Writer, done, stopped chan struct{}) {
		// Abandon the stream on exit rather than draining it: a singleton
		// capture source keeps its channel across recordings, and a
		// lingering drain would steal frames from the next one. Producers
		// drop frames when nobody receives.
		defer close(stopped)
		frames := e.source.Frames()
		for {
			select {
			case <-done:
				return
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if err := w.WriteFrame(frame); err != nil {
					slog.Warn("recording: dropped frame", "err", err)
				}
			}
		}
	}(w, e.done, e.stopped)

	return nil
}

// Stop implements [Engine]. It waits for the reader goroutine to exit before
// finalizing the file, so the frame channel is free for the next Start and
// no write races the header patch.
func (e *wavEngine) Stop(_ context.Context) error {
	if e.writer == nil {
		return nil
	}
	close(e.done)
	<-e.stopped
	err := e.writer.Close()
	e.writer = nil
	e.done = nil
	e.stopped = nil
	if err != nil {
		return fmt.Errorf("recording: finalize sink: %w", err)
	}
	return nil
}
