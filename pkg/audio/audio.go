// Package audio defines the types for microphone capture within RiskGuard.
//
// The two primary abstractions are:
//
//   - [Source] — a stream of PCM frames from a capture device.
//   - [Writer] — a WAV file sink that the recording controller drains a
//     Source into while a call is active.
//
// Implementations of [Source] are provided by platform-specific adapter
// packages; the core never touches capture hardware directly.
//
// This package lives under pkg/ because external code (platform capture
// adapters) is expected to implement [Source].
package audio

import "time"

// Frame represents a single frame of PCM audio captured from the microphone.
// Frames are the atomic unit of audio transport between the capture adapter
// and the recording sink.
type Frame struct {
	// Data is 16-bit signed little-endian PCM.
	Data []byte

	// SampleRate in Hz (e.g., 44100 for call recordings).
	SampleRate int

	// Channels: 1 for mono capture, 2 for stereo.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is the capture profile used for call recordings:
// 44.1 kHz mono 16-bit PCM.
var DefaultFormat = Format{SampleRate: 44100, Channels: 1}

// Source is a stream of captured audio frames. The channel is closed by the
// producer when capture stops or fails.
type Source interface {
	// Frames returns the capture stream. Receivers must drain it promptly;
	// producers may drop frames when the receiver falls behind.
	Frames() <-chan Frame
}

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when a capture stream must be consumed
// but its data is no longer needed (e.g. recording aborted mid-call).
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
