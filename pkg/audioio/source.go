package audioio

import (
	"context"
)

// Format is the negotiated stream format of a capture source.
type Format struct {
	// SampleRate is the sample rate in Hz.
	SampleRate float64 `json:"sample_rate"`

	// Channels is the number of interleaved channels the device delivers.
	Channels int `json:"channels"`
}

// Valid reports whether the format can be used for analysis.
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// FrameHandler receives mono float PCM frames from a source.
//
// It is invoked on the source's real-time goroutine. The frames slice is only
// valid for the duration of the call and must not be retained. Handlers must
// not block.
type FrameHandler func(frames []float32, sampleRate float64)

// SampleSource is a stream of mono float PCM frames at a known sample rate.
type SampleSource interface {
	// Open acquires the source and starts delivering frames to handler.
	// On error every partially acquired resource has already been released.
	// Open on an already open source is a no-op.
	Open(ctx context.Context, handler FrameHandler) error

	// Close stops frame delivery and releases all resources.
	// It waits for any in-flight handler call to return.
	// It is safe to call Close multiple times.
	Close() error

	// Done is closed when an open source is lost without Close being called,
	// for example because the tapped process exited. It returns a nil channel
	// when the source is not open.
	Done() <-chan struct{}

	// Format returns the negotiated format, or the zero Format when closed.
	Format() Format

	// Name returns the backend name (e.g., "portaudio", "synthetic", "mock").
	Name() string
}

// SourceStats contains statistics about a sample source.
type SourceStats struct {
	// Opens is the number of successful Open calls.
	Opens int64 `json:"opens"`

	// Failures is the number of failed Open calls.
	Failures int64 `json:"failures"`

	// Buffers is the total number of buffers delivered to the handler.
	Buffers int64 `json:"buffers"`

	// Frames is the total number of mono frames delivered.
	Frames int64 `json:"frames"`

	// Running indicates if the source is currently delivering frames.
	Running bool `json:"running"`

	// Backend is the name of the audio backend.
	Backend string `json:"backend"`
}

// SourceWithStats extends SampleSource with statistics.
type SourceWithStats interface {
	SampleSource
	Stats() SourceStats
}
