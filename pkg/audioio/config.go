// Package audioio defines the sample source abstraction the spectrum
// pipeline consumes.
//
// Sources deliver mono float PCM on a real-time goroutine through a
// FrameHandler. The package supports multiple backends:
//   - PortAudio - hardware loopback capture (see pkg/capture)
//   - Synthetic - generated tones or a replayed WAV file
//   - Mock - deterministic source with fault injection for tests
//
// The backend is selected automatically based on the platform, or can be
// explicitly specified via configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendPortAudio captures a loopback device through PortAudio.
	BackendPortAudio Backend = "portaudio"
	// BackendSynthetic generates a tone mix through the synthetic driver.
	BackendSynthetic Backend = "synthetic"
	// BackendFile replays a WAV file through the synthetic driver.
	BackendFile Backend = "file"
	// BackendMock uses the mock driver for testing.
	BackendMock Backend = "mock"
)

// Config holds sample source configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (selects best available for platform)
	Backend Backend `mapstructure:"backend" yaml:"backend" json:"backend"`

	// Target identifies the external process whose audio is tapped.
	// Matched against process names, case-insensitively.
	Target string `mapstructure:"target" yaml:"target" json:"target"`

	// Device is a substring of the loopback input device name.
	// Examples: "BlackHole", "Monitor of", "Loopback"
	Device string `mapstructure:"device" yaml:"device" json:"device"`

	// File is the WAV file replayed by the file backend.
	File string `mapstructure:"file" yaml:"file" json:"file"`

	// Tones are the frequencies (Hz) mixed by the synthetic backend.
	Tones []float64 `mapstructure:"tones" yaml:"tones" json:"tones"`

	// SampleRate is the rate the synthetic backend reports.
	// Hardware backends negotiate their own rate.
	SampleRate float64 `mapstructure:"sample_rate" yaml:"sample_rate" json:"sample_rate"`

	// Channels is the interleaved channel count the synthetic backend reports.
	Channels int `mapstructure:"channels" yaml:"channels" json:"channels"`

	// BufferDuration is the size of audio buffers delivered to the handler.
	// Default: 20ms
	BufferDuration time.Duration `mapstructure:"buffer_duration" yaml:"buffer_duration" json:"buffer_duration"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		Target:         "Music",
		Device:         "",
		Tones:          []float64{110, 1000, 6000},
		SampleRate:     48000,
		Channels:       2,
		BufferDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendPortAudio, BackendSynthetic, BackendFile, BackendMock:
	default:
		return fmt.Errorf("unsupported backend: %s", c.Backend)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %v", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	if c.Backend == BackendFile && c.File == "" {
		return fmt.Errorf("file backend requires a file")
	}
	return nil
}

// BufferSize returns the number of frames per buffer.
func (c *Config) BufferSize() int {
	return int(c.SampleRate * c.BufferDuration.Seconds())
}
