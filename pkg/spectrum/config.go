// Package spectrum turns mono PCM buffers into a smoothed, perceptually
// scaled band spectrum.
//
// The package is pure computation: no I/O, no goroutines. An Analyzer and a
// Smoother are owned by a single goroutine (the real-time callback) and reuse
// their buffers across calls, so steady-state processing does not allocate.
package spectrum

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("spectrum: invalid config")

// Default analysis constants.
const (
	DefaultFFTSize       = 4096
	DefaultBands         = 64
	DefaultMinFrequency  = 30.0
	DefaultMaxFrequency  = 20000.0
	DefaultPeakAttack    = 0.7
	DefaultPeakDecay     = 0.005
	DefaultEpsilon       = 1e-4
	DefaultHighFreqBoost = 2.5
	DefaultExponent      = 0.7
	DefaultDecibelFloor  = -90.0
)

// MagnitudeScale selects how FFT magnitudes are converted before banding.
type MagnitudeScale string

const (
	// MagnitudeAmplitude uses linear amplitude (square root of power).
	// It gives a less spiky, more perceptually linear response.
	MagnitudeAmplitude MagnitudeScale = "amplitude"
	// MagnitudeDecibel maps power in dB onto [0,1] above DecibelFloor.
	MagnitudeDecibel MagnitudeScale = "decibel"
)

// Config holds analyzer parameters.
type Config struct {
	// FFTSize is the transform size N. Must be a power of two.
	FFTSize int `mapstructure:"fft_size" yaml:"fft_size" json:"fft_size"`

	// Bands is the number of output bands B.
	Bands int `mapstructure:"bands" yaml:"bands" json:"bands"`

	// MinFrequency is the lower edge of band 0 in Hz.
	MinFrequency float64 `mapstructure:"min_frequency" yaml:"min_frequency" json:"min_frequency"`

	// MaxFrequency is the upper edge of the last band in Hz.
	// It is capped at the Nyquist frequency of the stream.
	MaxFrequency float64 `mapstructure:"max_frequency" yaml:"max_frequency" json:"max_frequency"`

	// Scale selects amplitude or decibel magnitudes.
	Scale MagnitudeScale `mapstructure:"scale" yaml:"scale" json:"scale"`

	// DecibelFloor is the level mapped to 0 in decibel mode.
	DecibelFloor float64 `mapstructure:"decibel_floor" yaml:"decibel_floor" json:"decibel_floor"`

	// PeakAttack is the weight of a new maximum when it exceeds the tracked peak.
	PeakAttack float64 `mapstructure:"peak_attack" yaml:"peak_attack" json:"peak_attack"`

	// PeakDecay is the weight of a new maximum when it is below the tracked peak.
	PeakDecay float64 `mapstructure:"peak_decay" yaml:"peak_decay" json:"peak_decay"`

	// Epsilon is the smallest peak used for normalization.
	Epsilon float64 `mapstructure:"epsilon" yaml:"epsilon" json:"epsilon"`

	// HighFreqBoost is the extra gain at the top band; band 0 gets none.
	// 2.5 gives a 1x..3.5x ramp.
	HighFreqBoost float64 `mapstructure:"high_freq_boost" yaml:"high_freq_boost" json:"high_freq_boost"`

	// Exponent is the power curve applied after boosting.
	Exponent float64 `mapstructure:"exponent" yaml:"exponent" json:"exponent"`
}

// DefaultConfig returns the reference analyzer configuration.
func DefaultConfig() Config {
	return Config{
		FFTSize:       DefaultFFTSize,
		Bands:         DefaultBands,
		MinFrequency:  DefaultMinFrequency,
		MaxFrequency:  DefaultMaxFrequency,
		Scale:         MagnitudeAmplitude,
		DecibelFloor:  DefaultDecibelFloor,
		PeakAttack:    DefaultPeakAttack,
		PeakDecay:     DefaultPeakDecay,
		Epsilon:       DefaultEpsilon,
		HighFreqBoost: DefaultHighFreqBoost,
		Exponent:      DefaultExponent,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.FFTSize < 64 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("%w: fft_size must be a power of two >= 64, got %d", ErrInvalidConfig, c.FFTSize)
	}
	if c.Bands < 1 {
		return fmt.Errorf("%w: bands must be positive, got %d", ErrInvalidConfig, c.Bands)
	}
	if c.MinFrequency <= 0 || c.MaxFrequency <= c.MinFrequency {
		return fmt.Errorf("%w: need 0 < min_frequency < max_frequency, got %v..%v",
			ErrInvalidConfig, c.MinFrequency, c.MaxFrequency)
	}
	if c.Scale != MagnitudeAmplitude && c.Scale != MagnitudeDecibel {
		return fmt.Errorf("%w: unknown scale %q", ErrInvalidConfig, c.Scale)
	}
	if c.Scale == MagnitudeDecibel && c.DecibelFloor >= 0 {
		return fmt.Errorf("%w: decibel_floor must be negative, got %v", ErrInvalidConfig, c.DecibelFloor)
	}
	if c.PeakAttack <= 0 || c.PeakAttack > 1 || c.PeakDecay <= 0 || c.PeakDecay > 1 {
		return fmt.Errorf("%w: peak weights must be in (0,1], got attack=%v decay=%v",
			ErrInvalidConfig, c.PeakAttack, c.PeakDecay)
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("%w: epsilon must be positive, got %v", ErrInvalidConfig, c.Epsilon)
	}
	if c.HighFreqBoost < 0 {
		return fmt.Errorf("%w: high_freq_boost must not be negative, got %v", ErrInvalidConfig, c.HighFreqBoost)
	}
	if c.Exponent <= 0 {
		return fmt.Errorf("%w: exponent must be positive, got %v", ErrInvalidConfig, c.Exponent)
	}
	return nil
}

// SmootherConfig holds the per-band temporal shaping weights.
// Attack must be at least Decay.
type SmootherConfig struct {
	// Attack is the weight of the target when it is above the displayed value.
	Attack float64 `mapstructure:"attack" yaml:"attack" json:"attack"`

	// Decay is the weight of the target when it is below the displayed value.
	Decay float64 `mapstructure:"decay" yaml:"decay" json:"decay"`

	// SnapAttack jumps straight to rising targets, ignoring Attack.
	SnapAttack bool `mapstructure:"snap_attack" yaml:"snap_attack" json:"snap_attack"`
}

// DefaultSmootherConfig returns punchy-rise, gentle-fall weights.
func DefaultSmootherConfig() SmootherConfig {
	return SmootherConfig{
		Attack: 0.9,
		Decay:  0.25,
	}
}

// Validate checks that the weights are in (0,1] and Attack >= Decay.
func (c *SmootherConfig) Validate() error {
	if c.Attack <= 0 || c.Attack > 1 {
		return fmt.Errorf("%w: attack must be in (0,1], got %v", ErrInvalidConfig, c.Attack)
	}
	if c.Decay <= 0 || c.Decay > 1 {
		return fmt.Errorf("%w: decay must be in (0,1], got %v", ErrInvalidConfig, c.Decay)
	}
	if c.Attack < c.Decay {
		return fmt.Errorf("%w: attack (%v) must be >= decay (%v)", ErrInvalidConfig, c.Attack, c.Decay)
	}
	return nil
}
