package capture

import (
	"fmt"
	"log/slog"

	"github.com/dittyapp/ditty/pkg/audioio"
)

// NewSource creates a sample source for cfg.Backend.
//
// Hardware and synthetic backends are wrapped in a Session so they go through
// the full acquisition and teardown order. The mock backend returns an
// audioio.MockSource playing a 1 kHz tone.
func NewSource(cfg audioio.Config, logger *slog.Logger) (audioio.SampleSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := audioio.ResolveBackend(cfg.Backend)
	logger.Info("creating sample source", "backend", backend, "target", cfg.Target)

	session := DefaultSessionConfig(cfg.Target)

	switch backend {
	case audioio.BackendPortAudio:
		drv, err := NewPortAudioDriver(cfg.Device)
		if err != nil {
			return nil, fmt.Errorf("portaudio driver: %w", err)
		}
		return NewSession(drv, session, logger), nil

	case audioio.BackendSynthetic:
		drv := NewSyntheticDriver(SyntheticConfig{
			Tones:          cfg.Tones,
			SampleRate:     cfg.SampleRate,
			Channels:       cfg.Channels,
			BufferDuration: cfg.BufferDuration,
		})
		return NewSession(drv, session, logger), nil

	case audioio.BackendFile:
		pcm, err := audioio.LoadWAV(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.File, err)
		}
		drv := NewSyntheticDriver(SyntheticConfig{
			PCM:            pcm,
			BufferDuration: cfg.BufferDuration,
		})
		return NewSession(drv, session, logger), nil

	case audioio.BackendMock:
		return audioio.NewMockSource(cfg, logger, audioio.WithSineWave(1000, 0.5)), nil

	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}
}
