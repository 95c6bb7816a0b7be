// Package visualizer wires a sample source, the connector and the spectrum
// pipeline into the engine a presentation layer polls.
package visualizer

import (
	"log/slog"

	"github.com/dittyapp/ditty/pkg/audioio"
	"github.com/dittyapp/ditty/pkg/capture"
	"github.com/dittyapp/ditty/pkg/connector"
	"github.com/dittyapp/ditty/pkg/spectrum"
)

// Config holds engine configuration.
type Config struct {
	Source    audioio.Config          `mapstructure:"source" yaml:"source" json:"source"`
	Spectrum  spectrum.Config         `mapstructure:"spectrum" yaml:"spectrum" json:"spectrum"`
	Smoothing spectrum.SmootherConfig `mapstructure:"smoothing" yaml:"smoothing" json:"smoothing"`
	Connector connector.Config        `mapstructure:"connector" yaml:"connector" json:"connector"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Source:    audioio.DefaultConfig(),
		Spectrum:  spectrum.DefaultConfig(),
		Smoothing: spectrum.DefaultSmootherConfig(),
		Connector: connector.DefaultConfig(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.Spectrum.Validate(); err != nil {
		return err
	}
	if err := c.Smoothing.Validate(); err != nil {
		return err
	}
	return c.Connector.Validate()
}

// Stats contains engine statistics.
type Stats struct {
	Connector  connector.Stats      `json:"connector"`
	Source     *audioio.SourceStats `json:"source,omitempty"`
	Frames     int64                `json:"frames"`
	SampleRate float64              `json:"sample_rate"`
	Bands      int                  `json:"bands"`
	LevelDBFS  float64              `json:"level_dbfs"`
}

// Engine is the public face of the capture and analysis core.
type Engine struct {
	src      audioio.SampleSource
	pipeline *Pipeline
	conn     *connector.Connector
	logger   *slog.Logger
}

// New creates an engine around src.
func New(src audioio.SampleSource, cfg Config, logger *slog.Logger, opts ...connector.Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pipeline, err := NewPipeline(cfg.Spectrum, cfg.Smoothing)
	if err != nil {
		return nil, err
	}

	opts = append([]connector.Option{
		connector.WithLogger(logger),
		connector.WithDisconnectHook(pipeline.Reset),
	}, opts...)

	return &Engine{
		src:      src,
		pipeline: pipeline,
		conn:     connector.New(src, pipeline.Process, cfg.Connector, opts...),
		logger:   logger,
	}, nil
}

// NewFromConfig validates cfg and creates an engine on the configured
// capture backend.
func NewFromConfig(cfg Config, logger *slog.Logger, opts ...connector.Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	src, err := capture.NewSource(cfg.Source, logger)
	if err != nil {
		return nil, err
	}
	return New(src, cfg, logger, opts...)
}

// Start begins capture. It returns immediately; failures are retried.
func (e *Engine) Start() {
	e.conn.Start()
}

// Stop ends capture and zeroes the spectrum.
func (e *Engine) Stop() {
	e.conn.Stop()
}

// Close stops the engine permanently.
func (e *Engine) Close() error {
	return e.conn.Close()
}

// CurrentSpectrum returns a copy of the latest smoothed band levels. It is
// all zeros when capture is not running.
func (e *Engine) CurrentSpectrum() []float64 {
	return e.pipeline.Snapshot(nil)
}

// SpectrumInto copies the latest band levels into dst, reusing it when large
// enough.
func (e *Engine) SpectrumInto(dst []float64) []float64 {
	return e.pipeline.Snapshot(dst)
}

// State returns the connection state.
func (e *Engine) State() connector.State {
	return e.conn.State()
}

// Bands returns the number of bands in a spectrum.
func (e *Engine) Bands() int {
	return e.pipeline.Bands()
}

// Stats returns engine statistics.
func (e *Engine) Stats() Stats {
	s := Stats{
		Connector:  e.conn.Stats(),
		Frames:     e.pipeline.Frames(),
		SampleRate: e.pipeline.SampleRate(),
		Bands:      e.pipeline.Bands(),
		LevelDBFS:  audioio.DBFS(e.pipeline.Level()),
	}
	if ws, ok := e.src.(audioio.SourceWithStats); ok {
		st := ws.Stats()
		s.Source = &st
	}
	return s
}
