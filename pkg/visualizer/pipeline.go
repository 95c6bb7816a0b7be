package visualizer

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/dittyapp/ditty/pkg/audioio"
	"github.com/dittyapp/ditty/pkg/spectrum"
)

// Pipeline turns captured buffers into the published spectrum:
// analyzer, then smoother, then a briefly-locked copy into the published
// frame.
//
// Process runs on the source's real-time goroutine and owns the analyzer and
// smoother. Snapshot may be called from any goroutine. Reset must only be
// called while no Process call is in flight, which holds once the source has
// been closed.
type Pipeline struct {
	analyzer *spectrum.Analyzer
	smoother *spectrum.Smoother

	mu        sync.RWMutex
	published spectrum.Frame

	frames     atomic.Int64
	sampleRate atomic.Uint64
	level      atomic.Uint64 // float64 bits
}

// NewPipeline creates a pipeline with the given analysis and smoothing
// parameters.
func NewPipeline(cfg spectrum.Config, smoothing spectrum.SmootherConfig) (*Pipeline, error) {
	analyzer, err := spectrum.NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}
	smoother, err := spectrum.NewSmoother(cfg.Bands, smoothing)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		analyzer:  analyzer,
		smoother:  smoother,
		published: spectrum.NewFrame(cfg.Bands),
	}, nil
}

// Process analyzes one buffer and publishes the smoothed result.
// It has the signature of audioio.FrameHandler.
func (p *Pipeline) Process(samples []float32, sampleRate float64) {
	target := p.analyzer.Process(samples, sampleRate)
	smoothed := p.smoother.Apply(target)

	p.mu.Lock()
	copy(p.published, smoothed)
	p.mu.Unlock()

	p.frames.Add(1)
	p.sampleRate.Store(uint64(sampleRate))
	p.level.Store(math.Float64bits(audioio.RMS(samples)))
}

// Snapshot copies the published frame into dst, growing it if needed, and
// returns it.
func (p *Pipeline) Snapshot(dst []float64) []float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if cap(dst) < len(p.published) {
		dst = make([]float64, len(p.published))
	}
	dst = dst[:len(p.published)]
	copy(dst, p.published)
	return dst
}

// Reset zeroes the analyzer, the smoother and the published frame.
func (p *Pipeline) Reset() {
	p.analyzer.Reset()
	p.smoother.Reset()

	p.mu.Lock()
	clear(p.published)
	p.mu.Unlock()

	p.sampleRate.Store(0)
	p.level.Store(0)
}

// Bands returns the number of published bands.
func (p *Pipeline) Bands() int {
	return p.analyzer.Bands()
}

// Frames returns the number of buffers processed.
func (p *Pipeline) Frames() int64 {
	return p.frames.Load()
}

// SampleRate returns the rate of the last processed buffer, or 0 after Reset.
func (p *Pipeline) SampleRate() float64 {
	return float64(p.sampleRate.Load())
}

// Level returns the RMS level of the last processed buffer, or 0 after Reset.
func (p *Pipeline) Level() float64 {
	return math.Float64frombits(p.level.Load())
}
