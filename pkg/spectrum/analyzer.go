package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyzer converts a buffer of mono samples into a normalized band frame:
// Hann window, real FFT, magnitude, log-frequency banding (max over the
// band's bins), adaptive peak normalization, high-frequency boost and a
// sub-linear output curve.
//
// The FFT plan, window and all scratch buffers are allocated once. An
// Analyzer is not safe for concurrent use.
type Analyzer struct {
	cfg Config

	plan   *fourier.FFT
	window []float64
	buf    []float64
	coeff  []complex128
	mags   []float64

	sampleRate float64
	layout     bandLayout
	boost      []float64

	raw  Frame
	out  Frame
	peak PeakTracker
}

// NewAnalyzer creates an analyzer from cfg.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.FFTSize
	a := &Analyzer{
		cfg:    cfg,
		plan:   fourier.NewFFT(n),
		window: window.Hann(n),
		buf:    make([]float64, n),
		coeff:  make([]complex128, n/2+1),
		mags:   make([]float64, n/2),
		boost:  make([]float64, cfg.Bands),
		raw:    NewFrame(cfg.Bands),
		out:    NewFrame(cfg.Bands),
		peak:   NewPeakTracker(cfg.PeakAttack, cfg.PeakDecay),
	}

	for i := range a.boost {
		t := 0.0
		if cfg.Bands > 1 {
			t = float64(i) / float64(cfg.Bands-1)
		}
		a.boost[i] = 1 + cfg.HighFreqBoost*t
	}

	return a, nil
}

// Process analyzes samples captured at sampleRate and returns the band frame.
//
// Buffers shorter than the FFT size are zero-padded, longer ones truncated.
// The returned frame is owned by the analyzer and overwritten by the next
// call; copy it to retain it.
func (a *Analyzer) Process(samples []float32, sampleRate float64) Frame {
	if sampleRate <= 0 {
		clear(a.raw)
		clear(a.out)
		return a.out
	}
	if sampleRate != a.sampleRate {
		a.configure(sampleRate)
	}

	n := min(len(samples), len(a.buf))
	for i := 0; i < n; i++ {
		v := float64(samples[i])
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		a.buf[i] = v * a.window[i]
	}
	clear(a.buf[n:])

	a.coeff = a.plan.Coefficients(a.coeff, a.buf)
	a.magnitudes()
	a.band()
	a.normalize()

	return a.out
}

// configure rebuilds the sample-rate dependent band layout. It only runs when
// the stream format changes.
func (a *Analyzer) configure(sampleRate float64) {
	a.sampleRate = sampleRate
	a.layout = newBandLayout(a.cfg.Bands, a.cfg.FFTSize, sampleRate, a.cfg.MinFrequency, a.cfg.MaxFrequency)
}

func (a *Analyzer) magnitudes() {
	scale := 2 / float64(a.cfg.FFTSize)
	for k := range a.mags {
		amp := cmplx.Abs(a.coeff[k]) * scale
		if a.cfg.Scale == MagnitudeDecibel {
			db := 20 * math.Log10(math.Max(amp, 1e-12))
			amp = math.Max(0, 1-db/a.cfg.DecibelFloor)
		}
		a.mags[k] = amp
	}
}

// band takes the loudest bin of each band. A tone close to a band edge can
// read louder in the neighbouring band, whose bin sits nearer the tone. Low
// bands narrower than a bin may borrow the same bin and then read equal;
// Frame.ArgMax resolves such ties to the lowest band.
func (a *Analyzer) band() {
	for i := range a.raw {
		m := 0.0
		for _, v := range a.mags[a.layout.lo[i]:a.layout.hi[i]] {
			if v > m {
				m = v
			}
		}
		a.raw[i] = m
	}
}

func (a *Analyzer) normalize() {
	peak := a.peak.Update(a.raw.Max())
	inv := 1 / math.Max(peak, a.cfg.Epsilon)

	for i, v := range a.raw {
		v = math.Pow(v*inv*a.boost[i], a.cfg.Exponent)
		if math.IsNaN(v) || v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		a.out[i] = v
	}
}

// BandMagnitudes returns the per-band magnitudes of the last call to Process,
// before normalization. The slice is owned by the analyzer.
func (a *Analyzer) BandMagnitudes() Frame {
	return a.raw
}

// Peak returns the tracked normalization peak.
func (a *Analyzer) Peak() float64 {
	return a.peak.Peak()
}

// BandRange returns the frequency range [lo, hi) of band i for sampleRate.
func (a *Analyzer) BandRange(i int, sampleRate float64) (lo, hi float64) {
	l := a.layoutFor(sampleRate)
	if i < 0 || i >= a.cfg.Bands {
		return 0, 0
	}
	return l.edges[i], l.edges[i+1]
}

// BandIndex returns the band whose range contains freq at sampleRate, or -1.
// It is not always the band that reads loudest for a tone at freq; see band.
func (a *Analyzer) BandIndex(freq, sampleRate float64) int {
	return a.layoutFor(sampleRate).bandOf(freq)
}

func (a *Analyzer) layoutFor(sampleRate float64) bandLayout {
	if sampleRate == a.sampleRate && a.layout.edges != nil {
		return a.layout
	}
	return newBandLayout(a.cfg.Bands, a.cfg.FFTSize, sampleRate, a.cfg.MinFrequency, a.cfg.MaxFrequency)
}

// Bands returns the number of output bands.
func (a *Analyzer) Bands() int {
	return a.cfg.Bands
}

// Reset clears the peak tracker and the last frame.
func (a *Analyzer) Reset() {
	a.peak.Reset()
	clear(a.raw)
	clear(a.out)
}
