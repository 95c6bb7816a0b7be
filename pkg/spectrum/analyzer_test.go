package spectrum

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/mjibson/go-dsp/fft"
)

const testRate = 48000.0

func sine(freq, amp float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/testRate))
	}
	return out
}

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	return a
}

func TestAnalyzer_Silence(t *testing.T) {
	a := newTestAnalyzer(t)
	silence := make([]float32, DefaultFFTSize)

	for i := 0; i < 5; i++ {
		frame := a.Process(silence, testRate)
		if len(frame) != DefaultBands {
			t.Fatalf("expected %d bands, got %d", DefaultBands, len(frame))
		}
		for b, v := range frame {
			if v != 0 {
				t.Fatalf("band %d: expected 0 for silence, got %v", b, v)
			}
		}
	}
}

func TestAnalyzer_ZeroSampleRate(t *testing.T) {
	a := newTestAnalyzer(t)
	frame := a.Process(sine(1000, 0.5, DefaultFFTSize), 0)
	if frame.Max() != 0 {
		t.Errorf("expected all zeros for an unknown sample rate, got max %v", frame.Max())
	}
}

func TestAnalyzer_SineLandsInItsBand(t *testing.T) {
	a := newTestAnalyzer(t)

	for _, band := range []int{20, 34, 50, 60} {
		lo, hi := a.BandRange(band, testRate)
		freq := math.Sqrt(lo * hi)

		a.Process(sine(freq, 0.5, DefaultFFTSize), testRate)
		got := a.BandMagnitudes().ArgMax()
		if got != band {
			t.Errorf("%.1f Hz: expected band %d to carry the max, got %d", freq, band, got)
		}
		if idx := a.BandIndex(freq, testRate); idx != band {
			t.Errorf("BandIndex(%.1f) = %d, want %d", freq, idx, band)
		}
	}
}

func TestAnalyzer_ToneNearBandEdges(t *testing.T) {
	a := newTestAnalyzer(t)

	var freqs []float64
	for j := 0; j <= 96; j++ {
		freqs = append(freqs, 31*math.Pow(19000.0/31, float64(j)/96))
	}
	for b := 1; b < DefaultBands; b++ {
		edge, _ := a.BandRange(b, testRate)
		freqs = append(freqs, edge*0.998, edge*1.002)
	}

	for _, freq := range freqs {
		band := a.BandIndex(freq, testRate)
		if band < 0 {
			t.Fatalf("%.2f Hz is outside the band layout", freq)
		}

		a.Process(sine(freq, 0.5, DefaultFFTSize), testRate)
		raw := a.BandMagnitudes()
		loudest := raw.ArgMax()

		// The tone's own band always holds a bin within one bin of it.
		if ratio := raw[band] / raw.Max(); ratio < 0.4 {
			t.Errorf("%.2f Hz: band %d reads %.3f of the loudest band %d", freq, band, ratio, loudest)
		}

		// Once bands are a bin wide the loudest bin is at most one edge away.
		if freq >= 150 && (loudest < band-1 || loudest > band+1) {
			t.Errorf("%.2f Hz: loudest band %d, tone is in band %d", freq, loudest, band)
		}
	}
}

func TestAnalyzer_SharedLowBinsTie(t *testing.T) {
	a := newTestAnalyzer(t)
	a.Process(sine(40, 0.5, DefaultFFTSize), testRate)
	raw := a.BandMagnitudes()

	// Bands 0 to 2 are narrower than a bin and read the same bin.
	if raw[0] != raw[1] || raw[1] != raw[2] {
		t.Fatalf("expected equal low bands, got %v", raw[:3])
	}
	if got := raw.ArgMax(); got != 0 {
		t.Errorf("ties should resolve to the lowest band, got %d", got)
	}
}

func TestAnalyzer_OneKilohertzOutput(t *testing.T) {
	a := newTestAnalyzer(t)
	want := a.BandIndex(1000, testRate)
	if want < 0 {
		t.Fatal("1 kHz is outside the band layout")
	}

	var frame Frame
	in := sine(1000, 0.5, DefaultFFTSize)
	for i := 0; i < 20; i++ {
		frame = a.Process(in, testRate)
	}

	if got := frame.ArgMax(); got < want-1 || got > want+1 {
		t.Errorf("expected peak near band %d, got %d", want, got)
	}
	for b, v := range frame {
		if v < 0 || v > 1 {
			t.Errorf("band %d out of range: %v", b, v)
		}
		if (b < want-1 || b > want+1) && v > 0.2 {
			t.Errorf("band %d unexpectedly loud: %v", b, v)
		}
	}
}

func TestAnalyzer_PeakConverges(t *testing.T) {
	a := newTestAnalyzer(t)
	in := sine(1000, 0.5, DefaultFFTSize)

	a.Process(in, testRate)
	target := a.BandMagnitudes().Max()
	first := a.Peak()
	if math.Abs(first-DefaultPeakAttack*target) > 1e-9 {
		t.Errorf("first peak = %v, want %v", first, DefaultPeakAttack*target)
	}

	for i := 0; i < 30; i++ {
		a.Process(in, testRate)
	}
	if math.Abs(a.Peak()-target) > 1e-6 {
		t.Errorf("peak did not converge: got %v, want %v", a.Peak(), target)
	}

	// Silence decays the peak slowly.
	silence := make([]float32, DefaultFFTSize)
	a.Process(silence, testRate)
	if want := target * (1 - DefaultPeakDecay); math.Abs(a.Peak()-want) > 1e-6 {
		t.Errorf("peak after silence = %v, want %v", a.Peak(), want)
	}
}

func TestAnalyzer_PadAndTruncate(t *testing.T) {
	short := sine(1000, 0.5, DefaultFFTSize/2)
	long := sine(1000, 0.5, DefaultFFTSize*2)

	for name, in := range map[string][]float32{"short": short, "long": long} {
		t.Run(name, func(t *testing.T) {
			a := newTestAnalyzer(t)
			a.Process(in, testRate)
			want := a.BandIndex(1000, testRate)
			if got := a.BandMagnitudes().ArgMax(); got < want-1 || got > want+1 {
				t.Errorf("expected peak near band %d, got %d", want, got)
			}
		})
	}
}

func TestAnalyzer_NonFiniteSamples(t *testing.T) {
	a := newTestAnalyzer(t)
	in := sine(1000, 0.5, DefaultFFTSize)
	in[10] = float32(math.NaN())
	in[20] = float32(math.Inf(1))

	for b, v := range a.Process(in, testRate) {
		if math.IsNaN(v) || v < 0 || v > 1 {
			t.Fatalf("band %d: got %v", b, v)
		}
	}
}

func TestAnalyzer_SampleRateChange(t *testing.T) {
	a := newTestAnalyzer(t)
	a.Process(sine(1000, 0.5, DefaultFFTSize), testRate)

	const rate = 44100.0
	in := make([]float32, DefaultFFTSize)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*1000*float64(i)/rate))
	}
	a.Process(in, rate)

	want := a.BandIndex(1000, rate)
	if got := a.BandMagnitudes().ArgMax(); got < want-1 || got > want+1 {
		t.Errorf("after rate change: expected peak near band %d, got %d", want, got)
	}
}

func TestAnalyzer_NoSteadyStateAllocations(t *testing.T) {
	a := newTestAnalyzer(t)
	in := sine(440, 0.5, DefaultFFTSize)
	a.Process(in, testRate)

	allocs := testing.AllocsPerRun(50, func() {
		a.Process(in, testRate)
	})
	if allocs != 0 {
		t.Errorf("expected zero allocations per frame, got %v", allocs)
	}
}

func TestAnalyzer_MatchesReferenceFFT(t *testing.T) {
	a := newTestAnalyzer(t)
	in := sine(3000, 0.3, DefaultFFTSize)
	for i := range in {
		in[i] += float32(0.1 * math.Sin(2*math.Pi*150*float64(i)/testRate))
	}
	a.Process(in, testRate)

	ref := fft.FFTReal(append([]float64(nil), a.buf...))
	for k := 0; k < DefaultFFTSize/2; k++ {
		got, want := cmplx.Abs(a.coeff[k]), cmplx.Abs(ref[k])
		if math.Abs(got-want) > 1e-6*math.Max(1, want) {
			t.Fatalf("bin %d: |X| = %v, reference %v", k, got, want)
		}
	}
}

func TestAnalyzer_DecibelScale(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scale = MagnitudeDecibel
	a, err := NewAnalyzer(cfg)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}

	frame := a.Process(sine(1000, 0.5, DefaultFFTSize), testRate)
	for b, v := range frame {
		if v < 0 || v > 1 || math.IsNaN(v) {
			t.Fatalf("band %d out of range: %v", b, v)
		}
	}
	want := a.BandIndex(1000, testRate)
	if got := a.BandMagnitudes().ArgMax(); got != want {
		t.Errorf("expected band %d to carry the max, got %d", want, got)
	}
}

func TestAnalyzer_Reset(t *testing.T) {
	a := newTestAnalyzer(t)
	a.Process(sine(1000, 0.5, DefaultFFTSize), testRate)
	a.Reset()
	if a.Peak() != 0 {
		t.Errorf("expected peak 0 after reset, got %v", a.Peak())
	}
	if a.BandMagnitudes().Max() != 0 {
		t.Error("expected cleared band magnitudes after reset")
	}
}

func TestBandLayout_CoversAllBins(t *testing.T) {
	l := newBandLayout(DefaultBands, DefaultFFTSize, testRate, DefaultMinFrequency, DefaultMaxFrequency)
	for i := range l.lo {
		if l.lo[i] < 1 || l.hi[i] > DefaultFFTSize/2 || l.hi[i] <= l.lo[i] {
			t.Errorf("band %d: invalid bin range [%d,%d)", i, l.lo[i], l.hi[i])
		}
		if l.edges[i+1] <= l.edges[i] {
			t.Errorf("band %d: edges not increasing", i)
		}
	}
	if math.Abs(l.edges[0]-DefaultMinFrequency) > 1e-9 {
		t.Errorf("first edge = %v, want %v", l.edges[0], DefaultMinFrequency)
	}
	if math.Abs(l.edges[DefaultBands]-DefaultMaxFrequency) > 1e-6 {
		t.Errorf("last edge = %v, want %v", l.edges[DefaultBands], DefaultMaxFrequency)
	}
}

func TestBandLayout_CapsAtNyquist(t *testing.T) {
	l := newBandLayout(DefaultBands, DefaultFFTSize, 16000, DefaultMinFrequency, DefaultMaxFrequency)
	if l.edges[DefaultBands] > 8000+1e-6 {
		t.Errorf("last edge %v exceeds Nyquist", l.edges[DefaultBands])
	}
}

func TestConfig_ValidateSpectrum(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"non power of two", func(c *Config) { c.FFTSize = 1000 }, true},
		{"tiny fft", func(c *Config) { c.FFTSize = 32 }, true},
		{"no bands", func(c *Config) { c.Bands = 0 }, true},
		{"inverted range", func(c *Config) { c.MinFrequency = 5000; c.MaxFrequency = 100 }, true},
		{"unknown scale", func(c *Config) { c.Scale = "power" }, true},
		{"positive db floor", func(c *Config) { c.Scale = MagnitudeDecibel; c.DecibelFloor = 10 }, true},
		{"zero epsilon", func(c *Config) { c.Epsilon = 0 }, true},
		{"peak attack above one", func(c *Config) { c.PeakAttack = 1.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
