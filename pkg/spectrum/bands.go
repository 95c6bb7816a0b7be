package spectrum

import (
	"math"
)

// Frame is an ordered sequence of band levels.
type Frame []float64

// NewFrame returns a zeroed frame with n bands.
func NewFrame(n int) Frame {
	return make(Frame, n)
}

// Max returns the largest level in the frame, or 0 for an empty frame.
func (f Frame) Max() float64 {
	m := 0.0
	for _, v := range f {
		if v > m {
			m = v
		}
	}
	return m
}

// ArgMax returns the index of the largest level, or -1 for an empty frame.
// Ties go to the lowest index.
func (f Frame) ArgMax() int {
	idx := -1
	m := math.Inf(-1)
	for i, v := range f {
		if v > m {
			m, idx = v, i
		}
	}
	return idx
}

// bandLayout maps linear FFT bins onto logarithmically spaced bands.
//
// Band i covers [edge(i/B), edge((i+1)/B)) where
// edge(t) = 2^(log2(fmin) + (log2(fmax)-log2(fmin))*t).
type bandLayout struct {
	edges []float64 // B+1 band edges in Hz
	lo    []int     // first bin of each band
	hi    []int     // one past the last bin of each band
}

func newBandLayout(bands, fftSize int, sampleRate, fmin, fmax float64) bandLayout {
	nyquist := sampleRate / 2
	if fmax > nyquist {
		fmax = nyquist
	}
	if fmin >= fmax {
		fmin = fmax / 2
	}

	l := bandLayout{
		edges: make([]float64, bands+1),
		lo:    make([]int, bands),
		hi:    make([]int, bands),
	}

	logMin, logMax := math.Log2(fmin), math.Log2(fmax)
	for i := 0; i <= bands; i++ {
		t := float64(i) / float64(bands)
		l.edges[i] = math.Exp2(logMin + (logMax-logMin)*t)
	}

	binHz := sampleRate / float64(fftSize)
	half := fftSize / 2
	for i := 0; i < bands; i++ {
		f0, f1 := l.edges[i], l.edges[i+1]

		// Bins whose centre frequency k*binHz lies in [f0, f1).
		lo := int(math.Ceil(f0 / binHz))
		hi := int(math.Ceil(f1 / binHz))
		lo = max(lo, 1)
		hi = min(hi, half)

		if hi <= lo {
			// Narrow low bands hold no bin centre; borrow the bin nearest
			// the band's geometric centre.
			k := int(math.Round(math.Sqrt(f0*f1) / binHz))
			k = min(max(k, 1), half-1)
			lo, hi = k, k+1
		}
		l.lo[i], l.hi[i] = lo, hi
	}

	return l
}

// bandOf returns the band whose range contains freq, or -1.
func (l bandLayout) bandOf(freq float64) int {
	for i := 0; i+1 < len(l.edges); i++ {
		if freq >= l.edges[i] && freq < l.edges[i+1] {
			return i
		}
	}
	return -1
}

// Downsample reduces bands to bars by taking the maximum of each bar's
// proportional slice. If bars is not smaller than len(bands), bands is
// returned unchanged. dst is reused when it has enough capacity.
func Downsample(dst, bands Frame, bars int) Frame {
	if bars <= 0 || bars >= len(bands) {
		return bands
	}

	if cap(dst) < bars {
		dst = make(Frame, bars)
	}
	dst = dst[:bars]

	ratio := float64(len(bands)) / float64(bars)
	for i := 0; i < bars; i++ {
		lo := int(float64(i) * ratio)
		hi := min(len(bands), int(float64(i+1)*ratio))
		if hi <= lo {
			dst[i] = bands[lo]
			continue
		}
		m := bands[lo]
		for _, v := range bands[lo+1 : hi] {
			if v > m {
				m = v
			}
		}
		dst[i] = m
	}
	return dst
}
