package audioio

import "math"

// SilenceDBFS is reported for digital silence.
const SilenceDBFS = -120.0

// RMS returns the root mean square of samples in [0, 1] for full-scale input.
// Non-finite samples are skipped.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS converts a linear level to decibels relative to full scale,
// floored at SilenceDBFS.
func DBFS(level float64) float64 {
	if level <= 0 {
		return SilenceDBFS
	}
	return max(20*math.Log10(level), SilenceDBFS)
}
