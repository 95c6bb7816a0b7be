package spectrum

// PeakTracker follows the recent maximum band magnitude with hysteresis:
// it rises fast toward louder input and decays slowly toward quieter input.
type PeakTracker struct {
	attack float64
	decay  float64
	peak   float64
}

// NewPeakTracker creates a tracker with the given attack and decay weights.
func NewPeakTracker(attack, decay float64) PeakTracker {
	return PeakTracker{attack: attack, decay: decay}
}

// Update folds the current frame maximum into the peak and returns it.
func (p *PeakTracker) Update(currentMax float64) float64 {
	if currentMax > p.peak {
		p.peak = (1-p.attack)*p.peak + p.attack*currentMax
	} else {
		p.peak = (1-p.decay)*p.peak + p.decay*currentMax
	}
	return p.peak
}

// Peak returns the tracked peak.
func (p *PeakTracker) Peak() float64 {
	return p.peak
}

// Reset zeroes the tracked peak.
func (p *PeakTracker) Reset() {
	p.peak = 0
}
