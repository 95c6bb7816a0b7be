package spectrum

// Smoother applies asymmetric exponential smoothing per band so bars rise
// quickly and fall gently.
type Smoother struct {
	cfg     SmootherConfig
	current Frame
}

// NewSmoother creates a smoother for the given band count.
func NewSmoother(bands int, cfg SmootherConfig) (*Smoother, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Smoother{cfg: cfg, current: NewFrame(bands)}, nil
}

// Apply moves the displayed values toward target and returns them. The
// returned frame is owned by the smoother. Extra target bands are ignored and
// missing ones are treated as zero.
func (s *Smoother) Apply(target Frame) Frame {
	for i, cur := range s.current {
		var t float64
		if i < len(target) {
			t = target[i]
		}

		switch {
		case t > cur && s.cfg.SnapAttack:
			cur = t
		case t > cur:
			cur += (t - cur) * s.cfg.Attack
		default:
			cur += (t - cur) * s.cfg.Decay
		}
		s.current[i] = cur
	}
	return s.current
}

// Current returns the displayed values without advancing them.
func (s *Smoother) Current() Frame {
	return s.current
}

// Reset zeroes all bands.
func (s *Smoother) Reset() {
	clear(s.current)
}
