package spectrum

import (
	"math"
	"slices"
	"testing"
)

func TestSmoother_RiseAndFall(t *testing.T) {
	s, err := NewSmoother(1, DefaultSmootherConfig())
	if err != nil {
		t.Fatalf("NewSmoother: %v", err)
	}

	up := Frame{1}
	var v float64
	for i := 1; i <= 3; i++ {
		v = s.Apply(up)[0]
		if want := 1 - math.Pow(0.1, float64(i)); math.Abs(v-want) > 1e-12 {
			t.Fatalf("rise step %d: got %v, want %v", i, v, want)
		}
	}

	// Rises within a few frames, falls over many more.
	rise := 3
	fall := 0
	down := Frame{0}
	for v > 0.01 {
		v = s.Apply(down)[0]
		fall++
	}
	if fall <= rise*3 {
		t.Errorf("expected a slow fall, took %d frames vs %d to rise", fall, rise)
	}
}

func TestSmoother_Snap(t *testing.T) {
	cfg := DefaultSmootherConfig()
	cfg.SnapAttack = true
	s, err := NewSmoother(2, cfg)
	if err != nil {
		t.Fatalf("NewSmoother: %v", err)
	}

	got := s.Apply(Frame{0.8, 0.3})
	if got[0] != 0.8 || got[1] != 0.3 {
		t.Errorf("expected snap to target, got %v", got)
	}

	got = s.Apply(Frame{0, 0})
	if want := 0.8 * 0.75; math.Abs(got[0]-want) > 1e-12 {
		t.Errorf("decay after snap: got %v, want %v", got[0], want)
	}
}

func TestSmoother_MismatchedTarget(t *testing.T) {
	s, _ := NewSmoother(3, DefaultSmootherConfig())
	first := slices.Clone(s.Apply(Frame{1, 1, 1, 1, 1}))
	if len(first) != 3 {
		t.Fatalf("expected 3 bands, got %d", len(first))
	}

	got := s.Apply(Frame{1})
	if got[0] <= first[0] {
		t.Errorf("band 0 should keep rising, got %v after %v", got[0], first[0])
	}
	if got[2] >= first[2] {
		t.Errorf("missing target band should decay toward zero, got %v after %v", got[2], first[2])
	}

	s.Reset()
	if s.Current().Max() != 0 {
		t.Error("expected zeros after reset")
	}
}

func TestSmootherConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SmootherConfig
		wantErr bool
	}{
		{"defaults", DefaultSmootherConfig(), false},
		{"equal weights", SmootherConfig{Attack: 0.5, Decay: 0.5}, false},
		{"attack below decay", SmootherConfig{Attack: 0.2, Decay: 0.5}, true},
		{"zero decay", SmootherConfig{Attack: 0.5, Decay: 0}, true},
		{"attack above one", SmootherConfig{Attack: 1.2, Decay: 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPeakTracker(t *testing.T) {
	p := NewPeakTracker(0.7, 0.005)

	if got := p.Update(1); math.Abs(got-0.7) > 1e-12 {
		t.Errorf("first rise: got %v, want 0.7", got)
	}
	if got := p.Update(1); math.Abs(got-0.91) > 1e-12 {
		t.Errorf("second rise: got %v, want 0.91", got)
	}
	if got := p.Update(0); math.Abs(got-0.91*0.995) > 1e-12 {
		t.Errorf("decay: got %v, want %v", got, 0.91*0.995)
	}

	p.Reset()
	if p.Peak() != 0 {
		t.Errorf("expected 0 after reset, got %v", p.Peak())
	}
}

func TestDownsample(t *testing.T) {
	bands := make([]float64, 64)
	for i := range bands {
		bands[i] = float64(i) / 63
	}
	bands[10] = 5

	tests := []struct {
		name string
		bars int
		want int
	}{
		{"zero bars", 0, 64},
		{"same size", 64, 64},
		{"larger", 128, 64},
		{"half", 32, 32},
		{"uneven", 24, 24},
		{"eight", 8, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Downsample(nil, bands, tt.bars)
			if len(got) != tt.want {
				t.Fatalf("expected %d bars, got %d", tt.want, len(got))
			}
			if got.Max() != 5 {
				t.Errorf("lost the loudest band: max %v", got.Max())
			}
		})
	}

	got := Downsample(nil, bands, 8)
	if got[1] != 5 {
		t.Errorf("bar 1 should carry band 10, got %v", got[1])
	}
	if got[7] != 1 {
		t.Errorf("last bar should carry the top band, got %v", got[7])
	}
}

func TestDownsample_ReusesDst(t *testing.T) {
	bands := make([]float64, 64)
	dst := make([]float64, 0, 32)
	allocs := testing.AllocsPerRun(50, func() {
		dst = Downsample(dst, bands, 16)
	})
	if allocs != 0 {
		t.Errorf("expected zero allocations, got %v", allocs)
	}
}
