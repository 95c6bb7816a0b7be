package audioio

import (
	"testing"
)

func TestMonoExtractor_Stride(t *testing.T) {
	tests := []struct {
		name        string
		interleaved []float32
		channels    int
		want        []float32
	}{
		{"mono", []float32{1, 2, 3}, 1, []float32{1, 2, 3}},
		{"stereo", []float32{1, -1, 2, -2, 3, -3}, 2, []float32{1, 2, 3}},
		{"quad", []float32{1, 9, 9, 9, 2, 9, 9, 9}, 4, []float32{1, 2}},
		{"trailing partial frame", []float32{1, -1, 2}, 2, []float32{1}},
		{"zero channels treated as mono", []float32{5, 6}, 0, []float32{5, 6}},
		{"empty", nil, 2, []float32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonoExtractor(0)
			got := m.Extract(tt.interleaved, tt.channels)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d frames, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("frame %d: expected %v, got %v", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func TestMonoExtractor_ReusesBuffer(t *testing.T) {
	m := NewMonoExtractor(1024)
	in := make([]float32, 512*2)

	allocs := testing.AllocsPerRun(100, func() {
		m.Extract(in, 2)
	})
	if allocs != 0 {
		t.Errorf("expected zero allocations, got %v", allocs)
	}
}

func TestMonoExtractor_GrowsWithoutShrinking(t *testing.T) {
	m := NewMonoExtractor(0)
	if m.Capacity() != minMonoCapacity {
		t.Fatalf("expected capacity %d, got %d", minMonoCapacity, m.Capacity())
	}

	big := make([]float32, (minMonoCapacity+100)*2)
	if got := len(m.Extract(big, 2)); got != minMonoCapacity+100 {
		t.Fatalf("expected %d frames, got %d", minMonoCapacity+100, got)
	}
	grown := m.Capacity()

	m.Extract(make([]float32, 10), 2)
	if m.Capacity() != grown {
		t.Errorf("capacity shrank from %d to %d", grown, m.Capacity())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Backend = "alsa" }, true},
		{"zero sample rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Channels = 0 }, true},
		{"zero buffer", func(c *Config) { c.BufferDuration = 0 }, true},
		{"file without path", func(c *Config) { c.Backend = BackendFile }, true},
		{"file with path", func(c *Config) { c.Backend = BackendFile; c.File = "a.wav" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveBackend(t *testing.T) {
	if got := ResolveBackend(BackendMock); got != BackendMock {
		t.Errorf("explicit backend changed to %s", got)
	}
	if got := ResolveBackend(BackendAuto); got == BackendAuto {
		t.Error("auto backend was not resolved")
	}
}
