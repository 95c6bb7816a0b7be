package audioio

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWAV_RoundTrip(t *testing.T) {
	in := &PCM{
		Samples: []float32{0, 0.5, -0.5, 1, -1, 0.25},
		Format:  Format{SampleRate: 22050, Channels: 2},
	}

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteWAV(f, in); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	f.Close()

	out, err := LoadWAV(path)
	if err != nil {
		t.Fatalf("LoadWAV: %v", err)
	}
	if out.Format != in.Format {
		t.Errorf("format = %+v, want %+v", out.Format, in.Format)
	}
	if out.Frames() != 3 {
		t.Errorf("frames = %d, want 3", out.Frames())
	}
	for i, v := range in.Samples {
		if math.Abs(float64(out.Samples[i]-v)) > 1.0/16384 {
			t.Errorf("sample %d = %v, want %v", i, out.Samples[i], v)
		}
	}
}

func TestReadWAV_Invalid(t *testing.T) {
	_, err := ReadWAV(bytes.NewReader([]byte("not a wav file at all")))
	if !errors.Is(err, ErrInvalidWAV) {
		t.Errorf("expected ErrInvalidWAV, got %v", err)
	}
}
