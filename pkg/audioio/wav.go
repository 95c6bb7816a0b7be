package audioio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files that are not PCM WAV.
var ErrInvalidWAV = errors.New("audioio: invalid WAV file")

// PCM is an in-memory interleaved float buffer in [-1, 1].
type PCM struct {
	Samples []float32
	Format  Format
}

// Frames returns the number of frames (samples per channel).
func (p *PCM) Frames() int {
	if p.Format.Channels < 1 {
		return 0
	}
	return len(p.Samples) / p.Format.Channels
}

// Duration returns the play time of the buffer.
func (p *PCM) Duration() float64 {
	if p.Format.SampleRate <= 0 {
		return 0
	}
	return float64(p.Frames()) / p.Format.SampleRate
}

// ReadWAV decodes a PCM WAV stream into float samples.
func ReadWAV(r io.ReadSeeker) (*PCM, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}

	depth := int(d.BitDepth)
	if depth < 8 || depth > 32 {
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, depth)
	}
	scale := float32(math.Exp2(float64(depth - 1)))

	out := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		if depth == 8 {
			// 8-bit WAV is unsigned.
			v -= 128
		}
		out[i] = float32(v) / scale
	}

	return &PCM{
		Samples: out,
		Format: Format{
			SampleRate: float64(d.SampleRate),
			Channels:   int(d.NumChans),
		},
	}, nil
}

// LoadWAV reads a PCM WAV file from disk.
func LoadWAV(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadWAV(f)
}

// WriteWAV encodes pcm as 16-bit PCM WAV.
func WriteWAV(w io.WriteSeeker, pcm *PCM) error {
	const depth = 16

	channels := max(1, pcm.Format.Channels)
	rate := int(pcm.Format.SampleRate)

	data := make([]int, len(pcm.Samples))
	for i, v := range pcm.Samples {
		v = max(-1, min(1, v))
		data[i] = int(math.Round(float64(v) * 32767))
	}

	enc := wav.NewEncoder(w, rate, depth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: depth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return enc.Close()
}
