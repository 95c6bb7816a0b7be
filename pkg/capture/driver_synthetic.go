package capture

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/dittyapp/ditty/pkg/audioio"
)

// SyntheticConfig configures a SyntheticDriver.
type SyntheticConfig struct {
	// Tones are mixed at equal amplitude when no PCM is set.
	Tones []float64

	// Amplitude is the peak level of the tone mix.
	Amplitude float64

	// PCM, when set, is replayed in a loop instead of the tone mix.
	PCM *audioio.PCM

	// SampleRate and Channels describe the tone stream. Ignored for PCM.
	SampleRate float64
	Channels   int

	// BufferDuration is the pacing of IO callbacks.
	BufferDuration time.Duration

	// Running reports whether the target process exists. Nil means always.
	Running func(target string) bool
}

// SyntheticDriver is a pure Go Driver that plays generated or recorded audio
// through the same acquisition path as a hardware driver. Each started IO
// proc is paced by its own goroutine.
type SyntheticDriver struct {
	cfg SyntheticConfig

	mu      sync.Mutex
	next    uint32
	taps    map[ObjectID]bool
	devices map[ObjectID]bool
	procs   map[IOProcID]*synthProc
	target  string
}

type synthProc struct {
	fn   IOProc
	stop chan struct{}
	done chan struct{}
}

// NewSyntheticDriver creates a synthetic driver.
func NewSyntheticDriver(cfg SyntheticConfig) *SyntheticDriver {
	if cfg.Amplitude <= 0 {
		cfg.Amplitude = 0.5
	}
	if cfg.BufferDuration <= 0 {
		cfg.BufferDuration = 20 * time.Millisecond
	}
	return &SyntheticDriver{
		cfg:     cfg,
		taps:    make(map[ObjectID]bool),
		devices: make(map[ObjectID]bool),
		procs:   make(map[IOProcID]*synthProc),
	}
}

// Name returns "synthetic", or "file" when replaying PCM.
func (d *SyntheticDriver) Name() string {
	if d.cfg.PCM != nil {
		return string(audioio.BackendFile)
	}
	return string(audioio.BackendSynthetic)
}

func (d *SyntheticDriver) format() audioio.Format {
	if d.cfg.PCM != nil {
		return d.cfg.PCM.Format
	}
	return audioio.Format{SampleRate: d.cfg.SampleRate, Channels: max(1, d.cfg.Channels)}
}

// ResolveProcess implements Driver.
func (d *SyntheticDriver) ResolveProcess(target string) ([]int32, error) {
	if d.cfg.Running != nil && !d.cfg.Running(target) {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotRunning, target)
	}
	d.mu.Lock()
	d.target = target
	d.mu.Unlock()
	return nil, nil
}

// ProcessAlive implements Driver.
func (d *SyntheticDriver) ProcessAlive(pids []int32) bool {
	if d.cfg.Running == nil {
		return true
	}
	d.mu.Lock()
	target := d.target
	d.mu.Unlock()
	return d.cfg.Running(target)
}

// CreateTap implements Driver.
func (d *SyntheticDriver) CreateTap(desc TapDescription) (ObjectID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	id := ObjectID(d.next)
	d.taps[id] = true
	return id, nil
}

// DestroyTap implements Driver.
func (d *SyntheticDriver) DestroyTap(tap ObjectID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.taps[tap] {
		return ErrUnknownObject
	}
	delete(d.taps, tap)
	return nil
}

// CreateAggregateDevice implements Driver.
func (d *SyntheticDriver) CreateAggregateDevice(desc AggregateDescription) (ObjectID, error) {
	if d.cfg.PCM != nil && d.cfg.PCM.Frames() == 0 {
		return 0, fmt.Errorf("replay buffer is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	id := ObjectID(d.next)
	d.devices[id] = true
	return id, nil
}

// DestroyAggregateDevice implements Driver.
func (d *SyntheticDriver) DestroyAggregateDevice(device ObjectID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.devices[device] {
		return ErrUnknownObject
	}
	delete(d.devices, device)
	return nil
}

// DeviceIsAlive implements Driver.
func (d *SyntheticDriver) DeviceIsAlive(device ObjectID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.devices[device]
}

// StreamFormat implements Driver.
func (d *SyntheticDriver) StreamFormat(device ObjectID) (audioio.Format, error) {
	if !d.DeviceIsAlive(device) {
		return audioio.Format{}, ErrUnknownObject
	}
	return d.format(), nil
}

// CreateIOProc implements Driver.
func (d *SyntheticDriver) CreateIOProc(device ObjectID, proc IOProc) (IOProcID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.devices[device] {
		return 0, ErrUnknownObject
	}
	d.next++
	id := IOProcID(d.next)
	d.procs[id] = &synthProc{fn: proc}
	return id, nil
}

// DestroyIOProc implements Driver.
func (d *SyntheticDriver) DestroyIOProc(device ObjectID, proc IOProcID) error {
	if err := d.StopDevice(device, proc); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.procs, proc)
	return nil
}

// StartDevice starts the pacing goroutine for proc.
func (d *SyntheticDriver) StartDevice(device ObjectID, proc IOProcID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.procs[proc]
	if !ok {
		return ErrUnknownObject
	}
	if p.stop != nil {
		return nil
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go d.play(p.fn, p.stop, p.done)
	return nil
}

// StopDevice stops the pacing goroutine and waits for it to exit.
func (d *SyntheticDriver) StopDevice(device ObjectID, proc IOProcID) error {
	d.mu.Lock()
	p, ok := d.procs[proc]
	if !ok {
		d.mu.Unlock()
		return ErrUnknownObject
	}
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (d *SyntheticDriver) play(fn IOProc, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	format := d.format()
	frames := max(1, int(format.SampleRate*d.cfg.BufferDuration.Seconds()))
	buf := make([]float32, frames*format.Channels)
	gen := d.generator(format)

	ticker := time.NewTicker(d.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			gen(buf)
			fn(buf, format.Channels)
		}
	}
}

// generator returns a function filling interleaved buffers with the next
// stretch of audio.
func (d *SyntheticDriver) generator(format audioio.Format) func([]float32) {
	if pcm := d.cfg.PCM; pcm != nil {
		pos := 0
		return func(buf []float32) {
			for i := range buf {
				buf[i] = pcm.Samples[pos]
				pos++
				if pos >= len(pcm.Samples) {
					pos = 0
				}
			}
		}
	}

	tones := d.cfg.Tones
	amp := d.cfg.Amplitude
	if len(tones) > 0 {
		amp /= float64(len(tones))
	}
	channels := format.Channels
	var n int64
	return func(buf []float32) {
		for i := 0; i+channels <= len(buf); i += channels {
			t := float64(n) / format.SampleRate
			v := 0.0
			for _, f := range tones {
				v += amp * math.Sin(2*math.Pi*f*t)
			}
			for ch := 0; ch < channels; ch++ {
				buf[i+ch] = float32(v)
			}
			n++
		}
	}
}

var _ Driver = (*SyntheticDriver)(nil)
